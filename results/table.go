package results

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	annotationPrefix = "annot."
	rowNamesColumn   = "row_names"
)

// Table is a tab separated file with a header row. Columns named
// "row_names" and "annot.<name>" are kept as labels; all other columns
// must be numeric.
type Table struct {
	Columns     []string
	RowNames    []string
	Annotations map[string][]string
	Values      [][]float64
}

func (t *Table) Rows() int { return len(t.Values) }

// ReadTable reads a whole table.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open table")
	}
	defer f.Close()

	r := newTSVReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "read header of %s", path)
	}

	t := &Table{Annotations: map[string][]string{}}
	var numeric []int
	for i, col := range header {
		switch {
		case col == rowNamesColumn:
		case strings.HasPrefix(col, annotationPrefix):
		default:
			numeric = append(numeric, i)
			t.Columns = append(t.Columns, col)
		}
	}

	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}

		row := make([]float64, len(numeric))
		for j, col := range numeric {
			if row[j], err = strconv.ParseFloat(record[col], 64); err != nil {
				return nil, errors.Errorf("%s:%d: column %q: %q is not a number", path, line, header[col], record[col])
			}
		}
		t.Values = append(t.Values, row)

		for i, col := range header {
			switch {
			case col == rowNamesColumn:
				t.RowNames = append(t.RowNames, record[i])
			case strings.HasPrefix(col, annotationPrefix):
				name := strings.TrimPrefix(col, annotationPrefix)
				t.Annotations[name] = append(t.Annotations[name], record[i])
			}
		}
	}
	return t, nil
}

// ReadRecords reads the header and at most max data rows as text.
func ReadRecords(path string, max int) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open table")
	}
	defer f.Close()

	r := newTSVReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read header of %s", path)
	}

	var rows [][]string
	for len(rows) < max {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "read %s", path)
		}
		rows = append(rows, record)
	}
	return header, rows, nil
}

func newTSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	return reader
}
