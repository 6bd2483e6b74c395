package results

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Score is one entry of a model comparison. The header of a score table
// names the scored unit as <model>-<layer>-<condition>.
type Score struct {
	Model     string  `json:"model"`
	Layer     string  `json:"layer"`
	Condition string  `json:"condition"`
	Value     float64 `json:"value"`
	File      string  `json:"file"`
}

type ScoreTable struct {
	Name   string  `json:"name"`
	Scores []Score `json:"scores"`
}

// Comparison collects every score table under evaluation/, a .tsv file
// with exactly one data row, grouped by file stem. Tables are sorted by
// name and scores by descending value.
func (d *Dir) Comparison() ([]ScoreTable, error) {
	root := d.Path(EvaluationDir)
	grouped := map[string][]Score{}

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if entry.IsDir() || filepath.Ext(path) != ".tsv" {
			return nil
		}

		score, ok, err := readScore(path)
		if err != nil {
			log.WithError(err).WithField("file", path).Debug("skipping unreadable table")
			return nil
		}
		if !ok {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		score.File = filepath.ToSlash(rel)

		name := strings.TrimSuffix(entry.Name(), ".tsv")
		grouped[name] = append(grouped[name], score)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walk evaluation")
	}

	names := maps.Keys(grouped)
	slices.Sort(names)

	tables := make([]ScoreTable, 0, len(names))
	for _, name := range names {
		scores := grouped[name]
		slices.SortStableFunc(scores, func(a, b Score) int {
			switch {
			case a.Value > b.Value:
				return -1
			case a.Value < b.Value:
				return 1
			}
			return strings.Compare(a.File, b.File)
		})
		tables = append(tables, ScoreTable{Name: name, Scores: scores})
	}
	return tables, nil
}

// readScore reports ok=false for tables that are not score tables.
func readScore(path string) (Score, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return Score{}, false, err
	}
	defer f.Close()

	r := newTSVReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return Score{}, false, err
	}
	first, err := r.Read()
	if err == io.EOF {
		return Score{}, false, nil
	}
	if err != nil {
		return Score{}, false, err
	}
	if _, err := r.Read(); err != io.EOF {
		return Score{}, false, nil
	}
	if len(header) == 0 || len(first) == 0 {
		return Score{}, false, nil
	}

	value, err := strconv.ParseFloat(first[0], 64)
	if err != nil {
		return Score{}, false, errors.Errorf("score %q is not a number", first[0])
	}

	parts := strings.SplitN(header[0], "-", 3)
	score := Score{Model: parts[0], Value: value}
	if len(parts) > 1 {
		score.Layer = parts[1]
	}
	if len(parts) > 2 {
		score.Condition = parts[2]
	}
	return score, true, nil
}
