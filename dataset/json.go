package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// LoadJSON reads a file holding a JSON array of float arrays, one per row.
func LoadJSON(name, path string) (*Array, error) {
	var rows [][]float32
	if err := decodeJSONFile(path, &rows); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, errors.Errorf("%s: row %d has %d values, row 0 has %d", path, i, len(row), len(rows[0]))
		}
	}
	return NewArray(name, rows), nil
}

// LoadWeights reads a flat vector of sample weights from a .json file or
// from the "weights" dataset of an .h5/.hdf5 file.
func LoadWeights(path string) ([]float32, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var weights []float32
		if err := decodeJSONFile(path, &weights); err != nil {
			return nil, err
		}
		return weights, nil
	case ".h5", ".hdf5":
		return loadHDF5Vector(path, "weights")
	default:
		return nil, errors.Wrapf(ErrUnknownSource, "weights file %s", path)
	}
}

func decodeJSONFile(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open json")
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}
