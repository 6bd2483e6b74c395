// Package dataset provides the row-indexed data sources fed to the batch
// generators: in-memory arrays, JSON and HDF5 files, parquet datasets from
// the dataset hub and synthetic random data.
package dataset

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/seantzu/janggu/generator"
)

var (
	ErrIndexOutOfRange = errors.New("row index out of range")
	ErrUnknownSource   = errors.New("unknown data source")
)

// Source is a generator.DataSource with a known shape that may hold
// resources.
type Source interface {
	generator.DataSource
	Len() int
	Dimension() int
	Close() error
}

// Array serves rows held in memory. GetData returns copies.
type Array struct {
	name string
	rows [][]float32
	dims int
}

// NewArray wraps rows without copying them.
func NewArray(name string, rows [][]float32) *Array {
	dims := 0
	if len(rows) > 0 {
		dims = len(rows[0])
	}
	return &Array{name: name, rows: rows, dims: dims}
}

// NewRandom builds rows x dims values drawn uniformly from [-1, 1).
func NewRandom(name string, rows, dims int, seed int64) *Array {
	rng := rand.New(rand.NewSource(seed))
	data := make([][]float32, rows)
	for i := range data {
		data[i] = randomVector(rng, dims)
	}
	return NewArray(name, data)
}

func randomVector(rng *rand.Rand, dims int) []float32 {
	vector := make([]float32, dims)
	for i := range vector {
		vector[i] = rng.Float32()*2 - 1
	}
	return vector
}

func (a *Array) Name() string { return a.name }

func (a *Array) Len() int { return len(a.rows) }

func (a *Array) Dimension() int { return a.dims }

func (a *Array) Close() error { return nil }

func (a *Array) GetData(indices []int) ([][]float32, error) {
	out := make([][]float32, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(a.rows) {
			return nil, errors.Wrapf(ErrIndexOutOfRange, "%s: index %d, %d rows", a.name, idx, len(a.rows))
		}
		out[i] = append([]float32(nil), a.rows[idx]...)
	}
	return out, nil
}
