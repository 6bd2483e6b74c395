// Package generator produces endless sequences of aligned batches from named
// row-indexed data sources, for model fitting and for inference.
package generator

import (
	"github.com/pkg/errors"
)

var (
	// ErrEmptyIndex is returned by Next whenever a pass starts with no
	// indices to iterate over.
	ErrEmptyIndex = errors.New("index list is empty")

	ErrBatchSize       = errors.New("batch size must be > 0")
	ErrDuplicateSource = errors.New("duplicate data source name")
	ErrWeightsRange    = errors.New("index not covered by sample weights")
	ErrRowMismatch     = errors.New("data source returned wrong number of rows")
)

// DataSource is a named provider of row-indexed data. GetData returns one
// row per requested index, in request order.
type DataSource interface {
	Name() string
	GetData(indices []int) ([][]float32, error)
}

// Batch is one unit of work: named input and output arrays plus optional
// per-row weights, all aligned to the same slice of absolute row indices.
type Batch struct {
	Inputs  map[string][][]float32
	Outputs map[string][][]float32
	Weights []float32
	Indices []int
}

// Len is the number of rows in the batch.
func (b Batch) Len() int {
	return len(b.Indices)
}

// Iterator produces the next batch of a sequence.
type Iterator interface {
	Next() (Batch, error)
}

func checkNames(sources []DataSource) error {
	seen := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if _, ok := seen[src.Name()]; ok {
			return errors.Wrapf(ErrDuplicateSource, "%q", src.Name())
		}
		seen[src.Name()] = struct{}{}
	}
	return nil
}

// fetch reads the slice from every source and keys the copied rows by name.
// Source errors are returned as is.
func fetch(sources []DataSource, slice []int) (map[string][][]float32, error) {
	out := make(map[string][][]float32, len(sources))
	for _, src := range sources {
		rows, err := src.GetData(slice)
		if err != nil {
			return nil, err
		}
		if len(rows) != len(slice) {
			return nil, errors.Wrapf(ErrRowMismatch, "%q returned %d rows for %d indices",
				src.Name(), len(rows), len(slice))
		}
		out[src.Name()] = cloneRows(rows)
	}
	return out, nil
}

func cloneRows(rows [][]float32) [][]float32 {
	out := make([][]float32, len(rows))
	for i, row := range rows {
		out[i] = append([]float32(nil), row...)
	}
	return out
}
