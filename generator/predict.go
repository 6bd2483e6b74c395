package generator

import (
	"github.com/pkg/errors"
)

// PredictOptions configures an inference generator.
type PredictOptions struct {
	Inputs    []DataSource
	Indices   []int
	BatchSize int
}

// Predict is an endless inference batch generator. It walks the index list
// in the order given, without shuffling, and only fills Batch.Inputs.
type Predict struct {
	inputs []DataSource
	pager  *pager
}

func NewPredict(opts PredictOptions) (*Predict, error) {
	if err := checkNames(opts.Inputs); err != nil {
		return nil, errors.Wrap(err, "inputs")
	}
	p, err := newPager("predict", opts.Indices, opts.BatchSize)
	if err != nil {
		return nil, err
	}
	return &Predict{inputs: opts.Inputs, pager: p}, nil
}

func (g *Predict) Next() (Batch, error) {
	slice, err := g.pager.current(nil)
	if err != nil {
		return Batch{}, err
	}

	inputs, err := fetch(g.inputs, slice)
	if err != nil {
		return Batch{}, err
	}

	g.pager.advance()

	return Batch{
		Inputs:  inputs,
		Indices: append([]int(nil), slice...),
	}, nil
}

func (g *Predict) BatchesPerPass() int {
	return g.pager.batches()
}

func (g *Predict) Pass() int {
	return g.pager.passes
}
