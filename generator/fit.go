package generator

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// FitOptions configures a training generator.
type FitOptions struct {
	Inputs  []DataSource
	Outputs []DataSource
	// Indices are copied; the generator reshuffles its own copy every pass.
	Indices   []int
	BatchSize int
	// Weights is indexed by absolute row index and may be nil.
	Weights []float32
	// Seed for the shuffle. Zero picks a time based seed.
	Seed int64
}

// Fit is an endless training batch generator. Every pass reshuffles the
// index list and walks it in slices of the batch size; the last slice of a
// pass may be shorter. Fit is not safe for concurrent use, wrap it with
// NewLocked or drive it through Stream.
type Fit struct {
	inputs  []DataSource
	outputs []DataSource
	weights []float32
	pager   *pager
	rng     *rand.Rand
}

func NewFit(opts FitOptions) (*Fit, error) {
	if err := checkNames(opts.Inputs); err != nil {
		return nil, errors.Wrap(err, "inputs")
	}
	if err := checkNames(opts.Outputs); err != nil {
		return nil, errors.Wrap(err, "outputs")
	}
	if opts.Weights != nil {
		for _, idx := range opts.Indices {
			if idx < 0 || idx >= len(opts.Weights) {
				return nil, errors.Wrapf(ErrWeightsRange, "index %d, %d weights", idx, len(opts.Weights))
			}
		}
	}

	p, err := newPager("fit", opts.Indices, opts.BatchSize)
	if err != nil {
		return nil, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var weights []float32
	if opts.Weights != nil {
		weights = append([]float32{}, opts.Weights...)
	}

	return &Fit{
		inputs:  opts.Inputs,
		outputs: opts.Outputs,
		weights: weights,
		pager:   p,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// Next returns the next batch. It never signals the end of the sequence.
func (g *Fit) Next() (Batch, error) {
	slice, err := g.pager.current(g.shuffle)
	if err != nil {
		return Batch{}, err
	}

	inputs, err := fetch(g.inputs, slice)
	if err != nil {
		return Batch{}, err
	}
	outputs, err := fetch(g.outputs, slice)
	if err != nil {
		return Batch{}, err
	}

	var weights []float32
	if g.weights != nil {
		weights = make([]float32, len(slice))
		for i, idx := range slice {
			weights[i] = g.weights[idx]
		}
	}

	g.pager.advance()

	return Batch{
		Inputs:  inputs,
		Outputs: outputs,
		Weights: weights,
		Indices: append([]int(nil), slice...),
	}, nil
}

// BatchesPerPass is ceil(len(indices) / batchSize).
func (g *Fit) BatchesPerPass() int {
	return g.pager.batches()
}

// Pass is the number of passes started so far.
func (g *Fit) Pass() int {
	return g.pager.passes
}

func (g *Fit) shuffle(indices []int) {
	g.rng.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
}
