package generator

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSource hands out its own storage rows, so any aliasing in the
// generator would be visible to the tests.
type memSource struct {
	name     string
	rows     [][]float32
	mu       sync.Mutex
	calls    [][]int
	failNext error
	short    bool
}

func newMemSource(name string, n int, scale float32) *memSource {
	rows := make([][]float32, n)
	for i := range rows {
		rows[i] = []float32{float32(i) * scale, float32(i)*scale + 1}
	}
	return &memSource{name: name, rows: rows}
}

func (s *memSource) Name() string { return s.name }

func (s *memSource) GetData(indices []int) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]int(nil), indices...))
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return nil, err
	}
	out := make([][]float32, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(s.rows) {
			return nil, fmt.Errorf("index %d out of range", idx)
		}
		out = append(out, s.rows[idx])
	}
	if s.short && len(out) > 0 {
		out = out[1:]
	}
	return out, nil
}

func (s *memSource) lastCall() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestFitScenarioTenRowsBatchFour(t *testing.T) {
	in := newMemSource("x", 10, 1)
	out := newMemSource("y", 10, 100)
	g, err := NewFit(FitOptions{
		Inputs:    []DataSource{in},
		Outputs:   []DataSource{out},
		Indices:   seq(10),
		BatchSize: 4,
		Seed:      7,
	})
	require.NoError(t, err)
	require.Equal(t, 3, g.BatchesPerPass())

	for pass := 1; pass <= 3; pass++ {
		var sizes []int
		var seen []int
		for b := 0; b < 3; b++ {
			batch, err := g.Next()
			require.NoError(t, err)
			sizes = append(sizes, batch.Len())
			seen = append(seen, batch.Indices...)

			require.Len(t, batch.Inputs["x"], batch.Len())
			require.Len(t, batch.Outputs["y"], batch.Len())
			require.Nil(t, batch.Weights)
			for i, idx := range batch.Indices {
				assert.Equal(t, []float32{float32(idx), float32(idx) + 1}, batch.Inputs["x"][i])
				assert.Equal(t, []float32{float32(idx) * 100, float32(idx)*100 + 1}, batch.Outputs["y"][i])
			}
		}
		assert.Equal(t, []int{4, 4, 2}, sizes)
		sort.Ints(seen)
		assert.Equal(t, seq(10), seen, "pass %d must cover every index once", pass)
		assert.Equal(t, pass, g.Pass())
	}
}

func TestFitBatchCounts(t *testing.T) {
	for _, n := range []int{1, 3, 4, 7, 10, 16} {
		for _, bs := range []int{1, 3, 4, 20} {
			t.Run(fmt.Sprintf("rows=%d batch=%d", n, bs), func(t *testing.T) {
				g, err := NewFit(FitOptions{
					Inputs:    []DataSource{newMemSource("x", n, 1)},
					Indices:   seq(n),
					BatchSize: bs,
					Seed:      1,
				})
				require.NoError(t, err)

				want := (n + bs - 1) / bs
				require.Equal(t, want, g.BatchesPerPass())

				total := 0
				for b := 0; b < want; b++ {
					batch, err := g.Next()
					require.NoError(t, err)
					total += batch.Len()
					if b < want-1 {
						assert.Equal(t, bs, batch.Len())
					} else {
						last := n % bs
						if last == 0 {
							last = bs
						}
						assert.Equal(t, last, batch.Len())
					}
				}
				assert.Equal(t, n, total)
				assert.Equal(t, 1, g.Pass())
			})
		}
	}
}

func TestFitSampleWeights(t *testing.T) {
	weights := make([]float32, 10)
	for i := range weights {
		weights[i] = float32(i) * 0.5
	}
	g, err := NewFit(FitOptions{
		Inputs:    []DataSource{newMemSource("x", 10, 1)},
		Indices:   seq(10),
		BatchSize: 4,
		Weights:   weights,
		Seed:      3,
	})
	require.NoError(t, err)

	for b := 0; b < 6; b++ {
		batch, err := g.Next()
		require.NoError(t, err)
		require.Len(t, batch.Weights, batch.Len())
		for i, idx := range batch.Indices {
			assert.Equal(t, weights[idx], batch.Weights[i])
		}
	}
}

func TestFitSubsetOfRows(t *testing.T) {
	src := newMemSource("x", 20, 1)
	indices := []int{19, 2, 11, 7, 5}
	g, err := NewFit(FitOptions{
		Inputs:    []DataSource{src},
		Indices:   indices,
		BatchSize: 2,
		Seed:      11,
	})
	require.NoError(t, err)

	var seen []int
	for b := 0; b < g.BatchesPerPass(); b++ {
		batch, err := g.Next()
		require.NoError(t, err)
		seen = append(seen, batch.Indices...)
	}
	sort.Ints(seen)
	assert.Equal(t, []int{2, 5, 7, 11, 19}, seen)
}

func TestFitSameSeedSameOrder(t *testing.T) {
	newGen := func() *Fit {
		g, err := NewFit(FitOptions{
			Inputs:    []DataSource{newMemSource("x", 50, 1)},
			Indices:   seq(50),
			BatchSize: 8,
			Seed:      42,
		})
		require.NoError(t, err)
		return g
	}
	a, b := newGen(), newGen()
	for i := 0; i < 20; i++ {
		ba, err := a.Next()
		require.NoError(t, err)
		bb, err := b.Next()
		require.NoError(t, err)
		require.Equal(t, ba.Indices, bb.Indices)
	}
}

func TestFitEmptyIndex(t *testing.T) {
	src := newMemSource("x", 5, 1)
	g, err := NewFit(FitOptions{
		Inputs:    []DataSource{src},
		Indices:   nil,
		BatchSize: 4,
	})
	require.NoError(t, err)
	require.Equal(t, 0, g.BatchesPerPass())

	for i := 0; i < 5; i++ {
		_, err := g.Next()
		require.ErrorIs(t, err, ErrEmptyIndex)
	}
	assert.Empty(t, src.calls, "no data may be fetched for an empty index list")
}

func TestFitOwnsIndexCopy(t *testing.T) {
	indices := seq(12)
	shared := indices[:]

	train, err := NewFit(FitOptions{
		Inputs:    []DataSource{newMemSource("x", 12, 1)},
		Indices:   indices,
		BatchSize: 5,
		Seed:      5,
	})
	require.NoError(t, err)
	predict, err := NewPredict(PredictOptions{
		Inputs:    []DataSource{newMemSource("x", 12, 1)},
		Indices:   shared,
		BatchSize: 12,
	})
	require.NoError(t, err)

	for i := 0; i < 9; i++ {
		_, err := train.Next()
		require.NoError(t, err)
	}
	assert.Equal(t, seq(12), indices, "caller slice must not be reshuffled")

	batch, err := predict.Next()
	require.NoError(t, err)
	assert.Equal(t, seq(12), batch.Indices)
}

func TestFitReturnsCopies(t *testing.T) {
	src := newMemSource("x", 6, 1)
	weights := []float32{1, 2, 3, 4, 5, 6}
	g, err := NewFit(FitOptions{
		Inputs:    []DataSource{src},
		Indices:   seq(6),
		BatchSize: 6,
		Weights:   weights,
		Seed:      9,
	})
	require.NoError(t, err)

	first, err := g.Next()
	require.NoError(t, err)
	indices := append([]int(nil), first.Indices...)
	rows := cloneRows(first.Inputs["x"])

	// mutate everything the caller got back
	for _, row := range first.Inputs["x"] {
		row[0] = -1
	}
	first.Weights[0] = -1

	assert.Equal(t, []float32{0, 1}, src.rows[0])
	assert.Equal(t, float32(1), weights[0])

	// the next pass reshuffles the generator's indices; earlier batches keep theirs
	_, err = g.Next()
	require.NoError(t, err)
	assert.Equal(t, indices, first.Indices)

	again, err := src.GetData(indices)
	require.NoError(t, err)
	assert.Equal(t, rows, cloneRows(again), "fetching the same indices twice must give equal data")
}

func TestFitErrorKeepsCursor(t *testing.T) {
	boom := errors.New("disk on fire")
	in := newMemSource("x", 9, 1)
	out := newMemSource("y", 9, 1)
	g, err := NewFit(FitOptions{
		Inputs:    []DataSource{in},
		Outputs:   []DataSource{out},
		Indices:   seq(9),
		BatchSize: 3,
		Seed:      2,
	})
	require.NoError(t, err)

	first, err := g.Next()
	require.NoError(t, err)

	out.failNext = boom
	_, err = g.Next()
	require.Equal(t, boom, err, "source errors are passed through untouched")
	failed := out.lastCall()

	second, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, failed, second.Indices, "retry must rebuild the same slice")
	assert.NotEqual(t, first.Indices, second.Indices)
	assert.Equal(t, 1, g.Pass())

	third, err := g.Next()
	require.NoError(t, err)
	all := append(append(append([]int(nil), first.Indices...), second.Indices...), third.Indices...)
	sort.Ints(all)
	assert.Equal(t, seq(9), all)
}

func TestFitErrorOnFirstSliceDoesNotReshuffle(t *testing.T) {
	boom := errors.New("transient")
	in := newMemSource("x", 8, 1)
	in.failNext = boom
	g, err := NewFit(FitOptions{
		Inputs:    []DataSource{in},
		Indices:   seq(8),
		BatchSize: 4,
		Seed:      13,
	})
	require.NoError(t, err)

	_, err = g.Next()
	require.ErrorIs(t, err, boom)
	failed := in.lastCall()

	batch, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, failed, batch.Indices)
	assert.Equal(t, 1, g.Pass())
}

func TestFitRowMismatch(t *testing.T) {
	in := newMemSource("x", 8, 1)
	in.short = true
	g, err := NewFit(FitOptions{
		Inputs:    []DataSource{in},
		Indices:   seq(8),
		BatchSize: 4,
	})
	require.NoError(t, err)

	_, err = g.Next()
	require.ErrorIs(t, err, ErrRowMismatch)
}

func TestNewFitValidation(t *testing.T) {
	tests := []struct {
		name string
		opts FitOptions
		want error
	}{
		{
			name: "zero batch size",
			opts: FitOptions{Inputs: []DataSource{newMemSource("x", 3, 1)}, Indices: seq(3)},
			want: ErrBatchSize,
		},
		{
			name: "duplicate inputs",
			opts: FitOptions{
				Inputs:    []DataSource{newMemSource("x", 3, 1), newMemSource("x", 3, 1)},
				Indices:   seq(3),
				BatchSize: 1,
			},
			want: ErrDuplicateSource,
		},
		{
			name: "duplicate outputs",
			opts: FitOptions{
				Outputs:   []DataSource{newMemSource("y", 3, 1), newMemSource("y", 3, 1)},
				Indices:   seq(3),
				BatchSize: 1,
			},
			want: ErrDuplicateSource,
		},
		{
			name: "weights too short",
			opts: FitOptions{
				Inputs:    []DataSource{newMemSource("x", 3, 1)},
				Indices:   seq(3),
				BatchSize: 1,
				Weights:   []float32{1, 1},
			},
			want: ErrWeightsRange,
		},
		{
			name: "negative index with weights",
			opts: FitOptions{
				Inputs:    []DataSource{newMemSource("x", 3, 1)},
				Indices:   []int{0, -1},
				BatchSize: 1,
				Weights:   []float32{1, 1, 1},
			},
			want: ErrWeightsRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFit(tt.opts)
			require.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("same name as input and output is fine", func(t *testing.T) {
		_, err := NewFit(FitOptions{
			Inputs:    []DataSource{newMemSource("x", 3, 1)},
			Outputs:   []DataSource{newMemSource("x", 3, 1)},
			Indices:   seq(3),
			BatchSize: 2,
		})
		require.NoError(t, err)
	})
}
