package dashboard

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantzu/janggu/results"
)

func TestProject(t *testing.T) {
	// points on the line y = 2x: the first component carries all variance
	values := [][]float64{{0, 0}, {1, 2}, {2, 4}, {3, 6}}
	scores, err := project(values, plotComponents)
	require.NoError(t, err)

	rows, cols := scores.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 2, cols)

	for i := 0; i < rows; i++ {
		assert.InDelta(t, 0, scores.At(i, 1), 1e-9)
	}
	span := math.Abs(scores.At(3, 0) - scores.At(0, 0))
	assert.InDelta(t, 3*math.Sqrt(5), span, 1e-9)

	_, err = project([][]float64{{1, 2}}, plotComponents)
	require.True(t, errors.Is(err, errBadRequest))
}

func TestScatterPlotGroups(t *testing.T) {
	table := &results.Table{
		Columns:     []string{"a", "b", "c"},
		Annotations: map[string][]string{"kind": {"x", "y", "x"}},
		Values:      [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	}

	p, err := scatterPlot(table, scatterOptions{Method: "pca", X: 1, Y: 2, Annotation: "kind"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeSVG(&buf, p))
	assert.Contains(t, buf.String(), "<svg")

	_, err = scatterPlot(table, scatterOptions{Method: "pca", X: 1, Y: 4})
	require.True(t, errors.Is(err, errBadRequest))
}

func TestFeaturePlotConstantColumn(t *testing.T) {
	table := &results.Table{
		Columns: []string{"a", "b"},
		Values:  [][]float64{{1, 5}, {2, 5}, {3, 5}},
	}
	p, err := featurePlot(table, []int{1})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeSVG(&buf, p))
}

func TestFeatureStatsPopulationZScore(t *testing.T) {
	table := &results.Table{
		Columns: []string{"a"},
		Values:  [][]float64{{1}, {2}, {4}, {3}},
	}

	// mean 2.5, population std sqrt(1.25)
	means, spread, err := featureStats(table, []int{2})
	require.NoError(t, err)
	assert.InDelta(t, 1.5/math.Sqrt(1.25), means[0].Y, 1e-9)
	assert.Equal(t, 0.0, spread[0].Low)

	// z-scores over all rows have mean 0 and sample std sqrt(4/3)
	means, spread, err = featureStats(table, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0, means[0].Y, 1e-9)
	assert.InDelta(t, math.Sqrt(4.0/3), spread[0].High, 1e-9)
}

func TestWatcher(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "runs"), 0o755))

	w, err := NewWatcher(root)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(root, "runs", "a.json"), []byte("{}"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Path == "runs/a.json" {
				assert.Contains(t, []string{"create", "write"}, ev.Op)
				return
			}
		case <-deadline:
			t.Fatal("no event for runs/a.json")
		}
	}
}

func TestWatcherClose(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, ok := <-w.Events()
	assert.False(t, ok)
}
