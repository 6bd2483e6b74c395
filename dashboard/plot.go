package dashboard

import (
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/seantzu/janggu/results"
)

// errBadRequest marks errors caused by the request rather than the data.
var errBadRequest = errors.New("bad request")

const (
	plotComponents = 3
	plotWidth      = 6 * vg.Inch
	plotHeight     = 4 * vg.Inch
)

type scatterOptions struct {
	Method     string
	X, Y       int
	Annotation string
}

// project returns the scores of the rows of values on their first
// principal components, one column per component.
func project(values [][]float64, components int) (*mat.Dense, error) {
	n := len(values)
	if n < 2 {
		return nil, errors.Wrapf(errBadRequest, "need at least 2 rows, got %d", n)
	}
	d := len(values[0])
	if d == 0 {
		return nil, errors.Wrap(errBadRequest, "table has no numeric columns")
	}

	data := mat.NewDense(n, d, nil)
	for i, row := range values {
		data.SetRow(i, row)
	}

	var pc stat.PC
	if !pc.PrincipalComponents(data, nil) {
		return nil, errors.New("principal component analysis failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	centered := mat.DenseCopyOf(data)
	for j := 0; j < d; j++ {
		mean := stat.Mean(mat.Col(nil, j, data), nil)
		for i := 0; i < n; i++ {
			centered.Set(i, j, centered.At(i, j)-mean)
		}
	}

	k := min(components, n, d)
	var scores mat.Dense
	scores.Mul(centered, vecs.Slice(0, d, 0, k))
	return &scores, nil
}

func scatterPlot(t *results.Table, opts scatterOptions) (*plot.Plot, error) {
	if opts.Method != "pca" {
		return nil, errors.Wrapf(errBadRequest, "projection method %q is not supported", opts.Method)
	}

	var labels []string
	if opts.Annotation != "" {
		var ok bool
		if labels, ok = t.Annotations[opts.Annotation]; !ok {
			return nil, errors.Wrapf(errBadRequest, "unknown annotation %q", opts.Annotation)
		}
	}

	scores, err := project(t.Values, plotComponents)
	if err != nil {
		return nil, err
	}
	rows, k := scores.Dims()
	for _, c := range []int{opts.X, opts.Y} {
		if c < 1 || c > k {
			return nil, errors.Wrapf(errBadRequest, "component %d out of range 1..%d", c, k)
		}
	}

	groups := map[string]plotter.XYs{}
	for i := 0; i < rows; i++ {
		key := ""
		if labels != nil {
			key = labels[i]
		}
		groups[key] = append(groups[key], plotter.XY{X: scores.At(i, opts.X-1), Y: scores.At(i, opts.Y-1)})
	}

	p := plot.New()
	p.X.Label.Text = fmt.Sprintf("Component %d", opts.X)
	p.Y.Label.Text = fmt.Sprintf("Component %d", opts.Y)
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	names := maps.Keys(groups)
	slices.Sort(names)
	for i, name := range names {
		s, err := plotter.NewScatter(groups[name])
		if err != nil {
			return nil, errors.Wrap(err, "scatter")
		}
		s.GlyphStyle.Color = plotutil.Color(i)
		s.GlyphStyle.Radius = vg.Points(2)
		p.Add(s)
		if name != "" {
			p.Legend.Add(name, s)
		}
	}
	return p, nil
}

type featureErrors struct {
	plotter.XYs
	plotter.YErrors
}

// featurePlot shows the mean and standard deviation of the z-scored
// features over the selected rows, or over all rows when rows is empty.
func featurePlot(t *results.Table, rows []int) (*plot.Plot, error) {
	means, spread, err := featureStats(t, rows)
	if err != nil {
		return nil, err
	}

	line, points, err := plotter.NewLinePoints(means)
	if err != nil {
		return nil, errors.Wrap(err, "feature line")
	}
	bars, err := plotter.NewYErrorBars(featureErrors{XYs: means, YErrors: spread})
	if err != nil {
		return nil, errors.Wrap(err, "feature error bars")
	}

	p := plot.New()
	p.X.Label.Text = "Features"
	p.Y.Label.Text = "Activities (z-score)"
	p.Add(plotter.NewGrid(), line, points, bars)
	p.NominalX(t.Columns...)
	return p, nil
}

// featureStats z-scores each column with the population standard deviation
// and summarises the selected rows per column.
func featureStats(t *results.Table, rows []int) (plotter.XYs, plotter.YErrors, error) {
	n, d := t.Rows(), len(t.Columns)
	if n < 2 || d == 0 {
		return nil, nil, errors.Wrapf(errBadRequest, "need at least 2 rows and 1 column, got %dx%d", n, d)
	}
	if len(rows) == 0 {
		rows = make([]int, n)
		for i := range rows {
			rows[i] = i
		}
	}
	for _, r := range rows {
		if r < 0 || r >= n {
			return nil, nil, errors.Wrapf(errBadRequest, "row %d out of range", r)
		}
	}

	means := make(plotter.XYs, d)
	spread := make(plotter.YErrors, d)
	column := make([]float64, n)
	selected := make([]float64, len(rows))
	for j := 0; j < d; j++ {
		for i := range column {
			column[i] = t.Values[i][j]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		for k, r := range rows {
			selected[k] = 0
			if std > 0 {
				selected[k] = (column[r] - mean) / std
			}
		}

		m, s := stat.MeanStdDev(selected, nil)
		if math.IsNaN(s) {
			s = 0
		}
		means[j] = plotter.XY{X: float64(j), Y: m}
		spread[j].Low, spread[j].High = s, s
	}
	return means, spread, nil
}

func writeSVG(w io.Writer, p *plot.Plot) error {
	writer, err := p.WriterTo(plotWidth, plotHeight, "svg")
	if err != nil {
		return errors.Wrap(err, "render plot")
	}
	_, err = writer.WriteTo(w)
	return err
}
