package dashboard

import (
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/seantzu/janggu/results"
)

const namespace = "janggu"

var runLabels = []string{"run_id", "mode", "delivery", "batch_size", "parallelization"}

// Exporter publishes run records of a results directory as gauges.
type Exporter struct {
	dir     *results.Dir
	mu      sync.Mutex
	metrics map[string]*prometheus.GaugeVec
	models  prometheus.Gauge
}

func NewExporter(dir *results.Dir, registry prometheus.Registerer) *Exporter {
	factory := promauto.With(registry)
	e := &Exporter{
		dir:     dir,
		metrics: make(map[string]*prometheus.GaugeVec),
		models: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "results_models",
			Help:      "Number of models with an architecture image",
		}),
	}

	metricNames := []struct {
		name string
		help string
	}{
		{"run_rows_per_second", "Rows delivered per second"},
		{"run_batches_per_second", "Batches delivered per second"},
		{"run_latency_mean_seconds", "Mean batch latency"},
		{"run_latency_p99_seconds", "99th percentile batch latency"},
		{"run_rows", "Rows delivered"},
		{"run_passes", "Passes started over the index set"},
	}

	for _, metric := range metricNames {
		e.metrics[metric.name] = factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      metric.name,
				Help:      metric.help,
			},
			runLabels,
		)
	}
	return e
}

// Refresh rebuilds all gauges from the directory contents.
func (e *Exporter) Refresh() error {
	runs, err := e.dir.Runs()
	if err != nil {
		return err
	}

	e.mu.Lock()
	for _, metric := range e.metrics {
		metric.Reset()
	}
	for _, run := range runs {
		e.setRun(run)
	}
	e.mu.Unlock()

	return e.refreshModels()
}

func (e *Exporter) processRunFile(path string) error {
	if filepath.Ext(path) != ".json" {
		return nil
	}
	run, err := results.ReadRun(path)
	if err != nil {
		return errors.Wrapf(err, "process run file %s", path)
	}

	e.mu.Lock()
	e.setRun(run)
	e.mu.Unlock()

	log.WithField("run_id", run.RunID).Debug("Updated run metrics")
	return nil
}

func (e *Exporter) setRun(run results.RunRecord) {
	labels := prometheus.Labels{
		"run_id":          run.RunID,
		"mode":            run.Mode,
		"delivery":        run.Delivery,
		"batch_size":      strconv.Itoa(run.BatchSize),
		"parallelization": strconv.Itoa(run.Parallelization),
	}

	e.metrics["run_rows_per_second"].With(labels).Set(run.RowsPerSecond)
	e.metrics["run_batches_per_second"].With(labels).Set(run.BatchesPerSecond)
	e.metrics["run_latency_mean_seconds"].With(labels).Set(run.Mean)
	e.metrics["run_latency_p99_seconds"].With(labels).Set(run.P99Latency)
	e.metrics["run_rows"].With(labels).Set(float64(run.Rows))
	e.metrics["run_passes"].With(labels).Set(float64(run.Passes))
}

func (e *Exporter) refreshModels() error {
	models, err := e.dir.Models()
	if err != nil {
		return err
	}
	e.models.Set(float64(len(models)))
	return nil
}
