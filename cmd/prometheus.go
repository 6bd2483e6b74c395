package cmd

import (
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	log "github.com/sirupsen/logrus"

	"github.com/seantzu/janggu/results"
)

// PrometheusConfig holds configuration for Prometheus metrics reporting
type PrometheusConfig struct {
	Enabled bool
	PushURL string
	JobName string
}

// FeedMetrics are updated live while a feed runs.
type FeedMetrics struct {
	Batches      *prometheus.CounterVec
	Rows         *prometheus.CounterVec
	BatchSeconds *prometheus.HistogramVec
}

var (
	feedMetrics     *FeedMetrics
	feedMetricsOnce sync.Once
)

// defaultFeedMetrics registers the feed metrics with the default registry
// on first use.
func defaultFeedMetrics() *FeedMetrics {
	feedMetricsOnce.Do(func() {
		feedMetrics = NewFeedMetrics(prometheus.DefaultRegisterer)
	})
	return feedMetrics
}

func NewFeedMetrics(reg prometheus.Registerer) *FeedMetrics {
	factory := promauto.With(reg)
	return &FeedMetrics{
		Batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "janggu",
			Name:      "feed_batches_total",
			Help:      "Batches delivered to consumers",
		}, []string{"generator"}),
		Rows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "janggu",
			Name:      "feed_rows_total",
			Help:      "Rows delivered to consumers",
		}, []string{"generator"}),
		BatchSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "janggu",
			Name:      "feed_batch_seconds",
			Help:      "Time a consumer waited for its batch",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"generator"}),
	}
}

func (m *FeedMetrics) observe(generator string, rows int, took time.Duration) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(generator).Inc()
	m.Rows.WithLabelValues(generator).Add(float64(rows))
	m.BatchSeconds.WithLabelValues(generator).Observe(took.Seconds())
}

// RunMetrics holds the gauges pushed once a run has finished
type RunMetrics struct {
	MeanLatency      prometheus.Gauge
	P99Latency       prometheus.Gauge
	BatchesPerSecond prometheus.Gauge
	RowsPerSecond    prometheus.Gauge
	Rows             prometheus.Gauge
	Passes           prometheus.Gauge
	HeapAllocBytes   prometheus.Gauge
	HeapInuseBytes   prometheus.Gauge
	HeapSysBytes     prometheus.Gauge
	BatchSize        prometheus.Gauge
	Parallelization  prometheus.Gauge
}

func NewRunMetrics(registry *prometheus.Registry, labels prometheus.Labels) *RunMetrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "janggu_feed_" + name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	metrics := &RunMetrics{
		MeanLatency:      gauge("mean_latency_seconds", "Mean batch latency in seconds"),
		P99Latency:       gauge("p99_latency_seconds", "P99 batch latency in seconds"),
		BatchesPerSecond: gauge("batches_per_second", "Batches per second during the run"),
		RowsPerSecond:    gauge("rows_per_second", "Rows per second during the run"),
		Rows:             gauge("rows", "Rows delivered"),
		Passes:           gauge("passes", "Passes started over the index list"),
		HeapAllocBytes:   gauge("heap_alloc_bytes", "Heap allocation in bytes"),
		HeapInuseBytes:   gauge("heap_inuse_bytes", "Heap in use in bytes"),
		HeapSysBytes:     gauge("heap_sys_bytes", "Heap system in bytes"),
		BatchSize:        gauge("batch_size", "Batch size"),
		Parallelization:  gauge("parallelization", "Number of consumers"),
	}

	registry.MustRegister(
		metrics.MeanLatency,
		metrics.P99Latency,
		metrics.BatchesPerSecond,
		metrics.RowsPerSecond,
		metrics.Rows,
		metrics.Passes,
		metrics.HeapAllocBytes,
		metrics.HeapInuseBytes,
		metrics.HeapSysBytes,
		metrics.BatchSize,
		metrics.Parallelization,
	)

	return metrics
}

// PushMetricsToPrometheus pushes the run record to a Prometheus pushgateway
func PushMetricsToPrometheus(cfg *Config, rec *results.RunRecord) error {
	if !cfg.PrometheusConfig.Enabled || cfg.PrometheusConfig.PushURL == "" {
		return nil
	}

	registry := prometheus.NewRegistry()

	labels := prometheus.Labels{
		"mode":      rec.Mode,
		"delivery":  rec.Delivery,
		"run_id":    rec.RunID,
		"timestamp": rec.Timestamp,
	}

	for key, value := range cfg.LabelMap {
		labels[key] = value
	}

	metrics := NewRunMetrics(registry, labels)

	metrics.MeanLatency.Set(rec.Mean)
	metrics.P99Latency.Set(rec.P99Latency)
	metrics.BatchesPerSecond.Set(rec.BatchesPerSecond)
	metrics.RowsPerSecond.Set(rec.RowsPerSecond)
	metrics.Rows.Set(float64(rec.Rows))
	metrics.Passes.Set(float64(rec.Passes))
	metrics.HeapAllocBytes.Set(rec.HeapAllocBytes)
	metrics.HeapInuseBytes.Set(rec.HeapInuseBytes)
	metrics.HeapSysBytes.Set(rec.HeapSysBytes)
	metrics.BatchSize.Set(float64(rec.BatchSize))
	metrics.Parallelization.Set(float64(rec.Parallelization))

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = log.StandardLogger()

	pusher := push.New(cfg.PrometheusConfig.PushURL, cfg.PrometheusConfig.JobName).
		Gatherer(registry).
		Client(client.StandardClient())

	if err := pusher.Push(); err != nil {
		log.WithError(err).Error("Failed to push metrics to Prometheus")
		return err
	}

	log.WithFields(log.Fields{
		"url":    cfg.PrometheusConfig.PushURL,
		"job":    cfg.PrometheusConfig.JobName,
		"run_id": rec.RunID,
		"rows":   rec.Rows,
	}).Info("Successfully pushed metrics to Prometheus")

	return nil
}
