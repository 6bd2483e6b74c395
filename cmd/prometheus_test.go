package cmd

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantzu/janggu/results"
)

func prometheusGoGatherer(t *testing.T) prometheus.Gatherer {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}

func TestReadMemoryMetrics(t *testing.T) {
	mem, err := readMemoryMetrics(prometheusGoGatherer(t))
	require.NoError(t, err)
	assert.Greater(t, mem.HeapAllocBytes, 0.0)
	assert.Greater(t, mem.HeapInuseBytes, 0.0)
	assert.GreaterOrEqual(t, mem.HeapSysBytes, mem.HeapInuseBytes)

	empty, err := readMemoryMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, Memstats{}, *empty)
}

func TestFeedMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFeedMetrics(reg)
	m.observe("fit", 4, 0)
	m.observe("fit", 2, 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[mf.GetName()] = metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				values[mf.GetName()] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	assert.Equal(t, map[string]float64{
		"janggu_feed_batches_total": 2,
		"janggu_feed_rows_total":    6,
		"janggu_feed_batch_seconds": 2,
	}, values)

	var nilMetrics *FeedMetrics
	nilMetrics.observe("fit", 1, 0)
}

func testRecord() results.RunRecord {
	return results.RunRecord{
		RunID:            "run-1",
		Timestamp:        "2024-01-01T00:00:00Z",
		Mode:             "fit-data",
		Delivery:         "locked",
		BatchSize:        32,
		Parallelization:  4,
		Rows:             3200,
		Passes:           2,
		Mean:             0.002,
		P99Latency:       0.01,
		RowsPerSecond:    16000,
		BatchesPerSecond: 500,
	}
}

func TestPushMetricsToPrometheus(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body string
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		path, body = r.URL.Path, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	cfg := &Config{
		PrometheusConfig: PrometheusConfig{Enabled: true, PushURL: gateway.URL, JobName: "janggu"},
		LabelMap:         map[string]string{"cell": "HeLa"},
	}
	rec := testRecord()
	require.NoError(t, PushMetricsToPrometheus(cfg, &rec))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/metrics/job/janggu", path)

	// the push body is delimited protobuf; names and label values are plain strings in it
	assert.Contains(t, body, "janggu_feed_rows_per_second")
	assert.Contains(t, body, "HeLa")
	assert.Contains(t, body, "run-1")
}

func TestPushDisabled(t *testing.T) {
	rec := testRecord()
	require.NoError(t, PushMetricsToPrometheus(&Config{}, &rec))
	require.NoError(t, PushMetricsToInfluxDB(&Config{}, &rec))
}

func TestPushMetricsToInfluxDB(t *testing.T) {
	var (
		mu    sync.Mutex
		lines string
		query string
	)
	influx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		lines, query = string(data), r.URL.RawQuery
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer influx.Close()

	cfg := &Config{
		InfluxDBConfig: InfluxDBConfig{Enabled: true, URL: influx.URL, Org: "lab", Bucket: "feeds"},
	}
	rec := testRecord()
	require.NoError(t, PushMetricsToInfluxDB(cfg, &rec))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, query, "bucket=feeds")
	assert.True(t, strings.HasPrefix(lines, "janggu_feed,"), lines)
	assert.Contains(t, lines, "run_id=run-1")
	assert.Contains(t, lines, "rows=3200i")
}
