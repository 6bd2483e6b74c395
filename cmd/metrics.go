package cmd

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type Memstats struct {
	HeapAllocBytes float64 `json:"heap_alloc_bytes"`
	HeapInuseBytes float64 `json:"heap_inuse_bytes"`
	HeapSysBytes   float64 `json:"heap_sys_bytes"`
}

// readMemoryMetrics reads the Go collector's heap gauges from g.
func readMemoryMetrics(g prometheus.Gatherer) (*Memstats, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, errors.Wrap(err, "gather metrics")
	}

	metrics := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		metrics[mf.GetName()] = mf
	}

	var memstats Memstats

	if metric, ok := metrics["go_memstats_heap_alloc_bytes"]; ok {
		memstats.HeapAllocBytes = metric.Metric[0].GetGauge().GetValue()
	}

	if metric, ok := metrics["go_memstats_heap_inuse_bytes"]; ok {
		memstats.HeapInuseBytes = metric.Metric[0].GetGauge().GetValue()
	}

	if metric, ok := metrics["go_memstats_heap_sys_bytes"]; ok {
		memstats.HeapSysBytes = metric.Metric[0].GetGauge().GetValue()
	}

	return &memstats, nil
}
