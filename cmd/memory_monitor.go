package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/seantzu/janggu/results"
)

type MemoryMetricEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	HeapAllocBytes float64   `json:"heap_alloc_bytes"`
	HeapInuseBytes float64   `json:"heap_inuse_bytes"`
	HeapSysBytes   float64   `json:"heap_sys_bytes"`
}

// MemoryMonitor samples heap gauges at an interval while a feed runs and
// stores them under the results memory directory on Stop.
type MemoryMonitor struct {
	cfg      *Config
	dir      *results.Dir
	gatherer prometheus.Gatherer
	metrics  []MemoryMetricEntry
	mutex    sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	filename string
}

func NewMemoryMonitor(cfg *Config, dir *results.Dir, g prometheus.Gatherer) *MemoryMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	filename := cfg.MemoryMonitoringFile
	if filename == "" {
		filename = fmt.Sprintf("memory_metrics_%d.json", time.Now().Unix())
	}

	return &MemoryMonitor{
		cfg:      cfg,
		dir:      dir,
		gatherer: g,
		metrics:  make([]MemoryMetricEntry, 0),
		ctx:      ctx,
		cancel:   cancel,
		filename: filename,
	}
}

func (m *MemoryMonitor) Start() {
	if !m.cfg.MemoryMonitoringEnabled {
		return
	}

	interval := time.Duration(m.cfg.MemoryMonitoringInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	log.WithFields(log.Fields{
		"interval": interval,
		"file":     m.filename,
	}).Info("Starting memory monitoring")

	m.wg.Add(1)
	go m.monitorLoop(interval)
}

func (m *MemoryMonitor) Stop() {
	if !m.cfg.MemoryMonitoringEnabled {
		return
	}

	log.Info("Stopping memory monitoring")
	m.cancel()
	m.wg.Wait()

	if path, err := m.writeToFile(); err != nil {
		log.WithError(err).Error("Failed to write memory metrics to file")
	} else {
		log.WithFields(log.Fields{
			"file":    path,
			"entries": len(m.metrics),
		}).Info("Memory metrics written to file")
	}
}

func (m *MemoryMonitor) monitorLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.recordMetric()

	for {
		select {
		case <-m.ctx.Done():
			m.recordMetric()
			return
		case <-ticker.C:
			m.recordMetric()
		}
	}
}

func (m *MemoryMonitor) recordMetric() {
	memstats, err := readMemoryMetrics(m.gatherer)
	if err != nil {
		log.WithError(err).Warn("Failed to read memory metrics")
		return
	}

	entry := MemoryMetricEntry{
		Timestamp:      time.Now(),
		HeapAllocBytes: memstats.HeapAllocBytes,
		HeapInuseBytes: memstats.HeapInuseBytes,
		HeapSysBytes:   memstats.HeapSysBytes,
	}

	m.mutex.Lock()
	m.metrics = append(m.metrics, entry)
	m.mutex.Unlock()

	log.WithFields(log.Fields{
		"heap_alloc_mb": entry.HeapAllocBytes / 1024 / 1024,
		"heap_inuse_mb": entry.HeapInuseBytes / 1024 / 1024,
		"heap_sys_mb":   entry.HeapSysBytes / 1024 / 1024,
	}).Debug("Recorded memory metric")
}

func (m *MemoryMonitor) writeToFile() (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.dir.WriteMemory(m.filename, m.metrics)
}

func (m *MemoryMonitor) GetMetrics() []MemoryMetricEntry {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	result := make([]MemoryMetricEntry, len(m.metrics))
	copy(result, m.metrics)
	return result
}

// Peak returns the largest sample of each gauge, or nil without samples.
func (m *MemoryMonitor) Peak() *Memstats {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if len(m.metrics) == 0 {
		return nil
	}
	var peak Memstats
	for _, e := range m.metrics {
		peak.HeapAllocBytes = max(peak.HeapAllocBytes, e.HeapAllocBytes)
		peak.HeapInuseBytes = max(peak.HeapInuseBytes, e.HeapInuseBytes)
		peak.HeapSysBytes = max(peak.HeapSysBytes, e.HeapSysBytes)
	}
	return &peak
}
