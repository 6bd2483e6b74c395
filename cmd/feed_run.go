package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/seantzu/janggu/generator"
	"github.com/seantzu/janggu/results"
)

// feed drives an iterator with several consumers until steps batches have
// been delivered or the first error occurs.
type feed struct {
	name     string
	it       generator.Iterator
	steps    int
	parallel int
	delivery string
	buffer   int
	metrics  *FeedMetrics
	// onBatch is called concurrently from the consumers.
	onBatch func(generator.Batch)
}

type feedStats struct {
	mu     sync.Mutex
	times  []time.Duration
	rows   int
	failed int
	err    error
}

func (s *feedStats) ok(took time.Duration, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.times = append(s.times, took)
	s.rows += rows
}

// fail counts a failed batch and keeps the first error.
func (s *feedStats) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
	if s.err == nil {
		s.err = err
	}
}

func (s *feedStats) stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err != nil
}

func (f *feed) run(ctx context.Context) (Results, error) {
	stats := &feedStats{}

	log.WithFields(log.Fields{
		"generator": f.name,
		"steps":     f.steps,
		"parallel":  f.parallel,
		"delivery":  f.delivery,
	}).Info("Starting feed")

	before := time.Now()
	switch f.delivery {
	case DeliveryStream:
		f.runStream(ctx, stats)
	default:
		f.runLocked(ctx, stats)
	}
	took := time.Since(before)

	out := analyze(stats.times, took)
	out.Rows = stats.rows
	out.Failed = stats.failed
	out.Parallelization = f.parallel
	out.RowsPerSecond = float64(stats.rows) / took.Seconds()
	// passes touched by the delivered batches; a stream may have produced more
	if p, ok := f.it.(interface{ BatchesPerPass() int }); ok && p.BatchesPerPass() > 0 {
		bpp := p.BatchesPerPass()
		out.Passes = (out.Batches + bpp - 1) / bpp
	}

	if stats.err != nil {
		log.WithError(stats.err).WithField("generator", f.name).Error("Feed stopped")
	}
	return out, stats.err
}

func (f *feed) deliver(b generator.Batch, took time.Duration, stats *feedStats) {
	stats.ok(took, b.Len())
	f.metrics.observe(f.name, b.Len(), took)
	if f.onBatch != nil {
		f.onBatch(b)
	}
}

func (f *feed) runLocked(ctx context.Context, stats *feedStats) {
	locked := generator.NewLocked(f.it)
	var taken atomic.Int64

	wg := &sync.WaitGroup{}
	for i := 0; i < f.parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil && !stats.stopped() {
				if taken.Add(1) > int64(f.steps) {
					return
				}
				start := time.Now()
				b, err := locked.Next()
				if err != nil {
					stats.fail(err)
					return
				}
				f.deliver(b, time.Since(start), stats)
			}
		}()
	}
	wg.Wait()
}

func (f *feed) runStream(ctx context.Context, stats *feedStats) {
	ctx, cancel := context.WithCancel(ctx)
	batches, errs := generator.Stream(ctx, f.it, f.buffer)
	var taken atomic.Int64

	wg := &sync.WaitGroup{}
	for i := 0; i < f.parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for taken.Add(1) <= int64(f.steps) {
				start := time.Now()
				select {
				case <-ctx.Done():
					return
				case b, ok := <-batches:
					if !ok {
						return
					}
					f.deliver(b, time.Since(start), stats)
				}
			}
		}()
	}
	wg.Wait()

	cancel()
	// the producer has returned once errs is closed
	for err := range errs {
		stats.fail(err)
	}
}

var targetPercentiles = []int{50, 90, 95, 98, 99}

type Results struct {
	Min               time.Duration
	Max               time.Duration
	Mean              time.Duration
	Took              time.Duration
	Percentiles       []time.Duration
	PercentilesLabels []int
	Batches           int
	Rows              int
	Passes            int
	Failed            int
	Parallelization   int
	BatchesPerSecond  float64
	RowsPerSecond     float64
}

func analyze(times []time.Duration, total time.Duration) Results {
	out := Results{PercentilesLabels: targetPercentiles}
	out.Percentiles = make([]time.Duration, len(targetPercentiles))
	out.Took = total
	if len(times) == 0 {
		return out
	}

	out.Min = math.MaxInt64
	var sum time.Duration
	for _, time := range times {
		if time < out.Min {
			out.Min = time
		}

		if time > out.Max {
			out.Max = time
		}

		out.Batches++
		sum += time
	}

	out.Mean = sum / time.Duration(len(times))
	out.BatchesPerSecond = float64(len(times)) / float64(float64(total)/float64(time.Second))

	sorted := append([]time.Duration(nil), times...)
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a] < sorted[b]
	})

	percentilePos := func(percentile int) int {
		return int(float64(len(sorted)*percentile)/100) + 1
	}

	for i, percentile := range targetPercentiles {
		pos := percentilePos(percentile)
		if pos >= len(sorted) {
			pos = len(sorted) - 1
		}
		out.Percentiles[i] = sorted[pos]
	}

	return out
}

func (r Results) percentile(p int) time.Duration {
	for i, label := range r.PercentilesLabels {
		if label == p {
			return r.Percentiles[i]
		}
	}
	return 0
}

func (r Results) WriteTextTo(w io.Writer) (int64, error) {
	b := strings.Builder{}

	for i, percentile := range targetPercentiles {
		b.WriteString(
			fmt.Sprintf("p%d: %s\n", percentile, r.Percentiles[i]),
		)
	}

	n, err := w.Write([]byte(fmt.Sprintf(
		"Results\nBatches: %d\nRows: %d\nPasses: %d\nFailed: %d\nMin: %s\nMean: %s\nMax: %s\n%sTook: %s\nBatches/s: %f\nRows/s: %f\n",
		r.Batches, r.Rows, r.Passes, r.Failed, r.Min, r.Mean, r.Max, b.String(), r.Took,
		r.BatchesPerSecond, r.RowsPerSecond)))
	return int64(n), err
}

type resultsJSON struct {
	Metadata           resultsJSONMetadata   `json:"metadata"`
	Latencies          map[string]int64      `json:"latencies"`
	LatenciesFormatted map[string]string     `json:"latenciesFormatted"`
	Throughput         resultsJSONThroughput `json:"throughput"`
}

type resultsJSONMetadata struct {
	Batches         int    `json:"batches"`
	Rows            int    `json:"rows"`
	Passes          int    `json:"passes"`
	Failed          int    `json:"failed"`
	Parallelization int    `json:"parallelization"`
	Took            int64  `json:"took"`
	TookFormatted   string `json:"tookFormatted"`
}

type resultsJSONThroughput struct {
	BatchesPerSecond float64 `json:"batchesPerSecond"`
	RowsPerSecond    float64 `json:"rowsPerSecond"`
}

func (r Results) WriteJSONTo(w io.Writer) (int, error) {
	obj := resultsJSON{
		Metadata: resultsJSONMetadata{
			Batches:         r.Batches,
			Rows:            r.Rows,
			Passes:          r.Passes,
			Failed:          r.Failed,
			Parallelization: r.Parallelization,
			Took:            int64(r.Took),
			TookFormatted:   fmt.Sprint(r.Took),
		},
		Latencies: map[string]int64{
			"mean": int64(r.Mean),
			"min":  int64(r.Min),
			"max":  int64(r.Max),
		},
		LatenciesFormatted: map[string]string{
			"mean": fmt.Sprint(r.Mean),
			"min":  fmt.Sprint(r.Min),
			"max":  fmt.Sprint(r.Max),
		},
		Throughput: resultsJSONThroughput{
			BatchesPerSecond: r.BatchesPerSecond,
			RowsPerSecond:    r.RowsPerSecond,
		},
	}

	for i, percentile := range targetPercentiles {
		obj.Latencies[fmt.Sprintf("p%d", percentile)] = int64(r.Percentiles[i])
		obj.LatenciesFormatted[fmt.Sprintf("p%d", percentile)] = fmt.Sprint(r.Percentiles[i])
	}

	bytes, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return 0, err
	}

	return w.Write(bytes)
}

// record converts the results of a run into its stored form.
func (r Results) record(cfg *Config, inputs, outputs []string) results.RunRecord {
	return results.RunRecord{
		RunID:            uuid.New().String(),
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		Mode:             cfg.Mode,
		Delivery:         cfg.Delivery,
		Inputs:           inputs,
		Outputs:          outputs,
		BatchSize:        cfg.BatchSize,
		Parallelization:  r.Parallelization,
		Batches:          r.Batches,
		Rows:             r.Rows,
		Passes:           r.Passes,
		Failed:           r.Failed,
		Mean:             r.Mean.Seconds(),
		P99Latency:       r.percentile(99).Seconds(),
		Took:             r.Took.Seconds(),
		BatchesPerSecond: r.BatchesPerSecond,
		RowsPerSecond:    r.RowsPerSecond,
		Labels:           cfg.LabelMap,
	}
}

// writeResults prints the results in the configured format, to the output
// file if one is set.
func writeResults(cfg *Config, r Results) error {
	var w io.Writer = os.Stdout
	if cfg.OutputFile != "" {
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	var err error
	if cfg.OutputFormat == "json" {
		_, err = r.WriteJSONTo(w)
	} else {
		_, err = r.WriteTextTo(w)
	}
	return err
}

// report stores the run record and pushes it to the configured sinks.
// Push failures are logged and do not fail the run.
func report(cfg *Config, dir *results.Dir, rec results.RunRecord, mem *Memstats) {
	if mem != nil {
		rec.HeapAllocBytes = mem.HeapAllocBytes
		rec.HeapInuseBytes = mem.HeapInuseBytes
		rec.HeapSysBytes = mem.HeapSysBytes
	}

	path, err := dir.WriteRun(rec)
	if err != nil {
		warnf("could not store run record: %v", err)
	} else {
		log.WithFields(log.Fields{"run_id": rec.RunID, "file": path}).Info("Stored run record")
	}

	if err := PushMetricsToPrometheus(cfg, &rec); err != nil {
		warnf("prometheus push failed: %v", err)
	}
	if err := PushMetricsToInfluxDB(cfg, &rec); err != nil {
		warnf("influxdb push failed: %v", err)
	}
}
