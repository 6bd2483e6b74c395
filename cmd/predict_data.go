package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seantzu/janggu/generator"
	"github.com/seantzu/janggu/results"
)

func initPredictData() {
	rootCmd.AddCommand(predictDataCmd)
	addFeedFlags(predictDataCmd)
	predictDataCmd.PersistentFlags().StringVar(&globalConfig.DataFile,
		"data-file", "", "Write the fed input rows per source as JSON to this file")
}

var predictDataCmd = &cobra.Command{
	Use:   "predict-data",
	Short: "Feed one pass of inference batches",
	Long:  `Feed every row of the input sources once, in order, to parallel consumers and report the delivery performance`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := globalConfig
		cfg.Mode = "predict-data"

		if err := cfg.Validate(); err != nil {
			fatal(err)
		}
		cfg.parseLabels()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := runPredictData(ctx, &cfg)
		if werr := writeResults(&cfg, res); werr != nil {
			warnf("could not write results: %v", werr)
		}
		if err != nil {
			fatal(err)
		}
		if cfg.DataFile != "" {
			infof("rows succesfully written to %q", cfg.DataFile)
		}
	},
}

// collector places delivered rows at their absolute index, so the result
// is in index order whatever order the consumers finish in.
type collector struct {
	mu   sync.Mutex
	rows map[string][][]float32
}

func newCollector(names []string, n int) *collector {
	c := &collector{rows: make(map[string][][]float32, len(names))}
	for _, name := range names {
		c.rows[name] = make([][]float32, n)
	}
	return c
}

func (c *collector) add(b generator.Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, rows := range b.Inputs {
		for i, idx := range b.Indices {
			c.rows[name][idx] = rows[i]
		}
	}
}

func runPredictData(ctx context.Context, cfg *Config) (Results, error) {
	dir := results.New(cfg.Results)
	if err := dir.Init(); err != nil {
		return Results{}, err
	}
	defer teeLog(dir)()

	inputs, err := openSources(cfg.Inputs)
	if err != nil {
		return Results{}, err
	}
	defer inputs.Close()

	rows, err := commonRows(inputs)
	if err != nil {
		return Results{}, err
	}

	predict, err := generator.NewPredict(generator.PredictOptions{
		Inputs:    inputs.DataSources(),
		Indices:   sequence(rows),
		BatchSize: cfg.BatchSize,
	})
	if err != nil {
		return Results{}, errors.Wrap(err, "inference generator")
	}

	var rowsOut *collector
	if cfg.DataFile != "" {
		rowsOut = newCollector(inputs.Names(), rows)
	}

	monitor := NewMemoryMonitor(cfg, dir, prometheus.DefaultGatherer)
	monitor.Start()

	f := &feed{
		name:     "predict",
		it:       predict,
		steps:    predict.BatchesPerPass(),
		parallel: cfg.Parallel,
		delivery: cfg.Delivery,
		buffer:   cfg.Buffer,
		metrics:  defaultFeedMetrics(),
	}
	if rowsOut != nil {
		f.onBatch = rowsOut.add
	}
	res, err := f.run(ctx)

	monitor.Stop()
	report(cfg, dir, res.record(cfg, inputs.Names(), nil), monitor.Peak())
	if err != nil {
		return res, err
	}

	if rowsOut != nil {
		if err := writeRows(cfg.DataFile, rowsOut.rows); err != nil {
			return res, err
		}
		log.WithFields(log.Fields{"file": cfg.DataFile, "rows": rows}).Info("Wrote fed rows")
	}
	return res, nil
}

func writeRows(path string, rows map[string][][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create data file")
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(rows); err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	return nil
}
