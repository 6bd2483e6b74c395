package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seantzu/janggu/dataset"
	"github.com/seantzu/janggu/generator"
	"github.com/seantzu/janggu/results"
)

func initFitData() {
	rootCmd.AddCommand(fitDataCmd)
	addFeedFlags(fitDataCmd)
	fitDataCmd.PersistentFlags().StringArrayVar(&globalConfig.Outputs,
		"output", nil, "Output (label) source name=location, repeatable")
	fitDataCmd.PersistentFlags().StringVarP(&globalConfig.WeightsFile,
		"weights", "w", "", "Per-row sample weights, a .json array or an HDF5 file with a weights dataset")
	fitDataCmd.PersistentFlags().IntVarP(&globalConfig.Steps,
		"steps", "s", 100, "Number of training batches to deliver")
	fitDataCmd.PersistentFlags().Float64Var(&globalConfig.ValFraction,
		"val-fraction", 0, "Fraction of rows held out and fed once as validation data")
	fitDataCmd.PersistentFlags().Int64Var(&globalConfig.Seed,
		"seed", 0, "Seed for the validation split and the shuffle, 0 picks one from the clock")
}

var fitDataCmd = &cobra.Command{
	Use:   "fit-data",
	Short: "Feed training batches",
	Long:  `Feed shuffled training batches from the input and output sources to parallel consumers and report the delivery performance`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := globalConfig
		cfg.Mode = "fit-data"

		if err := cfg.Validate(); err != nil {
			fatal(err)
		}
		cfg.parseLabels()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := runFitData(ctx, &cfg)
		if werr := writeResults(&cfg, res); werr != nil {
			warnf("could not write results: %v", werr)
		}
		if err != nil {
			fatal(err)
		}
		if cfg.OutputFile != "" {
			infof("results succesfully written to %q", cfg.OutputFile)
		}
	},
}

func runFitData(ctx context.Context, cfg *Config) (Results, error) {
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

	outputs, err := openSources(cfg.Outputs)
	if err != nil {
		return Results{}, err
	}
	defer outputs.Close()

	rows, err := commonRows(inputs, outputs)
	if err != nil {
		return Results{}, err
	}

	var weights []float32
	if cfg.WeightsFile != "" {
		if weights, err = dataset.LoadWeights(cfg.WeightsFile); err != nil {
			return Results{}, err
		}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	train, val := splitValidation(sequence(rows), cfg.ValFraction, seed)

	fit, err := generator.NewFit(generator.FitOptions{
		Inputs:    inputs.DataSources(),
		Outputs:   outputs.DataSources(),
		Indices:   train,
		BatchSize: cfg.BatchSize,
		Weights:   weights,
		Seed:      seed,
	})
	if err != nil {
		return Results{}, errors.Wrap(err, "training generator")
	}

	// the validation generator is built up front so name clashes fail before training
	var validation *generator.Predict
	if len(val) > 0 {
		validation, err = generator.NewPredict(generator.PredictOptions{
			Inputs:    append(inputs.DataSources(), outputs.DataSources()...),
			Indices:   val,
			BatchSize: cfg.BatchSize,
		})
		if err != nil {
			return Results{}, errors.Wrap(err, "validation generator")
		}
	}

	log.WithFields(log.Fields{
		"rows":             rows,
		"train":            len(train),
		"validation":       len(val),
		"batches_per_pass": fit.BatchesPerPass(),
	}).Info("Prepared training data")

	monitor := NewMemoryMonitor(cfg, dir, prometheus.DefaultGatherer)
	monitor.Start()

	res, err := (&feed{
		name:     "fit",
		it:       fit,
		steps:    cfg.Steps,
		parallel: cfg.Parallel,
		delivery: cfg.Delivery,
		buffer:   cfg.Buffer,
		metrics:  defaultFeedMetrics(),
	}).run(ctx)

	if err == nil && validation != nil {
		err = runValidation(ctx, cfg, validation)
	}

	monitor.Stop()

	report(cfg, dir, res.record(cfg, inputs.Names(), outputs.Names()), monitor.Peak())
	return res, err
}

// runValidation feeds the held out rows once, in order.
func runValidation(ctx context.Context, cfg *Config, predict *generator.Predict) error {
	res, err := (&feed{
		name:     "validation",
		it:       predict,
		steps:    predict.BatchesPerPass(),
		parallel: cfg.Parallel,
		delivery: cfg.Delivery,
		buffer:   cfg.Buffer,
		metrics:  defaultFeedMetrics(),
	}).run(ctx)
	if err != nil {
		return errors.Wrap(err, "validation")
	}

	log.WithFields(log.Fields{
		"batches": res.Batches,
		"rows":    res.Rows,
		"took":    res.Took,
	}).Info("Validation pass done")
	return nil
}
