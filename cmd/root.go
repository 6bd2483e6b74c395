package cmd

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seantzu/janggu/results"
)

var globalConfig Config

func init() {

	logLevel, ok := os.LookupEnv("LOG_LEVEL")

	if ok {
		level, err := log.ParseLevel(logLevel)
		if err == nil {
			log.SetLevel(level)
		} else {
			log.Warn("Invalid log level. Defaulting to Info level.")
			log.SetLevel(log.InfoLevel)
		}
	} else {
		log.SetLevel(log.InfoLevel)
	}

	rootCmd.PersistentFlags().StringVarP(&globalConfig.Results,
		"results", "r", defaultResults(), "Results directory (env JANGGU_RESULTS)")

	initFitData()
	initPredictData()
	initServe()
}

var rootCmd = &cobra.Command{
	Use:   "janggu",
	Short: "Janggu batch feeder",
	Long:  `Feeds row-indexed datasets to training and inference loops in batches and serves the results directory`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("running the root command, see help or -h for available commands\n")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func defaultResults() string {
	if dir, ok := os.LookupEnv("JANGGU_RESULTS"); ok && dir != "" {
		return dir
	}
	return results.DefaultRoot()
}

// teeLog copies log output into the results log until the returned
// function is called.
func teeLog(dir *results.Dir) func() {
	w, err := dir.LogWriter()
	if err != nil {
		log.WithError(err).Warn("Logging to stderr only")
		return func() {}
	}
	previous := log.StandardLogger().Out
	log.SetOutput(io.MultiWriter(previous, w))
	return func() {
		log.SetOutput(previous)
		w.Close()
	}
}
