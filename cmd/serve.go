package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seantzu/janggu/dashboard"
	"github.com/seantzu/janggu/results"
)

func initServe() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.PersistentFlags().StringVarP(&globalConfig.Addr,
		"addr", "a", ":8050", "Address the dashboard listens on")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the results dashboard",
	Long:  `Serve models, evaluation figures, logs, score comparisons and feed runs from the results directory over HTTP`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := globalConfig
		cfg.Mode = "serve"

		if err := cfg.Validate(); err != nil {
			fatal(err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runServe(ctx, &cfg); err != nil {
			fatal(err)
		}
	},
}

func runServe(ctx context.Context, cfg *Config) error {
	dir := results.New(cfg.Results)
	if err := dir.Init(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"addr":    cfg.Addr,
		"results": dir.Root(),
	}).Info("Starting dashboard")

	return dashboard.New(dir).Run(ctx, cfg.Addr)
}
