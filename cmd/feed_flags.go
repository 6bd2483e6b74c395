package cmd

import (
	"github.com/spf13/cobra"
)

// addFeedFlags binds the flags shared by the feeding commands.
func addFeedFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringArrayVarP(&globalConfig.Inputs,
		"input", "i", nil, "Input source name=location, repeatable. Locations: file.h5[:dataset], file.json, hub:id[@subset], random:ROWSxDIMS[@seed]")
	cmd.PersistentFlags().IntVarP(&globalConfig.BatchSize,
		"batch-size", "b", 32, "Rows per batch")
	cmd.PersistentFlags().IntVarP(&globalConfig.Parallel,
		"parallel", "p", 4, "Number of concurrent consumers")
	cmd.PersistentFlags().StringVar(&globalConfig.Delivery,
		"delivery", DeliveryLocked, "How consumers share the generator, one of [locked, stream]")
	cmd.PersistentFlags().IntVar(&globalConfig.Buffer,
		"buffer", 8, "Batches prefetched by the stream delivery")
	cmd.PersistentFlags().StringVarP(&globalConfig.OutputFormat,
		"format", "f", "text", "Output format, one of [text, json]")
	cmd.PersistentFlags().StringVarP(&globalConfig.OutputFile,
		"output-file", "o", "", "Filename for the results. If none provided, output to stdout only")
	cmd.PersistentFlags().StringVarP(&globalConfig.Labels,
		"labels", "l", "", "Labels of format key1=value1,key2=value2,...")

	cmd.PersistentFlags().BoolVar(&globalConfig.MemoryMonitoringEnabled,
		"memory-monitor", false, "Sample heap usage during the run")
	cmd.PersistentFlags().IntVar(&globalConfig.MemoryMonitoringInterval,
		"memory-interval", 5, "Seconds between heap samples")
	cmd.PersistentFlags().StringVar(&globalConfig.MemoryMonitoringFile,
		"memory-file", "", "File name under the memory results directory")

	cmd.PersistentFlags().StringVar(&globalConfig.PrometheusConfig.PushURL,
		"prometheus-push-url", "", "Pushgateway URL for run metrics")
	cmd.PersistentFlags().StringVar(&globalConfig.PrometheusConfig.JobName,
		"prometheus-job", "janggu", "Pushgateway job name")
	cmd.PersistentFlags().StringVar(&globalConfig.InfluxDBConfig.URL,
		"influxdb-url", "", "InfluxDB URL for run metrics")
	cmd.PersistentFlags().StringVar(&globalConfig.InfluxDBConfig.Token,
		"influxdb-token", "", "InfluxDB token (env INFLUX_TOKEN)")
	cmd.PersistentFlags().StringVar(&globalConfig.InfluxDBConfig.Org,
		"influxdb-org", "", "InfluxDB organization")
	cmd.PersistentFlags().StringVar(&globalConfig.InfluxDBConfig.Bucket,
		"influxdb-bucket", "janggu", "InfluxDB bucket")
}
