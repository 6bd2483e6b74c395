package cmd

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	log "github.com/sirupsen/logrus"

	"github.com/seantzu/janggu/results"
)

// InfluxDBConfig holds configuration for InfluxDB metrics reporting
type InfluxDBConfig struct {
	Enabled bool
	URL     string
	Token   string
	Org     string
	Bucket  string
}

// PushMetricsToInfluxDB writes the run record as one point
func PushMetricsToInfluxDB(cfg *Config, rec *results.RunRecord) error {
	if !cfg.InfluxDBConfig.Enabled || cfg.InfluxDBConfig.URL == "" {
		return nil
	}

	client := influxdb2.NewClient(cfg.InfluxDBConfig.URL, cfg.InfluxDBConfig.Token)
	defer client.Close()

	writeAPI := client.WriteAPIBlocking(cfg.InfluxDBConfig.Org, cfg.InfluxDBConfig.Bucket)

	p := influxdb2.NewPointWithMeasurement("janggu_feed").
		AddTag("mode", rec.Mode).
		AddTag("delivery", rec.Delivery).
		AddTag("batch_size", fmt.Sprintf("%d", rec.BatchSize)).
		AddTag("run_id", rec.RunID).
		AddField("mean_latency", rec.Mean).
		AddField("p99_latency", rec.P99Latency).
		AddField("batches_per_second", rec.BatchesPerSecond).
		AddField("rows_per_second", rec.RowsPerSecond).
		AddField("batches", rec.Batches).
		AddField("rows", rec.Rows).
		AddField("passes", rec.Passes).
		AddField("failed", rec.Failed).
		AddField("heap_alloc_bytes", rec.HeapAllocBytes).
		AddField("heap_inuse_bytes", rec.HeapInuseBytes).
		AddField("heap_sys_bytes", rec.HeapSysBytes).
		AddField("parallelization", rec.Parallelization).
		SetTime(time.Now())

	for key, value := range cfg.LabelMap {
		p.AddTag(key, value)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := writeAPI.WritePoint(ctx, p); err != nil {
		log.WithError(err).Error("Failed to push metrics to InfluxDB")
		return err
	}

	log.WithFields(log.Fields{
		"url":    cfg.InfluxDBConfig.URL,
		"bucket": cfg.InfluxDBConfig.Bucket,
		"run_id": rec.RunID,
	}).Info("Successfully pushed metrics to InfluxDB")

	return nil
}
