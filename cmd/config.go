package cmd

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

const (
	DeliveryLocked = "locked"
	DeliveryStream = "stream"
)

type Config struct {
	Mode         string
	Results      string
	Inputs       []string
	Outputs      []string
	WeightsFile  string
	BatchSize    int
	Parallel     int
	Steps        int
	ValFraction  float64
	Seed         int64
	Delivery     string
	Buffer       int
	DataFile     string
	OutputFormat string
	OutputFile   string
	Labels       string
	LabelMap     map[string]string
	Addr         string

	MemoryMonitoringEnabled  bool
	MemoryMonitoringInterval int
	MemoryMonitoringFile     string

	PrometheusConfig PrometheusConfig
	InfluxDBConfig   InfluxDBConfig
}

func (c *Config) Validate() error {
	if err := c.validateCommon(); err != nil {
		return err
	}

	switch c.Mode {
	case "fit-data":
		return c.validateFitData()
	case "predict-data":
		return c.validatePredictData()
	case "serve":
		return c.validateServe()
	default:
		return errors.Errorf("unrecognized mode %q", c.Mode)
	}
}

func (c *Config) validateCommon() error {
	if c.Results == "" {
		return errors.Errorf("results directory must be set")
	}

	switch c.OutputFormat {
	case "text", "":
		c.OutputFormat = "text"
	case "json":
	default:
		return errors.Errorf("unsupported output format %q, must be one of [text, json]",
			c.OutputFormat)
	}

	if token, ok := os.LookupEnv("INFLUX_TOKEN"); ok && c.InfluxDBConfig.Token == "" {
		c.InfluxDBConfig.Token = token
	}
	c.PrometheusConfig.Enabled = c.PrometheusConfig.PushURL != ""
	c.InfluxDBConfig.Enabled = c.InfluxDBConfig.URL != ""

	return nil
}

func (c *Config) validateFeed() error {
	if len(c.Inputs) == 0 {
		return errors.Errorf("at least one --input source must be provided")
	}
	if c.BatchSize < 1 {
		return errors.Errorf("batch size must be larger than 0")
	}
	if c.Parallel < 1 {
		return errors.Errorf("parallel must be larger than 0")
	}

	switch c.Delivery {
	case DeliveryLocked, "":
		c.Delivery = DeliveryLocked
	case DeliveryStream:
		if c.Buffer < 0 {
			return errors.Errorf("stream buffer must not be negative")
		}
	default:
		return errors.Errorf("unsupported delivery %q, must be one of [locked, stream]", c.Delivery)
	}
	return nil
}

func (c *Config) validateFitData() error {
	if err := c.validateFeed(); err != nil {
		return err
	}
	if c.Steps < 1 {
		return errors.Errorf("steps must be larger than 0")
	}
	if c.ValFraction < 0 || c.ValFraction >= 1 {
		return errors.Errorf("validation fraction must be in [0, 1)")
	}
	return nil
}

func (c *Config) validatePredictData() error {
	return c.validateFeed()
}

func (c *Config) validateServe() error {
	if c.Addr == "" {
		return errors.Errorf("listen address must be set")
	}
	return nil
}

func (c *Config) parseLabels() {
	result := make(map[string]string)
	pairs := strings.Split(c.Labels, ",")

	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2) // only split on the first "="
		if len(kv) == 2 {
			result[kv[0]] = kv[1]
		}
	}

	c.LabelMap = result
}
