package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantzu/janggu/dataset"
	"github.com/seantzu/janggu/generator"
	"github.com/seantzu/janggu/results"
)

func TestFitDataRun(t *testing.T) {
	root := t.TempDir()
	weights := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, os.WriteFile(weights, []byte("[1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1]"), 0o644))

	cfg := Config{
		Mode:        "fit-data",
		Results:     root,
		Inputs:      []string{"dna=random:20x4@3"},
		Outputs:     []string{"peaks=random:20x1@4"},
		WeightsFile: weights,
		BatchSize:   4,
		Parallel:    3,
		Steps:       8,
		ValFraction: 0.25,
		Seed:        11,
		Delivery:    DeliveryStream,
		Buffer:      2,
		Labels:      "cell=HeLa",
	}
	require.NoError(t, cfg.Validate())
	cfg.parseLabels()

	res, err := runFitData(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Batches)
	// 15 training rows: [4, 4, 4, 3] per pass
	assert.Equal(t, 30, res.Rows)
	assert.Equal(t, 2, res.Passes)

	runs, err := results.New(root).Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "fit-data", runs[0].Mode)
	assert.Equal(t, "stream", runs[0].Delivery)
	assert.Equal(t, []string{"dna"}, runs[0].Inputs)
	assert.Equal(t, []string{"peaks"}, runs[0].Outputs)
	assert.Equal(t, 30, runs[0].Rows)
	assert.Equal(t, map[string]string{"cell": "HeLa"}, runs[0].Labels)

	logData, err := results.New(root).Log()
	require.NoError(t, err)
	assert.Contains(t, string(logData), "Starting feed")
}

func TestFitDataMismatchedSources(t *testing.T) {
	cfg := Config{
		Mode:      "fit-data",
		Results:   t.TempDir(),
		Inputs:    []string{"dna=random:20x4"},
		Outputs:   []string{"peaks=random:19x1"},
		BatchSize: 4,
		Parallel:  1,
		Steps:     1,
	}
	require.NoError(t, cfg.Validate())

	_, err := runFitData(context.Background(), &cfg)
	require.Error(t, err)
}

func TestFitDataValidationNameClashFailsBeforeTraining(t *testing.T) {
	root := t.TempDir()
	cfg := Config{
		Mode:        "fit-data",
		Results:     root,
		Inputs:      []string{"x=random:20x2@1"},
		Outputs:     []string{"x=random:20x1@2"},
		BatchSize:   4,
		Parallel:    2,
		Steps:       1000,
		ValFraction: 0.25,
		Seed:        3,
	}
	require.NoError(t, cfg.Validate())

	_, err := runFitData(context.Background(), &cfg)
	require.ErrorIs(t, err, generator.ErrDuplicateSource)

	runs, err := results.New(root).Runs()
	require.NoError(t, err)
	assert.Empty(t, runs)

	logData, err := results.New(root).Log()
	require.NoError(t, err)
	assert.NotContains(t, string(logData), "Starting feed")
}

func TestPredictDataWritesRowsInOrder(t *testing.T) {
	root := t.TempDir()
	dataFile := filepath.Join(t.TempDir(), "rows.json")

	cfg := Config{
		Mode:         "predict-data",
		Results:      root,
		Inputs:       []string{"a=random:13x2@5", "b=random:13x3@6"},
		BatchSize:    4,
		Parallel:     4,
		DataFile:     dataFile,
		OutputFormat: "json",
	}
	require.NoError(t, cfg.Validate())

	res, err := runPredictData(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Batches)
	assert.Equal(t, 13, res.Rows)
	assert.Equal(t, 1, res.Passes)

	data, err := os.ReadFile(dataFile)
	require.NoError(t, err)
	var rows map[string][][]float32
	require.NoError(t, json.Unmarshal(data, &rows))

	wantA, err := dataset.NewRandom("a", 13, 2, 5).GetData(sequence(13))
	require.NoError(t, err)
	wantB, err := dataset.NewRandom("b", 13, 3, 6).GetData(sequence(13))
	require.NoError(t, err)
	assert.Equal(t, wantA, rows["a"])
	assert.Equal(t, wantB, rows["b"])

	runs, err := results.New(root).Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "predict-data", runs[0].Mode)
	assert.Empty(t, runs[0].Outputs)
}

func TestMemoryMonitor(t *testing.T) {
	dir := results.New(t.TempDir())
	cfg := &Config{
		MemoryMonitoringEnabled:  true,
		MemoryMonitoringInterval: 1,
		MemoryMonitoringFile:     "mem.json",
	}

	m := NewMemoryMonitor(cfg, dir, prometheusGoGatherer(t))
	m.Start()
	m.Stop()

	samples := m.GetMetrics()
	require.GreaterOrEqual(t, len(samples), 2)
	assert.Greater(t, samples[0].HeapSysBytes, 0.0)

	peak := m.Peak()
	require.NotNil(t, peak)
	assert.Greater(t, peak.HeapAllocBytes, 0.0)

	data, err := os.ReadFile(dir.Path(results.MemoryDir, "mem.json"))
	require.NoError(t, err)
	var stored []MemoryMetricEntry
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Len(t, stored, len(samples))
}

func TestMemoryMonitorDisabled(t *testing.T) {
	m := NewMemoryMonitor(&Config{}, results.New(t.TempDir()), prometheusGoGatherer(t))
	m.Start()
	m.Stop()
	assert.Nil(t, m.Peak())
}
