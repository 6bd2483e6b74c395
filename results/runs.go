package results

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// RunRecord summarizes one feed run. Durations are in seconds.
type RunRecord struct {
	RunID            string            `json:"run_id"`
	Timestamp        string            `json:"timestamp"`
	Mode             string            `json:"mode"`
	Delivery         string            `json:"delivery"`
	Inputs           []string          `json:"inputs"`
	Outputs          []string          `json:"outputs,omitempty"`
	BatchSize        int               `json:"batch_size"`
	Parallelization  int               `json:"parallelization"`
	Batches          int               `json:"batches"`
	Rows             int               `json:"rows"`
	Passes           int               `json:"passes"`
	Failed           int               `json:"failed"`
	Mean             float64           `json:"mean"`
	P99Latency       float64           `json:"p99"`
	Took             float64           `json:"took"`
	BatchesPerSecond float64           `json:"batches_per_second"`
	RowsPerSecond    float64           `json:"rows_per_second"`
	HeapAllocBytes   float64           `json:"heap_alloc_bytes,omitempty"`
	HeapInuseBytes   float64           `json:"heap_inuse_bytes,omitempty"`
	HeapSysBytes     float64           `json:"heap_sys_bytes,omitempty"`
	Labels           map[string]string `json:"labels,omitempty"`
}

// WriteRun stores the record as runs/<run_id>.json and returns its path.
func (d *Dir) WriteRun(r RunRecord) (string, error) {
	if !validName(r.RunID) {
		return "", errors.Errorf("invalid run id %q", r.RunID)
	}
	path := d.Path(RunsDir, r.RunID+".json")
	if err := writeJSON(path, r); err != nil {
		return "", errors.Wrapf(err, "write run %s", r.RunID)
	}
	return path, nil
}

func ReadRun(path string) (RunRecord, error) {
	var r RunRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return r, errors.Wrap(err, "read run")
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, errors.Wrapf(err, "decode %s", path)
	}
	return r, nil
}

// Runs returns all run records ordered by timestamp. Unreadable files are
// skipped.
func (d *Dir) Runs() ([]RunRecord, error) {
	files, err := filepath.Glob(d.Path(RunsDir, "*.json"))
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}

	runs := make([]RunRecord, 0, len(files))
	for _, f := range files {
		r, err := ReadRun(f)
		if err != nil {
			continue
		}
		runs = append(runs, r)
	}
	slices.SortStableFunc(runs, func(a, b RunRecord) int {
		if a.Timestamp != b.Timestamp {
			if a.Timestamp < b.Timestamp {
				return -1
			}
			return 1
		}
		if a.RunID < b.RunID {
			return -1
		}
		if a.RunID > b.RunID {
			return 1
		}
		return 0
	})
	return runs, nil
}

// WriteMemory stores memory monitor samples as memory/<name>.
func (d *Dir) WriteMemory(name string, samples interface{}) (string, error) {
	if !validName(name) {
		return "", errors.Errorf("invalid file name %q", name)
	}
	path := d.Path(MemoryDir, name)
	if err := writeJSON(path, samples); err != nil {
		return "", errors.Wrap(err, "write memory metrics")
	}
	return path, nil
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
