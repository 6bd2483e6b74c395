package cmd

import (
	"math/rand"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/seantzu/janggu/dataset"
	"github.com/seantzu/janggu/generator"
)

type sourceSet []dataset.Source

func openSources(specs []string) (sourceSet, error) {
	var set sourceSet
	for _, spec := range specs {
		src, err := dataset.Open(spec)
		if err != nil {
			set.Close()
			return nil, errors.Wrapf(err, "open %q", spec)
		}
		log.WithFields(log.Fields{
			"source":    src.Name(),
			"rows":      src.Len(),
			"dimension": src.Dimension(),
		}).Info("Opened data source")
		set = append(set, src)
	}
	return set, nil
}

func (s sourceSet) Close() {
	for _, src := range s {
		if err := src.Close(); err != nil {
			log.WithError(err).WithField("source", src.Name()).Warn("Failed to close data source")
		}
	}
}

func (s sourceSet) Names() []string {
	names := make([]string, len(s))
	for i, src := range s {
		names[i] = src.Name()
	}
	return names
}

func (s sourceSet) DataSources() []generator.DataSource {
	out := make([]generator.DataSource, len(s))
	for i, src := range s {
		out[i] = src
	}
	return out
}

// commonRows returns the row count shared by all sources.
func commonRows(sets ...sourceSet) (int, error) {
	rows := -1
	var first string
	for _, set := range sets {
		for _, src := range set {
			switch {
			case rows < 0:
				rows, first = src.Len(), src.Name()
			case src.Len() != rows:
				return 0, errors.Errorf("source %q has %d rows, %q has %d", src.Name(), src.Len(), first, rows)
			}
		}
	}
	if rows < 0 {
		return 0, errors.Errorf("no data sources")
	}
	return rows, nil
}

func sequence(n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

// splitValidation shuffles indices with seed and splits off the last
// fraction of them. The returned slices do not share storage.
func splitValidation(indices []int, fraction float64, seed int64) (train, val []int) {
	n := int(float64(len(indices)) * fraction)
	if n == 0 {
		return append([]int(nil), indices...), nil
	}
	shuffled := append([]int(nil), indices...)
	rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	cut := len(shuffled) - n
	return shuffled[:cut:cut], append([]int(nil), shuffled[cut:]...)
}
