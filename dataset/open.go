package dataset

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	KindHDF5   = "hdf5"
	KindJSON   = "json"
	KindHub    = "hub"
	KindRandom = "random"
)

// Spec describes a source given on the command line as name=location,
// where location is one of
//
//	file.h5[:dataset]  file.hdf5[:dataset]  file.json
//	hub:datasetID[@subset]
//	random:ROWSxDIMS[@seed]
type Spec struct {
	Name     string
	Kind     string
	Location string
	Dataset  string
	Rows     int
	Dims     int
	Seed     int64
}

func ParseSpec(s string) (Spec, error) {
	name, location, ok := strings.Cut(s, "=")
	if !ok || name == "" || location == "" {
		return Spec{}, errors.Errorf("source %q: expected name=location", s)
	}
	spec := Spec{Name: name}

	switch {
	case strings.HasPrefix(location, "hub:"):
		spec.Kind = KindHub
		spec.Location, spec.Dataset, _ = strings.Cut(strings.TrimPrefix(location, "hub:"), "@")
		if spec.Location == "" {
			return Spec{}, errors.Errorf("source %q: missing dataset id", s)
		}
	case strings.HasPrefix(location, "random:"):
		spec.Kind = KindRandom
		shape, seed, hasSeed := strings.Cut(strings.TrimPrefix(location, "random:"), "@")
		rows, dims, ok := strings.Cut(shape, "x")
		if !ok {
			return Spec{}, errors.Errorf("source %q: expected random:ROWSxDIMS", s)
		}
		var err error
		if spec.Rows, err = strconv.Atoi(rows); err != nil || spec.Rows < 0 {
			return Spec{}, errors.Errorf("source %q: invalid row count %q", s, rows)
		}
		if spec.Dims, err = strconv.Atoi(dims); err != nil || spec.Dims < 1 {
			return Spec{}, errors.Errorf("source %q: invalid dimensions %q", s, dims)
		}
		spec.Seed = 1
		if hasSeed {
			if spec.Seed, err = strconv.ParseInt(seed, 10, 64); err != nil {
				return Spec{}, errors.Errorf("source %q: invalid seed %q", s, seed)
			}
		}
	default:
		spec.Location = location
		if i := strings.LastIndex(location, ":"); i > 0 && isHDF5(location[:i]) {
			spec.Location, spec.Dataset = location[:i], location[i+1:]
		}
		switch {
		case isHDF5(spec.Location):
			spec.Kind = KindHDF5
			if spec.Dataset == "" {
				spec.Dataset = name
			}
		case strings.EqualFold(filepath.Ext(spec.Location), ".json"):
			spec.Kind = KindJSON
		default:
			return Spec{}, errors.Wrapf(ErrUnknownSource, "%q", location)
		}
	}
	return spec, nil
}

// Open parses s and opens the source it describes.
func Open(s string) (Source, error) {
	spec, err := ParseSpec(s)
	if err != nil {
		return nil, err
	}
	return spec.Open()
}

func (s Spec) Open() (Source, error) {
	var (
		src Source
		err error
	)
	switch s.Kind {
	case KindHDF5:
		var h *HDF5
		if h, err = OpenHDF5(s.Name, s.Location, s.Dataset); err == nil {
			src = h
		}
	case KindJSON:
		var a *Array
		if a, err = LoadJSON(s.Name, s.Location); err == nil {
			src = a
		}
	case KindHub:
		var a *Array
		if a, err = LoadHub(s.Name, s.Location, s.Dataset); err == nil {
			src = a
		}
	case KindRandom:
		src = NewRandom(s.Name, s.Rows, s.Dims, s.Seed)
	default:
		err = errors.Wrapf(ErrUnknownSource, "kind %q", s.Kind)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

func isHDF5(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".h5", ".hdf5":
		return true
	}
	return false
}
