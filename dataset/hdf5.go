package dataset

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/weaviate/hdf5"
)

// HDF5 serves rows of a two dimensional float32 or float64 dataset, read on
// demand. Runs of consecutive indices are read with a single hyperslab.
// Reads are serialized because the HDF5 library is not re-entrant.
type HDF5 struct {
	name     string
	file     *hdf5.File
	dataset  *hdf5.Dataset
	rows     uint
	dims     uint
	byteSize uint
	mu       sync.Mutex
}

func OpenHDF5(name, path, datasetName string) (*HDF5, error) {
	file, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	dataset, err := file.OpenDataset(datasetName)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "open dataset %q in %s", datasetName, path)
	}

	dataspace := dataset.Space()
	extent, _, err := dataspace.SimpleExtentDims()
	dataspace.Close()
	if err != nil {
		dataset.Close()
		file.Close()
		return nil, errors.Wrap(err, "read extent")
	}
	if len(extent) != 2 {
		dataset.Close()
		file.Close()
		return nil, errors.Errorf("%s/%s: expected 2 dimensions, got %d", path, datasetName, len(extent))
	}

	byteSize, err := hdf5ByteSize(dataset)
	if err != nil {
		dataset.Close()
		file.Close()
		return nil, err
	}

	log.WithFields(log.Fields{"file": path, "dataset": datasetName,
		"rows": extent[0], "dimensions": extent[1]}).Debug("Opened HDF5 dataset")

	return &HDF5{
		name:     name,
		file:     file,
		dataset:  dataset,
		rows:     extent[0],
		dims:     extent[1],
		byteSize: byteSize,
	}, nil
}

func (h *HDF5) Name() string { return h.name }

func (h *HDF5) Len() int { return int(h.rows) }

func (h *HDF5) Dimension() int { return int(h.dims) }

func (h *HDF5) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.dataset.Close(); err != nil {
		h.file.Close()
		return err
	}
	return h.file.Close()
}

func (h *HDF5) GetData(indices []int) ([][]float32, error) {
	for _, idx := range indices {
		if idx < 0 || uint(idx) >= h.rows {
			return nil, errors.Wrapf(ErrIndexOutOfRange, "%s: index %d, %d rows", h.name, idx, h.rows)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	dataspace := h.dataset.Space()
	defer dataspace.Close()

	out := make([][]float32, 0, len(indices))
	for start := 0; start < len(indices); {
		end := start + 1
		for end < len(indices) && indices[end] == indices[end-1]+1 {
			end++
		}
		rows, err := h.readRun(dataspace, uint(indices[start]), uint(end-start))
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
		start = end
	}
	return out, nil
}

func (h *HDF5) readRun(dataspace *hdf5.Dataspace, offset, count uint) ([][]float32, error) {
	memspace, err := hdf5.CreateSimpleDataspace([]uint{count, h.dims}, []uint{count, h.dims})
	if err != nil {
		return nil, errors.Wrap(err, "create memspace")
	}
	defer memspace.Close()

	if err := dataspace.SelectHyperslab([]uint{offset, 0}, nil, []uint{count, h.dims}, nil); err != nil {
		return nil, errors.Wrapf(err, "select rows %d..%d", offset, offset+count)
	}

	switch h.byteSize {
	case 4:
		chunkData1D := make([]float32, count*h.dims)
		if err := h.dataset.ReadSubset(&chunkData1D, memspace, dataspace); err != nil {
			return nil, errors.Wrapf(err, "read rows %d..%d", offset, offset+count)
		}
		return convert1DChunk(chunkData1D, int(h.dims), int(count)), nil
	default:
		chunkData1D := make([]float64, count*h.dims)
		if err := h.dataset.ReadSubset(&chunkData1D, memspace, dataspace); err != nil {
			return nil, errors.Wrapf(err, "read rows %d..%d", offset, offset+count)
		}
		return convert1DChunk(chunkData1D, int(h.dims), int(count)), nil
	}
}

func convert1DChunk[D float32 | float64](input []D, dimensions int, batchRows int) [][]float32 {
	chunkData := make([][]float32, batchRows)
	for i := range chunkData {
		chunkData[i] = make([]float32, dimensions)
		for j := 0; j < dimensions; j++ {
			chunkData[i][j] = float32(input[i*dimensions+j])
		}
	}
	return chunkData
}

func hdf5ByteSize(dataset *hdf5.Dataset) (uint, error) {
	datatype, err := dataset.Datatype()
	if err != nil {
		return 0, errors.Wrap(err, "read datatype")
	}
	byteSize := datatype.Size()
	if byteSize != 4 && byteSize != 8 {
		return 0, errors.Errorf("unable to load dataset with byte size %d", byteSize)
	}
	return byteSize, nil
}

// loadHDF5Vector reads a whole one dimensional dataset.
func loadHDF5Vector(path, name string) ([]float32, error) {
	file, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	dataset, err := file.OpenDataset(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %q in %s", name, path)
	}
	defer dataset.Close()

	dataspace := dataset.Space()
	dims, _, err := dataspace.SimpleExtentDims()
	dataspace.Close()
	if err != nil {
		return nil, errors.Wrap(err, "read extent")
	}
	if len(dims) != 1 {
		return nil, errors.Errorf("%s/%s: expected 1 dimension, got %d", path, name, len(dims))
	}

	byteSize, err := hdf5ByteSize(dataset)
	if err != nil {
		return nil, err
	}

	if byteSize == 4 {
		data := make([]float32, dims[0])
		if err := dataset.Read(&data); err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}
		return data, nil
	}

	data64 := make([]float64, dims[0])
	if err := dataset.Read(&data64); err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	data := make([]float32, len(data64))
	for i, v := range data64 {
		data[i] = float32(v)
	}
	return data, nil
}
