package dataset

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/hdf5"
)

func writeHDF5(t *testing.T, path, name string, dims []uint, dtype *hdf5.Datatype, data interface{}) {
	t.Helper()
	file, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	require.NoError(t, err)
	defer file.Close()

	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	require.NoError(t, err)
	defer space.Close()

	dset, err := file.CreateDataset(name, dtype, space)
	require.NoError(t, err)
	defer dset.Close()

	require.NoError(t, dset.Write(data))
}

func TestHDF5GetData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.h5")
	data := make([]float32, 6*3)
	for i := range data {
		data[i] = float32(i)
	}
	writeHDF5(t, path, "train", []uint{6, 3}, hdf5.T_NATIVE_FLOAT, &data)

	h, err := OpenHDF5("x", path, "train")
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, 6, h.Len())
	assert.Equal(t, 3, h.Dimension())

	rows, err := h.GetData([]int{4, 1, 2, 3, 0})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{
		{12, 13, 14},
		{3, 4, 5},
		{6, 7, 8},
		{9, 10, 11},
		{0, 1, 2},
	}, rows)

	_, err = h.GetData([]int{6})
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestHDF5Float64(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.hdf5")
	data := []float64{0.5, 1.5, 2.5, 3.5}
	writeHDF5(t, path, "y", []uint{4, 1}, hdf5.T_NATIVE_DOUBLE, &data)

	src, err := Open("y=" + path)
	require.NoError(t, err)
	defer src.Close()

	rows, err := src.GetData([]int{3, 0})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3.5}, {0.5}}, rows)
}

func TestHDF5Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := OpenHDF5("x", filepath.Join(dir, "missing.h5"), "train")
	require.Error(t, err)

	path := filepath.Join(dir, "flat.h5")
	data := []float32{1, 2, 3}
	writeHDF5(t, path, "train", []uint{3}, hdf5.T_NATIVE_FLOAT, &data)

	_, err = OpenHDF5("x", path, "train")
	require.Error(t, err, "one dimensional datasets are not row sources")
	_, err = OpenHDF5("x", path, "other")
	require.Error(t, err)
}

func TestLoadWeightsHDF5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.h5")
	data := []float32{1, 0.5, 0.25}
	writeHDF5(t, path, "weights", []uint{3}, hdf5.T_NATIVE_FLOAT, &data)

	weights, err := LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, data, weights)
}
