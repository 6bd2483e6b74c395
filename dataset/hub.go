package dataset

import (
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/weaviate/weaviate/adapters/repos/db/vector/datasets"
)

const hubChunkSize = 1000

// LoadHub reads the train split of a parquet dataset from the dataset hub
// into memory.
func LoadHub(name, datasetID, subset string) (*Array, error) {
	logger := log.New()
	logger.SetLevel(log.GetLevel())
	hubDataset := datasets.NewHubDataset(datasetID, subset, logger)

	trainReader, err := hubDataset.NewDataReader(datasets.TrainSplit, 0, -1, hubChunkSize)
	if err != nil {
		return nil, errors.Wrapf(err, "open train split of %s", datasetID)
	}
	defer trainReader.Close()

	rows := make([][]float32, 0, trainReader.NumRowsInFile())
	for {
		chunk, err := trainReader.ReadNextChunk()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(err, "read train split of %s", datasetID)
		}
		if chunk != nil {
			rows = append(rows, chunk.Vectors...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}

	log.WithFields(log.Fields{"dataset": datasetID, "subset": subset, "rows": len(rows)}).
		Info("Loaded hub dataset")

	return NewArray(name, rows), nil
}
