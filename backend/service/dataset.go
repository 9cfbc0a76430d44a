package service

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/affinity-clustering-service/backend/models"
	"github.com/gilchrisn/affinity-clustering-service/pkg/sparse"
)

// DatasetService keeps uploaded similarity matrices in memory
type DatasetService struct {
	datasets map[string]*models.Dataset
	matrices map[string]*sparse.Matrix
	mutex    sync.RWMutex
}

// NewDatasetService creates a new dataset service
func NewDatasetService() *DatasetService {
	return &DatasetService{
		datasets: make(map[string]*models.Dataset),
		matrices: make(map[string]*sparse.Matrix),
	}
}

// Upload parses a similarity matrix and stores it as a new dataset. Nothing is
// stored if the matrix does not parse.
func (s *DatasetService) Upload(name string, r io.Reader) (*models.Dataset, error) {
	counter := &countingReader{r: r}
	matrix, err := sparse.ReadSimilarity(counter)
	if err != nil {
		return nil, err
	}

	datasetID := uuid.New().String()
	now := time.Now()
	dataset := &models.Dataset{
		ID:     datasetID,
		Name:   name,
		Status: models.DatasetStatusReady,
		Metadata: models.DatasetMetadata{
			ItemCount:  matrix.Cols,
			EntryCount: matrix.NNZ(),
			FileSize:   counter.n,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mutex.Lock()
	s.datasets[datasetID] = dataset
	s.matrices[datasetID] = matrix
	snapshot := *dataset
	s.mutex.Unlock()

	log.Info().
		Str("dataset_id", datasetID).
		Str("name", name).
		Int("items", matrix.Cols).
		Int("entries", matrix.NNZ()).
		Int64("size_bytes", counter.n).
		Msg("Dataset upload complete")

	return &snapshot, nil
}

// Get returns a snapshot of a dataset
func (s *DatasetService) Get(datasetID string) (*models.Dataset, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	dataset, exists := s.datasets[datasetID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, datasetID)
	}

	snapshot := *dataset
	return &snapshot, nil
}

// Matrix returns the parsed similarity matrix of a dataset. Callers must not
// modify it.
func (s *DatasetService) Matrix(datasetID string) (*sparse.Matrix, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	matrix, exists := s.matrices[datasetID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, datasetID)
	}

	return matrix, nil
}

// List returns snapshots of all datasets, oldest first
func (s *DatasetService) List() []*models.Dataset {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	datasets := make([]*models.Dataset, 0, len(s.datasets))
	for _, dataset := range s.datasets {
		snapshot := *dataset
		datasets = append(datasets, &snapshot)
	}
	sort.Slice(datasets, func(i, j int) bool {
		if datasets[i].CreatedAt.Equal(datasets[j].CreatedAt) {
			return datasets[i].ID < datasets[j].ID
		}
		return datasets[i].CreatedAt.Before(datasets[j].CreatedAt)
	})

	return datasets
}

// Delete removes a dataset and its matrix
func (s *DatasetService) Delete(datasetID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	dataset, exists := s.datasets[datasetID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, datasetID)
	}

	dataset.Status = models.DatasetStatusDeleted
	dataset.UpdatedAt = time.Now()
	delete(s.datasets, datasetID)
	delete(s.matrices, datasetID)

	log.Info().
		Str("dataset_id", datasetID).
		Msg("Dataset deleted")

	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
