package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/affinity-clustering-service/backend/models"
	"github.com/gilchrisn/affinity-clustering-service/pkg/apcluster"
	"github.com/gilchrisn/affinity-clustering-service/pkg/sparse"
)

const threeItems = "3 6\n\n-1\n-5\n-1\n-1\n-5\n-1\n\n1\n2\n0\n2\n0\n1\n\n0\n2\n4\n6\n"

func newServices(t *testing.T, opts JobOptions) (*DatasetService, *JobService, *Metrics) {
	t.Helper()
	datasets := NewDatasetService()
	metrics := NewMetrics(prometheus.NewRegistry())
	jobs := NewJobService(datasets, metrics, opts)
	t.Cleanup(jobs.Close)
	return datasets, jobs, metrics
}

func waitFinished(t *testing.T, jobs *JobService, jobID string) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		j, err := jobs.Get(jobID)
		if err != nil {
			return false
		}
		job = j
		return j.Status.Finished()
	}, 10*time.Second, 10*time.Millisecond)
	return job
}

func TestDatasetService(t *testing.T) {
	datasets := NewDatasetService()

	dataset, err := datasets.Upload("three", strings.NewReader(threeItems))
	require.NoError(t, err)
	assert.Equal(t, models.DatasetStatusReady, dataset.Status)
	assert.Equal(t, 3, dataset.Metadata.ItemCount)
	assert.Equal(t, 6, dataset.Metadata.EntryCount)
	assert.Equal(t, int64(len(threeItems)), dataset.Metadata.FileSize)

	got, err := datasets.Get(dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, dataset, got)
	assert.Len(t, datasets.List(), 1)

	matrix, err := datasets.Matrix(dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, matrix.NNZ())

	require.NoError(t, datasets.Delete(dataset.ID))
	_, err = datasets.Get(dataset.ID)
	assert.ErrorIs(t, err, ErrDatasetNotFound)
	assert.ErrorIs(t, datasets.Delete(dataset.ID), ErrDatasetNotFound)
}

func TestDatasetService_RejectsMalformed(t *testing.T) {
	datasets := NewDatasetService()
	_, err := datasets.Upload("bad", strings.NewReader("3 6\n-1\n"))
	var inErr *sparse.InputFormatError
	assert.True(t, errors.As(err, &inErr))
	assert.Empty(t, datasets.List())
}

func TestJobService_Completes(t *testing.T) {
	datasets, jobs, metrics := newServices(t, JobOptions{MaxWorkers: 2, Timeout: time.Minute})
	dataset, err := datasets.Upload("three", strings.NewReader(threeItems))
	require.NoError(t, err)

	seed := int64(3)
	mode := "spread"
	job, err := jobs.Submit(dataset.ID, models.JobParameters{RandomSeed: &seed, PreferenceMode: &mode})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, job.Status)

	finished := waitFinished(t, jobs, job.ID)
	require.Equal(t, models.JobStatusCompleted, finished.Status, finished.Error)
	require.NotNil(t, finished.Result)
	assert.True(t, finished.Result.Converged)
	assert.Equal(t, 100, finished.Progress.Percentage)
	assert.NotNil(t, finished.StartedAt)
	assert.NotNil(t, finished.CompletedAt)

	result, err := jobs.GetResult(job.ID)
	require.NoError(t, err)
	assert.Len(t, result.Exemplars, 3)

	summary, err := jobs.Summary(job.ID)
	require.NoError(t, err)
	assert.True(t, summary.Consistent)
	assert.Equal(t, finished.Result.NumClusters, summary.NumClusters)

	assert.Len(t, jobs.List(dataset.ID), 1)
	assert.ErrorIs(t, jobs.Cancel(job.ID), ErrJobFinished)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobsTotal.WithLabelValues("completed")))
}

func TestJobService_InvalidParameters(t *testing.T) {
	datasets, jobs, _ := newServices(t, JobOptions{MaxWorkers: 1})
	dataset, err := datasets.Upload("three", strings.NewReader(threeItems))
	require.NoError(t, err)

	damping := 1.0
	_, err = jobs.Submit(dataset.ID, models.JobParameters{Damping: &damping})
	var cfgErr *apcluster.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "algorithm.damping", cfgErr.Field)

	_, err = jobs.Submit("missing", models.JobParameters{})
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestJobService_CancelQueued(t *testing.T) {
	datasets, jobs, metrics := newServices(t, JobOptions{MaxWorkers: 1})
	dataset, err := datasets.Upload("three", strings.NewReader(threeItems))
	require.NoError(t, err)

	// Hold the only worker slot so the job stays queued.
	jobs.workers <- struct{}{}
	job, err := jobs.Submit(dataset.ID, models.JobParameters{})
	require.NoError(t, err)

	require.NoError(t, jobs.Cancel(job.ID))
	finished := waitFinished(t, jobs, job.ID)
	assert.Equal(t, models.JobStatusCancelled, finished.Status)
	<-jobs.workers

	_, err = jobs.GetResult(job.ID)
	assert.ErrorIs(t, err, ErrJobNotComplete)
	assert.ErrorIs(t, jobs.Cancel("missing"), ErrJobNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobsTotal.WithLabelValues("cancelled")))
}

func TestJobService_Cleanup(t *testing.T) {
	datasets, jobs, _ := newServices(t, JobOptions{MaxWorkers: 1})
	dataset, err := datasets.Upload("three", strings.NewReader(threeItems))
	require.NoError(t, err)

	job, err := jobs.Submit(dataset.ID, models.JobParameters{})
	require.NoError(t, err)
	waitFinished(t, jobs, job.ID)

	assert.Zero(t, jobs.cleanup(time.Now().Add(-time.Hour)))
	assert.Equal(t, 1, jobs.cleanup(time.Now().Add(time.Second)))
	_, err = jobs.Get(job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestDatasetService_SnapshotsAreIndependent(t *testing.T) {
	datasets := NewDatasetService()
	ids := make([]string, 20)
	for i := range ids {
		dataset, err := datasets.Upload(fmt.Sprintf("d%d", i), strings.NewReader(threeItems))
		require.NoError(t, err)
		ids[i] = dataset.ID
	}
	before, err := datasets.Get(ids[0])
	require.NoError(t, err)

	// Readers encode what they got while the datasets are deleted underneath.
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range ids {
				if got, err := datasets.Get(id); err == nil {
					_, _ = json.Marshal(got)
				}
				_, _ = json.Marshal(datasets.List())
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, id := range ids {
			_ = datasets.Delete(id)
		}
	}()
	wg.Wait()

	assert.Empty(t, datasets.List())
	assert.Equal(t, models.DatasetStatusReady, before.Status)
}

func TestJobService_DeleteDatasetInUse(t *testing.T) {
	datasets, jobs, _ := newServices(t, JobOptions{MaxWorkers: 1})
	dataset, err := datasets.Upload("three", strings.NewReader(threeItems))
	require.NoError(t, err)

	// Hold the only worker slot so the job stays queued.
	jobs.workers <- struct{}{}
	job, err := jobs.Submit(dataset.ID, models.JobParameters{})
	require.NoError(t, err)

	assert.ErrorIs(t, jobs.DeleteDataset(dataset.ID), ErrDatasetInUse)
	_, err = datasets.Get(dataset.ID)
	require.NoError(t, err, "a rejected delete keeps the dataset")

	require.NoError(t, jobs.Cancel(job.ID))
	waitFinished(t, jobs, job.ID)
	<-jobs.workers

	require.NoError(t, jobs.DeleteDataset(dataset.ID))
	_, err = datasets.Get(dataset.ID)
	assert.ErrorIs(t, err, ErrDatasetNotFound)
	assert.ErrorIs(t, jobs.DeleteDataset(dataset.ID), ErrDatasetNotFound)
}

func TestJobService_SummaryAfterDatasetDeleted(t *testing.T) {
	datasets, jobs, _ := newServices(t, JobOptions{MaxWorkers: 1})
	dataset, err := datasets.Upload("three", strings.NewReader(threeItems))
	require.NoError(t, err)

	seed := int64(3)
	job, err := jobs.Submit(dataset.ID, models.JobParameters{RandomSeed: &seed})
	require.NoError(t, err)
	finished := waitFinished(t, jobs, job.ID)
	require.Equal(t, models.JobStatusCompleted, finished.Status, finished.Error)

	require.NoError(t, jobs.DeleteDataset(dataset.ID))

	summary, err := jobs.Summary(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.NumItems)
	_, err = jobs.GetResult(job.ID)
	assert.NoError(t, err)

	_, err = jobs.Submit(dataset.ID, models.JobParameters{})
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}
