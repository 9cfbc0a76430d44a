package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/affinity-clustering-service/backend/models"
	"github.com/gilchrisn/affinity-clustering-service/pkg/apcluster"
	"github.com/gilchrisn/affinity-clustering-service/pkg/evaluation"
	"github.com/gilchrisn/affinity-clustering-service/pkg/sparse"
)

// JobOptions bound how jobs are scheduled and retained
type JobOptions struct {
	MaxWorkers      int
	Timeout         time.Duration
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	LogLevel        string
}

// JobService runs clustering jobs in the background
type JobService struct {
	jobs           map[string]*models.Job
	results        map[string]*apcluster.Result
	matrices       map[string]*sparse.Matrix // the dataset matrix each job runs on
	cancels        map[string]context.CancelFunc
	workers        chan struct{}
	datasetService *DatasetService
	metrics        *Metrics
	opts           JobOptions
	mutex          sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewJobService creates a new job service and starts its cleanup loop
func NewJobService(datasetService *DatasetService, metrics *Metrics, opts JobOptions) *JobService {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if opts.LogLevel == "" {
		opts.LogLevel = "warn"
	}

	service := &JobService{
		jobs:           make(map[string]*models.Job),
		results:        make(map[string]*apcluster.Result),
		matrices:       make(map[string]*sparse.Matrix),
		cancels:        make(map[string]context.CancelFunc),
		workers:        make(chan struct{}, opts.MaxWorkers),
		datasetService: datasetService,
		metrics:        metrics,
		opts:           opts,
		stop:           make(chan struct{}),
	}

	if opts.CleanupInterval > 0 && opts.ResultTTL > 0 {
		service.wg.Add(1)
		go service.cleanupLoop()
	}

	return service
}

// Submit validates the parameters and queues a clustering job
func (s *JobService) Submit(datasetID string, params models.JobParameters) (*models.Job, error) {
	if _, err := s.datasetService.Get(datasetID); err != nil {
		return nil, err
	}

	config, err := s.buildConfig(params)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	jobID := uuid.New().String()
	now := time.Now()
	job := &models.Job{
		ID:         jobID,
		DatasetID:  datasetID,
		Parameters: params,
		Status:     models.JobStatusQueued,
		Progress: models.JobProgress{
			Percentage: 0,
			Message:    "Queued",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	ctx, cancel := context.WithCancel(context.Background())

	// Look the matrix up under the job lock so DeleteDataset sees this job
	s.mutex.Lock()
	matrix, err := s.datasetService.Matrix(datasetID)
	if err != nil {
		s.mutex.Unlock()
		cancel()
		return nil, err
	}
	s.jobs[jobID] = job
	s.matrices[jobID] = matrix
	s.cancels[jobID] = cancel
	snapshot := *job
	s.mutex.Unlock()

	log.Info().
		Str("job_id", jobID).
		Str("dataset_id", datasetID).
		Msg("Job submitted")

	s.wg.Add(1)
	go s.processJob(ctx, jobID, datasetID, matrix, config)

	return &snapshot, nil
}

// buildConfig overlays the job parameters on the algorithm defaults
func (s *JobService) buildConfig(params models.JobParameters) (*apcluster.Config, error) {
	config := apcluster.NewConfig()
	config.Set("logging.level", s.opts.LogLevel)
	config.Set("logging.enable_progress", false)

	if params.PreferenceMode != nil {
		config.Set("algorithm.preference_mode", *params.PreferenceMode)
	}
	if params.Damping != nil {
		config.Set("algorithm.damping", *params.Damping)
	}
	if params.MaxIterations != nil {
		config.Set("algorithm.max_iterations", *params.MaxIterations)
	}
	if params.ConvergenceIterations != nil {
		config.Set("algorithm.convergence_iterations", *params.ConvergenceIterations)
	}
	if params.RandomSeed != nil {
		config.Set("algorithm.random_seed", *params.RandomSeed)
	}
	if params.Parallel != nil {
		config.Set("performance.parallel", *params.Parallel)
	}
	if params.NumWorkers != nil {
		config.Set("performance.num_workers", *params.NumWorkers)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Get returns a snapshot of a job
func (s *JobService) Get(jobID string) (*models.Job, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	snapshot := *job
	return &snapshot, nil
}

// List returns snapshots of all jobs for a dataset, oldest first
func (s *JobService) List(datasetID string) []*models.Job {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	jobs := make([]*models.Job, 0)
	for _, job := range s.jobs {
		if job.DatasetID == datasetID {
			snapshot := *job
			jobs = append(jobs, &snapshot)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })

	return jobs
}

// GetResult retrieves the clustering of a completed job
func (s *JobService) GetResult(jobID string) (*apcluster.Result, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	result, exists := s.results[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s is %s", ErrJobNotComplete, jobID, job.Status)
	}

	return result, nil
}

// Summary evaluates the clustering of a completed job against its dataset
func (s *JobService) Summary(jobID string) (*evaluation.Summary, error) {
	result, err := s.GetResult(jobID)
	if err != nil {
		return nil, err
	}
	s.mutex.RLock()
	matrix, exists := s.matrices[jobID]
	s.mutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return evaluation.Summarize(matrix, result.Exemplars)
}

// DeleteDataset deletes a dataset unless a queued or running job still uses
// it. Finished jobs keep their matrix, so their results and summaries remain
// available.
func (s *JobService) DeleteDataset(datasetID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, job := range s.jobs {
		if job.DatasetID == datasetID && !job.Status.Finished() {
			return fmt.Errorf("%w: %s has %s job %s", ErrDatasetInUse, datasetID, job.Status, job.ID)
		}
	}
	return s.datasetService.Delete(datasetID)
}

// Cancel stops a queued or running job
func (s *JobService) Cancel(jobID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if job.Status.Finished() {
		return fmt.Errorf("%w: %s is %s", ErrJobFinished, jobID, job.Status)
	}

	if cancel, ok := s.cancels[jobID]; ok {
		cancel()
	}
	s.finish(job, models.JobStatusCancelled, "Cancelled")

	log.Info().
		Str("job_id", jobID).
		Msg("Job cancelled")

	return nil
}

// Close cancels outstanding jobs and waits for every goroutine to return
func (s *JobService) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.mutex.Lock()
		for _, cancel := range s.cancels {
			cancel()
		}
		s.mutex.Unlock()
	})
	s.wg.Wait()
}

// processJob processes a job in the background
func (s *JobService) processJob(ctx context.Context, jobID, datasetID string, matrix *sparse.Matrix, config *apcluster.Config) {
	defer s.wg.Done()
	defer s.release(jobID)

	// Acquire worker slot
	select {
	case s.workers <- struct{}{}:
	case <-ctx.Done():
		s.cancelJob(jobID)
		return
	}
	defer func() { <-s.workers }()
	s.metrics.JobsRunning.Inc()
	defer s.metrics.JobsRunning.Dec()

	startTime := time.Now()
	if !s.updateJobStatusWithStartTime(jobID, models.JobStatusRunning, 0, "Starting...", &startTime) {
		return
	}

	log.Info().
		Str("job_id", jobID).
		Str("dataset_id", datasetID).
		Int("items", matrix.Cols).
		Msg("Job processing started")

	runCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	progress := func(stats apcluster.IterationStats, maxIterations int) {
		s.updateProgress(jobID, stats, maxIterations)
	}

	result, err := apcluster.RunWithProgress(runCtx, matrix, config, progress)
	switch {
	case err == nil:
		s.completeJob(jobID, result)
	case ctx.Err() != nil:
		s.cancelJob(jobID)
	case errors.Is(err, context.DeadlineExceeded):
		s.failJob(jobID, fmt.Errorf("job timed out after %s: %w", s.opts.Timeout, err))
	default:
		s.failJob(jobID, fmt.Errorf("algorithm execution failed: %w", err))
	}
}

// release drops the cancel function once the job goroutine is done
func (s *JobService) release(jobID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if cancel, ok := s.cancels[jobID]; ok {
		cancel()
		delete(s.cancels, jobID)
	}
}

// updateProgress records the latest iteration of a running job
func (s *JobService) updateProgress(jobID string, stats apcluster.IterationStats, maxIterations int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status != models.JobStatusRunning {
		return
	}

	job.Progress.Iteration = stats.Iteration
	job.Progress.Changed = stats.Changed
	job.Progress.Percentage = (stats.Iteration + 1) * 100 / maxIterations
	job.Progress.Message = fmt.Sprintf("Iteration %d, %d assignments changed", stats.Iteration, stats.Changed)
	job.UpdatedAt = time.Now()
}

// updateJobStatusWithStartTime moves a queued job to running. It returns false
// if the job was finished in the meantime.
func (s *JobService) updateJobStatusWithStartTime(jobID string, status models.JobStatus, percentage int, message string, startTime *time.Time) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Finished() {
		return false
	}

	job.Status = status
	job.Progress.Percentage = percentage
	job.Progress.Message = message
	job.UpdatedAt = time.Now()
	job.StartedAt = startTime

	log.Debug().
		Str("job_id", jobID).
		Str("status", string(status)).
		Msg("Job status updated with start time")

	return true
}

// completeJob marks a job as completed with results
func (s *JobService) completeJob(jobID string, result *apcluster.Result) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Finished() {
		return
	}

	job.Result = &models.JobResult{
		NumClusters:      result.NumClusters,
		Iterations:       result.Iterations,
		Converged:        result.Converged,
		StopReason:       string(result.StopReason),
		Preference:       result.Preference,
		ProcessingTimeMS: result.Statistics.RuntimeMS,
	}
	s.results[jobID] = result
	s.finish(job, models.JobStatusCompleted, "Complete")
	job.Progress.Percentage = 100
	s.metrics.Iterations.Observe(float64(result.Iterations))

	log.Info().
		Str("job_id", jobID).
		Int("clusters", result.NumClusters).
		Int("iterations", result.Iterations).
		Bool("converged", result.Converged).
		Int64("processing_time_ms", result.Statistics.RuntimeMS).
		Msg("Job completed successfully")
}

// failJob marks a job as failed
func (s *JobService) failJob(jobID string, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Finished() {
		return
	}

	job.Error = err.Error()
	s.finish(job, models.JobStatusFailed, "Failed")

	log.Error().
		Str("job_id", jobID).
		Err(err).
		Msg("Job failed")
}

// cancelJob marks a job cancelled unless it already finished
func (s *JobService) cancelJob(jobID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Finished() {
		return
	}
	s.finish(job, models.JobStatusCancelled, "Cancelled")
}

// finish moves job into a final status. Callers hold the lock.
func (s *JobService) finish(job *models.Job, status models.JobStatus, message string) {
	now := time.Now()
	job.Status = status
	job.Progress.Message = message
	job.CompletedAt = &now
	job.UpdatedAt = now

	s.metrics.JobsTotal.WithLabelValues(string(status)).Inc()
	if job.StartedAt != nil {
		s.metrics.JobDuration.Observe(now.Sub(*job.StartedAt).Seconds())
	}
}

// cleanupLoop periodically cleans up old jobs and results
func (s *JobService) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.cleanup(now.Add(-s.opts.ResultTTL))
		}
	}
}

// cleanup removes finished jobs last updated before cutoff
func (s *JobService) cleanup(cutoff time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cleaned := 0
	for jobID, job := range s.jobs {
		if job.Status.Finished() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, jobID)
			delete(s.results, jobID)
			delete(s.matrices, jobID)
			cleaned++
		}
	}

	if cleaned > 0 {
		log.Info().
			Int("cleaned_jobs", cleaned).
			Msg("Job cleanup completed")
	}
	return cleaned
}
