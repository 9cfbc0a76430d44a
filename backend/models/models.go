package models

import (
	"time"

	"github.com/gilchrisn/affinity-clustering-service/pkg/apcluster"
	"github.com/gilchrisn/affinity-clustering-service/pkg/evaluation"
)

// Dataset represents an uploaded similarity matrix
type Dataset struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Status    DatasetStatus   `json:"status"`
	Metadata  DatasetMetadata `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type DatasetStatus string

const (
	DatasetStatusReady   DatasetStatus = "ready"
	DatasetStatusDeleted DatasetStatus = "deleted"
)

type DatasetMetadata struct {
	ItemCount  int   `json:"itemCount"`
	EntryCount int   `json:"entryCount"`
	FileSize   int64 `json:"fileSize"`
}

// Job represents a clustering job
type Job struct {
	ID          string        `json:"id"`
	DatasetID   string        `json:"datasetId"`
	Parameters  JobParameters `json:"parameters"`
	Status      JobStatus     `json:"status"`
	Progress    JobProgress   `json:"progress"`
	Result      *JobResult    `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

// JobParameters override the algorithm defaults for one job. Unset fields
// keep the defaults.
type JobParameters struct {
	PreferenceMode        *string  `json:"preferenceMode,omitempty" validate:"omitempty,oneof=median min minimum spread min-minus-spread"`
	Damping               *float64 `json:"damping,omitempty" validate:"omitempty,gt=0.5,lt=1"`
	MaxIterations         *int     `json:"maxIterations,omitempty" validate:"omitempty,min=1,max=1000000"`
	ConvergenceIterations *int     `json:"convergenceIterations,omitempty" validate:"omitempty,min=1"`
	RandomSeed            *int64   `json:"randomSeed,omitempty"`
	Parallel              *bool    `json:"parallel,omitempty"`
	NumWorkers            *int     `json:"numWorkers,omitempty" validate:"omitempty,min=1,max=256"`
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Finished reports whether the job can no longer change state.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

type JobProgress struct {
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
	Iteration  int    `json:"iteration"`
	Changed    int    `json:"changed"`
}

type JobResult struct {
	NumClusters      int      `json:"numClusters"`
	Iterations       int      `json:"iterations"`
	Converged        bool     `json:"converged"`
	StopReason       string   `json:"stopReason"`
	Preference       *float64 `json:"preference,omitempty"`
	ProcessingTimeMS int64    `json:"processingTimeMS"`
}

// API Response types
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type UploadResponse struct {
	DatasetID string  `json:"datasetId"`
	Dataset   Dataset `json:"dataset"`
}

type ClusteringRequest struct {
	Parameters JobParameters `json:"parameters"`
}

type ClusteringResponse struct {
	JobID string `json:"jobId"`
	Job   Job    `json:"job"`
}

type ResultResponse struct {
	JobID     string              `json:"jobId"`
	Exemplars []int               `json:"exemplars"`
	Clusters  []apcluster.Cluster `json:"clusters"`
}

type SummaryResponse struct {
	JobID   string              `json:"jobId"`
	Summary *evaluation.Summary `json:"summary"`
}

type PageResponse struct {
	Items interface{} `json:"items"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Total int         `json:"total"`
}
