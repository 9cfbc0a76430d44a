package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/affinity-clustering-service/backend/models"
	"github.com/gilchrisn/affinity-clustering-service/backend/service"
	"github.com/gilchrisn/affinity-clustering-service/backend/utils"
	"github.com/gilchrisn/affinity-clustering-service/pkg/apcluster"
	"github.com/gilchrisn/affinity-clustering-service/pkg/sparse"
)

// Handlers contains HTTP request handlers
type Handlers struct {
	datasetService *service.DatasetService
	jobService     *service.JobService
	maxUploadBytes int64
}

// NewHandlers creates new API handlers
func NewHandlers(datasetService *service.DatasetService, jobService *service.JobService, maxUploadBytes int64) *Handlers {
	return &Handlers{
		datasetService: datasetService,
		jobService:     jobService,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadDataset accepts a similarity matrix as the multipart field
// "similarityFile"
func (h *Handlers) UploadDataset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		log.Error().Err(err).Msg("Failed to parse multipart form")
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = "Unnamed Dataset"
	}

	file, _, err := r.FormFile("similarityFile")
	if err != nil {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Missing required file: similarityFile", err)
		return
	}
	defer file.Close()

	dataset, err := h.datasetService.Upload(name, file)
	if err != nil {
		var inErr *sparse.InputFormatError
		if errors.As(err, &inErr) {
			utils.WriteErrorResponse(w, http.StatusBadRequest, "Malformed similarity matrix", err)
			return
		}
		log.Error().Err(err).Msg("Dataset upload failed")
		utils.WriteErrorResponse(w, http.StatusInternalServerError, "Dataset upload failed", err)
		return
	}

	response := models.UploadResponse{
		DatasetID: dataset.ID,
		Dataset:   *dataset,
	}
	utils.WriteSuccessResponseWithStatus(w, http.StatusCreated, "Dataset uploaded successfully", response)
}

// ListDatasets lists datasets one page at a time
func (h *Handlers) ListDatasets(w http.ResponseWriter, r *http.Request) {
	page, limit := utils.ExtractPaginationParams(r)
	datasets := h.datasetService.List()
	lo, hi := utils.PageBounds(page, limit, len(datasets))

	utils.WriteSuccessResponse(w, "Datasets retrieved successfully", models.PageResponse{
		Items: datasets[lo:hi],
		Page:  page,
		Limit: limit,
		Total: len(datasets),
	})
}

// GetDataset retrieves a specific dataset
func (h *Handlers) GetDataset(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]

	dataset, err := h.datasetService.Get(datasetID)
	if err != nil {
		writeServiceError(w, "Dataset not found", err)
		return
	}

	utils.WriteSuccessResponse(w, "Dataset retrieved successfully", dataset)
}

// DeleteDataset deletes a dataset that no queued or running job uses
func (h *Handlers) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]

	if err := h.jobService.DeleteDataset(datasetID); err != nil {
		writeServiceError(w, "Dataset deletion failed", err)
		return
	}

	utils.WriteSuccessResponse(w, "Dataset deleted successfully", nil)
}

// StartClustering queues an affinity propagation job on a dataset
func (h *Handlers) StartClustering(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]

	var req models.ClusteringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if fields := utils.ValidateStruct(req.Parameters); fields != nil {
		utils.WriteValidationErrorResponse(w, "Invalid clustering parameters", fields)
		return
	}

	job, err := h.jobService.Submit(datasetID, req.Parameters)
	if err != nil {
		writeServiceError(w, "Failed to start clustering", err)
		return
	}

	utils.WriteSuccessResponseWithStatus(w, http.StatusAccepted, "Clustering job queued", models.ClusteringResponse{
		JobID: job.ID,
		Job:   *job,
	})
}

// ListClusteringJobs lists the jobs of a dataset
func (h *Handlers) ListClusteringJobs(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]

	if _, err := h.datasetService.Get(datasetID); err != nil {
		writeServiceError(w, "Dataset not found", err)
		return
	}

	utils.WriteSuccessResponse(w, "Jobs retrieved successfully", h.jobService.List(datasetID))
}

// GetJob retrieves the status of a job
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	job, err := h.jobService.Get(jobID)
	if err != nil {
		writeServiceError(w, "Job not found", err)
		return
	}

	utils.WriteSuccessResponse(w, "Job retrieved successfully", job)
}

// CancelJob cancels a queued or running job
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	if err := h.jobService.Cancel(jobID); err != nil {
		writeServiceError(w, "Job cancellation failed", err)
		return
	}

	utils.WriteSuccessResponse(w, "Job cancelled successfully", nil)
}

// GetJobResult returns the exemplar of every item and the clusters they form
func (h *Handlers) GetJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	result, err := h.jobService.GetResult(jobID)
	if err != nil {
		writeServiceError(w, "Result not available", err)
		return
	}

	utils.WriteSuccessResponse(w, "Result retrieved successfully", models.ResultResponse{
		JobID:     jobID,
		Exemplars: result.Exemplars,
		Clusters:  result.Clusters(),
	})
}

// GetJobSummary evaluates the clustering of a completed job
func (h *Handlers) GetJobSummary(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	summary, err := h.jobService.Summary(jobID)
	if err != nil {
		writeServiceError(w, "Summary not available", err)
		return
	}

	utils.WriteSuccessResponse(w, "Summary retrieved successfully", models.SummaryResponse{
		JobID:   jobID,
		Summary: summary,
	})
}

// HealthCheck reports that the server is up
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, "Service is healthy", map[string]interface{}{
		"status":   "healthy",
		"datasets": len(h.datasetService.List()),
	})
}

// writeServiceError maps service errors onto HTTP status codes
func writeServiceError(w http.ResponseWriter, message string, err error) {
	var cfgErr *apcluster.ConfigurationError
	switch {
	case errors.Is(err, service.ErrDatasetNotFound), errors.Is(err, service.ErrJobNotFound):
		utils.WriteErrorResponse(w, http.StatusNotFound, message, err)
	case errors.Is(err, service.ErrJobNotComplete), errors.Is(err, service.ErrJobFinished),
		errors.Is(err, service.ErrDatasetInUse):
		utils.WriteErrorResponse(w, http.StatusConflict, message, err)
	case errors.As(err, &cfgErr):
		utils.WriteErrorResponse(w, http.StatusBadRequest, message, err)
	default:
		log.Error().Err(err).Msg(message)
		utils.WriteErrorResponse(w, http.StatusInternalServerError, message, err)
	}
}
