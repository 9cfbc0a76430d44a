package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// SetupRoutes registers the REST API under /api/v1 and metrics under /metrics
func SetupRoutes(router *mux.Router, handlers *Handlers, gatherer prometheus.Gatherer) {
	api := router.PathPrefix("/api/v1").Subrouter()

	// Dataset management endpoints
	datasets := api.PathPrefix("/datasets").Subrouter()
	datasets.HandleFunc("", handlers.ListDatasets).Methods("GET")
	datasets.HandleFunc("", handlers.UploadDataset).Methods("POST")
	datasets.HandleFunc("/{datasetId}", handlers.GetDataset).Methods("GET")
	datasets.HandleFunc("/{datasetId}", handlers.DeleteDataset).Methods("DELETE")

	// Clustering endpoints
	datasets.HandleFunc("/{datasetId}/clustering", handlers.StartClustering).Methods("POST")
	datasets.HandleFunc("/{datasetId}/clustering", handlers.ListClusteringJobs).Methods("GET")

	// Job management endpoints
	jobs := api.PathPrefix("/jobs").Subrouter()
	jobs.HandleFunc("/{jobId}", handlers.GetJob).Methods("GET")
	jobs.HandleFunc("/{jobId}/cancel", handlers.CancelJob).Methods("POST")
	jobs.HandleFunc("/{jobId}/result", handlers.GetJobResult).Methods("GET")
	jobs.HandleFunc("/{jobId}/summary", handlers.GetJobSummary).Methods("GET")

	// Health check endpoint
	api.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
}

// NewHandler builds the complete HTTP handler: routes, middleware and CORS.
func NewHandler(handlers *Handlers, gatherer prometheus.Gatherer, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()
	SetupRoutes(router, handlers, gatherer)

	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           86400,
	})
	return c.Handler(router)
}
