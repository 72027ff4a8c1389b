package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

func SetupRoutes(router *mux.Router, handlers *Handlers) {
	// API version prefix
	api := router.PathPrefix("/api/v1").Subrouter()

	// Dataset management endpoints
	datasets := api.PathPrefix("/datasets").Subrouter()
	datasets.HandleFunc("", handlers.ListDatasets).Methods("GET")
	datasets.HandleFunc("", handlers.UploadDataset).Methods("POST")
	datasets.HandleFunc("/{datasetId}", handlers.GetDataset).Methods("GET")
	datasets.HandleFunc("/{datasetId}", handlers.DeleteDataset).Methods("DELETE")

	// Bundling jobs
	bundles := datasets.PathPrefix("/{datasetId}/bundles").Subrouter()
	bundles.HandleFunc("", handlers.StartBundling).Methods("POST")
	bundles.HandleFunc("", handlers.ListBundlingJobs).Methods("GET")
	bundles.HandleFunc("/{jobId}", handlers.GetBundlingJob).Methods("GET")
	bundles.HandleFunc("/{jobId}", handlers.CancelBundlingJob).Methods("DELETE")
	bundles.HandleFunc("/{jobId}/paths", handlers.GetBundledPaths).Methods("GET")

	// Viewport rendering, re-invoked on every pan and zoom
	datasets.HandleFunc("/{datasetId}/render", handlers.Render).Methods("GET")

	// Health check endpoint
	api.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	// Preflight requests are answered by CORSMiddleware
	api.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}).Methods("OPTIONS")
}
