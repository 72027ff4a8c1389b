package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/graph-bundling-service/backend/models"
	"github.com/gilchrisn/graph-bundling-service/backend/service"
	"github.com/gilchrisn/graph-bundling-service/backend/storage"
	"github.com/gilchrisn/graph-bundling-service/backend/utils"
	"github.com/gilchrisn/graph-bundling-service/pkg/aggregation"
	"github.com/gilchrisn/graph-bundling-service/pkg/bundling"
	pkgmodels "github.com/gilchrisn/graph-bundling-service/pkg/models"
	"github.com/gilchrisn/graph-bundling-service/pkg/parser"
	"github.com/gilchrisn/graph-bundling-service/pkg/shading"
)

const (
	defaultRenderSize = 512
	defaultUploadSize = 100 << 20 // 100MB
)

// Handlers contains HTTP request handlers
type Handlers struct {
	datasetService *service.DatasetService
	jobService     *service.JobService
	renderService  *service.RenderService
	maxUploadSize  int64
}

// NewHandlers creates new API handlers. maxUploadSize <= 0 uses 100MB.
func NewHandlers(datasetService *service.DatasetService, jobService *service.JobService, renderService *service.RenderService, maxUploadSize int64) *Handlers {
	if maxUploadSize <= 0 {
		maxUploadSize = defaultUploadSize
	}
	return &Handlers{
		datasetService: datasetService,
		jobService:     jobService,
		renderService:  renderService,
		maxUploadSize:  maxUploadSize,
	}
}

// statusFor maps service and library errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, service.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrResultNotReady):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidDataset),
		errors.Is(err, service.ErrInvalidParameters),
		errors.Is(err, service.ErrInvalidViewport),
		errors.Is(err, bundling.ErrInvalidConfig),
		errors.Is(err, parser.ErrMalformedRow),
		errors.Is(err, shading.ErrInvalidOptions),
		errors.Is(err, aggregation.ErrInvalidCanvas),
		errors.Is(err, pkgmodels.ErrUnknownNode),
		errors.Is(err, pkgmodels.ErrDuplicateNode),
		errors.Is(err, pkgmodels.ErrInvalidWeight):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, message string, err error) {
	utils.WriteErrorResponse(w, statusFor(err), message, err)
}

// UploadDataset handles dataset upload. The "kind" form field selects
// graph (default), points or raster.
func (h *Handlers) UploadDataset(w http.ResponseWriter, r *http.Request) {
	log.Info().Msg("Dataset upload request received")

	if !utils.ValidateContentType(r, "multipart/form-data") {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Content-Type must be multipart/form-data", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		log.Error().Err(err).Msg("Failed to parse multipart form")
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	name := r.FormValue("name")
	if name == "" {
		name = "Unnamed Dataset"
	}

	var (
		dataset *models.Dataset
		err     error
	)
	ctx := r.Context()

	switch kind := models.DatasetKind(r.FormValue("kind")); kind {
	case "", models.DatasetKindGraph:
		if file, header, ferr := r.FormFile("graphFile"); ferr == nil {
			defer file.Close()
			dataset, err = h.datasetService.CreateGraph(ctx, name, header.Filename, file)
			break
		}
		nodes, ok := h.formFile(w, r, "nodesFile")
		if !ok {
			return
		}
		defer nodes.Close()
		edges, ok := h.formFile(w, r, "edgesFile")
		if !ok {
			return
		}
		defer edges.Close()
		dataset, err = h.datasetService.CreateGraphCSV(ctx, name, nodes, edges)

	case models.DatasetKindPoints:
		file, ok := h.formFile(w, r, "pointsFile")
		if !ok {
			return
		}
		defer file.Close()
		dataset, err = h.datasetService.CreatePoints(ctx, name, file, service.PointColumns{
			X:        r.FormValue("xColumn"),
			Y:        r.FormValue("yColumn"),
			Value:    r.FormValue("valueColumn"),
			Category: r.FormValue("categoryColumn"),
		})

	case models.DatasetKindRaster:
		file, ok := h.formFile(w, r, "rasterFile")
		if !ok {
			return
		}
		defer file.Close()
		dataset, err = h.datasetService.CreateRaster(ctx, name, file)

	default:
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid kind, must be 'graph', 'points' or 'raster'", nil)
		return
	}

	if err != nil {
		log.Error().Err(err).Msg("Dataset upload failed")
		writeServiceError(w, "Dataset upload failed", err)
		return
	}

	log.Info().
		Str("dataset_id", dataset.ID).
		Str("name", dataset.Name).
		Msg("Dataset uploaded successfully")

	response := models.UploadResponse{
		DatasetID: dataset.ID,
		Dataset:   *dataset,
	}
	utils.WriteSuccessResponseWithStatus(w, http.StatusCreated, "Dataset uploaded successfully", response)
}

func (h *Handlers) formFile(w http.ResponseWriter, r *http.Request, field string) (multipart.File, bool) {
	file, _, err := r.FormFile(field)
	if err != nil {
		log.Error().
			Str("field", field).
			Err(err).
			Msg("Missing required file")
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Missing required file: "+field, err)
		return nil, false
	}
	return file, true
}

// ListDatasets lists datasets, paginated with ?page and ?limit
func (h *Handlers) ListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.datasetService.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list datasets")
		writeServiceError(w, "Failed to list datasets", err)
		return
	}

	page, limit := utils.ExtractPaginationParams(r)
	start, end := utils.Paginate(len(datasets), page, limit)
	utils.WriteSuccessResponse(w, "Datasets retrieved successfully", datasets[start:end])
}

// GetDataset retrieves a specific dataset
func (h *Handlers) GetDataset(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]

	dataset, err := h.datasetService.Get(r.Context(), datasetID)
	if err != nil {
		log.Error().
			Str("dataset_id", datasetID).
			Err(err).
			Msg("Dataset not found")
		writeServiceError(w, "Dataset not found", err)
		return
	}

	utils.WriteSuccessResponse(w, "Dataset retrieved successfully", dataset)
}

// DeleteDataset cancels the dataset's active jobs and deletes it
func (h *Handlers) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]

	for _, job := range h.jobService.GetActiveJobsForDataset(datasetID) {
		if err := h.jobService.Cancel(job.ID); err != nil {
			log.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to cancel job of deleted dataset")
		}
	}

	if err := h.datasetService.Delete(r.Context(), datasetID); err != nil {
		log.Error().
			Str("dataset_id", datasetID).
			Err(err).
			Msg("Dataset deletion failed")
		writeServiceError(w, "Dataset deletion failed", err)
		return
	}

	utils.WriteSuccessResponse(w, "Dataset deleted successfully", nil)
}

// StartBundling submits a bundling job. The JSON body holds optional
// parameter overrides; an empty body uses the server defaults.
func (h *Handlers) StartBundling(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]

	var req struct {
		Parameters models.JobParameters `json:"parameters"`
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := sonic.ConfigStd.Unmarshal(body, &req); err != nil {
			log.Error().Err(err).Msg("Invalid request body")
			utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	job, err := h.jobService.Submit(r.Context(), datasetID, req.Parameters)
	if err != nil {
		log.Error().
			Str("dataset_id", datasetID).
			Err(err).
			Msg("Failed to submit bundling job")
		writeServiceError(w, "Failed to start bundling", err)
		return
	}

	response := models.BundleResponse{
		JobID: job.ID,
		Job:   *job,
	}
	utils.WriteSuccessResponseWithStatus(w, http.StatusAccepted, "Bundling job started", response)
}

// ListBundlingJobs lists the jobs of a dataset
func (h *Handlers) ListBundlingJobs(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]
	utils.WriteSuccessResponse(w, "Jobs retrieved successfully", h.jobService.List(datasetID))
}

// jobForDataset loads a job and checks it belongs to the dataset in the URL
func (h *Handlers) jobForDataset(w http.ResponseWriter, r *http.Request) (*models.Job, bool) {
	vars := mux.Vars(r)
	datasetID, jobID := vars["datasetId"], vars["jobId"]

	job, err := h.jobService.Get(jobID)
	if err == nil && job.DatasetID != datasetID {
		err = fmt.Errorf("%w: %s does not belong to dataset %s", service.ErrJobNotFound, jobID, datasetID)
	}
	if err != nil {
		log.Error().
			Str("dataset_id", datasetID).
			Str("job_id", jobID).
			Err(err).
			Msg("Job not found")
		writeServiceError(w, "Job not found", err)
		return nil, false
	}
	return job, true
}

// GetBundlingJob returns job status and progress
func (h *Handlers) GetBundlingJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobForDataset(w, r)
	if !ok {
		return
	}
	utils.WriteSuccessResponse(w, "Job retrieved successfully", job)
}

// CancelBundlingJob cancels a queued or running job
func (h *Handlers) CancelBundlingJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobForDataset(w, r)
	if !ok {
		return
	}
	if err := h.jobService.Cancel(job.ID); err != nil {
		writeServiceError(w, "Failed to cancel job", err)
		return
	}
	utils.WriteSuccessResponse(w, "Job cancelled successfully", nil)
}

// GetBundledPaths exports a completed job's polylines as JSON or CSV
func (h *Handlers) GetBundledPaths(w http.ResponseWriter, r *http.Request) {
	job, ok := h.jobForDataset(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	exporter, err := parser.PathExporterFor(format)
	if err != nil {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid format, must be 'json' or 'csv'", err)
		return
	}

	output, err := h.jobService.GetResult(job.ID)
	if err != nil {
		writeServiceError(w, "Bundling result not available", err)
		return
	}

	contentType := "application/json"
	if exporter.Format() == "csv" {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.ID+"."+exporter.Format()))
	if err := exporter.ExportPaths(output.Result.Paths, w); err != nil {
		log.Error().Str("job_id", job.ID).Err(err).Msg("Failed to export paths")
	}
}

// parseViewport reads the render query parameters
func parseViewport(r *http.Request) (service.Viewport, error) {
	q := r.URL.Query()
	vp := service.Viewport{
		Width:  defaultRenderSize,
		Height: defaultRenderSize,
		How:    q.Get("how"),
		Cmap:   q.Get("cmap"),
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"width", &vp.Width},
		{"height", &vp.Height},
		{"spread", &vp.Spread},
	}
	for _, p := range ints {
		if raw := q.Get(p.name); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return vp, fmt.Errorf("%w: %s=%q", service.ErrInvalidViewport, p.name, raw)
			}
			*p.dst = v
		}
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"nodes", &vp.DrawNodes},
		{"categorical", &vp.Categorical},
		{"hillshade", &vp.Hillshade},
	}
	for _, p := range bools {
		if raw := q.Get(p.name); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return vp, fmt.Errorf("%w: %s=%q", service.ErrInvalidViewport, p.name, raw)
			}
			*p.dst = v
		}
	}

	names := []string{"xmin", "xmax", "ymin", "ymax"}
	var coords [4]float64
	given := 0
	for i, name := range names {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return vp, fmt.Errorf("%w: %s=%q", service.ErrInvalidViewport, name, raw)
		}
		coords[i] = v
		given++
	}
	switch given {
	case 0:
	case len(names):
		vp.Bounds = &pkgmodels.Bounds{XMin: coords[0], XMax: coords[1], YMin: coords[2], YMax: coords[3]}
	default:
		return vp, fmt.Errorf("%w: xmin, xmax, ymin and ymax must be given together", service.ErrInvalidViewport)
	}

	return vp, nil
}

// Render returns the PNG for one viewport of a dataset
func (h *Handlers) Render(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["datasetId"]
	jobID := r.URL.Query().Get("jobId")

	vp, err := parseViewport(r)
	if err != nil {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid viewport", err)
		return
	}

	data, err := h.renderService.Render(r.Context(), datasetID, jobID, vp)
	if err != nil {
		log.Error().
			Str("dataset_id", datasetID).
			Str("job_id", jobID).
			Err(err).
			Msg("Render failed")
		writeServiceError(w, "Render failed", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HealthCheck returns service health status
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Cache:     h.renderService.CacheName(),
	}
	utils.WriteSuccessResponse(w, "Service is healthy", response)
}
