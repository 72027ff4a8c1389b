package models

import (
	"time"

	"github.com/gilchrisn/graph-bundling-service/pkg/bundling"
	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// Dataset represents an uploaded graph, point set or raster
type Dataset struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Kind      DatasetKind     `json:"kind"`
	Status    DatasetStatus   `json:"status"`
	Metadata  DatasetMetadata `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`

	Payload DatasetPayload `json:"-"`
}

type DatasetKind string

const (
	DatasetKindGraph  DatasetKind = "graph"
	DatasetKindPoints DatasetKind = "points"
	DatasetKindRaster DatasetKind = "raster"
)

type DatasetStatus string

const (
	DatasetStatusReady     DatasetStatus = "ready"
	DatasetStatusCorrupted DatasetStatus = "corrupted"
)

type DatasetMetadata struct {
	NodeCount  int           `json:"nodeCount,omitempty"`
	EdgeCount  int           `json:"edgeCount,omitempty"`
	PointCount int           `json:"pointCount,omitempty"`
	Categories []string      `json:"categories,omitempty"`
	Rows       int           `json:"rows,omitempty"`
	Cols       int           `json:"cols,omitempty"`
	Bounds     models.Bounds `json:"bounds"`
	FileSize   int64         `json:"fileSize"`
}

// DatasetPayload holds exactly one of the data kinds. Rasters keep their
// ESRI ASCII source so missing cells survive JSON storage.
type DatasetPayload struct {
	Graph       *models.Graph    `json:"graph,omitempty"`
	Points      *models.PointSet `json:"points,omitempty"`
	RasterASCII string           `json:"rasterAscii,omitempty"`
}

// Job represents a bundling job
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

// JobParameters overrides the server's bundling defaults; nil fields keep them
type JobParameters struct {
	InitialBandwidth *float64 `json:"initialBandwidth,omitempty"`
	Decay            *float64 `json:"decay,omitempty"`
	MaxIterations    *int     `json:"maxIterations,omitempty"`
	Samples          *int     `json:"samples,omitempty"`
	Damping          *float64 `json:"damping,omitempty"`
	Tension          *float64 `json:"tension,omitempty"`
	Tolerance        *float64 `json:"tolerance,omitempty"`
	Normalize        *bool    `json:"normalize,omitempty"`

	// Layout runs before bundling: none, random, circular, force or mds
	Layout *string `json:"layout,omitempty"`
}

// Apply overlays the set parameters on base
func (p JobParameters) Apply(base bundling.Config) bundling.Config {
	cfg := base
	if p.InitialBandwidth != nil {
		cfg.InitialBandwidth = *p.InitialBandwidth
	}
	if p.Decay != nil {
		cfg.Decay = *p.Decay
	}
	if p.MaxIterations != nil {
		cfg.MaxIterations = *p.MaxIterations
	}
	if p.Samples != nil {
		cfg.Samples = *p.Samples
	}
	if p.Damping != nil {
		cfg.Damping = *p.Damping
	}
	if p.Tension != nil {
		cfg.Tension = *p.Tension
	}
	if p.Tolerance != nil {
		cfg.Tolerance = *p.Tolerance
	}
	if p.Normalize != nil {
		cfg.Normalize = *p.Normalize
	}
	return cfg
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Finished reports whether the job can no longer change state
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

type JobProgress struct {
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
}

type JobResult struct {
	Iterations       int     `json:"iterations"`
	Converged        bool    `json:"converged"`
	FinalBandwidth   float64 `json:"finalBandwidth"`
	MeanDisplacement float64 `json:"meanDisplacement"`
	MaxDisplacement  float64 `json:"maxDisplacement"`
	PathCount        int     `json:"pathCount"`
	ProcessingTimeMS int64   `json:"processingTimeMS"`
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

type BundleResponse struct {
	JobID string `json:"jobId"`
	Job   Job    `json:"job"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Cache     string    `json:"cache"`
}
