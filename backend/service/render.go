package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/graph-bundling-service/backend/cache"
	"github.com/gilchrisn/graph-bundling-service/backend/models"
	pkgmodels "github.com/gilchrisn/graph-bundling-service/pkg/models"
	"github.com/gilchrisn/graph-bundling-service/pkg/pipeline"
	"github.com/gilchrisn/graph-bundling-service/pkg/shading"
)

// ErrInvalidViewport is returned for out-of-range render requests
var ErrInvalidViewport = errors.New("invalid viewport")

const (
	maxRenderSize = 4096
	maxSpread     = 16
)

// Viewport is one pan/zoom render request
type Viewport struct {
	// Bounds is the visible data rectangle; nil fits the whole dataset
	Bounds *pkgmodels.Bounds
	Width  int
	Height int

	How    string
	Cmap   string
	Spread int

	DrawNodes   bool // graphs
	Categorical bool // points
	Hillshade   bool // rasters
}

// Validate checks the viewport limits
func (v Viewport) Validate() error {
	if v.Width < 1 || v.Width > maxRenderSize || v.Height < 1 || v.Height > maxRenderSize {
		return fmt.Errorf("%w: size %dx%d outside 1..%d", ErrInvalidViewport, v.Width, v.Height, maxRenderSize)
	}
	if v.Bounds != nil && !v.Bounds.Valid() {
		return fmt.Errorf("%w: bounds %s", ErrInvalidViewport, v.Bounds)
	}
	if v.Spread < 0 || v.Spread > maxSpread {
		return fmt.Errorf("%w: spread %d outside 0..%d", ErrInvalidViewport, v.Spread, maxSpread)
	}
	return nil
}

func (v Viewport) cacheKey(datasetID, jobID string) string {
	bounds := "fit"
	if v.Bounds != nil {
		bounds = fmt.Sprintf("%g,%g,%g,%g", v.Bounds.XMin, v.Bounds.XMax, v.Bounds.YMin, v.Bounds.YMax)
	}
	return cache.Key(datasetID, jobID, bounds,
		fmt.Sprintf("%dx%d", v.Width, v.Height), v.How, v.Cmap,
		fmt.Sprintf("spread=%d nodes=%t cat=%t hs=%t", v.Spread, v.DrawNodes, v.Categorical, v.Hillshade))
}

// RenderService re-aggregates and shades a dataset for each viewport
type RenderService struct {
	datasetService *DatasetService
	jobService     *JobService
	cache          cache.Cache
}

// NewRenderService creates a render service backed by c
func NewRenderService(datasetService *DatasetService, jobService *JobService, c cache.Cache) *RenderService {
	return &RenderService{
		datasetService: datasetService,
		jobService:     jobService,
		cache:          c,
	}
}

// Render returns the PNG for a viewport. For graph datasets a non-empty
// jobID draws that job's bundled paths; otherwise edges are drawn straight.
func (s *RenderService) Render(ctx context.Context, datasetID, jobID string, vp Viewport) ([]byte, error) {
	if err := vp.Validate(); err != nil {
		return nil, err
	}

	key := vp.cacheKey(datasetID, jobID)
	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		log.Warn().Err(err).Str("dataset_id", datasetID).Msg("Render cache lookup failed")
	} else if ok {
		log.Debug().Str("dataset_id", datasetID).Str("job_id", jobID).Msg("Render cache hit")
		return data, nil
	}

	dataset, err := s.datasetService.Get(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	opts, err := s.options(vp)
	if err != nil {
		return nil, err
	}

	var img image.Image
	switch dataset.Kind {
	case models.DatasetKindGraph:
		img, err = s.renderGraph(ctx, dataset, jobID, opts)
	case models.DatasetKindPoints:
		img, err = s.renderPoints(ctx, dataset, vp, opts)
	case models.DatasetKindRaster:
		img, err = s.renderRaster(ctx, dataset, vp, opts)
	default:
		err = fmt.Errorf("%w: unknown kind %q", ErrInvalidDataset, dataset.Kind)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := shading.EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	data := buf.Bytes()

	if err := s.cache.Set(ctx, key, data); err != nil {
		log.Warn().Err(err).Str("dataset_id", datasetID).Msg("Failed to cache render")
	}

	log.Debug().
		Str("dataset_id", datasetID).
		Str("job_id", jobID).
		Int("width", vp.Width).
		Int("height", vp.Height).
		Int("bytes", len(data)).
		Msg("Rendered viewport")

	return data, nil
}

func (s *RenderService) options(vp Viewport) (pipeline.RenderOptions, error) {
	opts := pipeline.DefaultRenderOptions()
	opts.Width, opts.Height = vp.Width, vp.Height
	opts.Bounds = vp.Bounds
	opts.Spread = vp.Spread
	opts.DrawNodes = vp.DrawNodes
	opts.Hillshade = vp.Hillshade

	if vp.How != "" {
		opts.Shade.How = vp.How
	}
	if vp.Cmap != "" {
		cmap, err := shading.LookupColorMap(vp.Cmap)
		if err != nil {
			return opts, fmt.Errorf("%w: %w", ErrInvalidViewport, err)
		}
		opts.Shade.Cmap = cmap
	}
	if err := opts.Shade.Validate(); err != nil {
		return opts, fmt.Errorf("%w: %w", ErrInvalidViewport, err)
	}
	return opts, nil
}

func (s *RenderService) renderGraph(ctx context.Context, dataset *models.Dataset, jobID string, opts pipeline.RenderOptions) (image.Image, error) {
	if jobID == "" {
		g, err := s.datasetService.Graph(ctx, dataset.ID)
		if err != nil {
			return nil, err
		}
		opts.Bundle = false
		img, _, err := pipeline.RenderGraph(ctx, g, opts)
		return img, err
	}

	job, err := s.jobService.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.DatasetID != dataset.ID {
		return nil, fmt.Errorf("%w: %s does not belong to dataset %s", ErrJobNotFound, jobID, dataset.ID)
	}
	output, err := s.jobService.GetResult(jobID)
	if err != nil {
		return nil, err
	}
	return pipeline.RenderPaths(output.Graph, output.Result.Paths, opts)
}

func (s *RenderService) renderPoints(ctx context.Context, dataset *models.Dataset, vp Viewport, opts pipeline.RenderOptions) (image.Image, error) {
	ps, err := s.datasetService.Points(ctx, dataset.ID)
	if err != nil {
		return nil, err
	}
	if vp.Categorical {
		categories := ps.Categories()
		sort.Strings(categories)
		var palette shading.ColorMap
		if vp.Cmap != "" {
			palette = opts.Shade.Cmap
		}
		opts.ColorKey = shading.CategoryColors(categories, palette)
		opts.Shade.Cmap = shading.Gray
	}
	return pipeline.RenderPoints(ps, opts)
}

func (s *RenderService) renderRaster(ctx context.Context, dataset *models.Dataset, vp Viewport, opts pipeline.RenderOptions) (image.Image, error) {
	grid, err := s.datasetService.Raster(ctx, dataset.ID)
	if err != nil {
		return nil, err
	}
	if vp.Cmap == "" {
		opts.Shade.Cmap = shading.Elevation
	}
	if vp.How == "" {
		opts.Shade.How = shading.HowLinear
	}
	opts.Shade.MinAlpha = opts.Shade.Alpha
	return pipeline.RenderRaster(grid, opts)
}

// CacheName reports which cache backend serves renders
func (s *RenderService) CacheName() string {
	return s.cache.Name()
}
