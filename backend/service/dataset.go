package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/graph-bundling-service/backend/models"
	"github.com/gilchrisn/graph-bundling-service/backend/storage"
	pkgmodels "github.com/gilchrisn/graph-bundling-service/pkg/models"
	"github.com/gilchrisn/graph-bundling-service/pkg/parser"
	"github.com/gilchrisn/graph-bundling-service/pkg/raster"
)

// ErrInvalidDataset is returned for unparseable uploads and for datasets of
// the wrong kind for an operation
var ErrInvalidDataset = errors.New("invalid dataset")

// PointColumns names the CSV columns of a point upload. X and Y default to
// "x" and "y"; Value and Category are optional.
type PointColumns struct {
	X        string
	Y        string
	Value    string
	Category string
}

func (c PointColumns) withDefaults() PointColumns {
	if c.X == "" {
		c.X = "x"
	}
	if c.Y == "" {
		c.Y = "y"
	}
	return c
}

// DatasetService handles dataset operations
type DatasetService struct {
	store *storage.Store
}

// NewDatasetService creates a new dataset service
func NewDatasetService(store *storage.Store) *DatasetService {
	return &DatasetService{store: store}
}

// countingReader records how many bytes an upload contained
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func newDataset(name string, kind models.DatasetKind) *models.Dataset {
	now := time.Now()
	return &models.Dataset{
		ID:        uuid.New().String(),
		Name:      name,
		Kind:      kind,
		Status:    models.DatasetStatusReady,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *DatasetService) save(ctx context.Context, dataset *models.Dataset) (*models.Dataset, error) {
	if err := s.store.Put(ctx, dataset); err != nil {
		return nil, err
	}

	log.Info().
		Str("dataset_id", dataset.ID).
		Str("name", dataset.Name).
		Str("kind", string(dataset.Kind)).
		Int64("size_bytes", dataset.Metadata.FileSize).
		Msg("Dataset upload complete")

	return dataset, nil
}

func graphMetadata(g *pkgmodels.Graph, size int64) models.DatasetMetadata {
	return models.DatasetMetadata{
		NodeCount: len(g.Nodes),
		EdgeCount: len(g.Edges),
		Bounds:    g.Bounds(),
		FileSize:  size,
	}
}

// CreateGraph parses a single graph file. The codec is chosen from the
// filename extension (.yaml, .json or an edge list).
func (s *DatasetService) CreateGraph(ctx context.Context, name, filename string, r io.Reader) (*models.Dataset, error) {
	importer, err := parser.ImporterFor(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}

	cr := &countingReader{r: r}
	g, err := importer.Parse(cr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}

	dataset := newDataset(name, models.DatasetKindGraph)
	dataset.Metadata = graphMetadata(g, cr.n)
	dataset.Payload.Graph = g
	return s.save(ctx, dataset)
}

// CreateGraphCSV builds a graph from a nodes table and an edges table
func (s *DatasetService) CreateGraphCSV(ctx context.Context, name string, nodesCSV, edgesCSV io.Reader) (*models.Dataset, error) {
	nr := &countingReader{r: nodesCSV}
	nodes, err := parser.ReadNodesCSV(nr)
	if err != nil {
		return nil, fmt.Errorf("%w: nodes: %w", ErrInvalidDataset, err)
	}
	er := &countingReader{r: edgesCSV}
	edges, err := parser.ReadEdgesCSV(er)
	if err != nil {
		return nil, fmt.Errorf("%w: edges: %w", ErrInvalidDataset, err)
	}

	g := &pkgmodels.Graph{Nodes: nodes, Edges: edges}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}

	dataset := newDataset(name, models.DatasetKindGraph)
	dataset.Metadata = graphMetadata(g, nr.n+er.n)
	dataset.Payload.Graph = g
	return s.save(ctx, dataset)
}

// CreatePoints parses a point table
func (s *DatasetService) CreatePoints(ctx context.Context, name string, r io.Reader, cols PointColumns) (*models.Dataset, error) {
	cols = cols.withDefaults()
	cr := &countingReader{r: r}
	ps, err := parser.ReadPointsCSV(cr, cols.X, cols.Y, cols.Value, cols.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}
	if len(ps.Points) == 0 {
		return nil, fmt.Errorf("%w: no points", ErrInvalidDataset)
	}

	categories := ps.Categories()
	sort.Strings(categories)
	if len(categories) == 1 && categories[0] == "" {
		categories = nil
	}

	dataset := newDataset(name, models.DatasetKindPoints)
	dataset.Metadata = models.DatasetMetadata{
		PointCount: len(ps.Points),
		Categories: categories,
		Bounds:     ps.Bounds(),
		FileSize:   cr.n,
	}
	dataset.Payload.Points = ps
	return s.save(ctx, dataset)
}

// CreateRaster parses an ESRI ASCII grid. The source text is stored as is.
func (s *DatasetService) CreateRaster(ctx context.Context, name string, r io.Reader) (*models.Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read raster: %w", err)
	}
	grid, err := raster.ReadASCII(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}

	rows, cols := grid.Data.Dims()
	dataset := newDataset(name, models.DatasetKindRaster)
	dataset.Metadata = models.DatasetMetadata{
		Rows:     rows,
		Cols:     cols,
		Bounds:   grid.Bounds,
		FileSize: int64(len(data)),
	}
	dataset.Payload.RasterASCII = string(data)
	return s.save(ctx, dataset)
}

// Get retrieves a dataset by ID, payload included
func (s *DatasetService) Get(ctx context.Context, datasetID string) (*models.Dataset, error) {
	return s.store.Get(ctx, datasetID)
}

// List returns all datasets without payloads
func (s *DatasetService) List(ctx context.Context) ([]*models.Dataset, error) {
	return s.store.List(ctx)
}

// Delete removes a dataset
func (s *DatasetService) Delete(ctx context.Context, datasetID string) error {
	if err := s.store.Delete(ctx, datasetID); err != nil {
		return err
	}

	log.Info().
		Str("dataset_id", datasetID).
		Msg("Dataset deleted")

	return nil
}

// UpdateStatus updates dataset status
func (s *DatasetService) UpdateStatus(ctx context.Context, datasetID string, status models.DatasetStatus) error {
	dataset, err := s.store.Get(ctx, datasetID)
	if err != nil {
		return err
	}
	dataset.Status = status
	dataset.UpdatedAt = time.Now()
	return s.store.Put(ctx, dataset)
}

func (s *DatasetService) load(ctx context.Context, datasetID string, kind models.DatasetKind) (*models.Dataset, error) {
	dataset, err := s.store.Get(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if dataset.Kind != kind {
		return nil, fmt.Errorf("%w: dataset %s is a %s dataset, not %s", ErrInvalidDataset, datasetID, dataset.Kind, kind)
	}
	return dataset, nil
}

// Graph returns the graph of a graph dataset
func (s *DatasetService) Graph(ctx context.Context, datasetID string) (*pkgmodels.Graph, error) {
	dataset, err := s.load(ctx, datasetID, models.DatasetKindGraph)
	if err != nil {
		return nil, err
	}
	if dataset.Payload.Graph == nil {
		return nil, fmt.Errorf("%w: dataset %s has no graph", ErrInvalidDataset, datasetID)
	}
	return dataset.Payload.Graph, nil
}

// Points returns the samples of a point dataset
func (s *DatasetService) Points(ctx context.Context, datasetID string) (*pkgmodels.PointSet, error) {
	dataset, err := s.load(ctx, datasetID, models.DatasetKindPoints)
	if err != nil {
		return nil, err
	}
	if dataset.Payload.Points == nil {
		return nil, fmt.Errorf("%w: dataset %s has no points", ErrInvalidDataset, datasetID)
	}
	return dataset.Payload.Points, nil
}

// Raster re-parses the stored grid of a raster dataset
func (s *DatasetService) Raster(ctx context.Context, datasetID string) (*raster.Grid, error) {
	dataset, err := s.load(ctx, datasetID, models.DatasetKindRaster)
	if err != nil {
		return nil, err
	}
	grid, err := raster.ReadASCII(strings.NewReader(dataset.Payload.RasterASCII))
	if err != nil {
		log.Error().
			Str("dataset_id", datasetID).
			Err(err).
			Msg("Stored raster no longer parses")
		if statusErr := s.UpdateStatus(ctx, datasetID, models.DatasetStatusCorrupted); statusErr != nil {
			log.Warn().Str("dataset_id", datasetID).Err(statusErr).Msg("Failed to mark dataset corrupted")
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}
	return grid, nil
}
