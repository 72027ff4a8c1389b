// Package parser reads node, edge and point data and writes bundled paths.
package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gilchrisn/graph-bundling-service/pkg/bundling"
	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// ErrMalformedRow is matched by every RowError
var ErrMalformedRow = errors.New("parser: malformed row")

// RowError reports a bad input row with its 1-based line number
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrMalformedRow) true for any row error
func (e *RowError) Is(target error) bool { return target == ErrMalformedRow }

func rowErrorf(line int, format string, args ...any) error {
	return &RowError{Line: line, Err: fmt.Errorf(format, args...)}
}

// Importer interface for importing graphs from various formats
type Importer interface {
	Parse(r io.Reader) (*models.Graph, error)
	Format() string
}

// Exporter interface for exporting graphs to various formats
type Exporter interface {
	Export(g *models.Graph, w io.Writer) error
	Format() string
}

// PathExporter writes bundled paths
type PathExporter interface {
	ExportPaths(paths []bundling.Path, w io.Writer) error
	Format() string
}

// ImporterFor picks a graph codec from a file extension
func ImporterFor(path string) (Importer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYAMLCodec(), nil
	case ".json":
		return NewJSONCodec(), nil
	case ".txt", ".edges", ".edgelist":
		return NewEdgeListCodec(), nil
	default:
		return nil, fmt.Errorf("no importer for %q", path)
	}
}

// PathExporterFor returns the exporter for "json" or "csv"
func PathExporterFor(format string) (PathExporter, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return NewJSONCodec(), nil
	case "csv":
		return NewPathCSVExporter(), nil
	default:
		return nil, fmt.Errorf("unknown path format %q", format)
	}
}
