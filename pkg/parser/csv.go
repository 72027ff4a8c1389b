package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/gilchrisn/graph-bundling-service/pkg/bundling"
	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

func vec(x, y float64) r2.Vec { return r2.Vec{X: x, Y: y} }

// table wraps csv.Reader with a lower-cased header index
type table struct {
	r      *csv.Reader
	header []string
	index  map[string]int
}

func newTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err == io.EOF {
		return nil, rowErrorf(1, "missing header")
	}
	if err != nil {
		return nil, wrapCSVError(err)
	}
	t := &table{r: cr, header: header, index: make(map[string]int, len(header))}
	for i, name := range header {
		t.index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return t, nil
}

// column finds the first header matching any of names
func (t *table) column(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := t.index[strings.ToLower(n)]; ok {
			return i, true
		}
	}
	return -1, false
}

// next returns the next record and its line number
func (t *table) next() ([]string, int, error) {
	rec, err := t.r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		return nil, 0, wrapCSVError(err)
	}
	line, _ := t.r.FieldPos(0)
	if len(rec) != len(t.header) {
		return nil, line, rowErrorf(line, "expected %d fields, got %d", len(t.header), len(rec))
	}
	return rec, line, nil
}

func wrapCSVError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &RowError{Line: pe.Line, Err: pe.Err}
	}
	return fmt.Errorf("failed to read csv: %w", err)
}

func parseFloat(rec []string, col, line int, name string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, rowErrorf(line, "invalid %s %q", name, rec[col])
	}
	return v, nil
}

// ReadNodesCSV reads id,x,y[,...] rows. Columns other than id/x/y become
// node attributes.
func ReadNodesCSV(r io.Reader) ([]models.Node, error) {
	t, err := newTable(r)
	if err != nil {
		return nil, err
	}
	idCol, okID := t.column("id", "name")
	xCol, okX := t.column("x")
	yCol, okY := t.column("y")
	if !okID || !okX || !okY {
		return nil, rowErrorf(1, "node header needs id, x and y columns, got %v", t.header)
	}

	var nodes []models.Node
	for {
		rec, line, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		n := models.Node{ID: strings.TrimSpace(rec[idCol])}
		if n.ID == "" {
			return nil, rowErrorf(line, "empty node id")
		}
		if n.X, err = parseFloat(rec, xCol, line, "x"); err != nil {
			return nil, err
		}
		if n.Y, err = parseFloat(rec, yCol, line, "y"); err != nil {
			return nil, err
		}
		for i, name := range t.header {
			if i == idCol || i == xCol || i == yCol {
				continue
			}
			if n.Attributes == nil {
				n.Attributes = make(map[string]string)
			}
			n.Attributes[strings.TrimSpace(name)] = rec[i]
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// ReadEdgesCSV reads source,target[,weight] rows
func ReadEdgesCSV(r io.Reader) ([]models.Edge, error) {
	t, err := newTable(r)
	if err != nil {
		return nil, err
	}
	srcCol, okS := t.column("source", "from")
	dstCol, okT := t.column("target", "to")
	if !okS || !okT {
		return nil, rowErrorf(1, "edge header needs source and target columns, got %v", t.header)
	}
	weightCol, hasWeight := t.column("weight")

	var edges []models.Edge
	for {
		rec, line, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		e := models.Edge{
			Source: strings.TrimSpace(rec[srcCol]),
			Target: strings.TrimSpace(rec[dstCol]),
		}
		if e.Source == "" || e.Target == "" {
			return nil, rowErrorf(line, "edge needs both endpoints")
		}
		if hasWeight && strings.TrimSpace(rec[weightCol]) != "" {
			if e.Weight, err = parseFloat(rec, weightCol, line, "weight"); err != nil {
				return nil, err
			}
			if e.Weight < 0 {
				return nil, rowErrorf(line, "negative weight %g", e.Weight)
			}
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// ReadPointsCSV reads point samples. valueCol and categoryCol may be empty;
// without a value column every point has value 1.
func ReadPointsCSV(r io.Reader, xCol, yCol, valueCol, categoryCol string) (*models.PointSet, error) {
	t, err := newTable(r)
	if err != nil {
		return nil, err
	}
	xi, okX := t.column(xCol)
	yi, okY := t.column(yCol)
	if !okX || !okY {
		return nil, rowErrorf(1, "point header needs %q and %q columns, got %v", xCol, yCol, t.header)
	}
	vi, ci := -1, -1
	if valueCol != "" {
		var ok bool
		if vi, ok = t.column(valueCol); !ok {
			return nil, rowErrorf(1, "missing value column %q", valueCol)
		}
	}
	if categoryCol != "" {
		var ok bool
		if ci, ok = t.column(categoryCol); !ok {
			return nil, rowErrorf(1, "missing category column %q", categoryCol)
		}
	}

	ps := &models.PointSet{}
	for {
		rec, line, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		p := models.Point{Value: 1}
		if p.X, err = parseFloat(rec, xi, line, xCol); err != nil {
			return nil, err
		}
		if p.Y, err = parseFloat(rec, yi, line, yCol); err != nil {
			return nil, err
		}
		if vi >= 0 {
			if p.Value, err = parseFloat(rec, vi, line, valueCol); err != nil {
				return nil, err
			}
		}
		if ci >= 0 {
			p.Category = strings.TrimSpace(rec[ci])
		}
		ps.Points = append(ps.Points, p)
	}
	return ps, nil
}

// PathCSVExporter writes x,y,edge rows with a blank row between paths
type PathCSVExporter struct{}

// NewPathCSVExporter creates a CSV path exporter
func NewPathCSVExporter() *PathCSVExporter {
	return &PathCSVExporter{}
}

// Format returns the exporter format identifier
func (e *PathCSVExporter) Format() string {
	return "csv"
}

// ExportPaths writes the paths
func (e *PathCSVExporter) ExportPaths(paths []bundling.Path, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y", "edge"}); err != nil {
		return err
	}
	for i, p := range paths {
		if i > 0 {
			if err := cw.Write(nil); err != nil {
				return err
			}
		}
		edge := strconv.Itoa(p.EdgeIndex)
		for _, v := range p.Points {
			rec := []string{
				strconv.FormatFloat(v.X, 'g', -1, 64),
				strconv.FormatFloat(v.Y, 'g', -1, 64),
				edge,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
