package parser

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"

	"github.com/gilchrisn/graph-bundling-service/pkg/bundling"
	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// JSONCodec handles graph import/export and path export as JSON
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse imports a graph from JSON
func (c *JSONCodec) Parse(r io.Reader) (*models.Graph, error) {
	g := models.NewGraph()
	if err := sonic.ConfigStd.NewDecoder(r).Decode(g); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return g, nil
}

// Export writes a graph as JSON
func (c *JSONCodec) Export(g *models.Graph, w io.Writer) error {
	if err := sonic.ConfigStd.NewEncoder(w).Encode(g); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

type jsonPath struct {
	Edge   int          `json:"edge"`
	Source string       `json:"source"`
	Target string       `json:"target"`
	Points [][2]float64 `json:"points"`
}

type jsonPaths struct {
	Paths []jsonPath `json:"paths"`
}

// ExportPaths writes {"paths":[{"edge":i,"source":..,"target":..,"points":[[x,y],...]}]}
func (c *JSONCodec) ExportPaths(paths []bundling.Path, w io.Writer) error {
	out := jsonPaths{Paths: make([]jsonPath, 0, len(paths))}
	for _, p := range paths {
		jp := jsonPath{
			Edge:   p.EdgeIndex,
			Source: p.Source,
			Target: p.Target,
			Points: make([][2]float64, len(p.Points)),
		}
		for i, v := range p.Points {
			jp.Points[i] = [2]float64{v.X, v.Y}
		}
		out.Paths = append(out.Paths, jp)
	}
	if err := sonic.ConfigStd.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("failed to encode paths: %w", err)
	}
	return nil
}

// ParsePaths reads paths written by ExportPaths
func (c *JSONCodec) ParsePaths(r io.Reader) ([]bundling.Path, error) {
	var in jsonPaths
	if err := sonic.ConfigStd.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to parse paths: %w", err)
	}
	paths := make([]bundling.Path, 0, len(in.Paths))
	for _, jp := range in.Paths {
		p := bundling.Path{EdgeIndex: jp.Edge, Source: jp.Source, Target: jp.Target}
		for _, xy := range jp.Points {
			p.Points = append(p.Points, vec(xy[0], xy[1]))
		}
		paths = append(paths, p)
	}
	return paths, nil
}
