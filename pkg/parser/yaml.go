package parser

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// YAMLCodec handles graph import/export as YAML
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse imports a graph from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*models.Graph, error) {
	g := models.NewGraph()
	if err := yaml.NewDecoder(r).Decode(g); err != nil {
		if err == io.EOF {
			return g, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return g, nil
}

// Export writes a graph as YAML
func (c *YAMLCodec) Export(g *models.Graph, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(g); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}
