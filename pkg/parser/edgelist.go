package parser

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// EdgeListCodec reads whitespace-separated "from to [weight]" lines. Nodes
// are created from the endpoints in first-seen order, all at the origin, so
// the graph needs a layout before bundling.
type EdgeListCodec struct{}

// NewEdgeListCodec creates an edge list codec
func NewEdgeListCodec() *EdgeListCodec {
	return &EdgeListCodec{}
}

// Format returns the codec format identifier
func (c *EdgeListCodec) Format() string {
	return "edgelist"
}

// Parse reads an edge list; blank lines and # comments are skipped
func (c *EdgeListCodec) Parse(r io.Reader) (*models.Graph, error) {
	g := models.NewGraph()
	seen := make(map[string]bool)
	addNode := func(id string) {
		if !seen[id] {
			seen[id] = true
			g.AddNode(id, 0, 0)
		}
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			return nil, rowErrorf(lineNo, "expected at least 2 fields, got %d", len(parts))
		}

		from, to := parts[0], parts[1]
		weight := 0.0
		if len(parts) >= 3 {
			w, err := strconv.ParseFloat(parts[2], 64)
			if err != nil || w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
				return nil, rowErrorf(lineNo, "invalid weight %q", parts[2])
			}
			weight = w
		}

		addNode(from)
		addNode(to)
		g.Edges = append(g.Edges, models.Edge{Source: from, Target: to, Weight: weight})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edge list: %w", err)
	}
	return g, nil
}

// Export writes "source target weight" lines
func (c *EdgeListCodec) Export(g *models.Graph, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range g.Edges {
		if _, err := fmt.Fprintf(bw, "%s %s %g\n", e.Source, e.Target, e.EffectiveWeight()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
