package parser

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// LoadGraph reads a node CSV and an edge CSV and validates the result
func LoadGraph(nodesPath, edgesPath string) (*models.Graph, error) {
	nf, err := os.Open(nodesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open nodes file: %w", err)
	}
	defer nf.Close()

	nodes, err := ReadNodesCSV(nf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", nodesPath, err)
	}

	ef, err := os.Open(edgesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open edges file: %w", err)
	}
	defer ef.Close()

	edges, err := ReadEdgesCSV(ef)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", edgesPath, err)
	}

	g := &models.Graph{Nodes: nodes, Edges: edges}
	if g.Nodes == nil {
		g.Nodes = []models.Node{}
	}
	if g.Edges == nil {
		g.Edges = []models.Edge{}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("nodes", nodesPath).
		Str("edges", edgesPath).
		Int("node_count", len(g.Nodes)).
		Int("edge_count", len(g.Edges)).
		Msg("Loaded graph")
	return g, nil
}

// LoadGraphFile reads a single-file graph, choosing the codec by extension
func LoadGraphFile(path string) (*models.Graph, error) {
	importer, err := ImporterFor(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph file: %w", err)
	}
	defer f.Close()

	g, err := importer.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("path", path).
		Str("format", importer.Format()).
		Int("node_count", len(g.Nodes)).
		Int("edge_count", len(g.Edges)).
		Msg("Loaded graph")
	return g, nil
}
