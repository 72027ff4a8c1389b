package models

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrUnknownNode is returned when an edge references a node ID that is not in the node set.
	ErrUnknownNode = errors.New("models: unknown node")

	// ErrDuplicateNode is returned when two nodes share the same ID.
	ErrDuplicateNode = errors.New("models: duplicate node id")

	// ErrInvalidWeight is returned for negative or non-finite edge weights.
	ErrInvalidWeight = errors.New("models: invalid edge weight")
)

// Node represents a single positioned node in the node set
type Node struct {
	ID         string            `json:"id" yaml:"id"`
	X          float64           `json:"x" yaml:"x"`
	Y          float64           `json:"y" yaml:"y"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"` // e.g. institution name
}

// Position returns the node coordinates as a vector
func (n Node) Position() r2.Vec {
	return r2.Vec{X: n.X, Y: n.Y}
}

// Edge represents a connection between two nodes
type Edge struct {
	Source string  `json:"source" yaml:"source"`
	Target string  `json:"target" yaml:"target"`
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"` // 0 is treated as 1
}

// EffectiveWeight returns the edge weight with the zero value mapped to 1
func (e Edge) EffectiveWeight() float64 {
	if e.Weight == 0 {
		return 1.0
	}
	return e.Weight
}

// Graph is an ordered node set plus an edge set referencing it.
// No uniqueness or acyclicity is required of the edges.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		Nodes: []Node{},
		Edges: []Edge{},
	}
}

// AddNode appends a node
func (g *Graph) AddNode(id string, x, y float64) {
	g.Nodes = append(g.Nodes, Node{ID: id, X: x, Y: y})
}

// AddEdge appends an edge with unit weight
func (g *Graph) AddEdge(source, target string) {
	g.Edges = append(g.Edges, Edge{Source: source, Target: target})
}

// NodeIndex maps node IDs to their position in Nodes
func (g *Graph) NodeIndex() map[string]int {
	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		index[n.ID] = i
	}
	return index
}

// Position looks up the coordinates of a node by ID
func (g *Graph) Position(id string) (r2.Vec, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n.Position(), true
		}
	}
	return r2.Vec{}, false
}

// Validate checks node ID uniqueness, edge endpoint references and that
// edge weights are finite and non-negative
func (g *Graph) Validate() error {
	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, exists := index[n.ID]; exists {
			return fmt.Errorf("node %q at index %d: %w", n.ID, i, ErrDuplicateNode)
		}
		if math.IsNaN(n.X) || math.IsNaN(n.Y) || math.IsInf(n.X, 0) || math.IsInf(n.Y, 0) {
			return fmt.Errorf("node %q has non-finite position (%g, %g)", n.ID, n.X, n.Y)
		}
		index[n.ID] = i
	}

	for i, e := range g.Edges {
		if _, ok := index[e.Source]; !ok {
			return fmt.Errorf("edge %d source %q: %w", i, e.Source, ErrUnknownNode)
		}
		if _, ok := index[e.Target]; !ok {
			return fmt.Errorf("edge %d target %q: %w", i, e.Target, ErrUnknownNode)
		}
		if e.Weight < 0 || math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			return fmt.Errorf("edge %d weight %g: %w", i, e.Weight, ErrInvalidWeight)
		}
	}

	return nil
}

// Bounds returns the bounding box of all node positions
func (g *Graph) Bounds() Bounds {
	b := EmptyBounds()
	for _, n := range g.Nodes {
		b = b.Expand(n.X, n.Y)
	}
	return b
}

// Clone returns a deep copy of the graph
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	copy(out.Edges, g.Edges)
	for i, n := range g.Nodes {
		out.Nodes[i] = n
		if n.Attributes != nil {
			attrs := make(map[string]string, len(n.Attributes))
			for k, v := range n.Attributes {
				attrs[k] = v
			}
			out.Nodes[i].Attributes = attrs
		}
	}
	return out
}

// SetAttribute sets a string attribute on node i, allocating the map if needed
func (g *Graph) SetAttribute(i int, key, value string) {
	if g.Nodes[i].Attributes == nil {
		g.Nodes[i].Attributes = make(map[string]string)
	}
	g.Nodes[i].Attributes[key] = value
}

// Point is a single census-style sample
type Point struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Value    float64 `json:"value,omitempty"`
	Category string  `json:"category,omitempty"`
}

// PointSet is a collection of samples
type PointSet struct {
	Points []Point `json:"points"`
}

// Bounds returns the bounding box of the samples
func (ps *PointSet) Bounds() Bounds {
	b := EmptyBounds()
	for _, p := range ps.Points {
		b = b.Expand(p.X, p.Y)
	}
	return b
}

// Categories returns the distinct categories in first-seen order
func (ps *PointSet) Categories() []string {
	seen := make(map[string]bool)
	var cats []string
	for _, p := range ps.Points {
		if !seen[p.Category] {
			seen[p.Category] = true
			cats = append(cats, p.Category)
		}
	}
	return cats
}
