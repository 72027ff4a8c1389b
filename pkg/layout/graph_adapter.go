package layout

import (
	"gonum.org/v1/gonum/graph/simple"

	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// toUndirected converts a models.Graph to a gonum undirected graph.
// Node i of the input becomes gonum node int64(i). Self loops and
// duplicate edges are dropped since simple graphs cannot hold them.
func toUndirected(g *models.Graph) *simple.UndirectedGraph {
	ug := simple.NewUndirectedGraph()
	for i := range g.Nodes {
		ug.AddNode(simple.Node(int64(i)))
	}

	index := g.NodeIndex()
	for _, e := range g.Edges {
		from, okFrom := index[e.Source]
		to, okTo := index[e.Target]
		if !okFrom || !okTo || from == to {
			continue
		}
		if ug.HasEdgeBetween(int64(from), int64(to)) {
			continue
		}
		ug.SetEdge(simple.Edge{F: simple.Node(int64(from)), T: simple.Node(int64(to))})
	}

	return ug
}

// toDirected converts undirected graph to directed by adding both edge directions
func toDirected(undirected *simple.UndirectedGraph) *simple.DirectedGraph {
	directed := simple.NewDirectedGraph()

	nodes := undirected.Nodes()
	for nodes.Next() {
		directed.AddNode(nodes.Node())
	}

	edges := undirected.Edges()
	for edges.Next() {
		edge := edges.Edge()
		directed.SetEdge(simple.Edge{F: edge.From(), T: edge.To()})
		directed.SetEdge(simple.Edge{F: edge.To(), T: edge.From()})
	}

	return directed
}
