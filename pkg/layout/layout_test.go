package layout

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"testing"

	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// twoCliques builds two K4 components joined by a single bridge edge
func twoCliques() *models.Graph {
	g := models.NewGraph()
	for i := 0; i < 8; i++ {
		g.AddNode(fmt.Sprintf("n%d", i), 0, 0)
	}
	for _, base := range []int{0, 4} {
		for i := 0; i < 4; i++ {
			for j := i + 1; j < 4; j++ {
				g.AddEdge(fmt.Sprintf("n%d", base+i), fmt.Sprintf("n%d", base+j))
			}
		}
	}
	g.AddEdge("n3", "n4")
	return g
}

func TestCircular(t *testing.T) {
	g := twoCliques()
	out := Circular(g)

	for i, n := range out.Nodes {
		r := math.Hypot(n.X, n.Y)
		if math.Abs(r-1) > 1e-12 {
			t.Errorf("node %d radius = %f, want 1", i, r)
		}
	}
	if out.Nodes[0].X != 1 || out.Nodes[0].Y != 0 {
		t.Errorf("first node at (%f,%f), want (1,0)", out.Nodes[0].X, out.Nodes[0].Y)
	}
	if g.Nodes[1].X != 0 {
		t.Errorf("input graph was modified")
	}
}

func TestRandomIsSeeded(t *testing.T) {
	g := twoCliques()
	a := Random(g, 7)
	b := Random(g, 7)
	c := Random(g, 8)

	same := true
	for i := range a.Nodes {
		if !reflect.DeepEqual(a.Nodes[i], b.Nodes[i]) {
			t.Fatalf("same seed produced different positions at node %d", i)
		}
		if a.Nodes[i].X != c.Nodes[i].X {
			same = false
		}
		if a.Nodes[i].X < 0 || a.Nodes[i].X >= 1 || a.Nodes[i].Y < 0 || a.Nodes[i].Y >= 1 {
			t.Errorf("node %d outside unit square: %+v", i, a.Nodes[i])
		}
	}
	if same {
		t.Errorf("different seeds produced identical layouts")
	}
}

func TestForceDirectedPullsNeighboursTogether(t *testing.T) {
	g := twoCliques()
	out := ForceDirected(g, DefaultOptions())

	adjacent := make(map[[2]int]bool)
	index := g.NodeIndex()
	for _, e := range g.Edges {
		i, j := index[e.Source], index[e.Target]
		adjacent[[2]int{i, j}] = true
		adjacent[[2]int{j, i}] = true
	}

	var edgeSum, otherSum float64
	var edgeCount, otherCount int
	for i := range out.Nodes {
		if math.IsNaN(out.Nodes[i].X) || math.IsNaN(out.Nodes[i].Y) {
			t.Fatalf("node %d has NaN position", i)
		}
		for j := i + 1; j < len(out.Nodes); j++ {
			d := math.Hypot(out.Nodes[i].X-out.Nodes[j].X, out.Nodes[i].Y-out.Nodes[j].Y)
			if adjacent[[2]int{i, j}] {
				edgeSum += d
				edgeCount++
			} else {
				otherSum += d
				otherCount++
			}
		}
	}

	if edgeSum/float64(edgeCount) >= otherSum/float64(otherCount) {
		t.Errorf("mean edge length %f not shorter than mean non-adjacent distance %f",
			edgeSum/float64(edgeCount), otherSum/float64(otherCount))
	}
}

func TestMDSPreservesHopOrder(t *testing.T) {
	g := models.NewGraph()
	for i := 0; i < 5; i++ {
		g.AddNode(fmt.Sprintf("p%d", i), 0, 0)
	}
	for i := 0; i < 4; i++ {
		g.AddEdge(fmt.Sprintf("p%d", i), fmt.Sprintf("p%d", i+1))
	}

	out, err := NewMDSCalculator().Layout(g)
	if err != nil {
		t.Fatalf("MDS failed: %v", err)
	}

	dist := func(i, j int) float64 {
		return math.Hypot(out.Nodes[i].X-out.Nodes[j].X, out.Nodes[i].Y-out.Nodes[j].Y)
	}
	if !(dist(0, 1) < dist(0, 2) && dist(0, 2) < dist(0, 4)) {
		t.Errorf("path distances not monotone: d01=%f d02=%f d04=%f", dist(0, 1), dist(0, 2), dist(0, 4))
	}
	if math.Abs(dist(0, 4)-4) > 1e-6 {
		t.Errorf("end-to-end distance = %f, want 4", dist(0, 4))
	}
}

func TestMDSTrivialGraphs(t *testing.T) {
	out, err := NewMDSCalculator().Layout(models.NewGraph())
	if err != nil || len(out.Nodes) != 0 {
		t.Fatalf("empty graph: %v, %d nodes", err, len(out.Nodes))
	}

	single := models.NewGraph()
	single.AddNode("only", 5, 5)
	out, err = NewMDSCalculator().Layout(single)
	if err != nil {
		t.Fatalf("single node: %v", err)
	}
	if out.Nodes[0].X != 0 || out.Nodes[0].Y != 0 {
		t.Errorf("single node placed at (%f,%f), want origin", out.Nodes[0].X, out.Nodes[0].Y)
	}
}

func TestPageRankHubScoresHighest(t *testing.T) {
	g := models.NewGraph()
	g.AddNode("hub", 0, 0)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("leaf%d", i)
		g.AddNode(id, 0, 0)
		g.AddEdge("hub", id)
	}

	out := NewPageRankCalculator().Annotate(g)
	hub, err := strconv.ParseFloat(out.Nodes[0].Attributes[AttrPageRank], 64)
	if err != nil {
		t.Fatalf("hub score not numeric: %v", err)
	}
	if hub != 1 {
		t.Errorf("hub normalized score = %f, want 1", hub)
	}
	for i := 1; i < len(out.Nodes); i++ {
		s, _ := strconv.ParseFloat(out.Nodes[i].Attributes[AttrPageRank], 64)
		if s >= hub {
			t.Errorf("leaf %d score %f >= hub %f", i, s, hub)
		}
	}
}

func TestCommunitiesSplitCliques(t *testing.T) {
	labels := Communities(twoCliques(), 1.0)

	if labels[0] != 0 {
		t.Errorf("first node label = %d, want 0", labels[0])
	}
	for i := 1; i < 4; i++ {
		if labels[i] != labels[0] {
			t.Errorf("node %d label %d differs from its clique (%d)", i, labels[i], labels[0])
		}
	}
	for i := 5; i < 8; i++ {
		if labels[i] != labels[4] {
			t.Errorf("node %d label %d differs from its clique (%d)", i, labels[i], labels[4])
		}
	}
	if labels[0] == labels[4] {
		t.Errorf("both cliques share label %d", labels[0])
	}
}

func TestScale(t *testing.T) {
	g := models.NewGraph()
	g.AddNode("a", -1, 10)
	g.AddNode("b", 1, 20)
	g.AddNode("c", 0, 15)

	out := Scale(g, models.Bounds{XMin: 0, XMax: 100, YMin: 0, YMax: 1})
	want := [][2]float64{{0, 0}, {100, 1}, {50, 0.5}}
	for i, w := range want {
		if math.Abs(out.Nodes[i].X-w[0]) > 1e-12 || math.Abs(out.Nodes[i].Y-w[1]) > 1e-12 {
			t.Errorf("node %d at (%f,%f), want (%f,%f)", i, out.Nodes[i].X, out.Nodes[i].Y, w[0], w[1])
		}
	}
}

func TestApplyUnknownMethod(t *testing.T) {
	if _, err := Apply(twoCliques(), "spectral", DefaultOptions()); err == nil {
		t.Errorf("expected error for unknown layout method")
	}
	for _, m := range []string{MethodNone, MethodRandom, MethodCircular, MethodForce, MethodMDS} {
		out, err := Apply(twoCliques(), m, DefaultOptions())
		if err != nil {
			t.Errorf("%s: %v", m, err)
			continue
		}
		if len(out.Nodes) != 8 {
			t.Errorf("%s: %d nodes, want 8", m, len(out.Nodes))
		}
	}
}
