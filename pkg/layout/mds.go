package layout

import (
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/mds"

	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// MDSCalculator computes 2D coordinates using Multidimensional Scaling
type MDSCalculator struct {
	maxDistance float64 // Distance used for unreachable node pairs
}

// NewMDSCalculator creates a new MDS calculator
func NewMDSCalculator() *MDSCalculator {
	return &MDSCalculator{
		maxDistance: 10.0,
	}
}

// WithMaxDistance sets the distance used for unreachable node pairs
func (mc *MDSCalculator) WithMaxDistance(maxDist float64) *MDSCalculator {
	mc.maxDistance = maxDist
	return mc
}

// Layout places the nodes of g by classical MDS over BFS hop distances
func (mc *MDSCalculator) Layout(g *models.Graph) (*models.Graph, error) {
	out := g.Clone()
	n := len(out.Nodes)
	switch n {
	case 0:
		return out, nil
	case 1:
		out.Nodes[0].X, out.Nodes[0].Y = 0, 0
		return out, nil
	}

	ug := toUndirected(g)
	dist := mc.distanceMatrix(ug, n)

	coords, err := mc.torgerson(dist)
	if err != nil {
		return nil, fmt.Errorf("MDS computation failed: %w", err)
	}

	for i := range out.Nodes {
		out.Nodes[i].X = coords.At(i, 0)
		out.Nodes[i].Y = coords.At(i, 1)
	}
	return out, nil
}

// distanceMatrix computes shortest hop distances between all node pairs
func (mc *MDSCalculator) distanceMatrix(g graph.Graph, n int) *mat.SymDense {
	dist := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		hops := bfsDistances(g, int64(i))
		for j := i + 1; j < n; j++ {
			d, ok := hops[int64(j)]
			if !ok {
				d = mc.maxDistance
			}
			dist.SetSym(i, j, d)
		}
	}
	return dist
}

// bfsDistances computes hop counts from source to every reachable node
func bfsDistances(g graph.Graph, source int64) map[int64]float64 {
	distances := map[int64]float64{source: 0}
	queue := []int64{source}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		neighbors := g.From(current)
		for neighbors.Next() {
			next := neighbors.Node().ID()
			if _, seen := distances[next]; !seen {
				distances[next] = distances[current] + 1
				queue = append(queue, next)
			}
		}
	}

	return distances
}

// torgerson returns an n x 2 coordinate matrix, zero-padded when the
// scaling yields a single positive eigenvalue
func (mc *MDSCalculator) torgerson(dist *mat.SymDense) (*mat.Dense, error) {
	var coords mat.Dense
	k, _ := mds.TorgersonScaling(&coords, nil, dist)
	if k == 0 {
		return nil, fmt.Errorf("no positive eigenvalues found")
	}

	rows, cols := coords.Dims()
	out := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols && j < 2; j++ {
			out.Set(i, j, coords.At(i, j))
		}
	}
	return out, nil
}
