package bundling

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

type cellKey struct {
	x, y int64
}

// grid is a uniform bucket index over one sample index of every edge.
// With the cell size equal to the kernel cutoff, every point within the
// cutoff of a query lies in the 3x3 block around the query cell.
type grid struct {
	size  float64
	cells map[cellKey][]int
}

func newGrid(size float64, capacity int) *grid {
	return &grid{
		size:  size,
		cells: make(map[cellKey][]int, capacity),
	}
}

func (g *grid) key(p r2.Vec) cellKey {
	return cellKey{
		x: int64(math.Floor(p.X / g.size)),
		y: int64(math.Floor(p.Y / g.size)),
	}
}

func (g *grid) insert(p r2.Vec, edge int) {
	k := g.key(p)
	g.cells[k] = append(g.cells[k], edge)
}

// near calls fn for every edge whose indexed point may lie within one cell of p.
func (g *grid) near(p r2.Vec, fn func(edge int)) {
	k := g.key(p)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, e := range g.cells[cellKey{x: k.x + dx, y: k.y + dy}] {
				fn(e)
			}
		}
	}
}
