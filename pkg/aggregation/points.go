package aggregation

import (
	"fmt"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-bundling-service/pkg/models"
	"github.com/gilchrisn/graph-bundling-service/pkg/raster"
)

// Categorical holds one count grid per category
type Categorical struct {
	Categories []string
	Layers     map[string]*mat.Dense
}

// Total sums all layers into a single count grid
func (c *Categorical) Total() *mat.Dense {
	var total *mat.Dense
	for _, name := range c.Categories {
		layer := c.Layers[name]
		if total == nil {
			r, cols := layer.Dims()
			total = mat.NewDense(r, cols, nil)
		}
		total.Add(total, layer)
	}
	return total
}

// Points bins point values with the given reduction. Points outside the
// canvas bounds are dropped.
func (c *Canvas) Points(ps *models.PointSet, r Reduction) (*mat.Dense, error) {
	acc, err := c.newAccumulator(r)
	if err != nil {
		return nil, err
	}
	for _, p := range ps.Points {
		col, row, ok := c.Pixel(p.X, p.Y)
		if !ok {
			continue
		}
		acc.add(row, col, p.Value)
	}
	return acc.result(), nil
}

// CategoricalPoints counts points per category. Categories are sorted and
// every category present in ps gets a layer, even if none of its points
// fall inside the canvas.
func (c *Canvas) CategoricalPoints(ps *models.PointSet) *Categorical {
	cats := ps.Categories()
	sort.Strings(cats)

	out := &Categorical{
		Categories: cats,
		Layers:     make(map[string]*mat.Dense, len(cats)),
	}
	for _, name := range cats {
		out.Layers[name] = c.newGrid()
	}
	for _, p := range ps.Points {
		col, row, ok := c.Pixel(p.X, p.Y)
		if !ok {
			continue
		}
		layer := out.Layers[p.Category]
		layer.Set(row, col, layer.At(row, col)+1)
	}
	return out
}

// Nodes bins graph node positions. With an empty attribute every node has
// value 1; otherwise the attribute is parsed as a float and nodes without it
// are skipped.
func (c *Canvas) Nodes(g *models.Graph, attribute string, r Reduction) (*mat.Dense, error) {
	ps := &models.PointSet{Points: make([]models.Point, 0, len(g.Nodes))}
	for _, n := range g.Nodes {
		value := 1.0
		if attribute != "" {
			raw, ok := n.Attributes[attribute]
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("node %s attribute %s: %w", n.ID, attribute, err)
			}
			value = v
		}
		ps.Points = append(ps.Points, models.Point{X: n.X, Y: n.Y, Value: value})
	}
	return c.Points(ps, r)
}

// Raster resamples a grid onto the canvas
func (c *Canvas) Raster(grid *raster.Grid, method raster.Method) (*mat.Dense, error) {
	return raster.Resample(grid, c.Bounds, c.Width, c.Height, method)
}
