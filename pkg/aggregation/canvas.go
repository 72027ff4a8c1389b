// Package aggregation bins points and polylines into a regular pixel grid.
//
// Grids are gonum dense matrices with one row per pixel row; row 0 is the
// top of the canvas (largest y) so a grid can be shaded straight into an
// image without flipping.
package aggregation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// ErrInvalidCanvas is returned for non-positive sizes or degenerate bounds
var ErrInvalidCanvas = errors.New("aggregation: invalid canvas")

// Reduction selects the per-cell statistic
type Reduction string

const (
	Count Reduction = "count"
	Sum   Reduction = "sum"
	Mean  Reduction = "mean"
	Max   Reduction = "max"
	Min   Reduction = "min"
)

// Canvas maps data-space bounds onto a Width x Height pixel grid
type Canvas struct {
	Width  int
	Height int
	Bounds models.Bounds
}

// NewCanvas validates and creates a canvas
func NewCanvas(width, height int, bounds models.Bounds) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("size %dx%d: %w", width, height, ErrInvalidCanvas)
	}
	if !bounds.Valid() {
		return nil, fmt.Errorf("bounds %s: %w", bounds, ErrInvalidCanvas)
	}
	return &Canvas{Width: width, Height: height, Bounds: bounds}, nil
}

// fpixel returns continuous pixel coordinates, column then row, with row
// measured downward from the top edge.
func (c *Canvas) fpixel(x, y float64) (float64, float64) {
	px := (x - c.Bounds.XMin) / c.Bounds.Width() * float64(c.Width)
	py := (c.Bounds.YMax - y) / c.Bounds.Height() * float64(c.Height)
	return px, py
}

// Pixel returns the cell containing (x, y). Points on the max edges fall
// into the last column/row. ok is false outside the bounds.
func (c *Canvas) Pixel(x, y float64) (col, row int, ok bool) {
	if math.IsNaN(x) || math.IsNaN(y) || !c.Bounds.Contains(x, y) {
		return 0, 0, false
	}
	px, py := c.fpixel(x, y)
	col, row = int(math.Floor(px)), int(math.Floor(py))
	if col >= c.Width {
		col = c.Width - 1
	}
	if row >= c.Height {
		row = c.Height - 1
	}
	return col, row, true
}

// CellCenter returns the data-space center of a cell
func (c *Canvas) CellCenter(col, row int) (x, y float64) {
	x = c.Bounds.XMin + (float64(col)+0.5)/float64(c.Width)*c.Bounds.Width()
	y = c.Bounds.YMax - (float64(row)+0.5)/float64(c.Height)*c.Bounds.Height()
	return x, y
}

func (c *Canvas) newGrid() *mat.Dense {
	return mat.NewDense(c.Height, c.Width, nil)
}

// accumulator folds weighted samples into a grid for one reduction
type accumulator struct {
	reduction Reduction
	values    *mat.Dense
	counts    *mat.Dense
}

func (c *Canvas) newAccumulator(r Reduction) (*accumulator, error) {
	acc := &accumulator{reduction: r, values: c.newGrid()}
	switch r {
	case Count, Sum:
	case Mean, Max, Min:
		acc.counts = c.newGrid()
	default:
		return nil, fmt.Errorf("unknown reduction %q", r)
	}
	return acc, nil
}

func (a *accumulator) add(row, col int, v float64) {
	switch a.reduction {
	case Count:
		a.values.Set(row, col, a.values.At(row, col)+1)
	case Sum:
		a.values.Set(row, col, a.values.At(row, col)+v)
	case Mean:
		a.values.Set(row, col, a.values.At(row, col)+v)
		a.counts.Set(row, col, a.counts.At(row, col)+1)
	case Max:
		if a.counts.At(row, col) == 0 || v > a.values.At(row, col) {
			a.values.Set(row, col, v)
		}
		a.counts.Set(row, col, 1)
	case Min:
		if a.counts.At(row, col) == 0 || v < a.values.At(row, col) {
			a.values.Set(row, col, v)
		}
		a.counts.Set(row, col, 1)
	}
}

// result finalizes the grid: Mean divides, and Mean/Max/Min mark empty cells NaN.
func (a *accumulator) result() *mat.Dense {
	if a.counts == nil {
		return a.values
	}
	rows, cols := a.values.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			n := a.counts.At(i, j)
			switch {
			case n == 0:
				a.values.Set(i, j, math.NaN())
			case a.reduction == Mean:
				a.values.Set(i, j, a.values.At(i, j)/n)
			}
		}
	}
	return a.values
}
