package raster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// Resample samples grid at the centers of a width x height canvas covering
// bounds. Output row 0 is the top of the canvas. Samples that fall outside
// the grid are NaN.
func Resample(grid *Grid, bounds models.Bounds, width, height int, method Method) (*mat.Dense, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 || !bounds.Valid() {
		return nil, fmt.Errorf("target %dx%d over %s: %w", width, height, bounds, ErrInvalidGrid)
	}
	if method != Nearest && method != Bilinear {
		return nil, fmt.Errorf("method %s: %w", method, ErrInvalidGrid)
	}

	out := mat.NewDense(height, width, nil)
	for row := 0; row < height; row++ {
		y := bounds.YMax - (float64(row)+0.5)/float64(height)*bounds.Height()
		for col := 0; col < width; col++ {
			x := bounds.XMin + (float64(col)+0.5)/float64(width)*bounds.Width()
			var v float64
			if method == Bilinear {
				v = grid.bilinear(x, y)
			} else {
				v = grid.nearest(x, y)
			}
			out.Set(row, col, v)
		}
	}
	return out, nil
}

// index returns continuous cell coordinates where cell (r, c) spans
// [c, c+1) x [r, r+1)
func (g *Grid) index(x, y float64) (float64, float64) {
	cw, ch := g.CellSize()
	return (x - g.Bounds.XMin) / cw, (g.Bounds.YMax - y) / ch
}

func (g *Grid) nearest(x, y float64) float64 {
	if !g.Bounds.Contains(x, y) {
		return math.NaN()
	}
	rows, cols := g.Data.Dims()
	fc, fr := g.index(x, y)
	c, r := int(fc), int(fr)
	if c >= cols {
		c = cols - 1
	}
	if r >= rows {
		r = rows - 1
	}
	return g.Data.At(r, c)
}

// bilinear interpolates between the four surrounding cell centers. Missing
// neighbours are left out and the remaining weights renormalized.
func (g *Grid) bilinear(x, y float64) float64 {
	if !g.Bounds.Contains(x, y) {
		return math.NaN()
	}
	rows, cols := g.Data.Dims()
	fc, fr := g.index(x, y)
	fc, fr = fc-0.5, fr-0.5

	c0, r0 := int(math.Floor(fc)), int(math.Floor(fr))
	tx, ty := fc-float64(c0), fr-float64(r0)

	clamp := func(v, n int) int {
		if v < 0 {
			return 0
		}
		if v >= n {
			return n - 1
		}
		return v
	}

	var sum, wsum float64
	for _, n := range [4]struct {
		dr, dc int
		w      float64
	}{
		{0, 0, (1 - tx) * (1 - ty)},
		{0, 1, tx * (1 - ty)},
		{1, 0, (1 - tx) * ty},
		{1, 1, tx * ty},
	} {
		if n.w == 0 {
			continue
		}
		v := g.Data.At(clamp(r0+n.dr, rows), clamp(c0+n.dc, cols))
		if math.IsNaN(v) {
			continue
		}
		sum += n.w * v
		wsum += n.w
	}
	if wsum == 0 {
		return math.NaN()
	}
	return sum / wsum
}
