package aggregation

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// Line is a polyline carrying a value for Sum/Mean/Max/Min reductions
type Line struct {
	Points []r2.Vec
	Value  float64
}

type pixel struct{ col, row int }

// Lines rasterizes polylines with a DDA walk. Each line contributes once to
// every pixel it covers, even when it leaves a pixel and comes back.
func (c *Canvas) Lines(lines []Line, r Reduction) (*mat.Dense, error) {
	acc, err := c.newAccumulator(r)
	if err != nil {
		return nil, err
	}
	seen := make(map[pixel]struct{})
	for _, l := range lines {
		clear(seen)
		c.walk(l.Points, func(p pixel) {
			if _, ok := seen[p]; ok {
				return
			}
			seen[p] = struct{}{}
			acc.add(p.row, p.col, l.Value)
		})
	}
	return acc.result(), nil
}

// walk visits the pixels covered by a polyline, skipping immediate repeats
func (c *Canvas) walk(points []r2.Vec, visit func(pixel)) {
	last := pixel{-1, -1}
	emit := func(fx, fy float64) {
		p, ok := c.cell(fx, fy)
		if !ok || p == last {
			return
		}
		last = p
		visit(p)
	}

	if len(points) == 1 {
		fx, fy := c.fpixel(points[0].X, points[0].Y)
		emit(fx, fy)
		return
	}
	for i := 0; i+1 < len(points); i++ {
		x0, y0 := c.fpixel(points[i].X, points[i].Y)
		x1, y1 := c.fpixel(points[i+1].X, points[i+1].Y)
		x0, y0, x1, y1, ok := c.clip(x0, y0, x1, y1)
		if !ok {
			continue
		}
		dx, dy := x1-x0, y1-y0
		steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
		if steps == 0 {
			emit(x0, y0)
			continue
		}
		for k := 0; k <= steps; k++ {
			t := float64(k) / float64(steps)
			emit(x0+dx*t, y0+dy*t)
		}
	}
}

// cell converts continuous pixel coordinates into a cell, clamping the max
// edges into the last column and row.
func (c *Canvas) cell(fx, fy float64) (pixel, bool) {
	if math.IsNaN(fx) || math.IsNaN(fy) {
		return pixel{}, false
	}
	w, h := float64(c.Width), float64(c.Height)
	if fx < 0 || fy < 0 || fx > w || fy > h {
		return pixel{}, false
	}
	col, row := int(fx), int(fy)
	if col == c.Width {
		col--
	}
	if row == c.Height {
		row--
	}
	return pixel{col: col, row: row}, true
}

// clip trims a segment in pixel space to [0,W]x[0,H] (Liang-Barsky)
func (c *Canvas) clip(x0, y0, x1, y1 float64) (float64, float64, float64, float64, bool) {
	dx, dy := x1-x0, y1-y0
	t0, t1 := 0.0, 1.0
	edges := [4][2]float64{
		{-dx, x0},
		{dx, float64(c.Width) - x0},
		{-dy, y0},
		{dy, float64(c.Height) - y0},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return 0, 0, 0, 0, false
			}
			if t > t0 {
				t0 = t
			}
		} else {
			if t < t0 {
				return 0, 0, 0, 0, false
			}
			if t < t1 {
				t1 = t
			}
		}
	}
	return x0 + t0*dx, y0 + t0*dy, x0 + t1*dx, y0 + t1*dy, true
}
