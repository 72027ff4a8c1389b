package models

import (
	"fmt"
	"math"
)

// Bounds is an axis-aligned data-space rectangle
type Bounds struct {
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
	YMin float64 `json:"ymin"`
	YMax float64 `json:"ymax"`
}

// EmptyBounds returns inverted bounds that any Expand call will replace
func EmptyBounds() Bounds {
	return Bounds{
		XMin: math.Inf(1), XMax: math.Inf(-1),
		YMin: math.Inf(1), YMax: math.Inf(-1),
	}
}

// Width returns the x extent
func (b Bounds) Width() float64 { return b.XMax - b.XMin }

// Height returns the y extent
func (b Bounds) Height() float64 { return b.YMax - b.YMin }

// IsEmpty reports whether no point has been added
func (b Bounds) IsEmpty() bool {
	return b.XMin > b.XMax || b.YMin > b.YMax
}

// Valid reports whether the bounds are finite with positive area
func (b Bounds) Valid() bool {
	for _, v := range []float64{b.XMin, b.XMax, b.YMin, b.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.XMax > b.XMin && b.YMax > b.YMin
}

// Contains reports whether (x, y) lies inside the closed rectangle
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.XMin && x <= b.XMax && y >= b.YMin && y <= b.YMax
}

// Expand grows the bounds to include (x, y)
func (b Bounds) Expand(x, y float64) Bounds {
	return Bounds{
		XMin: math.Min(b.XMin, x),
		XMax: math.Max(b.XMax, x),
		YMin: math.Min(b.YMin, y),
		YMax: math.Max(b.YMax, y),
	}
}

// Union returns the smallest bounds containing both
func (b Bounds) Union(o Bounds) Bounds {
	if b.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return b
	}
	return Bounds{
		XMin: math.Min(b.XMin, o.XMin),
		XMax: math.Max(b.XMax, o.XMax),
		YMin: math.Min(b.YMin, o.YMin),
		YMax: math.Max(b.YMax, o.YMax),
	}
}

// Pad returns bounds grown by frac of the extent on each side. Degenerate
// axes are widened to a unit span so the result is always Valid for finite input.
func (b Bounds) Pad(frac float64) Bounds {
	if b.IsEmpty() {
		return Bounds{XMin: 0, XMax: 1, YMin: 0, YMax: 1}
	}
	out := b
	dx, dy := b.Width()*frac, b.Height()*frac
	if b.Width() == 0 {
		dx = 0.5
	}
	if b.Height() == 0 {
		dy = 0.5
	}
	out.XMin -= dx
	out.XMax += dx
	out.YMin -= dy
	out.YMax += dy
	return out
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%g,%g]x[%g,%g]", b.XMin, b.XMax, b.YMin, b.YMax)
}
