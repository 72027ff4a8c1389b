// Package raster holds gridded elevation-style data and resamples it onto
// display canvases.
package raster

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// ErrInvalidGrid is returned for malformed grids and resample requests
var ErrInvalidGrid = errors.New("raster: invalid grid")

// Method selects the resampling interpolation
type Method int

const (
	Nearest Method = iota
	Bilinear
)

func (m Method) String() string {
	switch m {
	case Nearest:
		return "nearest"
	case Bilinear:
		return "bilinear"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod parses "nearest" or "bilinear"
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "", "nearest":
		return Nearest, nil
	case "bilinear", "linear":
		return Bilinear, nil
	default:
		return Nearest, fmt.Errorf("unknown resampling method %q", s)
	}
}

// Grid is a north-up raster. Data row 0 is the northern edge; Bounds are the
// outer cell edges. Missing cells hold NaN.
type Grid struct {
	Data   *mat.Dense
	Bounds models.Bounds
	NoData float64
}

// NewGrid wraps data with its bounds
func NewGrid(data *mat.Dense, bounds models.Bounds) (*Grid, error) {
	g := &Grid{Data: data, Bounds: bounds, NoData: math.NaN()}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate checks that the grid has data and usable bounds
func (g *Grid) Validate() error {
	if g == nil || g.Data == nil || g.Data.IsEmpty() {
		return fmt.Errorf("no data: %w", ErrInvalidGrid)
	}
	if !g.Bounds.Valid() {
		return fmt.Errorf("bounds %s: %w", g.Bounds, ErrInvalidGrid)
	}
	return nil
}

// CellSize returns the data-space width and height of one cell
func (g *Grid) CellSize() (float64, float64) {
	rows, cols := g.Data.Dims()
	return g.Bounds.Width() / float64(cols), g.Bounds.Height() / float64(rows)
}

// Range returns the smallest and largest non-NaN values. ok is false when
// every cell is missing.
func (g *Grid) Range() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	rows, cols := g.Data.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := g.Data.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
			ok = true
		}
	}
	return lo, hi, ok
}
