package raster

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Hillshade computes shaded relief in [0,1] for a light source at azimuth
// degrees clockwise from north and altitude degrees above the horizon.
// Slopes use Horn's 3x3 kernel with edge cells replicated.
func Hillshade(grid *Grid, azimuth, altitude float64) (*Grid, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	rows, cols := grid.Data.Dims()
	cw, ch := grid.CellSize()

	zenith := (90 - altitude) * math.Pi / 180
	az := math.Mod(360-azimuth+90, 360) * math.Pi / 180

	at := func(r, c int, center float64) float64 {
		if r < 0 {
			r = 0
		}
		if r >= rows {
			r = rows - 1
		}
		if c < 0 {
			c = 0
		}
		if c >= cols {
			c = cols - 1
		}
		v := grid.Data.At(r, c)
		if math.IsNaN(v) {
			return center
		}
		return v
	}

	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			z := grid.Data.At(r, c)
			if math.IsNaN(z) {
				out.Set(r, c, math.NaN())
				continue
			}
			a, b, cc := at(r-1, c-1, z), at(r-1, c, z), at(r-1, c+1, z)
			d, f := at(r, c-1, z), at(r, c+1, z)
			gg, h, i := at(r+1, c-1, z), at(r+1, c, z), at(r+1, c+1, z)

			dzdx := ((cc + 2*f + i) - (a + 2*d + gg)) / (8 * cw)
			dzdy := ((gg + 2*h + i) - (a + 2*b + cc)) / (8 * ch)
			slope := math.Atan(math.Hypot(dzdx, dzdy))

			var aspect float64
			switch {
			case dzdx != 0:
				aspect = math.Atan2(dzdy, -dzdx)
				if aspect < 0 {
					aspect += 2 * math.Pi
				}
			case dzdy > 0:
				aspect = math.Pi / 2
			case dzdy < 0:
				aspect = 3 * math.Pi / 2
			}

			v := math.Cos(zenith)*math.Cos(slope) +
				math.Sin(zenith)*math.Sin(slope)*math.Cos(az-aspect)
			out.Set(r, c, math.Max(0, math.Min(1, v)))
		}
	}
	return &Grid{Data: out, Bounds: grid.Bounds, NoData: math.NaN()}, nil
}
