package bundling

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// cutoffSigmas is the kernel support in bandwidths; exp(-4.5) ~ 1% of the peak.
const cutoffSigmas = 3.0

// gaussian is the attraction kernel. Distances below floor are raised to
// floor so that coincident points never produce 0/0.
func gaussian(d, h, floor float64) float64 {
	if d < floor {
		d = floor
	}
	return math.Exp(-(d * d) / (2 * h * h))
}

// Resample returns n points spaced evenly by arc length along path.
// The first and last points are always the path endpoints.
func Resample(path []r2.Vec, n int) []r2.Vec {
	out := make([]r2.Vec, n)
	if len(path) == 0 || n == 0 {
		return out
	}
	if len(path) == 1 || n == 1 {
		for i := range out {
			out[i] = path[0]
		}
		return out
	}

	cum := make([]float64, len(path))
	for i := 1; i < len(path); i++ {
		cum[i] = cum[i-1] + r2.Norm(r2.Sub(path[i], path[i-1]))
	}
	total := cum[len(cum)-1]
	if total == 0 {
		for i := range out {
			out[i] = path[0]
		}
		return out
	}

	seg := 1
	for k := 0; k < n; k++ {
		target := total * float64(k) / float64(n-1)
		for seg < len(path)-1 && cum[seg] < target {
			seg++
		}
		span := cum[seg] - cum[seg-1]
		t := 0.0
		if span > 0 {
			t = (target - cum[seg-1]) / span
		}
		out[k] = r2.Add(path[seg-1], r2.Scale(t, r2.Sub(path[seg], path[seg-1])))
	}
	out[0] = path[0]
	out[n-1] = path[len(path)-1]
	return out
}
