// Package shading turns aggregate grids into images.
//
// Empty cells (NaN, and zero unless Options.KeepZero is set) are left fully
// transparent. Non-empty values are normalized to [0,1] according to
// Options.How and looked up in the color map.
package shading

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/aclements/go-moremath/stats"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-bundling-service/pkg/aggregation"
)

// ErrInvalidOptions is returned for unknown normalizations, empty color maps
// and inconsistent alpha or span settings
var ErrInvalidOptions = errors.New("shading: invalid options")

// Normalization names accepted in Options.How
const (
	HowLinear = "linear"
	HowLog    = "log"
	HowCbrt   = "cbrt"
	HowEqHist = "eq_hist"
)

// Options controls how values map to colors
type Options struct {
	Cmap     ColorMap
	How      string
	Alpha    uint8
	MinAlpha uint8
	// Span fixes the value range; values outside are clipped
	Span *[2]float64
	// KeepZero shades zero values instead of leaving them transparent.
	// Only NaN marks an empty cell then, as in elevation grids.
	KeepZero bool
}

// DefaultOptions returns the Blues ramp with histogram equalization
func DefaultOptions() Options {
	return Options{
		Cmap:     Blues,
		How:      HowEqHist,
		Alpha:    255,
		MinAlpha: 40,
	}
}

// Validate checks the options
func (o Options) Validate() error {
	switch o.How {
	case HowLinear, HowLog, HowCbrt, HowEqHist:
	default:
		return fmt.Errorf("how %q: %w", o.How, ErrInvalidOptions)
	}
	if len(o.Cmap) == 0 {
		return fmt.Errorf("empty color map: %w", ErrInvalidOptions)
	}
	if o.MinAlpha > o.Alpha {
		return fmt.Errorf("min alpha %d above alpha %d: %w", o.MinAlpha, o.Alpha, ErrInvalidOptions)
	}
	if o.Span != nil && !(o.Span[0] < o.Span[1]) {
		return fmt.Errorf("span %v: %w", *o.Span, ErrInvalidOptions)
	}
	return nil
}

func (o Options) empty(v float64) bool {
	return math.IsNaN(v) || (v == 0 && !o.KeepZero)
}

// normalizer maps raw values into [0,1]
type normalizer func(float64) float64

func newNormalizer(agg *mat.Dense, opts Options) normalizer {
	rows, cols := agg.Dims()
	values := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := agg.At(i, j); !opts.empty(v) {
				values = append(values, v)
			}
		}
	}
	if len(values) == 0 {
		return func(float64) float64 { return 0 }
	}

	sample := stats.Sample{Xs: values}
	lo, hi := sample.Bounds()
	if opts.Span != nil {
		lo, hi = opts.Span[0], opts.Span[1]
	}
	clip := func(v float64) float64 { return math.Max(lo, math.Min(hi, v)) }

	if opts.How == HowEqHist {
		for i, v := range values {
			values[i] = clip(v)
		}
		sort.Float64s(values)
		n := len(values)
		atOrBelow := func(v float64) int {
			return sort.Search(n, func(i int) bool { return values[i] > v })
		}
		base := atOrBelow(values[0])
		return func(v float64) float64 {
			if n == base {
				return 1
			}
			return float64(atOrBelow(clip(v))-base) / float64(n-base)
		}
	}

	if hi == lo {
		return func(float64) float64 { return 1 }
	}
	var f func(float64) float64
	switch opts.How {
	case HowLog:
		f = math.Log1p
	case HowCbrt:
		f = math.Cbrt
	default:
		f = func(v float64) float64 { return v }
	}
	top := f(hi - lo)
	return func(v float64) float64 {
		return f(clip(v)-lo) / top
	}
}

// alphaAt ramps alpha from MinAlpha to Alpha
func alphaAt(opts Options, t float64) uint8 {
	return uint8(math.Round(float64(opts.MinAlpha) + t*float64(opts.Alpha-opts.MinAlpha)))
}

// Shade colors a single aggregate. With a multi-color ramp every non-empty
// pixel has opacity Alpha; a single-color ramp instead ramps opacity from
// MinAlpha to Alpha.
func Shade(agg *mat.Dense, opts Options) (*image.NRGBA, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	rows, cols := agg.Dims()
	img := image.NewNRGBA(image.Rect(0, 0, cols, rows))
	norm := newNormalizer(agg, opts)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := agg.At(i, j)
			if opts.empty(v) {
				continue
			}
			t := norm(v)
			c := opts.Cmap.At(t)
			a := opts.Alpha
			if len(opts.Cmap) == 1 {
				a = alphaAt(opts, t)
			}
			img.SetNRGBA(j, i, color.NRGBA{R: c.R, G: c.G, B: c.B, A: a})
		}
	}
	return img, nil
}

// ShadeCategorical mixes category colors weighted by per-pixel counts.
// Opacity follows opts.How over the total count. Every category needs an
// entry in colorKey; opts.Cmap is not used.
func ShadeCategorical(cat *aggregation.Categorical, colorKey map[string]color.Color, opts Options) (*image.NRGBA, error) {
	if len(opts.Cmap) == 0 {
		opts.Cmap = Gray
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(cat.Categories) == 0 {
		return nil, fmt.Errorf("no categories: %w", ErrInvalidOptions)
	}

	colors := make([]color.NRGBA, len(cat.Categories))
	for k, name := range cat.Categories {
		c, ok := colorKey[name]
		if !ok {
			return nil, fmt.Errorf("no color for category %q: %w", name, ErrInvalidOptions)
		}
		colors[k] = color.NRGBAModel.Convert(c).(color.NRGBA)
	}

	total := cat.Total()
	rows, cols := total.Dims()
	img := image.NewNRGBA(image.Rect(0, 0, cols, rows))
	norm := newNormalizer(total, opts)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			n := total.At(i, j)
			if n == 0 || math.IsNaN(n) {
				continue
			}
			var r, g, b float64
			for k, name := range cat.Categories {
				w := cat.Layers[name].At(i, j) / n
				r += w * float64(colors[k].R)
				g += w * float64(colors[k].G)
				b += w * float64(colors[k].B)
			}
			img.SetNRGBA(j, i, color.NRGBA{
				R: uint8(math.Round(r)),
				G: uint8(math.Round(g)),
				B: uint8(math.Round(b)),
				A: alphaAt(opts, norm(n)),
			})
		}
	}
	return img, nil
}
