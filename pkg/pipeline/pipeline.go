// Package pipeline chains layout, bundling, aggregation and shading into
// single render calls used by the CLI and the backend.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/graph-bundling-service/pkg/aggregation"
	"github.com/gilchrisn/graph-bundling-service/pkg/bundling"
	"github.com/gilchrisn/graph-bundling-service/pkg/layout"
	"github.com/gilchrisn/graph-bundling-service/pkg/models"
	"github.com/gilchrisn/graph-bundling-service/pkg/raster"
	"github.com/gilchrisn/graph-bundling-service/pkg/shading"
)

// RenderOptions configures all three render paths. Fields that do not apply
// to a path are ignored.
type RenderOptions struct {
	Width  int
	Height int
	// Bounds fixes the viewport; nil fits the data with Padding
	Bounds  *models.Bounds
	Padding float64

	// Graph rendering
	Layout        string
	LayoutOptions layout.Options
	Bundle        bool
	Bundling      bundling.Config
	Reduction     aggregation.Reduction
	DrawNodes     bool
	NodeShade     shading.Options
	NodeSpread    int

	// Point rendering: a non-nil ColorKey selects categorical shading
	ColorKey map[string]color.Color

	// Raster rendering
	Resample  raster.Method
	Hillshade bool
	Azimuth   float64
	Altitude  float64

	Shade      shading.Options
	Spread     int
	Background color.Color
}

// DefaultRenderOptions returns a 600x600 bundled render
func DefaultRenderOptions() RenderOptions {
	nodeShade := shading.DefaultOptions()
	nodeShade.Cmap = shading.MustColorMap("darkred")
	nodeShade.How = shading.HowLinear
	nodeShade.MinAlpha = 255

	return RenderOptions{
		Width:         600,
		Height:        600,
		Padding:       0.05,
		Layout:        layout.MethodNone,
		LayoutOptions: layout.DefaultOptions(),
		Bundle:        true,
		Bundling:      bundling.DefaultConfig(),
		Reduction:     aggregation.Count,
		NodeShade:     nodeShade,
		NodeSpread:    1,
		Resample:      raster.Bilinear,
		Azimuth:       315,
		Altitude:      45,
		Shade:         shading.DefaultOptions(),
	}
}

func (o RenderOptions) canvas(fit models.Bounds) (*aggregation.Canvas, error) {
	b := fit.Pad(o.Padding)
	if o.Bounds != nil {
		b = *o.Bounds
	}
	return aggregation.NewCanvas(o.Width, o.Height, b)
}

func (o RenderOptions) reduction() aggregation.Reduction {
	if o.Reduction == "" {
		return aggregation.Count
	}
	return o.Reduction
}

func (o RenderOptions) finish(img image.Image) image.Image {
	out := shading.Spread(img, o.Spread)
	if o.Background != nil {
		return shading.SetBackground(out, o.Background)
	}
	return out
}

// RenderGraph lays out (optionally), bundles and draws the edges of g. With
// Bundle unset the edges are drawn straight.
func RenderGraph(ctx context.Context, g *models.Graph, opts RenderOptions) (image.Image, *bundling.Result, error) {
	start := time.Now()

	if opts.Layout != "" && opts.Layout != layout.MethodNone {
		laid, err := layout.Apply(g, opts.Layout, opts.LayoutOptions)
		if err != nil {
			return nil, nil, err
		}
		g = laid
	}

	cfg := opts.Bundling
	if !opts.Bundle {
		cfg.MaxIterations = 0
	}
	result, err := bundling.Bundle(ctx, g, cfg)
	if err != nil {
		return nil, nil, err
	}

	img, err := RenderPaths(g, result.Paths, opts)
	if err != nil {
		return nil, nil, err
	}

	log.Debug().
		Int("edges", len(g.Edges)).
		Int("iterations", result.Iterations).
		Dur("elapsed", time.Since(start)).
		Msg("Rendered graph")
	return img, result, nil
}

// RenderPaths draws already bundled paths of g, weighted by their edge
// weights. The viewport fits the nodes and every path sample unless
// opts.Bounds is set.
func RenderPaths(g *models.Graph, paths []bundling.Path, opts RenderOptions) (image.Image, error) {
	fit := g.Bounds()
	lines := make([]aggregation.Line, len(paths))
	for i, p := range paths {
		for _, v := range p.Points {
			fit = fit.Expand(v.X, v.Y)
		}
		weight := 1.0
		if p.EdgeIndex >= 0 && p.EdgeIndex < len(g.Edges) {
			weight = g.Edges[p.EdgeIndex].EffectiveWeight()
		}
		lines[i] = aggregation.Line{Points: p.Points, Value: weight}
	}

	canvas, err := opts.canvas(fit)
	if err != nil {
		return nil, err
	}
	agg, err := canvas.Lines(lines, opts.reduction())
	if err != nil {
		return nil, err
	}
	img, err := shading.Shade(agg, opts.Shade)
	if err != nil {
		return nil, err
	}
	out := shading.Spread(img, opts.Spread)

	if opts.DrawNodes {
		counts, err := canvas.Nodes(g, "", aggregation.Count)
		if err != nil {
			return nil, err
		}
		nodes, err := shading.Shade(counts, opts.NodeShade)
		if err != nil {
			return nil, err
		}
		if out, err = shading.Stack(out, shading.Spread(nodes, opts.NodeSpread)); err != nil {
			return nil, err
		}
	}

	log.Debug().
		Int("paths", len(paths)).
		Str("bounds", canvas.Bounds.String()).
		Msg("Rendered paths")

	if opts.Background != nil {
		return shading.SetBackground(out, opts.Background), nil
	}
	return out, nil
}

// RenderPoints aggregates and shades a point set
func RenderPoints(ps *models.PointSet, opts RenderOptions) (image.Image, error) {
	canvas, err := opts.canvas(ps.Bounds())
	if err != nil {
		return nil, err
	}

	var img image.Image
	if opts.ColorKey != nil {
		img, err = shading.ShadeCategorical(canvas.CategoricalPoints(ps), opts.ColorKey, opts.Shade)
	} else {
		agg, aggErr := canvas.Points(ps, opts.reduction())
		if aggErr != nil {
			return nil, aggErr
		}
		img, err = shading.Shade(agg, opts.Shade)
	}
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("points", len(ps.Points)).
		Bool("categorical", opts.ColorKey != nil).
		Msg("Rendered points")
	return opts.finish(img), nil
}

// RenderRaster resamples and shades a grid, optionally stacking a
// hillshade layer on top
func RenderRaster(grid *raster.Grid, opts RenderOptions) (image.Image, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	b := grid.Bounds
	if opts.Bounds != nil {
		b = *opts.Bounds
	}
	canvas, err := aggregation.NewCanvas(opts.Width, opts.Height, b)
	if err != nil {
		return nil, err
	}

	values, err := canvas.Raster(grid, opts.Resample)
	if err != nil {
		return nil, err
	}
	// Zero is a valid elevation; only NaN cells are missing.
	shade := opts.Shade
	shade.KeepZero = true
	img, err := shading.Shade(values, shade)
	if err != nil {
		return nil, err
	}

	if opts.Hillshade {
		hs, err := raster.Hillshade(grid, opts.Azimuth, opts.Altitude)
		if err != nil {
			return nil, err
		}
		relief, err := canvas.Raster(hs, opts.Resample)
		if err != nil {
			return nil, err
		}
		reliefImg, err := shading.Shade(relief, shading.Options{
			Cmap:     shading.MustColorMap("black", "white"),
			How:      shading.HowLinear,
			Alpha:    100,
			MinAlpha: 100,
			KeepZero: true,
		})
		if err != nil {
			return nil, fmt.Errorf("hillshade: %w", err)
		}
		if img, err = shading.Stack(img, reliefImg); err != nil {
			return nil, err
		}
	}

	log.Debug().
		Str("bounds", b.String()).
		Bool("hillshade", opts.Hillshade).
		Msg("Rendered raster")
	return opts.finish(img), nil
}
