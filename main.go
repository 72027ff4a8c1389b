package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/graph-bundling-service/pkg/bundling"
	"github.com/gilchrisn/graph-bundling-service/pkg/layout"
	"github.com/gilchrisn/graph-bundling-service/pkg/models"
	"github.com/gilchrisn/graph-bundling-service/pkg/parser"
	"github.com/gilchrisn/graph-bundling-service/pkg/pipeline"
	"github.com/gilchrisn/graph-bundling-service/pkg/raster"
	"github.com/gilchrisn/graph-bundling-service/pkg/shading"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  graph-bundling-service bundle <graph.yaml|graph.json|graph.edges|nodes.csv> [edges.csv] -o out.png [flags]")
	fmt.Fprintln(os.Stderr, "  graph-bundling-service points <points.csv> -o out.png [flags]")
	fmt.Fprintln(os.Stderr, "  graph-bundling-service raster <grid.asc> -o out.png [flags]")
	fmt.Fprintln(os.Stderr, "Run a subcommand with -h for its flags.")
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "bundle":
		err = runBundle(ctx, os.Args[2:])
	case "points":
		err = runPoints(os.Args[2:])
	case "raster":
		err = runRaster(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("Command failed")
	}
}

// commonFlags are shared by every subcommand
type commonFlags struct {
	output     string
	width      int
	height     int
	how        string
	cmap       string
	spread     int
	background string
	scale      float64
	verbose    bool
}

func (c *commonFlags) register(fs *flag.FlagSet, defaultCmap, defaultHow string) {
	fs.StringVar(&c.output, "o", "out.png", "output PNG path")
	fs.IntVar(&c.width, "width", 600, "image width in pixels")
	fs.IntVar(&c.height, "height", 600, "image height in pixels")
	fs.StringVar(&c.how, "how", defaultHow, "normalization: linear, log, cbrt or eq_hist")
	fs.StringVar(&c.cmap, "cmap", defaultCmap, "preset (blues, fire, gray, elevation) or comma-separated colors")
	fs.IntVar(&c.spread, "spread", 0, "grow non-empty pixels by this many pixels")
	fs.StringVar(&c.background, "bg", "", "background color, transparent when empty")
	fs.Float64Var(&c.scale, "scale", 1, "bilinear display scale applied to the rendered image")
	fs.BoolVar(&c.verbose, "v", false, "debug logging")
}

func (c *commonFlags) apply(opts *pipeline.RenderOptions) error {
	if c.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	cmap, err := shading.LookupColorMap(c.cmap)
	if err != nil {
		return err
	}
	if c.scale <= 0 {
		return fmt.Errorf("scale must be positive, got %g", c.scale)
	}
	opts.Width, opts.Height = c.width, c.height
	opts.Shade.Cmap = cmap
	opts.Shade.How = c.how
	opts.Spread = c.spread
	if c.background != "" {
		bg, err := shading.ParseColor(c.background)
		if err != nil {
			return err
		}
		opts.Background = bg
	}
	return nil
}

// display resizes img by the -scale factor
func (c *commonFlags) display(img image.Image) image.Image {
	if c.scale == 1 {
		return img
	}
	w := max(1, int(float64(img.Bounds().Dx())*c.scale+0.5))
	h := max(1, int(float64(img.Bounds().Dy())*c.scale+0.5))
	return shading.Resize(img, w, h)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := shading.EncodePNG(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("width", img.Bounds().Dx()).Int("height", img.Bounds().Dy()).Msg("Image written")
	return nil
}

func loadGraph(args []string) (*models.Graph, error) {
	switch len(args) {
	case 1:
		if strings.EqualFold(filepath.Ext(args[0]), ".csv") {
			return nil, fmt.Errorf("a nodes CSV needs an edges CSV as second argument")
		}
		return parser.LoadGraphFile(args[0])
	case 2:
		return parser.LoadGraph(args[0], args[1])
	default:
		return nil, fmt.Errorf("expected a graph file or a nodes and edges CSV pair, got %d arguments", len(args))
	}
}

func runBundle(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bundle", flag.ExitOnError)
	var common commonFlags
	common.register(fs, "fire", shading.HowEqHist)

	configPath := fs.String("config", "", "YAML or JSON file with bundling settings")
	layoutMethod := fs.String("layout", layout.MethodNone, "layout before bundling: none, random, circular, force or mds")
	straight := fs.Bool("straight", false, "draw straight edges without bundling")
	iterations := fs.Int("iterations", -1, "override bundling iterations")
	bandwidth := fs.Float64("bandwidth", 0, "override initial kernel bandwidth")
	decay := fs.Float64("decay", 0, "override bandwidth decay")
	samples := fs.Int("samples", 0, "override points per path")
	tension := fs.Float64("tension", -1, "override path tension")
	drawNodes := fs.Bool("nodes", false, "draw nodes on top of the edges")
	pathsOut := fs.String("paths", "", "also export bundled paths (.json or .csv)")
	graphOut := fs.String("graph-out", "", "write the laid-out graph annotated with pagerank and community (.yaml or .json)")
	resolution := fs.Float64("resolution", 1, "community detection resolution")
	fs.Parse(reorder(args, fs))

	g, err := loadGraph(fs.Args())
	if err != nil {
		return err
	}

	vc := bundling.NewViperConfig()
	if *configPath != "" {
		if err := vc.LoadFromFile(*configPath); err != nil {
			return fmt.Errorf("failed to read bundling config: %w", err)
		}
	}
	if *iterations >= 0 {
		vc.Set("bundling.max_iterations", *iterations)
	}
	if *bandwidth > 0 {
		vc.Set("bundling.initial_bandwidth", *bandwidth)
	}
	if *decay > 0 {
		vc.Set("bundling.decay", *decay)
	}
	if *samples > 0 {
		vc.Set("bundling.samples", *samples)
	}
	if *tension >= 0 {
		vc.Set("bundling.tension", *tension)
	}

	opts := pipeline.DefaultRenderOptions()
	if err := common.apply(&opts); err != nil {
		return err
	}
	opts.Bundling = vc.Config()
	opts.Bundling.Progress = func(iteration, maxIterations int, maxDisplacement float64) {
		log.Info().
			Int("iteration", iteration).
			Int("max_iterations", maxIterations).
			Float64("max_displacement", maxDisplacement).
			Msg("Bundling progress")
	}
	opts.Bundle = !*straight
	opts.DrawNodes = *drawNodes

	method := layoutFor(g, *layoutMethod)
	if method != *layoutMethod {
		log.Warn().
			Str("layout", method).
			Msg("All nodes share one position, laying the graph out")
	}
	if method != "" && method != layout.MethodNone {
		if g, err = layout.Apply(g, method, opts.LayoutOptions); err != nil {
			return err
		}
	}

	log.Info().
		Int("nodes", len(g.Nodes)).
		Int("edges", len(g.Edges)).
		Str("layout", method).
		Bool("bundle", opts.Bundle).
		Msg("Rendering graph")

	img, result, err := pipeline.RenderGraph(ctx, g, opts)
	if err != nil {
		return err
	}
	log.Info().
		Int("iterations", result.Iterations).
		Bool("converged", result.Converged).
		Float64("mean_displacement", result.Stats.MeanDisplacement).
		Float64("max_displacement", result.Stats.MaxDisplacement).
		Int64("runtime_ms", result.Stats.RuntimeMS).
		Msg("Bundling finished")

	if err := writePNG(common.output, common.display(img)); err != nil {
		return err
	}
	if *pathsOut != "" {
		if err := exportPaths(*pathsOut, result.Paths); err != nil {
			return err
		}
	}
	if *graphOut != "" {
		annotated := layout.NewPageRankCalculator().Annotate(g)
		annotated = layout.AnnotateCommunities(annotated, *resolution)
		if err := exportGraph(*graphOut, annotated); err != nil {
			return err
		}
	}
	return nil
}

func exportPaths(path string, paths []bundling.Path) error {
	exporter, err := parser.PathExporterFor(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create paths file: %w", err)
	}
	defer f.Close()
	if err := exporter.ExportPaths(paths, f); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("paths", len(paths)).Msg("Paths exported")
	return nil
}

func exportGraph(path string, g *models.Graph) error {
	var exporter parser.Exporter
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		exporter = parser.NewYAMLCodec()
	case ".json":
		exporter = parser.NewJSONCodec()
	case ".edges", ".edgelist", ".txt":
		exporter = parser.NewEdgeListCodec()
	default:
		return fmt.Errorf("no exporter for %q", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create graph file: %w", err)
	}
	defer f.Close()
	if err := exporter.Export(g, f); err != nil {
		return err
	}
	log.Info().Str("path", path).Str("format", exporter.Format()).Msg("Graph exported")
	return nil
}

func runPoints(args []string) error {
	fs := flag.NewFlagSet("points", flag.ExitOnError)
	var common commonFlags
	common.register(fs, "blues", shading.HowEqHist)

	xCol := fs.String("x", "x", "x column")
	yCol := fs.String("y", "y", "y column")
	valueCol := fs.String("value", "", "value column, each point counts 1 when empty")
	categoryCol := fs.String("category", "", "category column for categorical shading")
	reduction := fs.String("reduction", string(pipeline.DefaultRenderOptions().Reduction), "count, sum, mean, max or min")
	fs.Parse(reorder(args, fs))

	if fs.NArg() != 1 {
		return fmt.Errorf("expected one points CSV, got %d arguments", fs.NArg())
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()
	ps, err := parser.ReadPointsCSV(f, *xCol, *yCol, *valueCol, *categoryCol)
	if err != nil {
		return err
	}

	opts := pipeline.DefaultRenderOptions()
	if err := common.apply(&opts); err != nil {
		return err
	}
	if opts.Reduction, err = parseReduction(*reduction); err != nil {
		return err
	}
	if *categoryCol != "" {
		var palette shading.ColorMap
		if fs.Lookup("cmap").Value.String() != "blues" {
			palette = opts.Shade.Cmap
		}
		opts.ColorKey = shading.CategoryColors(sortedCategories(ps), palette)
		opts.Shade.Cmap = shading.Gray
	}

	log.Info().Int("points", len(ps.Points)).Bool("categorical", opts.ColorKey != nil).Msg("Rendering points")
	img, err := pipeline.RenderPoints(ps, opts)
	if err != nil {
		return err
	}
	return writePNG(common.output, common.display(img))
}

func runRaster(args []string) error {
	fs := flag.NewFlagSet("raster", flag.ExitOnError)
	var common commonFlags
	common.register(fs, "elevation", shading.HowLinear)

	hillshade := fs.Bool("hillshade", false, "stack a hillshade layer on top")
	azimuth := fs.Float64("azimuth", 315, "hillshade light azimuth in degrees")
	altitude := fs.Float64("altitude", 45, "hillshade light altitude in degrees")
	method := fs.String("resample", raster.Bilinear.String(), "nearest or bilinear")
	fs.Parse(reorder(args, fs))

	if fs.NArg() != 1 {
		return fmt.Errorf("expected one ESRI ASCII grid, got %d arguments", fs.NArg())
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()
	grid, err := raster.ReadASCII(f)
	if err != nil {
		return err
	}

	opts := pipeline.DefaultRenderOptions()
	if err := common.apply(&opts); err != nil {
		return err
	}
	if opts.Resample, err = raster.ParseMethod(*method); err != nil {
		return err
	}
	opts.Shade.MinAlpha = opts.Shade.Alpha
	opts.Hillshade = *hillshade
	opts.Azimuth = *azimuth
	opts.Altitude = *altitude

	rows, cols := grid.Data.Dims()
	log.Info().Int("rows", rows).Int("cols", cols).Bool("hillshade", *hillshade).Msg("Rendering raster")
	img, err := pipeline.RenderRaster(grid, opts)
	if err != nil {
		return err
	}
	return writePNG(common.output, common.display(img))
}
