// Package bundling implements force-directed kernel edge bundling.
//
// Every edge is resampled into a fixed number of points. On each iteration
// every interior point moves toward the corresponding points of the other
// edges, weighted by a Gaussian kernel whose bandwidth shrinks by a constant
// decay factor, so grouping anneals from coarse corridors to fine ones.
// The procedure stops at the iteration cap whether or not it has converged;
// Result.Converged reports which case occurred.
package bundling

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aclements/go-moremath/stats"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/gilchrisn/graph-bundling-service/pkg/models"
)

// Path is the bundled polyline for one input edge
type Path struct {
	EdgeIndex int      `json:"edgeIndex"`
	Source    string   `json:"source"`
	Target    string   `json:"target"`
	Points    []r2.Vec `json:"points"`
}

// Midpoint returns the middle sample of the path
func (p Path) Midpoint() r2.Vec {
	if len(p.Points) == 0 {
		return r2.Vec{}
	}
	n := len(p.Points)
	if n%2 == 1 {
		return p.Points[n/2]
	}
	return r2.Scale(0.5, r2.Add(p.Points[n/2-1], p.Points[n/2]))
}

// Stats summarizes how far interior points moved from their straight-line start
type Stats struct {
	MeanDisplacement float64 `json:"meanDisplacement"`
	MaxDisplacement  float64 `json:"maxDisplacement"`
	RuntimeMS        int64   `json:"runtimeMs"`
}

// Result is the outcome of one bundling run
type Result struct {
	Paths          []Path  `json:"paths"`
	Iterations     int     `json:"iterations"`
	Converged      bool    `json:"converged"` // false when the iteration cap was reached
	FinalBandwidth float64 `json:"finalBandwidth"`
	Stats          Stats   `json:"stats"`
}

// affine maps caller coordinates to and from the bundling frame
type affine struct {
	origin r2.Vec
	scale  float64
}

func (a affine) forward(p r2.Vec) r2.Vec {
	return r2.Scale(1/a.scale, r2.Sub(p, a.origin))
}

func (a affine) inverse(p r2.Vec) r2.Vec {
	return r2.Add(r2.Scale(a.scale, p), a.origin)
}

func frameFor(g *models.Graph, normalize bool) affine {
	identity := affine{scale: 1}
	if !normalize {
		return identity
	}
	b := g.Bounds()
	if b.IsEmpty() {
		return identity
	}
	s := math.Max(b.Width(), b.Height())
	if s == 0 {
		return affine{origin: r2.Vec{X: b.XMin, Y: b.YMin}, scale: 1}
	}
	return affine{origin: r2.Vec{X: b.XMin, Y: b.YMin}, scale: s}
}

// Bundle runs kernel edge bundling over the edges of g.
//
// The configuration is validated before any work. Edges referencing unknown
// nodes are rejected with models.ErrUnknownNode. An empty edge set yields an
// empty result. Cancellation is checked between iterations and between work
// chunks; a cancelled run returns the context error.
func Bundle(ctx context.Context, g *models.Graph, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("graph is nil")
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}

	startTime := time.Now()
	frame := frameFor(g, cfg.Normalize)
	st := newState(g, cfg, frame)

	result := &Result{
		Paths:          make([]Path, len(g.Edges)),
		FinalBandwidth: cfg.InitialBandwidth,
	}

	log.Debug().
		Int("edges", len(g.Edges)).
		Int("samples", cfg.Samples).
		Int("max_iterations", cfg.MaxIterations).
		Float64("bandwidth", cfg.InitialBandwidth).
		Msg("Starting edge bundling")

	// With Normalize set, h and Tolerance are unit-square quantities.
	h := cfg.InitialBandwidth
	if len(g.Edges) > 0 {
		for k := 0; k < cfg.MaxIterations; k++ {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("bundling cancelled at iteration %d: %w", k, err)
			}

			maxDisp, err := st.step(ctx, h)
			if err != nil {
				return nil, fmt.Errorf("iteration %d: %w", k, err)
			}
			result.Iterations = k + 1
			h *= cfg.Decay

			if cfg.Progress != nil {
				cfg.Progress(k+1, cfg.MaxIterations, maxDisp*frame.scale)
			}

			log.Debug().
				Int("iteration", k+1).
				Float64("max_displacement", maxDisp*frame.scale).
				Msg("Bundling iteration complete")

			if cfg.Tolerance > 0 && maxDisp < cfg.Tolerance {
				result.Converged = true
				break
			}
		}
	}
	result.FinalBandwidth = h

	displacements := make([]float64, 0, len(g.Edges)*cfg.Samples)
	for e, edge := range g.Edges {
		points := make([]r2.Vec, cfg.Samples)
		for i, p := range st.cur[e] {
			points[i] = frame.inverse(p)
			if i > 0 && i < cfg.Samples-1 {
				displacements = append(displacements, r2.Norm(r2.Sub(p, st.initial[e][i]))*frame.scale)
			}
		}
		result.Paths[e] = Path{
			EdgeIndex: e,
			Source:    edge.Source,
			Target:    edge.Target,
			Points:    points,
		}
	}

	if len(displacements) > 0 {
		sample := stats.Sample{Xs: displacements}
		result.Stats.MeanDisplacement = stats.Mean(displacements)
		_, result.Stats.MaxDisplacement = sample.Bounds()
	}
	result.Stats.RuntimeMS = time.Since(startTime).Milliseconds()

	return result, nil
}

// state holds the double-buffered sample positions of one run
type state struct {
	cfg     Config
	n       int
	weights []float64
	dirs    []r2.Vec
	initial [][]r2.Vec
	cur     [][]r2.Vec
	next    [][]r2.Vec
}

func newState(g *models.Graph, cfg Config, frame affine) *state {
	index := g.NodeIndex()
	m := len(g.Edges)
	st := &state{
		cfg:     cfg,
		n:       cfg.Samples,
		weights: make([]float64, m),
		dirs:    make([]r2.Vec, m),
		initial: make([][]r2.Vec, m),
		cur:     make([][]r2.Vec, m),
		next:    make([][]r2.Vec, m),
	}

	for e, edge := range g.Edges {
		a := frame.forward(g.Nodes[index[edge.Source]].Position())
		b := frame.forward(g.Nodes[index[edge.Target]].Position())

		st.weights[e] = edge.EffectiveWeight()
		if d := r2.Sub(b, a); r2.Norm(d) > 0 {
			st.dirs[e] = r2.Unit(d)
		}
		st.initial[e] = Resample([]r2.Vec{a, b}, st.n)
		st.cur[e] = append([]r2.Vec(nil), st.initial[e]...)
		st.next[e] = append([]r2.Vec(nil), st.initial[e]...)
	}

	return st
}

// step advances every edge by one iteration at bandwidth h and returns the
// largest single-point move. All reads come from cur and all writes go to
// next; the buffers swap only after every worker has finished.
func (st *state) step(ctx context.Context, h float64) (float64, error) {
	m := len(st.cur)
	cutoff := cutoffSigmas * h

	grids := make([]*grid, st.n)
	for i := 1; i < st.n-1; i++ {
		grids[i] = newGrid(cutoff, m)
		for e := 0; e < m; e++ {
			grids[i].insert(st.cur[e][i], e)
		}
	}

	workers := st.cfg.workers()
	chunk := m / (workers * 4)
	if chunk < 1 {
		chunk = 1
	}
	numChunks := (m + chunk - 1) / chunk
	chunkMax := make([]float64, numChunks)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for c := 0; c < numChunks; c++ {
		c := c
		lo, hi := c*chunk, (c+1)*chunk
		if hi > m {
			hi = m
		}
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for e := lo; e < hi; e++ {
				if d := st.moveEdge(e, h, cutoff, grids); d > chunkMax[c] {
					chunkMax[c] = d
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}

	st.cur, st.next = st.next, st.cur

	maxDisp := 0.0
	for _, d := range chunkMax {
		maxDisp = math.Max(maxDisp, d)
	}
	return maxDisp, nil
}

// moveEdge writes the updated interior points of edge a into next[a].
func (st *state) moveEdge(a int, h, cutoff float64, grids []*grid) float64 {
	n := st.n
	src := st.cur[a]
	dst := st.next[a]
	dst[0], dst[n-1] = src[0], src[n-1]

	maxDisp := 0.0
	for i := 1; i < n-1; i++ {
		p := src[i]
		var sum r2.Vec
		sumW := 0.0

		attract := func(b, j int) {
			q := st.cur[b][j]
			diff := r2.Sub(q, p)
			d := r2.Norm(diff)
			if d > cutoff {
				return
			}
			w := st.weights[b] * gaussian(d, h, st.cfg.MinDistance)
			sum = r2.Add(sum, r2.Scale(w, diff))
			sumW += w
		}

		// Same-direction edges pair sample i with i; opposed edges pair i with n-1-i.
		grids[i].near(p, func(b int) {
			if b != a && r2.Dot(st.dirs[a], st.dirs[b]) >= 0 {
				attract(b, i)
			}
		})
		mirror := n - 1 - i
		grids[mirror].near(p, func(b int) {
			if b != a && r2.Dot(st.dirs[a], st.dirs[b]) < 0 {
				attract(b, mirror)
			}
		})

		move := r2.Scale(st.cfg.Damping/(1+sumW), sum)
		dst[i] = r2.Add(p, move)
		if d := r2.Norm(move); d > maxDisp {
			maxDisp = d
		}
	}

	if st.cfg.Tension > 0 && n > 2 {
		smoothed := make([]r2.Vec, n)
		copy(smoothed, dst)
		for i := 1; i < n-1; i++ {
			mid := r2.Scale(0.5, r2.Add(dst[i-1], dst[i+1]))
			smoothed[i] = r2.Add(dst[i], r2.Scale(st.cfg.Tension, r2.Sub(mid, dst[i])))
		}
		for i := 1; i < n-1; i++ {
			if d := r2.Norm(r2.Sub(smoothed[i], src[i])); d > maxDisp {
				maxDisp = d
			}
		}
		copy(dst, smoothed)
	}

	return maxDisp
}
