package aggregation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/gilchrisn/graph-bundling-service/pkg/models"
	"github.com/gilchrisn/graph-bundling-service/pkg/raster"
)

var unit = models.Bounds{XMin: 0, XMax: 1, YMin: 0, YMax: 1}

func mustCanvas(t *testing.T, w, h int, b models.Bounds) *Canvas {
	t.Helper()
	c, err := NewCanvas(w, h, b)
	require.NoError(t, err)
	return c
}

func TestNewCanvasInvalid(t *testing.T) {
	_, err := NewCanvas(0, 10, unit)
	assert.ErrorIs(t, err, ErrInvalidCanvas)
	_, err = NewCanvas(10, 10, models.Bounds{XMin: 1, XMax: 1, YMin: 0, YMax: 1})
	assert.ErrorIs(t, err, ErrInvalidCanvas)
	_, err = NewCanvas(10, 10, models.EmptyBounds())
	assert.ErrorIs(t, err, ErrInvalidCanvas)
}

func TestPixelMapping(t *testing.T) {
	c := mustCanvas(t, 4, 2, unit)

	col, row, ok := c.Pixel(0, 0)
	require.True(t, ok)
	assert.Equal(t, 0, col)
	assert.Equal(t, 1, row, "y=0 is the bottom row")

	col, row, ok = c.Pixel(1, 1)
	require.True(t, ok)
	assert.Equal(t, 3, col, "max edge clamps into last column")
	assert.Equal(t, 0, row)

	col, _, ok = c.Pixel(0.5, 0.5)
	require.True(t, ok)
	assert.Equal(t, 2, col)

	_, _, ok = c.Pixel(1.01, 0.5)
	assert.False(t, ok)
	_, _, ok = c.Pixel(math.NaN(), 0.5)
	assert.False(t, ok)

	x, y := c.CellCenter(0, 0)
	assert.InDelta(t, 0.125, x, 1e-12)
	assert.InDelta(t, 0.75, y, 1e-12)
}

func testPoints() *models.PointSet {
	return &models.PointSet{Points: []models.Point{
		{X: 0.1, Y: 0.1, Value: 2, Category: "b"},
		{X: 0.2, Y: 0.2, Value: 4, Category: "a"},
		{X: 0.9, Y: 0.9, Value: 6, Category: "a"},
		{X: 5, Y: 5, Value: 100, Category: "c"},
	}}
}

func TestPointsReductions(t *testing.T) {
	c := mustCanvas(t, 2, 2, unit)
	ps := testPoints()

	// bottom-left cell is row 1 col 0; top-right is row 0 col 1
	cases := []struct {
		r        Reduction
		bl, tr   float64
		emptyNaN bool
	}{
		{Count, 2, 1, false},
		{Sum, 6, 6, false},
		{Mean, 3, 6, true},
		{Max, 4, 6, true},
		{Min, 2, 6, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.r), func(t *testing.T) {
			grid, err := c.Points(ps, tc.r)
			require.NoError(t, err)
			rows, cols := grid.Dims()
			assert.Equal(t, 2, rows)
			assert.Equal(t, 2, cols)
			assert.Equal(t, tc.bl, grid.At(1, 0))
			assert.Equal(t, tc.tr, grid.At(0, 1))
			if tc.emptyNaN {
				assert.True(t, math.IsNaN(grid.At(0, 0)))
			} else {
				assert.Equal(t, 0.0, grid.At(0, 0))
			}
		})
	}

	_, err := c.Points(ps, "median")
	assert.Error(t, err)
}

func TestCategoricalPoints(t *testing.T) {
	c := mustCanvas(t, 2, 2, unit)
	cat := c.CategoricalPoints(testPoints())

	assert.Equal(t, []string{"a", "b", "c"}, cat.Categories)
	assert.Equal(t, 1.0, cat.Layers["a"].At(1, 0))
	assert.Equal(t, 1.0, cat.Layers["a"].At(0, 1))
	assert.Equal(t, 1.0, cat.Layers["b"].At(1, 0))
	assert.Equal(t, 0.0, mat.Sum(cat.Layers["c"]))

	total := cat.Total()
	assert.Equal(t, 2.0, total.At(1, 0))
	assert.Equal(t, 3.0, mat.Sum(total))
}

func TestNodes(t *testing.T) {
	c := mustCanvas(t, 1, 1, unit)
	g := models.NewGraph()
	g.AddNode("a", 0.5, 0.5)
	g.AddNode("b", 0.5, 0.5)
	g.AddNode("c", 0.5, 0.5)
	g.SetAttribute(0, "score", "1.5")
	g.SetAttribute(1, "score", "2.5")

	count, err := c.Nodes(g, "", Count)
	require.NoError(t, err)
	assert.Equal(t, 3.0, count.At(0, 0))

	sum, err := c.Nodes(g, "score", Sum)
	require.NoError(t, err)
	assert.Equal(t, 4.0, sum.At(0, 0))

	g.SetAttribute(2, "score", "high")
	_, err = c.Nodes(g, "score", Sum)
	assert.Error(t, err)
}

func TestLinesHorizontal(t *testing.T) {
	c := mustCanvas(t, 10, 1, unit)
	line := Line{Points: []r2.Vec{{X: 0, Y: 0.5}, {X: 0.5, Y: 0.5}, {X: 1, Y: 0.5}}, Value: 1}

	grid, err := c.Lines([]Line{line}, Count)
	require.NoError(t, err)
	for col := 0; col < 10; col++ {
		assert.Equal(t, 1.0, grid.At(0, col), "column %d", col)
	}
}

func TestLinesDiagonalCoversEveryRowAndColumn(t *testing.T) {
	c := mustCanvas(t, 8, 8, unit)
	// cell centers of the bottom-left and top-right corners
	line := Line{Points: []r2.Vec{{X: 0.0625, Y: 0.0625}, {X: 0.9375, Y: 0.9375}}}

	grid, err := c.Lines([]Line{line}, Count)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		assert.Equal(t, 1.0, grid.At(7-i, i), "diagonal cell %d", i)
	}
	assert.Equal(t, 8.0, mat.Sum(grid))
}

func TestLinesOverlapAndClip(t *testing.T) {
	c := mustCanvas(t, 4, 1, unit)
	lines := []Line{
		{Points: []r2.Vec{{X: -5, Y: 0.5}, {X: 5, Y: 0.5}}, Value: 2},
		{Points: []r2.Vec{{X: 0.1, Y: 0.5}, {X: 0.3, Y: 0.5}}, Value: 4},
		{Points: []r2.Vec{{X: -1, Y: 5}, {X: 2, Y: 5}}, Value: 8},
	}

	count, err := c.Lines(lines, Count)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 1, 1}, mat.Row(nil, 0, count))

	maxGrid, err := c.Lines(lines, Max)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 4, 2, 2}, mat.Row(nil, 0, maxGrid))
}

func TestLinesRevisitCountsOnce(t *testing.T) {
	c := mustCanvas(t, 4, 1, unit)
	// out to the last column, back to the first, then out again
	line := Line{Points: []r2.Vec{{X: 0.1, Y: 0.5}, {X: 0.9, Y: 0.5}, {X: 0.1, Y: 0.5}, {X: 0.6, Y: 0.5}}, Value: 3}

	count, err := c.Lines([]Line{line}, Count)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 1}, mat.Row(nil, 0, count))

	sum, err := c.Lines([]Line{line, line}, Sum)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 6, 6, 6}, mat.Row(nil, 0, sum))
}

func TestLinesSinglePoint(t *testing.T) {
	c := mustCanvas(t, 2, 2, unit)
	grid, err := c.Lines([]Line{{Points: []r2.Vec{{X: 0.9, Y: 0.9}}}}, Count)
	require.NoError(t, err)
	assert.Equal(t, 1.0, grid.At(0, 1))
	assert.Equal(t, 1.0, mat.Sum(grid))
}

func TestRasterDelegates(t *testing.T) {
	c := mustCanvas(t, 2, 1, models.Bounds{XMin: 0, XMax: 2, YMin: 0, YMax: 1})
	g, err := raster.NewGrid(mat.NewDense(1, 1, []float64{3}), unit)
	require.NoError(t, err)

	out, err := c.Raster(g, raster.Nearest)
	require.NoError(t, err)
	assert.Equal(t, 3.0, out.At(0, 0))
	assert.True(t, math.IsNaN(out.At(0, 1)))
}
