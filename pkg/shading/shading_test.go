package shading

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-bundling-service/pkg/aggregation"
)

func grayOpts(how string) Options {
	return Options{Cmap: Gray, How: how, Alpha: 255, MinAlpha: 40}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff8000")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, G: 128, B: 0, A: 255}, c)

	c, err = ParseColor("DarkBlue")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0, G: 0, B: 139, A: 255}, c)

	for _, bad := range []string{"#ff", "#zzzzzz", "notacolor"} {
		_, err := ParseColor(bad)
		assert.ErrorIs(t, err, ErrInvalidOptions, bad)
	}
}

func TestLookupColorMap(t *testing.T) {
	cm, err := LookupColorMap("Fire")
	require.NoError(t, err)
	assert.Equal(t, Fire, cm)

	cm, err = LookupColorMap("#ff0000, blue")
	require.NoError(t, err)
	assert.Len(t, cm, 2)

	_, err = LookupColorMap("plaid")
	assert.ErrorIs(t, err, ErrInvalidOptions)
	_, err = NewColorMap()
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestColorMapAt(t *testing.T) {
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, Gray.At(0))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, Gray.At(1))
	assert.Equal(t, color.RGBA{128, 128, 128, 255}, Gray.At(0.5))
	assert.Equal(t, Gray.At(1), Gray.At(7))
}

func TestShadeLinear(t *testing.T) {
	agg := mat.NewDense(2, 2, []float64{0, 1, 2, 3})
	img, err := Shade(agg, grayOpts(HowLinear))
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	assert.Equal(t, uint8(0), img.NRGBAAt(0, 0).A, "zero cell is transparent")
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, img.NRGBAAt(1, 0))
	assert.Equal(t, color.NRGBA{128, 128, 128, 255}, img.NRGBAAt(0, 1))
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, img.NRGBAAt(1, 1))
}

func TestShadeKeepZero(t *testing.T) {
	opts := grayOpts(HowLinear)
	opts.KeepZero = true
	img, err := Shade(mat.NewDense(1, 3, []float64{0, 4, math.NaN()}), opts)
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, img.NRGBAAt(0, 0), "zero is the low end of the ramp")
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, img.NRGBAAt(1, 0))
	assert.Equal(t, uint8(0), img.NRGBAAt(2, 0).A, "NaN stays transparent")
}

func TestShadeEqHist(t *testing.T) {
	agg := mat.NewDense(1, 4, []float64{1, 2, 100, math.NaN()})
	img, err := Shade(agg, grayOpts(HowEqHist))
	require.NoError(t, err)

	assert.Equal(t, uint8(255), img.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(128), img.NRGBAAt(1, 0).R, "middle rank sits mid-ramp")
	assert.Equal(t, uint8(0), img.NRGBAAt(2, 0).R)
	assert.Equal(t, uint8(0), img.NRGBAAt(3, 0).A, "NaN cell is transparent")

	linear, err := Shade(agg, grayOpts(HowLinear))
	require.NoError(t, err)
	assert.Greater(t, linear.NRGBAAt(1, 0).R, uint8(250))
}

func TestShadeLogAndCbrt(t *testing.T) {
	agg := mat.NewDense(1, 3, []float64{1, 2, 9})
	for _, how := range []string{HowLog, HowCbrt} {
		img, err := Shade(agg, grayOpts(how))
		require.NoError(t, err)
		lin, err := Shade(agg, grayOpts(HowLinear))
		require.NoError(t, err)

		assert.Equal(t, uint8(255), img.NRGBAAt(0, 0).R, how)
		assert.Equal(t, uint8(0), img.NRGBAAt(2, 0).R, how)
		// compressive scales push low values further up the ramp
		assert.Less(t, img.NRGBAAt(1, 0).R, lin.NRGBAAt(1, 0).R, how)
	}
}

func TestShadeSpan(t *testing.T) {
	opts := grayOpts(HowLinear)
	opts.Span = &[2]float64{0, 10}
	img, err := Shade(mat.NewDense(1, 2, []float64{5, 20}), opts)
	require.NoError(t, err)
	assert.Equal(t, uint8(128), img.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(0), img.NRGBAAt(1, 0).R)
}

func TestShadeSingleColorRampsAlpha(t *testing.T) {
	opts := Options{Cmap: MustColorMap("red"), How: HowLinear, Alpha: 255, MinAlpha: 40}
	img, err := Shade(mat.NewDense(1, 2, []float64{1, 5}), opts)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 0, 0, 40}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, img.NRGBAAt(1, 0))
}

func TestShadeUniformIsFullIntensity(t *testing.T) {
	for _, how := range []string{HowLinear, HowEqHist} {
		img, err := Shade(mat.NewDense(1, 2, []float64{3, 3}), grayOpts(how))
		require.NoError(t, err)
		assert.Equal(t, uint8(0), img.NRGBAAt(0, 0).R, how)
	}
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	cases := map[string]func(*Options){
		"how":       func(o *Options) { o.How = "sqrt" },
		"empty map": func(o *Options) { o.Cmap = nil },
		"alpha":     func(o *Options) { o.MinAlpha = 200; o.Alpha = 100 },
		"span":      func(o *Options) { o.Span = &[2]float64{3, 3} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			o := DefaultOptions()
			mutate(&o)
			_, err := Shade(mat.NewDense(1, 1, []float64{1}), o)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestShadeCategorical(t *testing.T) {
	cat := &aggregation.Categorical{
		Categories: []string{"a", "b"},
		Layers: map[string]*mat.Dense{
			"a": mat.NewDense(1, 3, []float64{2, 0, 0}),
			"b": mat.NewDense(1, 3, []float64{2, 1, 0}),
		},
	}
	key := map[string]color.Color{
		"a": color.RGBA{255, 0, 0, 255},
		"b": color.RGBA{0, 0, 255, 255},
	}

	img, err := ShadeCategorical(cat, key, Options{How: HowLinear, Alpha: 255, MinAlpha: 40})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{128, 0, 128, 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{0, 0, 255, 40}, img.NRGBAAt(1, 0))
	assert.Equal(t, uint8(0), img.NRGBAAt(2, 0).A)

	delete(key, "b")
	_, err = ShadeCategorical(cat, key, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestSpread(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 5, 5))
	src.SetNRGBA(2, 2, color.NRGBA{255, 0, 0, 255})

	out := Spread(src, 1)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			inside := x >= 1 && x <= 3 && y >= 1 && y <= 3
			if inside {
				assert.Equal(t, color.NRGBA{255, 0, 0, 255}, out.NRGBAAt(x, y), "(%d,%d)", x, y)
			} else {
				assert.Equal(t, uint8(0), out.NRGBAAt(x, y).A, "(%d,%d)", x, y)
			}
		}
	}

	same := Spread(src, 0)
	assert.Equal(t, src.Pix, same.Pix)
}

func TestStackAndBackground(t *testing.T) {
	bottom := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	bottom.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	bottom.SetNRGBA(1, 0, color.NRGBA{255, 0, 0, 255})
	top := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	top.SetNRGBA(1, 0, color.NRGBA{0, 0, 255, 255})

	out, err := Stack(bottom, top)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{0, 0, 255, 255}, out.NRGBAAt(1, 0))

	_, err = Stack()
	assert.ErrorIs(t, err, ErrInvalidOptions)

	bg := SetBackground(top, color.White)
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, bg.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{0, 0, 255, 255}, bg.NRGBAAt(1, 0))
}

func TestResizeAndEncode(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(src.Pix); i += 4 {
		copy(src.Pix[i:], []uint8{10, 20, 30, 255})
	}

	out := Resize(src, 4, 6)
	assert.Equal(t, image.Rect(0, 0, 4, 6), out.Bounds())
	got := out.NRGBAAt(2, 3)
	assert.InDelta(t, 10, int(got.R), 1)
	assert.InDelta(t, 20, int(got.G), 1)
	assert.InDelta(t, 30, int(got.B), 1)
	assert.Equal(t, uint8(255), got.A)

	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, out))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, out.Bounds(), decoded.Bounds())
}

func TestCategoryColors(t *testing.T) {
	key := CategoryColors([]string{"a", "b", "c"}, MustColorMap("red", "blue"))
	assert.Equal(t, color.Color(color.RGBA{R: 255, A: 255}), key["a"])
	assert.Equal(t, color.Color(color.RGBA{B: 255, A: 255}), key["b"])
	assert.Equal(t, key["a"], key["c"])

	key = CategoryColors([]string{"x"}, nil)
	assert.Equal(t, color.Color(Category10[0]), key["x"])
}
