package shading

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// ColorMap is an ordered color ramp from low to high values
type ColorMap []color.RGBA

// Predefined ramps
var (
	Blues     = MustColorMap("lightblue", "darkblue")
	Fire      = MustColorMap("black", "darkred", "red", "orangered", "orange", "yellow", "white")
	Gray      = MustColorMap("white", "black")
	Elevation = MustColorMap("aqua", "sandybrown", "limegreen", "green", "green", "darkgreen", "saddlebrown", "gray", "white")
)

var presets = map[string]ColorMap{
	"blues":     Blues,
	"fire":      Fire,
	"gray":      Gray,
	"elevation": Elevation,
}

// NewColorMap builds a ramp from SVG color names or #rrggbb hex strings
func NewColorMap(names ...string) (ColorMap, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("empty color map: %w", ErrInvalidOptions)
	}
	cm := make(ColorMap, 0, len(names))
	for _, name := range names {
		c, err := ParseColor(name)
		if err != nil {
			return nil, err
		}
		cm = append(cm, c)
	}
	return cm, nil
}

// MustColorMap is NewColorMap for package-level ramps
func MustColorMap(names ...string) ColorMap {
	cm, err := NewColorMap(names...)
	if err != nil {
		panic(err)
	}
	return cm
}

// LookupColorMap resolves a preset name or a comma-separated list of colors
func LookupColorMap(name string) (ColorMap, error) {
	if cm, ok := presets[strings.ToLower(name)]; ok {
		return cm, nil
	}
	parts := strings.Split(name, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return NewColorMap(parts...)
}

// ParseColor accepts an SVG color name or #rrggbb
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		if len(s) != 7 {
			return color.RGBA{}, fmt.Errorf("color %q: %w", s, ErrInvalidOptions)
		}
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("color %q: %w", s, ErrInvalidOptions)
		}
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
	}
	c, ok := colornames.Map[strings.ToLower(s)]
	if !ok {
		return color.RGBA{}, fmt.Errorf("unknown color %q: %w", s, ErrInvalidOptions)
	}
	return c, nil
}

// At interpolates the ramp at t in [0,1]
func (cm ColorMap) At(t float64) color.RGBA {
	if len(cm) == 1 {
		return cm[0]
	}
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(cm)-1)
	i := int(pos)
	if i >= len(cm)-1 {
		return cm[len(cm)-1]
	}
	f := pos - float64(i)
	lerp := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + f*(float64(b)-float64(a))))
	}
	a, b := cm[i], cm[i+1]
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: lerp(a.A, b.A)}
}

// Category10 is the default palette for categorical shading
var Category10 = MustColorMap(
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
)

// CategoryColors assigns palette colors to categories in order, cycling
// when there are more categories than colors. An empty palette uses
// Category10.
func CategoryColors(categories []string, palette ColorMap) map[string]color.Color {
	if len(palette) == 0 {
		palette = Category10
	}
	key := make(map[string]color.Color, len(categories))
	for i, name := range categories {
		key[name] = palette[i%len(palette)]
	}
	return key
}
