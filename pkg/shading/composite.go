package shading

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/draw"
)

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Spread grows every non-transparent pixel into a (2px+1) square, compositing
// overlapping neighbours with Over.
func Spread(img image.Image, px int) *image.NRGBA {
	src := toNRGBA(img)
	if px <= 0 {
		out := image.NewNRGBA(src.Bounds())
		draw.Draw(out, out.Bounds(), src, image.Point{}, draw.Src)
		return out
	}

	b := src.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.NRGBAAt(x, y)
			if c.A == 0 {
				continue
			}
			r := image.Rect(x-px, y-px, x+px+1, y+px+1).Intersect(b)
			draw.Draw(out, r, image.NewUniform(c), image.Point{}, draw.Over)
		}
	}
	return out
}

// Stack composites images with Over; later images are drawn on top. All
// images are aligned at their top-left corners on a canvas the size of the
// first.
func Stack(imgs ...image.Image) (*image.NRGBA, error) {
	if len(imgs) == 0 {
		return nil, fmt.Errorf("nothing to stack: %w", ErrInvalidOptions)
	}
	b := imgs[0].Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for _, img := range imgs {
		draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Over)
	}
	return out, nil
}

// SetBackground fills transparent areas with c
func SetBackground(img image.Image, c color.Color) *image.NRGBA {
	b := img.Bounds()
	bg := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(bg, bg.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	out, _ := Stack(bg, img)
	return out
}

// Resize scales img to width x height with bilinear filtering
func Resize(img image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// EncodePNG writes img as PNG
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}
