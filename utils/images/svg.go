package images

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const (
	// size assumed for artwork without viewBox
	fallbackSVGSide = 512
	// largest side of rasterized artwork
	maxSVGSide = 4096
)

// fitSize computes raster size for artwork with intrinsic size iw x ih. Zero
// width or height is derived from the other one keeping proportions, when both
// are zero intrinsic size is used, when both are set artwork is fitted into
// the box. Result never exceeds maxSVGSide.
func fitSize(iw, ih, width, height int) (int, int) {
	if iw <= 0 {
		iw = fallbackSVGSide
	}
	if ih <= 0 {
		ih = fallbackSVGSide
	}

	scale := 1.0
	switch {
	case width > 0 && height > 0:
		scale = math.Min(float64(width)/float64(iw), float64(height)/float64(ih))
	case width > 0:
		scale = float64(width) / float64(iw)
	case height > 0:
		scale = float64(height) / float64(ih)
	}
	w, h := float64(iw)*scale, float64(ih)*scale

	if side := math.Max(w, h); side > maxSVGSide {
		w, h = w*maxSVGSide/side, h*maxSVGSide/side
	}
	return max(int(math.Round(w)), 1), max(int(math.Round(h)), 1)
}

// RasterizeSVG draws SVG artwork on white RGBA canvas, see fitSize for sizing
// rules.
func RasterizeSVG(data []byte, width, height int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	w, h := fitSize(int(math.Ceil(icon.ViewBox.W)), int(math.Ceil(icon.ViewBox.H)), width, height)
	icon.SetTarget(0, 0, float64(w), float64(h))

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, canvas, canvas.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	return canvas, nil
}
