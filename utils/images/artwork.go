// Package images prepares entity artwork for embedding into the book.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"pdx/config"
)

var ErrUnsupported = errors.New("unsupported image type")

// Artwork is an image ready to be stored in the book.
type Artwork struct {
	Data     []byte
	MimeType string
	Ext      string
	Width    int
	Height   int
}

// core media types every reading system understands, anything else is
// converted to PNG
var coreTypes = map[string]bool{
	"jpg": true,
	"png": true,
	"gif": true,
}

func isSVG(data []byte) bool {
	head := data[:min(len(data), 1024)]
	return bytes.Contains(head, []byte("<svg")) || bytes.Contains(head, []byte("<!DOCTYPE svg"))
}

// PrepareArtwork detects image type and applies requested modifications.
// Original data is returned untouched when nothing has to change. SVG is
// never modified.
func PrepareArtwork(data []byte, cfg *config.ImagesConfig, log *zap.Logger) (*Artwork, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image: %w", ErrUnsupported)
	}

	if isSVG(data) {
		return &Artwork{Data: data, MimeType: "image/svg+xml", Ext: "svg"}, nil
	}

	kind, err := filetype.Image(data)
	if err != nil || kind == filetype.Unknown {
		return nil, fmt.Errorf("unable to detect image type: %w", ErrUnsupported)
	}

	art := &Artwork{
		Data:     data,
		MimeType: kind.MIME.Value,
		Ext:      kind.Extension,
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s image: %w", kind.Extension, err)
	}
	art.Width, art.Height = img.Bounds().Dx(), img.Bounds().Dy()

	changed := !coreTypes[art.Ext]
	if changed {
		log.Debug("Converting image to PNG", zap.String("type", art.Ext))
		art.MimeType, art.Ext = "image/png", "png"
	}

	if cfg.MaxHeight > 0 && art.Height > cfg.MaxHeight && art.Ext != "gif" {
		img = imaging.Resize(img, 0, cfg.MaxHeight, imaging.Lanczos)
		art.Width, art.Height = img.Bounds().Dx(), img.Bounds().Dy()
		changed = true
	}

	if cfg.RemovePNGTransparency && art.Ext == "png" && !isOpaque(img) {
		log.Debug("Removing PNG transparency")
		img = flatten(img)
		changed = true
	}

	if cfg.Optimize && art.Ext != "gif" {
		if isOpaque(img) && IsGrayscale(img) {
			img = toGray(img)
		}
		changed = true
	}

	if !changed {
		return art, nil
	}

	if art.Data, err = encode(img, art.Ext, cfg); err != nil {
		return nil, fmt.Errorf("unable to encode %s image: %w", art.Ext, err)
	}
	return art, nil
}

// Placeholder rasterizes SVG into PNG artwork of requested height (0 keeps
// SVG size).
func Placeholder(svg []byte, height int) (*Artwork, error) {
	img, err := RasterizeSVG(svg, 0, height)
	if err != nil {
		return nil, fmt.Errorf("unable to rasterize placeholder: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return nil, fmt.Errorf("unable to encode placeholder: %w", err)
	}
	return &Artwork{
		Data:     buf.Bytes(),
		MimeType: "image/png",
		Ext:      "png",
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
	}, nil
}

func encode(img image.Image, ext string, cfg *config.ImagesConfig) ([]byte, error) {
	switch strings.ToLower(ext) {
	case "jpg", "jpeg":
		return EncodeJPEG(img, cfg.JPEGQuality)
	case "png":
		buf := new(bytes.Buffer)
		if err := imaging.Encode(buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "gif":
		buf := new(bytes.Buffer)
		if err := imaging.Encode(buf, img, imaging.GIF); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%s: %w", ext, ErrUnsupported)
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return true
}

func flatten(img image.Image) image.Image {
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Over)
	return dst
}
