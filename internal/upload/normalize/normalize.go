// Package normalize turns uploaded photos into upright, bounded-width,
// opaque JPEGs.
//
// Normalization is best effort. When an image cannot be decoded or
// re-encoded, the original bytes are stored instead and the failure is logged
// with event=image_normalize_fallback.
package normalize

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
)

const (
	DefaultMaxWidth = 1920
	DefaultQuality  = 85

	// ContentType is the type of every successfully normalized image.
	ContentType = "image/jpeg"

	fallbackEvent = "image_normalize_fallback"
)

// Normalizer holds the resize and encode settings.
type Normalizer struct {
	MaxWidth int
	Quality  int
	Logger   *slog.Logger
}

// New returns a Normalizer, substituting defaults for non-positive settings.
func New(maxWidth, quality int, logger *slog.Logger) *Normalizer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Normalizer{MaxWidth: maxWidth, Quality: quality, Logger: logger}
}

// Normalize returns raw as a JPEG with orientation applied, width capped at
// MaxWidth and transparency flattened onto white. It never fails: on any
// decode or encode error raw is returned unchanged.
func (n *Normalizer) Normalize(ctx context.Context, raw []byte) []byte {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		n.fallback(ctx, "decode", err, len(raw))
		return raw
	}

	out := n.transform(img, orientation(raw))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: n.Quality}); err != nil {
		n.fallback(ctx, "encode", err, len(raw))
		return raw
	}

	if n.Logger != nil {
		b := out.Bounds()
		n.Logger.DebugContext(ctx, "image normalized",
			"source_format", format,
			"width", b.Dx(),
			"height", b.Dy(),
			"bytes_in", len(raw),
			"bytes_out", buf.Len(),
		)
	}
	return buf.Bytes()
}

// transform applies rotation, downscaling and flattening, in that order.
func (n *Normalizer) transform(img image.Image, orient int) image.Image {
	img = rotate(img, orient)
	img = n.downscale(img)
	return flatten(img)
}

// rotate applies the EXIF orientation. Mirrored orientations are ignored.
func rotate(img image.Image, orient int) image.Image {
	switch orient {
	case 3:
		return imaging.Rotate180(img)
	case 6:
		return imaging.Rotate270(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// downscale shrinks img to MaxWidth, truncating the scaled height. Images
// already within bounds are returned as is.
func (n *Normalizer) downscale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= n.MaxWidth {
		return img
	}
	ratio := float64(n.MaxWidth) / float64(w)
	newH := max(int(float64(h)*ratio), 1)

	dst := image.NewRGBA(image.Rect(0, 0, n.MaxWidth, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// flatten composites a non-opaque image over white. JPEG has no alpha.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// orientation reads the EXIF orientation tag, or 0 when absent.
func orientation(raw []byte) int {
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return v
}

func (n *Normalizer) fallback(ctx context.Context, stage string, err error, size int) {
	if n.Logger == nil {
		return
	}
	n.Logger.WarnContext(ctx, "image normalization failed, storing original bytes",
		"event", fallbackEvent,
		"stage", stage,
		"bytes", size,
		"error", err,
	)
}
