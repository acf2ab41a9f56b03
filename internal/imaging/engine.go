// Package imaging bakes a panned and zoomed source picture into the square
// JPEG stored on a goal.
//
// The editor shows the source centred in a square viewport, shifted by an
// offset and scaled around its centre. Bake reproduces that view on an
// output canvas that is usually larger than the viewport, so the offset is
// multiplied by outputSize/viewportSize while the scale is applied as is.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/webp"
)

const (
	DefaultOutputSize = 800
	DefaultQuality    = 90
	DefaultMinScale   = 0.5
	DefaultMaxScale   = 3.0
)

var (
	ErrEmptySource     = errors.New("empty image source")
	ErrInvalidViewport = errors.New("viewport size must be positive")
	ErrDecode          = errors.New("cannot decode image")
)

// Options configures an Engine.
type Options struct {
	OutputSize int
	Quality    int
	MinScale   float64
	MaxScale   float64
}

// DefaultOptions returns the 800px, quality 90 setup.
func DefaultOptions() Options {
	return Options{
		OutputSize: DefaultOutputSize,
		Quality:    DefaultQuality,
		MinScale:   DefaultMinScale,
		MaxScale:   DefaultMaxScale,
	}
}

// View is the editor state at the moment the user confirmed the crop.
// Offsets are in viewport units relative to the viewport centre.
type View struct {
	Scale        float64
	OffsetX      float64
	OffsetY      float64
	ViewportSize float64
}

// Engine renders Views. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	opts Options
}

func New(opts Options) *Engine {
	def := DefaultOptions()
	if opts.OutputSize <= 0 {
		opts.OutputSize = def.OutputSize
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	if opts.MinScale <= 0 {
		opts.MinScale = def.MinScale
	}
	if opts.MaxScale < opts.MinScale {
		opts.MaxScale = def.MaxScale
	}
	return &Engine{opts: opts}
}

func (e *Engine) Options() Options { return e.opts }

// ClampScale bounds s to the configured zoom range. Zero means 1.
func (e *Engine) ClampScale(s float64) float64 {
	if s == 0 {
		return 1
	}
	if s < e.opts.MinScale {
		return e.opts.MinScale
	}
	if s > e.opts.MaxScale {
		return e.opts.MaxScale
	}
	return s
}

// Matrix returns the source-to-canvas affine transform for v. The source
// centre lands on canvas centre + ratio*offset and the picture is scaled by
// v.Scale around it.
func (e *Engine) Matrix(src image.Rectangle, v View) f64.Aff3 {
	size := float64(e.opts.OutputSize)
	ratio := size / v.ViewportSize
	scale := e.ClampScale(v.Scale)

	cx := float64(src.Min.X) + float64(src.Dx())/2
	cy := float64(src.Min.Y) + float64(src.Dy())/2

	tx := size/2 + v.OffsetX*ratio - scale*cx
	ty := size/2 + v.OffsetY*ratio - scale*cy
	return f64.Aff3{
		scale, 0, tx,
		0, scale, ty,
	}
}

// MapPoint applies m to (x, y).
func MapPoint(m f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// Bake decodes src and renders it on a black square canvas following v,
// returning JPEG bytes.
func (e *Engine) Bake(src []byte, v View) ([]byte, error) {
	if len(src) == 0 {
		return nil, ErrEmptySource
	}
	if v.ViewportSize <= 0 {
		return nil, ErrInvalidViewport
	}
	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %s image has no pixels", ErrDecode, format)
	}

	canvas := e.render(img, v)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: e.opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Engine) render(img image.Image, v View) *image.RGBA {
	size := e.opts.OutputSize
	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	// JPEG has no alpha, a cleared canvas encodes as black
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.CatmullRom.Transform(canvas, e.Matrix(img.Bounds(), v), img, img.Bounds(), draw.Over, nil)
	return canvas
}
