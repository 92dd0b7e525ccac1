// Package capture grabs the game's rendered surface on a fixed cadence and
// publishes immutable Frame snapshots to subscribers.
package capture

import (
	"image"
	"time"

	"hud-tracker/pkg/geometry"
)

// Frame is one captured image plus its capture metadata. A Frame is created
// by the capture loop and never mutated afterwards; it is safe to share
// read-only across concurrently running analyzers.
type Frame struct {
	CapturedAt time.Time

	// Pixel geometry. Pix holds contiguous RGBA rows of length Stride.
	Width  int
	Height int
	Stride int
	Pix    []byte

	// Screen-space origin of the captured rectangle. Adding these to
	// frame-local coordinates yields absolute screen coordinates.
	Left int
	Top  int
}

// NewFrame wraps a captured RGBA image. The image buffer is adopted, not
// copied; the caller must not write to it afterwards.
func NewFrame(img *image.RGBA, origin image.Point, at time.Time) *Frame {
	b := img.Bounds()
	return &Frame{
		CapturedAt: at,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Stride:     img.Stride,
		Pix:        img.Pix,
		Left:       origin.X,
		Top:        origin.Y,
	}
}

// RGBAAt returns the pixel at frame-local (x, y). Out-of-bounds coordinates
// return black.
func (f *Frame) RGBAAt(x, y int) (r, g, b, a uint8) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0, 0, 0, 0
	}
	off := y*f.Stride + x*4
	return f.Pix[off], f.Pix[off+1], f.Pix[off+2], f.Pix[off+3]
}

// Resolve resolves a normalized region against this frame's dimensions.
func (f *Frame) Resolve(region geometry.NormalizedRegion) geometry.RectInt {
	return region.ToPixelRect(f.Width, f.Height)
}

// ToImage returns the frame contents as an image.RGBA sharing the frame's
// pixel buffer. The returned image must be treated as read-only.
func (f *Frame) ToImage() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Stride,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}
