package video

import (
	"context"
	"image"
)

// Frame is one decoded picture from a source
type Frame struct {
	Index     int
	Timestamp float64 // Seconds since the start of the run
	Image     image.Image
	Width     int
	Height    int
}

// NewFrame wraps img as frame index at timestamp ts
func NewFrame(index int, ts float64, img image.Image) *Frame {
	b := img.Bounds()
	return &Frame{
		Index:     index,
		Timestamp: ts,
		Image:     img,
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
}

// Source produces frames in order. Next returns io.EOF when a finite source
// is exhausted.
type Source interface {
	Next(ctx context.Context) (*Frame, error)
	// FPS returns the nominal frame rate, or 0 when unknown
	FPS() float64
	// Size returns the frame size, or zeros when unknown before the first frame
	Size() (int, int)
	Close() error
}
