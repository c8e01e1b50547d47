package video

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// ImageSource yields a still image as a single frame at t=0
type ImageSource struct {
	img  image.Image
	done bool
}

// OpenImageSource decodes the image at path, honouring EXIF orientation
func OpenImageSource(path string) (*ImageSource, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return &ImageSource{img: img}, nil
}

// NewImageSource wraps an already decoded image
func NewImageSource(img image.Image) *ImageSource {
	return &ImageSource{img: img}
}

// Next returns the image once, then io.EOF
func (s *ImageSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.done {
		return nil, io.EOF
	}
	s.done = true
	return NewFrame(0, 0, s.img), nil
}

// FPS is always unknown for a still image
func (s *ImageSource) FPS() float64 { return 0 }

// Size returns the image size
func (s *ImageSource) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Close is a no-op
func (s *ImageSource) Close() error { return nil }
