//go:build gocv

package video

import (
	"context"
	"fmt"
	"io"

	"github.com/benbjohnson/clock"
	"gocv.io/x/gocv"
)

// NativeAvailable reports whether this binary was built with OpenCV capture
const NativeAvailable = true

// GoCVSource reads frames through OpenCV's VideoCapture
type GoCVSource struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	live    bool
	fps     float64
	width   int
	height  int
	clock   clock.Clock
	start   int64
	index   int
	lastTS  float64
}

// OpenNativeSource opens in with OpenCV
func OpenNativeSource(in Input, opts SourceOptions) (Source, error) {
	var device interface{} = in.Location
	if in.Kind == KindCamera {
		device = in.Camera
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", in.Location, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("failed to open %s", in.Location)
	}

	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	return &GoCVSource{
		capture: capture,
		mat:     gocv.NewMat(),
		live:    in.Kind.Live(),
		fps:     capture.Get(gocv.VideoCaptureFPS),
		width:   int(capture.Get(gocv.VideoCaptureFrameWidth)),
		height:  int(capture.Get(gocv.VideoCaptureFrameHeight)),
		clock:   opts.Clock,
		start:   -1,
	}, nil
}

// Next reads the next frame, returning io.EOF when the capture ends
func (s *GoCVSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, io.EOF
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame %d: %w", s.index, err)
	}

	var ts float64
	if !s.live && s.fps > 0 {
		ts = float64(s.index) / s.fps
	} else {
		now := s.clock.Now().UnixNano()
		if s.start < 0 {
			s.start = now
		}
		ts = float64(now-s.start) / 1e9
	}
	if ts < s.lastTS {
		ts = s.lastTS
	}
	s.lastTS = ts

	frame := NewFrame(s.index, ts, img)
	s.index++
	return frame, nil
}

// FPS returns the capture frame rate, or 0 when unknown
func (s *GoCVSource) FPS() float64 { return s.fps }

// Size returns the capture frame size
func (s *GoCVSource) Size() (int, int) { return s.width, s.height }

// Close releases the capture
func (s *GoCVSource) Close() error {
	s.mat.Close()
	return s.capture.Close()
}
