package detection

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/arturkwiek/SDD/internal/video"
)

// ErrInvalidDetection is returned for records that break the Detection invariants
var ErrInvalidDetection = errors.New("invalid detection")

// BBox is an axis-aligned box in pixel coordinates: x_min, y_min, x_max, y_max.
// It encodes to JSON as a 4-element array.
type BBox [4]float64

// Detection is one model-reported object instance in one frame
type Detection struct {
	FrameIndex int     `json:"frame"`
	Timestamp  float64 `json:"timestamp"` // Seconds since the start of the run
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"` // 0.0 to 1.0
	BBox       BBox    `json:"bbox"`
}

// Detector is the model boundary: a frame in, the detections on it out.
// Implementations stamp each detection with the frame's index and timestamp.
type Detector interface {
	Detect(ctx context.Context, frame *video.Frame) ([]Detection, error)
}

// Validate checks the Detection invariants
func (d Detection) Validate() error {
	switch {
	case d.FrameIndex < 0:
		return fmt.Errorf("%w: negative frame index %d", ErrInvalidDetection, d.FrameIndex)
	case math.IsNaN(d.Timestamp) || math.IsInf(d.Timestamp, 0) || d.Timestamp < 0:
		return fmt.Errorf("%w: bad timestamp %v", ErrInvalidDetection, d.Timestamp)
	case d.Class == "":
		return fmt.Errorf("%w: empty class label", ErrInvalidDetection)
	case math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1:
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidDetection, d.Confidence)
	case !d.BBox.finite():
		return fmt.Errorf("%w: non-finite bbox %v", ErrInvalidDetection, d.BBox)
	case !(d.BBox.XMin() < d.BBox.XMax()) || !(d.BBox.YMin() < d.BBox.YMax()):
		return fmt.Errorf("%w: degenerate bbox %v", ErrInvalidDetection, d.BBox)
	}
	return nil
}

func (b BBox) finite() bool {
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// XMin returns the left edge
func (b BBox) XMin() float64 { return b[0] }

// YMin returns the top edge
func (b BBox) YMin() float64 { return b[1] }

// XMax returns the right edge
func (b BBox) XMax() float64 { return b[2] }

// YMax returns the bottom edge
func (b BBox) YMax() float64 { return b[3] }

// Width returns the box width, or 0 for inverted boxes
func (b BBox) Width() float64 { return math.Max(0, b[2]-b[0]) }

// Height returns the box height, or 0 for inverted boxes
func (b BBox) Height() float64 { return math.Max(0, b[3]-b[1]) }

// Area returns the box area in square pixels
func (b BBox) Area() float64 { return b.Width() * b.Height() }

// Center returns the box centre point
func (b BBox) Center() (float64, float64) {
	return (b[0] + b[2]) / 2, (b[1] + b[3]) / 2
}

// IoU returns the intersection over union of two boxes
func (b BBox) IoU(o BBox) float64 {
	ix := math.Min(b[2], o[2]) - math.Max(b[0], o[0])
	iy := math.Min(b[3], o[3]) - math.Max(b[1], o[1])
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Clip clamps the box to a width x height frame
func (b BBox) Clip(width, height float64) BBox {
	clamp := func(v, hi float64) float64 { return math.Max(0, math.Min(v, hi)) }
	return BBox{clamp(b[0], width), clamp(b[1], height), clamp(b[2], width), clamp(b[3], height)}
}
