package ai

import (
	"fmt"
	"sort"

	"github.com/arturkwiek/SDD/internal/detection"
)

// Candidate is one decoded box before non-maximum suppression
type Candidate struct {
	ClassID    int
	Confidence float64
	Box        detection.BBox
}

// YOLOOutput describes the [1, 4+C, N] output tensor of YOLOv8/YOLO11
// exports. Rows 0..3 hold the box centre and size in input pixels, the
// remaining C rows hold per-class scores.
type YOLOOutput struct {
	NumClasses int
	NumBoxes   int
	InputSize  int
}

// Decode picks the best class per box, drops boxes under minConfidence and
// scales the rest to a frameW x frameH frame.
func (o YOLOOutput) Decode(data []float32, minConfidence float64, frameW, frameH int) ([]Candidate, error) {
	want := (4 + o.NumClasses) * o.NumBoxes
	if len(data) != want {
		return nil, fmt.Errorf("unexpected output length: got %d, want %d", len(data), want)
	}

	n := o.NumBoxes
	scaleX := float64(frameW) / float64(o.InputSize)
	scaleY := float64(frameH) / float64(o.InputSize)

	var out []Candidate
	for i := 0; i < n; i++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < o.NumClasses; c++ {
			if s := data[(4+c)*n+i]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || float64(bestScore) < minConfidence {
			continue
		}

		cx, cy := float64(data[i]), float64(data[n+i])
		w, h := float64(data[2*n+i]), float64(data[3*n+i])
		box := detection.BBox{
			(cx - w/2) * scaleX,
			(cy - h/2) * scaleY,
			(cx + w/2) * scaleX,
			(cy + h/2) * scaleY,
		}.Clip(float64(frameW), float64(frameH))
		if box.Width() <= 0 || box.Height() <= 0 {
			continue
		}

		out = append(out, Candidate{ClassID: best, Confidence: float64(bestScore), Box: box})
	}
	return out, nil
}

// NMS runs per-class non-maximum suppression and returns the kept candidates
// by descending confidence.
func NMS(cands []Candidate, iouThreshold float64) []Candidate {
	sorted := append([]Candidate(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })

	kept := make([]Candidate, 0, len(sorted))
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].ClassID != sorted[i].ClassID {
				continue
			}
			if sorted[i].Box.IoU(sorted[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}
