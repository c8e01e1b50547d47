// Package analysis derives summaries from the artifacts of a finished run:
// per-class motion estimates, events ranked by frequency and classes ranked
// by how fast their threats move.
package analysis

import (
	"math"
	"sort"

	"github.com/arturkwiek/SDD/internal/aggregate"
	"github.com/arturkwiek/SDD/internal/detection"
	"github.com/arturkwiek/SDD/internal/threat"
)

// DefaultMaxDT is the largest gap in seconds between two detections of a
// class that still counts as the same object moving
const DefaultMaxDT = 1.0

// MotionStats is the speed estimate of one class. Without tracking IDs,
// consecutive detections of a class are assumed to be one object.
type MotionStats struct {
	Class         string
	Pairs         int
	MeanSpeedPx   float64 // pixels per second
	MaxSpeedPx    float64
	MeanSpeedNorm float64 // frame sizes per second
	MaxSpeedNorm  float64
}

// EstimateFrameSize approximates the frame size from the extent of all boxes.
// Both sides are at least 1.
func EstimateFrameSize(dets []detection.Detection) (width, height float64) {
	if len(dets) == 0 {
		return 1, 1
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, d := range dets {
		minX = math.Min(minX, d.BBox.XMin())
		minY = math.Min(minY, d.BBox.YMin())
		maxX = math.Max(maxX, d.BBox.XMax())
		maxY = math.Max(maxY, d.BBox.YMax())
	}
	return math.Max(1, maxX-minX), math.Max(1, maxY-minY)
}

// Motion estimates per-class speeds from consecutive detections of the same
// class whose timestamps differ by more than 0 and at most maxDT seconds.
// Classes without such a pair are omitted. The result is sorted by mean
// pixel speed, fastest first.
func Motion(dets []detection.Detection, maxDT float64) []MotionStats {
	if len(dets) == 0 {
		return []MotionStats{}
	}

	width, height := EstimateFrameSize(dets)

	out := []MotionStats{}
	for class, rows := range byClass(dets) {
		var st MotionStats
		var sumPx, sumNorm float64

		for i := 1; i < len(rows); i++ {
			prev, curr := rows[i-1], rows[i]
			dt := curr.Timestamp - prev.Timestamp
			if dt <= 0 || dt > maxDT {
				continue
			}

			cx0, cy0 := prev.BBox.Center()
			cx1, cy1 := curr.BBox.Center()
			dx, dy := cx1-cx0, cy1-cy0

			speedPx := math.Hypot(dx, dy) / dt
			speedNorm := math.Hypot(dx/width, dy/height) / dt

			st.Pairs++
			sumPx += speedPx
			sumNorm += speedNorm
			st.MaxSpeedPx = math.Max(st.MaxSpeedPx, speedPx)
			st.MaxSpeedNorm = math.Max(st.MaxSpeedNorm, speedNorm)
		}

		if st.Pairs == 0 {
			continue
		}
		st.Class = class
		st.MeanSpeedPx = sumPx / float64(st.Pairs)
		st.MeanSpeedNorm = sumNorm / float64(st.Pairs)
		out = append(out, st)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanSpeedPx != out[j].MeanSpeedPx {
			return out[i].MeanSpeedPx > out[j].MeanSpeedPx
		}
		return out[i].Class < out[j].Class
	})
	return out
}

// byClass groups detections by class, each group ordered by timestamp then frame
func byClass(dets []detection.Detection) map[string][]detection.Detection {
	groups := make(map[string][]detection.Detection)
	for _, d := range dets {
		groups[d.Class] = append(groups[d.Class], d)
	}
	for _, rows := range groups {
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Timestamp != rows[j].Timestamp {
				return rows[i].Timestamp < rows[j].Timestamp
			}
			return rows[i].FrameIndex < rows[j].FrameIndex
		})
	}
	return groups
}

// EventsByCount returns a copy of events sorted by count descending, ties by class
func EventsByCount(events []aggregate.ClassEvent) []aggregate.ClassEvent {
	out := make([]aggregate.ClassEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Class < out[j].Class
	})
	return out
}

// MovingThreat joins the threat summary of a class with its motion estimate
type MovingThreat struct {
	Class         string
	Count         int
	Dominant      threat.Level
	MeanThreat    float64
	Pairs         int
	MeanSpeedNorm float64
	MaxSpeedNorm  float64
	Index         float64 // MeanThreat * MeanSpeedNorm
}

// MovingThreats scores every detection against the estimated frame size and
// ranks the classes that also have a motion estimate by mean threat times
// mean normalized speed, highest first.
func MovingThreats(dets []detection.Detection, maxDT float64) []MovingThreat {
	out := []MovingThreat{}
	if len(dets) == 0 {
		return out
	}

	width, height := EstimateFrameSize(dets)
	w, h := int(math.Ceil(width)), int(math.Ceil(height))

	tracker := threat.NewTracker()
	for _, d := range dets {
		tracker.Observe(d.Class, threat.Assess(d, w, h))
	}
	summaries := make(map[string]threat.ClassThreat)
	for _, ct := range tracker.Summary() {
		summaries[ct.Class] = ct
	}

	for _, m := range Motion(dets, maxDT) {
		ct := summaries[m.Class]
		out = append(out, MovingThreat{
			Class:         m.Class,
			Count:         ct.Count,
			Dominant:      ct.Dominant,
			MeanThreat:    ct.MeanScore,
			Pairs:         m.Pairs,
			MeanSpeedNorm: m.MeanSpeedNorm,
			MaxSpeedNorm:  m.MaxSpeedNorm,
			Index:         ct.MeanScore * m.MeanSpeedNorm,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index > out[j].Index
		}
		return out[i].Class < out[j].Class
	})
	return out
}
