package analysis

import (
	"testing"

	"github.com/arturkwiek/SDD/internal/aggregate"
	"github.com/arturkwiek/SDD/internal/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func det(frame int, ts float64, class string, box detection.BBox) detection.Detection {
	return detection.Detection{FrameIndex: frame, Timestamp: ts, Class: class, Confidence: 0.8, BBox: box}
}

func motionFixture() []detection.Detection {
	// Deliberately not in time order.
	return []detection.Detection{
		det(30, 1.0, "drone", detection.BBox{30, 0, 40, 10}),
		det(0, 0.0, "drone", detection.BBox{0, 0, 10, 10}),
		det(15, 0.5, "drone", detection.BBox{10, 0, 20, 10}),
		det(0, 0.0, "bird", detection.BBox{50, 50, 60, 60}),
		det(60, 2.0, "bird", detection.BBox{60, 50, 70, 60}),
		det(0, 0.0, "car", detection.BBox{0, 20, 10, 30}),
		det(3, 0.1, "car", detection.BBox{1, 20, 11, 30}),
	}
}

func TestEstimateFrameSize(t *testing.T) {
	w, h := EstimateFrameSize(motionFixture())
	assert.Equal(t, 70.0, w)
	assert.Equal(t, 60.0, h)

	w, h = EstimateFrameSize(nil)
	assert.Equal(t, 1.0, w)
	assert.Equal(t, 1.0, h)

	// A single point still yields a usable size.
	w, h = EstimateFrameSize([]detection.Detection{det(0, 0, "x", detection.BBox{5, 5, 5.5, 5.5})})
	assert.Equal(t, 1.0, w)
	assert.Equal(t, 1.0, h)
}

func TestMotion(t *testing.T) {
	stats := Motion(motionFixture(), DefaultMaxDT)
	require.Len(t, stats, 2, "bird has no pair within max dt")

	drone := stats[0]
	assert.Equal(t, "drone", drone.Class)
	assert.Equal(t, 2, drone.Pairs)
	assert.InDelta(t, 30.0, drone.MeanSpeedPx, 1e-9)
	assert.InDelta(t, 40.0, drone.MaxSpeedPx, 1e-9)
	assert.InDelta(t, (10.0/70/0.5+20.0/70/0.5)/2, drone.MeanSpeedNorm, 1e-9)
	assert.InDelta(t, 20.0/70/0.5, drone.MaxSpeedNorm, 1e-9)

	car := stats[1]
	assert.Equal(t, "car", car.Class)
	assert.Equal(t, 1, car.Pairs)
	assert.InDelta(t, 10.0, car.MeanSpeedPx, 1e-9)
	assert.Equal(t, car.MeanSpeedPx, car.MaxSpeedPx)
}

func TestMotion_WiderWindowIncludesSlowPairs(t *testing.T) {
	stats := Motion(motionFixture(), 2.5)
	require.Len(t, stats, 3)

	var bird *MotionStats
	for i := range stats {
		if stats[i].Class == "bird" {
			bird = &stats[i]
		}
	}
	require.NotNil(t, bird)
	assert.Equal(t, 1, bird.Pairs)
	assert.InDelta(t, 5.0, bird.MeanSpeedPx, 1e-9)
}

func TestMotion_SkipsSimultaneousDetections(t *testing.T) {
	dets := []detection.Detection{
		det(0, 0.0, "drone", detection.BBox{0, 0, 10, 10}),
		det(0, 0.0, "drone", detection.BBox{100, 100, 110, 110}),
	}
	assert.Empty(t, Motion(dets, DefaultMaxDT))
	assert.NotNil(t, Motion(nil, DefaultMaxDT))
}

func TestEventsByCount(t *testing.T) {
	events := []aggregate.ClassEvent{
		{Class: "airplane", Count: 2},
		{Class: "bird", Count: 5},
		{Class: "drone", Count: 5},
		{Class: "kite", Count: 1},
	}

	sorted := EventsByCount(events)

	var order []string
	for _, e := range sorted {
		order = append(order, e.Class)
	}
	assert.Equal(t, []string{"bird", "drone", "airplane", "kite"}, order)
	assert.Equal(t, "airplane", events[0].Class, "input is not reordered")
}

func TestMovingThreats(t *testing.T) {
	ranked := MovingThreats(motionFixture(), DefaultMaxDT)
	require.Len(t, ranked, 2)

	assert.Equal(t, "drone", ranked[0].Class)
	assert.Equal(t, "car", ranked[1].Class)
	assert.Greater(t, ranked[0].Index, ranked[1].Index)

	for _, mt := range ranked {
		assert.InDelta(t, mt.MeanThreat*mt.MeanSpeedNorm, mt.Index, 1e-12)
		assert.Greater(t, mt.MeanThreat, 0.0)
		assert.NotEmpty(t, mt.Dominant)
	}
	assert.Equal(t, 3, ranked[0].Count)
	assert.Equal(t, 2, ranked[0].Pairs)

	assert.Empty(t, MovingThreats(nil, DefaultMaxDT))
}
