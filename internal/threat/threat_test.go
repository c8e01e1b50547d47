package threat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturkwiek/SDD/internal/detection"
)

func TestClassify(t *testing.T) {
	tests := map[string]Category{
		"drone":         CategoryDanger,
		" Hang Glider ": CategoryDanger,
		"bird":          CategoryDanger,
		"truck":         CategoryMedium,
		"parking meter": CategoryMedium,
		"person":        CategorySafe,
		"":              CategorySafe,
	}
	for label, want := range tests {
		assert.Equal(t, want, Classify(label), label)
	}
}

func TestAssess(t *testing.T) {
	// Centred 320x240 box in a 640x480 frame: area_norm 0.25, proximity 1.
	d := detection.Detection{Class: "drone", Confidence: 0.8, BBox: detection.BBox{160, 120, 480, 360}}
	a := Assess(d, 640, 480)

	assert.Equal(t, CategoryDanger, a.Category)
	assert.Equal(t, 76800.0, a.Area)
	assert.InDelta(t, 0.25, a.AreaNorm, 1e-12)
	assert.InDelta(t, 0.55*0.8+0.25*1+0.10*1+0.10*0.20, a.Score, 1e-12)
	assert.Equal(t, LevelHigh, a.Level)
}

func TestAssess_CornerSmallSafe(t *testing.T) {
	d := detection.Detection{Class: "person", Confidence: 0.5, BBox: detection.BBox{0, 0, 8, 6}}
	a := Assess(d, 640, 480)

	// Centre at (4,3) is ~0.99 of the way to the corner; proximity is close to 0.
	assert.Less(t, a.Score, 0.35)
	assert.Equal(t, LevelLow, a.Level)
	assert.Equal(t, CategorySafe, a.Category)
}

func TestAssess_UnknownFrameSize(t *testing.T) {
	d := detection.Detection{Class: "car", Confidence: 1, BBox: detection.BBox{0, 0, 10, 10}}
	a := Assess(d, 0, 0)

	assert.Equal(t, 0.0, a.AreaNorm)
	assert.InDelta(t, 0.55+0.10*0.10, a.Score, 1e-12)
	assert.Equal(t, LevelMedium, a.Level)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, LevelHigh, LevelFor(0.65))
	assert.Equal(t, LevelMedium, LevelFor(0.649))
	assert.Equal(t, LevelMedium, LevelFor(0.35))
	assert.Equal(t, LevelLow, LevelFor(0.34))
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	tr.Observe("drone", Assessment{Score: 0.7, Level: LevelHigh})
	tr.Observe("drone", Assessment{Score: 0.5, Level: LevelMedium})
	tr.Observe("bird", Assessment{Score: 0.2, Level: LevelLow})
	tr.Observe("bird", Assessment{Score: 0.9, Level: LevelHigh})

	summary := tr.Summary()
	require.Len(t, summary, 2)

	bird := summary[0]
	assert.Equal(t, "bird", bird.Class)
	assert.Equal(t, 2, bird.Count)
	assert.Equal(t, 0.9, bird.MaxScore)
	assert.InDelta(t, 0.55, bird.MeanScore, 1e-12)
	// One low and one high: the tie goes to low.
	assert.Equal(t, LevelLow, bird.Dominant)

	drone := summary[1]
	assert.Equal(t, LevelMedium, drone.Dominant)
	assert.Equal(t, map[Level]int{LevelHigh: 1, LevelMedium: 1}, drone.Levels)
}

func TestTracker_Empty(t *testing.T) {
	assert.Empty(t, NewTracker().Summary())
}
