package analysis

import (
	"strings"
	"testing"
	"time"

	"github.com/arturkwiek/SDD/internal/aggregate"
	"github.com/arturkwiek/SDD/internal/store"
	"github.com/arturkwiek/SDD/internal/threat"
	"github.com/stretchr/testify/assert"
)

func TestEventsTable(t *testing.T) {
	out := EventsTable([]aggregate.ClassEvent{
		{Class: "drone", Count: 3, FirstTimestamp: 0, LastTimestamp: 1.25, MinScore: 0.5, MaxScore: 0.9, MeanScore: 0.7},
	})

	assert.Contains(t, out, "LABEL")
	assert.Contains(t, out, "drone")
	assert.Contains(t, out, "1.250")
	assert.Contains(t, out, "0.700")
}

func TestMotionTable_KeepsOrder(t *testing.T) {
	out := MotionTable(Motion(motionFixture(), DefaultMaxDT))

	drone := strings.Index(out, "drone")
	car := strings.Index(out, "car")
	assert.Greater(t, drone, 0)
	assert.Greater(t, car, drone)
	assert.Contains(t, out, "30.000")
}

func TestMovingThreatTable(t *testing.T) {
	out := MovingThreatTable([]MovingThreat{
		{Class: "drone", Count: 4, Dominant: threat.LevelHigh, MeanThreat: 0.7, Pairs: 3, MeanSpeedNorm: 0.5, Index: 0.35},
	})
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "0.35000")
}

func TestRunsTable(t *testing.T) {
	started := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	out := RunsTable([]store.Run{{
		ID: "5b1f",
		RunInfo: store.RunInfo{
			Source:     "clip.mp4",
			Model:      "yolov8n.pt",
			StartedAt:  started,
			FinishedAt: started.Add(2500 * time.Millisecond),
			Frames:     75,
		},
		Detections: 12,
		Classes:    2,
	}})

	assert.Contains(t, out, "5b1f")
	assert.Contains(t, out, "clip.mp4")
	assert.Contains(t, out, "2.5s")
	assert.Contains(t, out, "75")
}

func TestStoredEventsTable(t *testing.T) {
	out := StoredEventsTable([]store.ClassEvent{{
		ClassEvent:    aggregate.ClassEvent{Class: "bird", Count: 2, MeanScore: 0.6},
		MaxThreat:     0.41,
		MeanThreat:    0.38,
		DominantLevel: threat.LevelMedium,
	}})
	assert.Contains(t, out, "bird")
	assert.Contains(t, out, "0.410")
	assert.Contains(t, out, "medium")
}
