package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/arturkwiek/SDD/internal/aggregate"
	"github.com/arturkwiek/SDD/internal/detection"
	"github.com/arturkwiek/SDD/internal/logger"
	"github.com/arturkwiek/SDD/internal/threat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history", "sdd.db"), logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func finalizedRun(t *testing.T) aggregate.Result {
	t.Helper()
	p := aggregate.NewPipeline(aggregate.Reject)
	dets := []detection.Detection{
		{FrameIndex: 0, Timestamp: 0.0, Class: "drone", Confidence: 0.9, BBox: detection.BBox{10, 10, 50, 50}},
		{FrameIndex: 1, Timestamp: 0.5, Class: "bird", Confidence: 0.6, BBox: detection.BBox{0, 0, 20, 20}},
		{FrameIndex: 2, Timestamp: 1.0, Class: "drone", Confidence: 0.7, BBox: detection.BBox{12, 12, 52, 52}},
	}
	for _, d := range dets {
		require.NoError(t, p.Record(d))
	}
	return p.Finalize()
}

func testRunInfo(started time.Time) RunInfo {
	return RunInfo{
		Source:      "clip.mp4",
		Model:       "yolov8n.pt",
		Backend:     "http",
		OrderPolicy: "reject",
		StartedAt:   started,
		FinishedAt:  started.Add(3 * time.Second),
		Frames:      3,
	}
}

func TestStore_SaveRunAndReadBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	res := finalizedRun(t)

	threats := []threat.ClassThreat{
		{Class: "drone", Count: 2, MaxScore: 0.8, MeanScore: 0.7, Dominant: threat.LevelHigh},
	}
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.SaveRun(ctx, testRunInfo(started), res, threats)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", run.Source)
	assert.Equal(t, 3, run.Frames)
	assert.Equal(t, 3, run.Detections)
	assert.Equal(t, 2, run.Classes)
	assert.WithinDuration(t, started, run.StartedAt, time.Millisecond)
	assert.WithinDuration(t, started.Add(3*time.Second), run.FinishedAt, time.Millisecond)

	events, err := s.ClassEvents(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "bird", events[0].Class)
	assert.Equal(t, 1, events[0].Count)
	assert.Equal(t, threat.Level(""), events[0].DominantLevel)

	assert.Equal(t, "drone", events[1].Class)
	assert.Equal(t, 2, events[1].Count)
	assert.Equal(t, 0.0, events[1].FirstTimestamp)
	assert.Equal(t, 1.0, events[1].LastTimestamp)
	assert.InDelta(t, 0.8, events[1].MeanScore, 1e-9)
	assert.Equal(t, 0.8, events[1].MaxThreat)
	assert.Equal(t, threat.LevelHigh, events[1].DominantLevel)

	dets, err := s.Detections(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, res.RunLog, dets)

	// The stored run log replays to the same aggregate.
	replayed, err := aggregate.Replay(dets, aggregate.Reject)
	require.NoError(t, err)
	assert.Equal(t, res.Events, replayed.Events)
}

func TestStore_EmptyRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	res := aggregate.NewPipeline(aggregate.Reject).Finalize()
	id, err := s.SaveRun(ctx, testRunInfo(time.Now()), res, nil)
	require.NoError(t, err)

	events, err := s.ClassEvents(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NotNil(t, events)

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, run.Detections)
	assert.Equal(t, 0, run.Classes)
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	res := finalizedRun(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.SaveRun(ctx, testRunInfo(base.Add(time.Duration(i)*time.Hour)), res, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestStore_DeleteRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.SaveRun(ctx, testRunInfo(time.Now()), finalizedRun(t), nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteRun(ctx, id))

	_, err = s.GetRun(ctx, id)
	assert.ErrorIs(t, err, ErrRunNotFound)

	dets, err := s.Detections(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, dets)

	assert.ErrorIs(t, s.DeleteRun(ctx, id), ErrRunNotFound)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdd.db")
	ctx := context.Background()

	s, err := Open(path, logger.NewNopLogger())
	require.NoError(t, err)
	id, err := s.SaveRun(ctx, testRunInfo(time.Now()), finalizedRun(t), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, logger.NewNopLogger())
	require.NoError(t, err)
	defer s.Close()

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	assert.Equal(t, 3, run.Detections)
}
