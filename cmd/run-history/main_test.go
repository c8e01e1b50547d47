package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturkwiek/SDD/internal/aggregate"
	"github.com/arturkwiek/SDD/internal/detection"
	"github.com/arturkwiek/SDD/internal/logger"
	"github.com/arturkwiek/SDD/internal/report"
	"github.com/arturkwiek/SDD/internal/store"
)

func testDetections() []detection.Detection {
	return []detection.Detection{
		{FrameIndex: 0, Timestamp: 0.0, Class: "drone", Confidence: 0.9, BBox: detection.BBox{10, 10, 50, 50}},
		{FrameIndex: 1, Timestamp: 0.5, Class: "bird", Confidence: 0.6, BBox: detection.BBox{0, 0, 20, 20}},
	}
}

// setupTestDB records one run and closes the store so run can reopen it
func setupTestDB(t *testing.T) (string, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "sdd.db")
	st, err := store.Open(dbPath, logger.NewNopLogger())
	require.NoError(t, err)
	defer st.Close()

	res, err := aggregate.Replay(testDetections(), aggregate.Reject)
	require.NoError(t, err)

	started := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	id, err := st.SaveRun(context.Background(), store.RunInfo{
		Source:     "clip.mp4",
		Model:      "yolov8n.pt",
		Backend:    "http",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Frames:     2,
	}, res, nil)
	require.NoError(t, err)
	return dbPath, id
}

func runCmd(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"run-history"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_ListRuns(t *testing.T) {
	dbPath, id := setupTestDB(t)

	code, out, _ := runCmd("--db", dbPath)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "clip.mp4")
}

func TestRun_ExportJSON(t *testing.T) {
	dbPath, id := setupTestDB(t)

	code, out, errOut := runCmd("--db", dbPath, "--export", id)
	require.Equal(t, 0, code, errOut)

	dets, err := report.ReadJSON(bytes.NewBufferString(out))
	require.NoError(t, err)
	assert.Equal(t, testDetections(), dets)
}

func TestRun_ExportCSVToFile(t *testing.T) {
	dbPath, id := setupTestDB(t)
	path := filepath.Join(t.TempDir(), "run.csv")

	code, out, errOut := runCmd("--db", dbPath, "--export", id, "--format", "csv", "-o", path)
	require.Equal(t, 0, code, errOut)
	assert.Empty(t, out)

	dets, err := report.ReadCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, testDetections(), dets)
}

func TestRun_ExportUnknownRun(t *testing.T) {
	dbPath, _ := setupTestDB(t)

	code, _, errOut := runCmd("--db", dbPath, "--export", "missing")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "run not found")
}

func TestRun_DeleteRun(t *testing.T) {
	dbPath, id := setupTestDB(t)

	code, out, errOut := runCmd("--db", dbPath, "--delete", id)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Deleted run "+id)

	code, out, _ = runCmd("--db", dbPath)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "No runs recorded")

	code, _, errOut = runCmd("--db", dbPath, "--delete", id)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "run not found")
}

func TestRun_MissingDatabase(t *testing.T) {
	code, _, errOut := runCmd("--db", filepath.Join(t.TempDir(), "none.db"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Database not found")
}
