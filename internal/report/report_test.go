package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/arturkwiek/SDD/internal/aggregate"
	"github.com/arturkwiek/SDD/internal/detection"
	"github.com/arturkwiek/SDD/internal/logger"
)

func scenarioResult(t *testing.T) aggregate.Result {
	t.Helper()
	p := aggregate.NewPipeline(aggregate.Reject)
	for _, d := range []detection.Detection{
		{FrameIndex: 0, Timestamp: 0.0, Class: "drone", Confidence: 0.9, BBox: detection.BBox{10, 10, 50, 50}},
		{FrameIndex: 1, Timestamp: 0.04, Class: "drone", Confidence: 0.8, BBox: detection.BBox{12, 11, 52, 51}},
		{FrameIndex: 1, Timestamp: 0.04, Class: "bird", Confidence: 0.6, BBox: detection.BBox{100, 100, 120, 120}},
	} {
		require.NoError(t, p.Record(d))
	}
	return p.Finalize()
}

func tempPaths(dir string) Paths {
	return Paths{
		JSON:   filepath.Join(dir, "detections.json"),
		CSV:    filepath.Join(dir, "detections.csv"),
		Events: filepath.Join(dir, "detections_events.csv"),
		Labels: filepath.Join(dir, "detections_labels.txt"),
	}
}

func readString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWriteAll_Scenario(t *testing.T) {
	paths := tempPaths(t.TempDir())
	res := scenarioResult(t)

	require.NoError(t, NewWriter(logger.NewNopLogger()).WriteAll(res, paths))

	runLog, err := ReadJSONFile(paths.JSON)
	require.NoError(t, err)
	assert.Equal(t, res.RunLog, runLog)

	csvLog, err := ReadCSVFile(paths.CSV)
	require.NoError(t, err)
	assert.Equal(t, res.RunLog, csvLog)

	assert.Equal(t,
		"frame,timestamp,class,confidence,x_min,y_min,x_max,y_max\n"+
			"0,0,drone,0.9,10,10,50,50\n"+
			"1,0.04,drone,0.8,12,11,52,51\n"+
			"1,0.04,bird,0.6,100,100,120,120\n",
		readString(t, paths.CSV))

	events := readString(t, paths.Events)
	lines := strings.Split(strings.TrimSpace(events), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "class,count,first_timestamp,last_timestamp,min_score,mean_score,max_score", lines[0])
	assert.Equal(t, "bird,1,0.04,0.04,0.6,0.6,0.6", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "drone,2,0,0.04,0.8,0.85"), lines[2])

	parsed, err := ReadEventsFile(paths.Events)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, "drone", parsed[1].Class)
	assert.InDelta(t, 0.85, parsed[1].MeanScore, 1e-9)

	assert.Equal(t, "drone: 2\nbird: 1\n", readString(t, paths.Labels))
}

func TestWriteAll_Empty(t *testing.T) {
	paths := tempPaths(t.TempDir())
	res := aggregate.NewPipeline(aggregate.Reject).Finalize()

	require.NoError(t, NewWriter(logger.NewNopLogger()).WriteAll(res, paths))

	assert.Equal(t, "[]", strings.TrimSpace(readString(t, paths.JSON)))
	assert.Equal(t, strings.Join(DetectionsHeader, ",")+"\n", readString(t, paths.CSV))
	assert.Equal(t, strings.Join(EventsHeader, ",")+"\n", readString(t, paths.Events))
	assert.Equal(t, "", readString(t, paths.Labels))

	runLog, err := ReadJSONFile(paths.JSON)
	require.NoError(t, err)
	assert.Empty(t, runLog)
}

func TestWriteAll_OneArtifactFails(t *testing.T) {
	dir := t.TempDir()
	paths := tempPaths(dir)
	// A directory in place of the events file makes os.Create fail.
	require.NoError(t, os.Mkdir(paths.Events, 0755))

	err := NewWriter(logger.NewNopLogger()).WriteAll(scenarioResult(t), paths)
	require.Error(t, err)

	errs := multierr.Errors(err)
	require.Len(t, errs, 1)
	var artErr *ArtifactError
	require.ErrorAs(t, errs[0], &artErr)
	assert.Equal(t, "events", artErr.Artifact)
	assert.Equal(t, paths.Events, artErr.Path)

	assert.FileExists(t, paths.JSON)
	assert.FileExists(t, paths.CSV)
	assert.Equal(t, "drone: 2\nbird: 1\n", readString(t, paths.Labels))
}

func TestWriteAll_AllFail(t *testing.T) {
	err := NewWriter(logger.NewNopLogger()).WriteAll(scenarioResult(t), Paths{})
	assert.Len(t, multierr.Errors(err), 4)
}

func TestWriteAll_CreatesDirectories(t *testing.T) {
	paths := tempPaths(filepath.Join(t.TempDir(), "runs", "today"))
	require.NoError(t, NewWriter(logger.NewNopLogger()).WriteAll(scenarioResult(t), paths))
	assert.FileExists(t, paths.Labels)
}

func TestWriteCSV_QuotesLabels(t *testing.T) {
	var buf bytes.Buffer
	runLog := []detection.Detection{
		{FrameIndex: 2, Timestamp: 1.5, Class: "hang glider, red", Confidence: 0.5, BBox: detection.BBox{1, 2, 3, 4}},
	}
	require.NoError(t, WriteCSV(&buf, runLog))
	assert.Contains(t, buf.String(), `"hang glider, red"`)

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, runLog, back)
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorContains(t, err, "missing header")

	_, err = ReadCSV(strings.NewReader("frame,time,class,confidence,x_min,y_min,x_max,y_max\n"))
	assert.ErrorContains(t, err, "unexpected column")

	_, err = ReadCSV(strings.NewReader(strings.Join(DetectionsHeader, ",") + "\nx,0,drone,0.5,1,1,2,2\n"))
	assert.ErrorContains(t, err, "row 2")
}
