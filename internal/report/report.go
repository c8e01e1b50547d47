package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/multierr"

	"github.com/arturkwiek/SDD/internal/aggregate"
	"github.com/arturkwiek/SDD/internal/detection"
	"github.com/arturkwiek/SDD/internal/logger"
)

// CSV headers
var (
	DetectionsHeader = []string{"frame", "timestamp", "class", "confidence", "x_min", "y_min", "x_max", "y_max"}
	EventsHeader     = []string{"class", "count", "first_timestamp", "last_timestamp", "min_score", "mean_score", "max_score"}
)

// Paths names the four artifacts of a run
type Paths struct {
	JSON   string
	CSV    string
	Events string
	Labels string
}

// ArtifactError reports a failure writing one artifact
type ArtifactError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("write %s artifact %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }

// Writer serializes a finalized run to disk
type Writer struct {
	logger *logger.Logger
}

// NewWriter creates a new artifact writer
func NewWriter(log *logger.Logger) *Writer {
	return &Writer{logger: log.WithComponent("report")}
}

// WriteAll writes every artifact, attempting each one even when an earlier one
// fails. The returned error combines all failures; use multierr.Errors to list them.
func (w *Writer) WriteAll(res aggregate.Result, paths Paths) error {
	artifacts := []struct {
		name  string
		path  string
		write func(io.Writer) error
	}{
		{"json", paths.JSON, func(out io.Writer) error { return WriteJSON(out, res.RunLog) }},
		{"csv", paths.CSV, func(out io.Writer) error { return WriteCSV(out, res.RunLog) }},
		{"events", paths.Events, func(out io.Writer) error { return WriteEvents(out, res.Events) }},
		{"labels", paths.Labels, func(out io.Writer) error { return WriteLabelCounts(out, res.LabelCounts) }},
	}

	var errs error
	for _, a := range artifacts {
		if err := writeFile(a.path, a.write); err != nil {
			w.logger.Error("Failed to write artifact", "artifact", a.name, "path", a.path, "error", err)
			errs = multierr.Append(errs, &ArtifactError{Artifact: a.name, Path: a.path, Err: err})
			continue
		}
		w.logger.Info("Artifact written", "artifact", a.name, "path", a.path)
	}
	return errs
}

// writeFile creates path (and its directory) and streams the artifact into it.
// A failed write leaves the partial file in place.
func writeFile(path string, write func(io.Writer) error) (err error) {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteJSON writes the RunLog as a JSON array
func WriteJSON(w io.Writer, runLog []detection.Detection) error {
	if runLog == nil {
		runLog = []detection.Detection{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(runLog)
}

// WriteCSV writes one row per detection with the bbox flattened
func WriteCSV(w io.Writer, runLog []detection.Detection) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DetectionsHeader); err != nil {
		return err
	}
	for _, d := range runLog {
		row := []string{
			strconv.Itoa(d.FrameIndex),
			formatFloat(d.Timestamp),
			d.Class,
			formatFloat(d.Confidence),
			formatFloat(d.BBox[0]),
			formatFloat(d.BBox[1]),
			formatFloat(d.BBox[2]),
			formatFloat(d.BBox[3]),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEvents writes the per-class event table
func WriteEvents(w io.Writer, events []aggregate.ClassEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EventsHeader); err != nil {
		return err
	}
	for _, ev := range events {
		row := []string{
			ev.Class,
			strconv.Itoa(ev.Count),
			formatFloat(ev.FirstTimestamp),
			formatFloat(ev.LastTimestamp),
			formatFloat(ev.MinScore),
			formatFloat(ev.MeanScore),
			formatFloat(ev.MaxScore),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLabelCounts writes "<label>: <count>" lines in the given order
func WriteLabelCounts(w io.Writer, counts []aggregate.LabelCount) error {
	for _, lc := range counts {
		if _, err := fmt.Fprintf(w, "%s: %d\n", lc.Class, lc.Count); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
