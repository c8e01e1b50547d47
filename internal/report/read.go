package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/arturkwiek/SDD/internal/aggregate"
	"github.com/arturkwiek/SDD/internal/detection"
)

// ReadJSON decodes a JSON detections artifact
func ReadJSON(r io.Reader) ([]detection.Detection, error) {
	var runLog []detection.Detection
	if err := json.NewDecoder(r).Decode(&runLog); err != nil {
		return nil, fmt.Errorf("failed to decode detections: %w", err)
	}
	return runLog, nil
}

// ReadCSV decodes a CSV detections artifact
func ReadCSV(r io.Reader) ([]detection.Detection, error) {
	rows, err := readRows(r, DetectionsHeader)
	if err != nil {
		return nil, err
	}

	runLog := make([]detection.Detection, 0, len(rows))
	for i, row := range rows {
		p := rowParser{row: row}
		d := detection.Detection{
			FrameIndex: p.parseInt(0),
			Timestamp:  p.parseFloat(1),
			Class:      row[2],
			Confidence: p.parseFloat(3),
			BBox:       detection.BBox{p.parseFloat(4), p.parseFloat(5), p.parseFloat(6), p.parseFloat(7)},
		}
		if p.err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, p.err)
		}
		runLog = append(runLog, d)
	}
	return runLog, nil
}

// ReadEvents decodes an events CSV artifact
func ReadEvents(r io.Reader) ([]aggregate.ClassEvent, error) {
	rows, err := readRows(r, EventsHeader)
	if err != nil {
		return nil, err
	}

	events := make([]aggregate.ClassEvent, 0, len(rows))
	for i, row := range rows {
		p := rowParser{row: row}
		ev := aggregate.ClassEvent{
			Class:          row[0],
			Count:          p.parseInt(1),
			FirstTimestamp: p.parseFloat(2),
			LastTimestamp:  p.parseFloat(3),
			MinScore:       p.parseFloat(4),
			MeanScore:      p.parseFloat(5),
			MaxScore:       p.parseFloat(6),
		}
		if p.err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, p.err)
		}
		ev.ScoreSum = ev.MeanScore * float64(ev.Count)
		events = append(events, ev)
	}
	return events, nil
}

// ReadJSONFile reads a JSON detections artifact from path
func ReadJSONFile(path string) ([]detection.Detection, error) {
	return readFile(path, ReadJSON)
}

// ReadCSVFile reads a CSV detections artifact from path
func ReadCSVFile(path string) ([]detection.Detection, error) {
	return readFile(path, ReadCSV)
}

// ReadEventsFile reads an events CSV artifact from path
func ReadEventsFile(path string) ([]aggregate.ClassEvent, error) {
	return readFile(path, ReadEvents)
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return read(f)
}

func readRows(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	got, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, name := range header {
		if got[i] != name {
			return nil, fmt.Errorf("unexpected column %q at position %d, want %q", got[i], i, name)
		}
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return rows, nil
}

// rowParser keeps the first conversion error so a row can be parsed in one go
type rowParser struct {
	row []string
	err error
}

func (p *rowParser) parseFloat(i int) float64 {
	v, err := strconv.ParseFloat(p.row[i], 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %d: %w", i, err)
	}
	return v
}

func (p *rowParser) parseInt(i int) int {
	v, err := strconv.Atoi(p.row[i])
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %d: %w", i, err)
	}
	return v
}
