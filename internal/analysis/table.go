package analysis

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/arturkwiek/SDD/internal/aggregate"
	"github.com/arturkwiek/SDD/internal/store"
)

// EventsTable renders events in the given order
func EventsTable(events []aggregate.ClassEvent) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Label", "Count", "First ts", "Last ts", "Min score", "Max score", "Mean score"})
	for _, e := range events {
		t.AppendRow(table.Row{
			e.Class,
			e.Count,
			fmt.Sprintf("%.3f", e.FirstTimestamp),
			fmt.Sprintf("%.3f", e.LastTimestamp),
			fmt.Sprintf("%.3f", e.MinScore),
			fmt.Sprintf("%.3f", e.MaxScore),
			fmt.Sprintf("%.3f", e.MeanScore),
		})
	}
	return t.Render()
}

// MotionTable renders per-class motion estimates
func MotionTable(stats []MotionStats) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Label", "Pairs", "Mean speed [px/s]", "Max speed [px/s]", "Mean speed [1/s]", "Max speed [1/s]"})
	for _, s := range stats {
		t.AppendRow(table.Row{
			s.Class,
			s.Pairs,
			fmt.Sprintf("%.3f", s.MeanSpeedPx),
			fmt.Sprintf("%.3f", s.MaxSpeedPx),
			fmt.Sprintf("%.5f", s.MeanSpeedNorm),
			fmt.Sprintf("%.5f", s.MaxSpeedNorm),
		})
	}
	return t.Render()
}

// MovingThreatTable renders the moving-threat ranking
func MovingThreatTable(ranked []MovingThreat) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Label", "Count", "Level", "Mean threat", "Pairs", "Mean speed [1/s]", "Max speed [1/s]", "Index"})
	for _, m := range ranked {
		t.AppendRow(table.Row{
			m.Class,
			m.Count,
			string(m.Dominant),
			fmt.Sprintf("%.3f", m.MeanThreat),
			m.Pairs,
			fmt.Sprintf("%.5f", m.MeanSpeedNorm),
			fmt.Sprintf("%.5f", m.MaxSpeedNorm),
			fmt.Sprintf("%.5f", m.Index),
		})
	}
	return t.Render()
}

// RunsTable renders stored runs, newest first as given
func RunsTable(runs []store.Run) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"ID", "Started", "Duration", "Source", "Model", "Frames", "Detections", "Classes"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(100 * time.Millisecond).String(),
			r.Source,
			r.Model,
			r.Frames,
			r.Detections,
			r.Classes,
		})
	}
	return t.Render()
}

// StoredEventsTable renders the class events of one stored run
func StoredEventsTable(events []store.ClassEvent) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Label", "Count", "First ts", "Last ts", "Mean score", "Max threat", "Mean threat", "Level"})
	for _, e := range events {
		t.AppendRow(table.Row{
			e.Class,
			e.Count,
			fmt.Sprintf("%.3f", e.FirstTimestamp),
			fmt.Sprintf("%.3f", e.LastTimestamp),
			fmt.Sprintf("%.3f", e.MeanScore),
			fmt.Sprintf("%.3f", e.MaxThreat),
			fmt.Sprintf("%.3f", e.MeanThreat),
			string(e.DominantLevel),
		})
	}
	return t.Render()
}
