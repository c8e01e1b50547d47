package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/akamensky/argparse"

	"github.com/arturkwiek/SDD/internal/analysis"
	"github.com/arturkwiek/SDD/internal/logger"
	"github.com/arturkwiek/SDD/internal/report"
	"github.com/arturkwiek/SDD/internal/store"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	parser := argparse.NewParser("run-history", "List, export and delete detection runs recorded with --db")
	dbPath := parser.String("", "db", &argparse.Options{Help: "Run history database", Default: "sdd.db"})
	limit := parser.Int("n", "limit", &argparse.Options{Help: "Number of runs to show (0 = all)", Default: 20})
	runID := parser.String("", "run", &argparse.Options{Help: "Show the class events of one run"})
	exportID := parser.String("", "export", &argparse.Options{Help: "Write the detections of one run"})
	format := parser.Selector("", "format", []string{"json", "csv"}, &argparse.Options{Help: "Export format", Default: "json"})
	out := parser.String("o", "out", &argparse.Options{Help: "Export file (default stdout)"})
	deleteID := parser.String("", "delete", &argparse.Options{Help: "Delete one run and its detections"})
	if err := parser.Parse(args); err != nil {
		fmt.Fprint(stderr, parser.Usage(err))
		return 2
	}

	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Fprintf(stderr, "Database not found: %s\n", *dbPath)
		return 1
	}

	log := logger.MustNew(logger.LogConfig{Level: "warn", Format: "text", Output: "stderr"})
	defer log.Sync()

	st, err := store.Open(*dbPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer st.Close()

	ctx := context.Background()

	switch {
	case *deleteID != "":
		if err := st.DeleteRun(ctx, *deleteID); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Deleted run %s\n", *deleteID)
		return 0

	case *exportID != "":
		if err := exportRun(ctx, st, *exportID, *format, *out, stdout); err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
		return 0

	case *runID != "":
		info, err := st.GetRun(ctx, *runID)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
		events, err := st.ClassEvents(ctx, info.ID)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to read class events: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Run %s: %s, %d frames, %d detections\n\n", info.ID, info.Source, info.Frames, info.Detections)
		fmt.Fprintln(stdout, analysis.StoredEventsTable(events))
		return 0
	}

	runs, err := st.ListRuns(ctx, *limit)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to list runs: %v\n", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "No runs recorded")
		return 0
	}
	fmt.Fprintln(stdout, analysis.RunsTable(runs))
	return 0
}

// exportRun writes a stored run log in the detections JSON or CSV format
func exportRun(ctx context.Context, st *store.Store, id, format, path string, stdout io.Writer) (err error) {
	if _, err := st.GetRun(ctx, id); err != nil {
		return err
	}
	dets, err := st.Detections(ctx, id)
	if err != nil {
		return err
	}

	w := stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = f
	}

	if format == "csv" {
		return report.WriteCSV(w, dets)
	}
	return report.WriteJSON(w, dets)
}
