package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/akamensky/argparse"

	"github.com/arturkwiek/SDD/internal/analysis"
	"github.com/arturkwiek/SDD/internal/report"
)

func main() {
	parser := argparse.NewParser("analyze-events", "Summarize a per-class events CSV, most frequent classes first")
	path := parser.StringPositional(&argparse.Options{Help: "Events CSV (default detections_events.csv)"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(2)
	}
	if *path == "" {
		*path = "detections_events.csv"
	}

	events, err := report.ReadEventsFile(*path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Events file not found: %s\n", *path)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read events: %v\n", err)
		os.Exit(1)
	}
	if len(events) == 0 {
		fmt.Printf("No events in %s\n", *path)
		return
	}

	fmt.Printf("Loaded %d summary rows from %s\n\n", len(events), *path)
	fmt.Println(analysis.EventsTable(analysis.EventsByCount(events)))
}
