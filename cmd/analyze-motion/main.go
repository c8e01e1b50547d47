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
	parser := argparse.NewParser("analyze-motion", "Estimate per-class motion from consecutive detections of the same class")
	path := parser.StringPositional(&argparse.Options{Help: "Detections CSV (default detections.csv)"})
	maxDT := parser.Float("", "max-dt", &argparse.Options{Help: "Largest gap in seconds between detections treated as one object", Default: analysis.DefaultMaxDT})
	threats := parser.Flag("", "threats", &argparse.Options{Help: "Rank classes by mean threat times mean normalized speed"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(2)
	}
	if *path == "" {
		*path = "detections.csv"
	}
	if *maxDT <= 0 {
		fmt.Fprintln(os.Stderr, "--max-dt must be positive")
		os.Exit(2)
	}

	dets, err := report.ReadCSVFile(*path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Detections file not found: %s\n", *path)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read detections: %v\n", err)
		os.Exit(1)
	}
	if len(dets) == 0 {
		fmt.Printf("No detections in %s\n", *path)
		return
	}

	fmt.Printf("Loaded %d detections from %s\n\n", len(dets), *path)

	if *threats {
		ranked := analysis.MovingThreats(dets, *maxDT)
		if len(ranked) == 0 {
			fmt.Println("No class has both threat and motion metrics")
			return
		}
		fmt.Println(analysis.MovingThreatTable(ranked))
		return
	}

	stats := analysis.Motion(dets, *maxDT)
	if len(stats) == 0 {
		fmt.Printf("No detection pairs within %.2fs\n", *maxDT)
		return
	}
	fmt.Println(analysis.MotionTable(stats))
}
