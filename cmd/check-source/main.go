package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/akamensky/argparse"
	"github.com/benbjohnson/clock"

	"github.com/arturkwiek/SDD/internal/ai"
	"github.com/arturkwiek/SDD/internal/config"
	"github.com/arturkwiek/SDD/internal/health"
	"github.com/arturkwiek/SDD/internal/logger"
	"github.com/arturkwiek/SDD/internal/video"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup, including stopping the
// ffmpeg child, happens before the process exits
func run() int {
	parser := argparse.NewParser("check-source", "Check that a source can be decoded and the detector answers, without writing any results")
	source := parser.StringPositional(&argparse.Options{Help: "Video or image file, camera index or stream URL"})
	configPath := parser.String("c", "config", &argparse.Options{Help: "Path to configuration file"})
	frames := parser.Int("n", "frames", &argparse.Options{Help: "Frames to run through the detector", Default: 3})
	fromSamples := parser.Flag("", "from-samples", &argparse.Options{Help: "Treat the source as a file name in the sample directory"})
	listCameras := parser.Flag("", "list-cameras", &argparse.Options{Help: "List local V4L2 cameras and exit"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		return 2
	}
	if *listCameras {
		return printCameras()
	}
	if *source == "" {
		fmt.Print(parser.Usage("source is required"))
		return 2
	}

	fmt.Println("=== Source & Detector Check ===")
	fmt.Println()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log := logger.MustNew(logger.LogConfig{Level: "warn", Format: "text", Output: "stderr"})
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	in, err := video.Resolve(*source, *fromSamples, cfg.Source.SampleDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}
	fmt.Printf("Source: %s (%s)\n", in.Location, in.Kind)

	var ffmpeg *video.FFmpegWrapper
	if in.Kind != video.KindImage {
		fmt.Println("Checking ffmpeg...")
		ffmpeg, err = video.NewFFmpegWrapper(log, cfg.Source.FFmpegPath, cfg.Source.FFprobePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ ffmpeg not available: %v\n", err)
			return 1
		}
		ver, _ := ffmpeg.GetVersion()
		hw := ffmpeg.GetHardwareAcceleration()
		fmt.Printf("✅ %s\n", ver)
		fmt.Printf("   encoder for --save-video: %s, Quick Sync: %v, NVENC: %v\n", ffmpeg.GetPreferredEncoder(), hw.IntelQSV, hw.NVIDIANVENC)
	}

	fmt.Println("Opening source...")
	src, err := video.Open(ctx, in, cfg.Source, ffmpeg, clock.New(), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to open source: %v\n", err)
		return 1
	}
	defer src.Close()
	w, h := src.Size()
	fmt.Printf("✅ Source open: fps=%.2f (0=unknown), size=%dx%d\n", src.FPS(), w, h)

	fmt.Printf("Creating %s detector...\n", cfg.Detector.Backend)
	backend, err := ai.NewBackend(cfg.Detector, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to create detector: %v\n", err)
		return 1
	}
	defer backend.Close()

	checks := health.NewManager(log, 10*time.Second)
	if ffmpeg != nil {
		checks.RegisterChecker(health.NewFFmpegChecker(ffmpeg, nil, true))
	}
	checks.RegisterChecker(health.NewDetectorChecker(backend))
	if cfg.Store.Enabled {
		checks.RegisterChecker(health.NewDatabaseChecker(cfg.Store.Path))
	}

	report := checks.Check(ctx)
	for _, c := range report.Checks {
		mark := "✅"
		switch c.Status {
		case health.StatusDegraded:
			mark = "⚠️ "
		case health.StatusUnhealthy:
			mark = "❌"
		}
		fmt.Printf("%s %s: %s\n", mark, c.Name, c.Message)
	}
	fmt.Println()
	if report.Status == health.StatusUnhealthy {
		return 1
	}

	for i := 0; i < *frames; i++ {
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			fmt.Println("ℹ️  End of source")
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to read frame: %v\n", err)
			return 1
		}

		start := time.Now()
		dets, err := backend.Detect(ctx, frame)
		if err != nil {
			fmt.Printf("[Frame %d] ❌ Detection failed: %v\n", frame.Index, err)
			continue
		}
		fmt.Printf("[Frame %d] t=%.3fs, %d detection(s) in %s\n", frame.Index, frame.Timestamp, len(dets), time.Since(start).Round(time.Millisecond))
		for _, d := range dets {
			fmt.Printf("    - %s (confidence: %.2f%%)\n", d.Class, d.Confidence*100)
		}
	}
	return 0
}

func printCameras() int {
	fmt.Println("=== Local Cameras ===")
	cams, err := video.NewCameraLister().List(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}
	if len(cams) == 0 {
		fmt.Println("ℹ️  No /dev/video* devices found")
		return 0
	}
	for _, c := range cams {
		fmt.Printf("✅ [%d] %s\n", c.Index, c.Name)
		fmt.Printf("   device: %s\n", c.Device)
		if c.Driver != "" {
			fmt.Printf("   driver: %s\n", c.Driver)
		}
		if c.Vendor != "" {
			fmt.Printf("   usb id: %s\n", c.Vendor)
		}
	}
	fmt.Println()
	fmt.Println("Pass the index as the source, e.g. `sdd 0`")
	return 0
}
