package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"

	"github.com/arturkwiek/SDD/internal/config"
	"github.com/arturkwiek/SDD/internal/logger"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliArgs holds the parsed command line
type cliArgs struct {
	source      string
	fromSamples bool
	configPath  string
	overrides   config.Overrides
}

func parseArgs(args []string) (*cliArgs, error) {
	parser := argparse.NewParser("sdd", "Simple Drone Detector: runs a YOLO detector over a video, image, camera or stream and writes the detections")

	source := parser.StringPositional(&argparse.Options{Help: "Video or image file, camera index (0, 1, ...) or stream URL (rtsp://, http://, ...)"})
	configPath := parser.String("c", "config", &argparse.Options{Help: "Path to configuration file"})

	backend := parser.Selector("", "backend", []string{config.BackendHTTP, config.BackendONNX}, &argparse.Options{Help: "Detector backend"})
	model := parser.String("", "model", &argparse.Options{Help: "YOLO model name or path (default yolov8n.pt)"})
	conf := parser.Float("", "conf", &argparse.Options{Help: "Confidence threshold (default 0.35)"})
	iou := parser.Float("", "iou", &argparse.Options{Help: "IoU threshold for NMS (default 0.45)"})
	targetClasses := parser.StringList("", "target-classes", &argparse.Options{Help: "Class names to keep, repeatable or comma separated (e.g. drone)"})
	serviceURL := parser.String("", "service-url", &argparse.Options{Help: "Inference service URL for the http backend"})

	noPreview := parser.Flag("", "no-preview", &argparse.Options{Help: "Disable the live preview stream"})
	previewAddr := parser.String("", "preview-addr", &argparse.Options{Help: "Preview listen address (default 127.0.0.1:8090)"})
	saveVideo := parser.Flag("", "save-video", &argparse.Options{Help: "Save the annotated video"})
	videoOut := parser.String("", "video-out", &argparse.Options{Help: "Annotated video path (default output_detection.mp4)"})
	jsonOut := parser.String("", "json-out", &argparse.Options{Help: "Detections JSON path (default detections.json)"})
	csvOut := parser.String("", "csv-out", &argparse.Options{Help: "Detections CSV path (default detections.csv)"})
	eventsOut := parser.String("", "events-out", &argparse.Options{Help: "Per-class events CSV path (default derived from --csv-out)"})
	labelsOut := parser.String("", "labels-out", &argparse.Options{Help: "Label counts path (default derived from --csv-out)"})

	fromSamples := parser.Flag("", "from-samples", &argparse.Options{Help: "Treat the source as a file name in the sample directory"})
	sampleDir := parser.String("", "sample-dir", &argparse.Options{Help: "Sample directory used with --from-samples"})
	decoder := parser.Selector("", "decoder", []string{config.DecoderFFmpeg, config.DecoderGoCV}, &argparse.Options{Help: "Frame decoder"})
	maxFrames := parser.Int("", "max-frames", &argparse.Options{Help: "Stop after N frames (0 = unlimited)"})
	tolerate := parser.Flag("", "tolerate-out-of-order", &argparse.Options{Help: "Count out-of-order detections instead of failing"})

	dbPath := parser.String("", "db", &argparse.Options{Help: "Record the run in this SQLite database"})
	logLevel := parser.Selector("", "log-level", []string{"debug", "info", "warn", "error"}, &argparse.Options{Help: "Log level"})
	logFormat := parser.Selector("", "log-format", []string{"text", "json"}, &argparse.Options{Help: "Log format"})

	if err := parser.Parse(args); err != nil {
		return nil, fmt.Errorf("%s", parser.Usage(err))
	}
	if *source == "" {
		return nil, fmt.Errorf("%s", parser.Usage("source is required"))
	}

	o := config.Overrides{
		Backend:       *backend,
		Model:         *model,
		TargetClasses: *targetClasses,
		ServiceURL:    *serviceURL,
		NoPreview:     *noPreview,
		PreviewAddr:   *previewAddr,
		SaveVideo:     *saveVideo,
		VideoOut:      *videoOut,
		JSONOut:       *jsonOut,
		CSVOut:        *csvOut,
		EventsOut:     *eventsOut,
		LabelsOut:     *labelsOut,
		SampleDir:     *sampleDir,
		Decoder:       *decoder,
		DBPath:        *dbPath,
		LogLevel:      *logLevel,
		LogFormat:     *logFormat,
	}
	// Numeric flags only override when given, so 0 stays expressible.
	if passed(parser, "conf") {
		o.Confidence = conf
	}
	if passed(parser, "iou") {
		o.IoU = iou
	}
	if passed(parser, "max-frames") {
		o.MaxFrames = maxFrames
	}
	if *tolerate {
		o.OrderPolicy = config.OrderTolerate
	}

	return &cliArgs{
		source:      *source,
		fromSamples: *fromSamples,
		configPath:  *configPath,
		overrides:   o,
	}, nil
}

func passed(parser *argparse.Parser, long string) bool {
	for _, a := range parser.GetArgs() {
		if a.GetLname() == long {
			return a.GetParsed()
		}
	}
	return false
}

func main() {
	args, err := parseArgs(os.Args)
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		os.Exit(2)
	}

	base, err := config.Load(args.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := base.WithOverrides(args.overrides)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.MustNew(logger.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer log.Sync()

	log.Info("Starting Simple Drone Detector",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first signal stops the frame loop; results are still written.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			log.Info("Received shutdown signal, finishing run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := run(ctx, cfg, args.source, args.fromSamples, log); err != nil {
		log.Error("Run failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
}
