package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/arturkwiek/SDD/internal/aggregate"
	"github.com/arturkwiek/SDD/internal/ai"
	"github.com/arturkwiek/SDD/internal/config"
	"github.com/arturkwiek/SDD/internal/detection"
	"github.com/arturkwiek/SDD/internal/health"
	"github.com/arturkwiek/SDD/internal/logger"
	"github.com/arturkwiek/SDD/internal/preview"
	"github.com/arturkwiek/SDD/internal/render"
	"github.com/arturkwiek/SDD/internal/report"
	"github.com/arturkwiek/SDD/internal/runner"
	"github.com/arturkwiek/SDD/internal/store"
	"github.com/arturkwiek/SDD/internal/video"
)

const maxDiskUsagePercent = 95.0

// run wires the collaborators for one detection run and executes it
func run(ctx context.Context, cfg *config.Config, source string, fromSamples bool, log *logger.Logger) error {
	policy, err := aggregate.ParseOrderPolicy(cfg.Runtime.OrderPolicy)
	if err != nil {
		return err
	}

	in, err := video.Resolve(source, fromSamples, cfg.Source.SampleDir)
	if err != nil {
		return err
	}

	log.Info("Run configuration",
		"source", in.Location,
		"kind", in.Kind.String(),
		"backend", cfg.Detector.Backend,
		"model", cfg.Detector.Model,
		"conf", cfg.Detector.ConfidenceThreshold,
		"iou", cfg.Detector.IoUThreshold,
		"target_classes", cfg.Detector.TargetClasses,
		"order_policy", policy.String(),
	)

	// Still images decode in-process; ffmpeg is only needed for the rest
	// and for video output.
	var ffmpeg *video.FFmpegWrapper
	var ffmpegErr error
	usesFFmpeg := in.Kind != video.KindImage || cfg.Runtime.SaveVideo
	if usesFFmpeg {
		ffmpeg, ffmpegErr = video.NewFFmpegWrapper(log, cfg.Source.FFmpegPath, cfg.Source.FFprobePath)
	}

	backend, err := ai.NewBackend(cfg.Detector, log)
	if err != nil {
		return fmt.Errorf("failed to create detector: %w", err)
	}
	defer backend.Close()

	checks := health.NewManager(log, 5*time.Second)
	if usesFFmpeg {
		required := in.Kind != video.KindImage && cfg.Source.Decoder == config.DecoderFFmpeg
		checks.RegisterChecker(health.NewFFmpegChecker(ffmpeg, ffmpegErr, required))
	}
	checks.RegisterChecker(health.NewDetectorChecker(backend))
	outputs := []string{cfg.Runtime.OutputJSONPath, cfg.Runtime.OutputCSVPath, cfg.EventsPath(), cfg.LabelsPath()}
	if cfg.Runtime.SaveVideo {
		outputs = append(outputs, cfg.Runtime.OutputVideoPath)
	}
	checks.RegisterChecker(health.NewOutputChecker(maxDiskUsagePercent, outputs...))
	if cfg.Store.Enabled {
		checks.RegisterChecker(health.NewDatabaseChecker(cfg.Store.Path))
	}

	preflight := checks.Check(ctx)
	checks.Log(preflight)
	if preflight.Status == health.StatusUnhealthy {
		var names []string
		for _, c := range preflight.Failed() {
			if c.Status == health.StatusUnhealthy {
				names = append(names, c.Name)
			}
		}
		return fmt.Errorf("preflight checks failed: %s", strings.Join(names, ", "))
	}

	filter := detection.NewClassFilter(cfg.Detector.TargetClasses)
	if labels := backend.Labels(); labels != nil {
		if unknown := filter.Unknown(labels); len(unknown) > 0 {
			log.Warn("Target classes not known to the model are ignored", "classes", unknown)
		}
	}

	src, err := video.Open(ctx, in, cfg.Source, ffmpeg, clock.New(), log)
	if err != nil {
		return fmt.Errorf("failed to open source %s: %w", in.Location, err)
	}
	defer src.Close()

	fps := src.FPS()
	w, h := src.Size()
	log.Info("Source parameters (0 = unknown)", "fps", fps, "width", w, "height", h)

	deps := runner.Dependencies{
		Source:    src,
		Detector:  backend,
		Filter:    filter,
		Artifacts: report.NewWriter(log),
	}

	if cfg.Runtime.ShowPreview || cfg.Runtime.SaveVideo {
		deps.Renderer, err = render.New(cfg.Runtime.ColorByThreat)
		if err != nil {
			return err
		}
	}

	if cfg.Runtime.ShowPreview {
		srv := preview.NewServer(cfg.Runtime.PreviewAddr, log)
		if err := srv.Start(ctx); err != nil {
			log.Warn("Preview disabled", "error", err)
		} else {
			deps.Preview = srv
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Warn("Error stopping preview server", "error", err)
				}
			}()
		}
	}

	if cfg.Runtime.SaveVideo && ffmpeg != nil {
		path := cfg.Runtime.OutputVideoPath
		deps.NewSink = func(ctx context.Context, fps float64, width, height int) (runner.FrameSink, error) {
			// The encoder must outlive a cancelled run to finish the file.
			vw, err := video.NewVideoWriter(context.WithoutCancel(ctx), ffmpeg, path, fps, width, height, log)
			if err != nil {
				return nil, err
			}
			return vw, nil
		}
	}

	if cfg.Store.Enabled {
		st, err := store.Open(cfg.Store.Path, log)
		if err != nil {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		defer st.Close()
		deps.Store = st
	}

	r, err := runner.New(runner.Options{
		Paths: report.Paths{
			JSON:   cfg.Runtime.OutputJSONPath,
			CSV:    cfg.Runtime.OutputCSVPath,
			Events: cfg.EventsPath(),
			Labels: cfg.LabelsPath(),
		},
		OrderPolicy:   policy,
		ProgressEvery: cfg.Runtime.ProgressEvery,
		MaxFrames:     cfg.Source.MaxFrames,
		Source:        in.Location,
		Model:         cfg.Detector.Model,
		Backend:       cfg.Detector.Backend,
	}, deps, log)
	if err != nil {
		return err
	}

	summary, err := r.Run(ctx)
	if summary != nil {
		for _, lc := range summary.Result.LabelCounts {
			log.Info("Label count", "class", lc.Class, "count", lc.Count)
		}
		if summary.RunID != "" {
			log.Info("Run recorded", "run_id", summary.RunID, "db", cfg.Store.Path)
		}
		if cfg.Runtime.SaveVideo && summary.VideoFrames > 0 {
			log.Info("Annotated video written", "path", cfg.Runtime.OutputVideoPath, "frames", summary.VideoFrames)
		}
	}
	return err
}
