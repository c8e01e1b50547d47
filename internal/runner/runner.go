package runner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/arturkwiek/SDD/internal/aggregate"
	"github.com/arturkwiek/SDD/internal/detection"
	"github.com/arturkwiek/SDD/internal/logger"
	"github.com/arturkwiek/SDD/internal/render"
	"github.com/arturkwiek/SDD/internal/report"
	"github.com/arturkwiek/SDD/internal/store"
	"github.com/arturkwiek/SDD/internal/threat"
	"github.com/arturkwiek/SDD/internal/video"
	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
)

// FrameSink receives annotated frames, normally a *video.VideoWriter
type FrameSink interface {
	WriteFrame(img image.Image) error
	Close() error
}

// SinkFactory opens a FrameSink once the output parameters are known
type SinkFactory func(ctx context.Context, fps float64, width, height int) (FrameSink, error)

// Previewer publishes annotated frames, normally a *preview.Server
type Previewer interface {
	Update(img image.Image) error
}

// RunStore persists finished runs, normally a *store.Store
type RunStore interface {
	SaveRun(ctx context.Context, info store.RunInfo, res aggregate.Result, threats []threat.ClassThreat) (string, error)
}

// ArtifactWriter writes the run artifacts, normally a *report.Writer
type ArtifactWriter interface {
	WriteAll(res aggregate.Result, paths report.Paths) error
}

// Options controls one run
type Options struct {
	Paths         report.Paths
	OrderPolicy   aggregate.OrderPolicy
	ProgressEvery int // Log progress every N frames; 0 disables
	MaxFrames     int // 0 = unlimited
	Source        string
	Model         string
	Backend       string
}

// Dependencies are the collaborators of a run. Source, Detector and
// Artifacts are required; the rest are optional.
type Dependencies struct {
	Source    video.Source
	Detector  detection.Detector
	Filter    *detection.ClassFilter
	Artifacts ArtifactWriter
	Renderer  *render.Renderer
	NewSink   SinkFactory
	Preview   Previewer
	Store     RunStore
	Clock     clock.Clock
}

// Summary describes a finished run
type Summary struct {
	Result      aggregate.Result
	Threats     []threat.ClassThreat
	Frames      int
	VideoFrames int
	RunID       string
	Elapsed     time.Duration
	Interrupted bool
}

// Runner owns the frame loop: read, detect, filter, record, assess, render,
// publish. Whatever happens inside the loop, the recorded detections are
// finalized and written out.
type Runner struct {
	opts   Options
	deps   Dependencies
	logger *logger.Logger

	pipeline *aggregate.Pipeline
	tracker  *threat.Tracker

	sink        FrameSink
	sinkFailed  bool
	videoFrames int
}

// New creates a runner
func New(opts Options, deps Dependencies, log *logger.Logger) (*Runner, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("runner: source is required")
	}
	if deps.Detector == nil {
		return nil, fmt.Errorf("runner: detector is required")
	}
	if deps.Artifacts == nil {
		return nil, fmt.Errorf("runner: artifact writer is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Filter == nil {
		deps.Filter = detection.NewClassFilter(nil)
	}

	return &Runner{
		opts:     opts,
		deps:     deps,
		logger:   log.WithComponent("runner"),
		pipeline: aggregate.NewPipeline(opts.OrderPolicy),
		tracker:  threat.NewTracker(),
	}, nil
}

// Run processes the source until it ends, MaxFrames is reached or ctx is
// cancelled. Cancellation is not an error: the run is finalized and its
// artifacts are written. A pipeline error stops the loop and is returned
// together with any artifact or store failure.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	clk := r.deps.Clock
	started := clk.Now()

	frames, interrupted, loopErr := r.loop(ctx, started)

	var errs error
	errs = multierr.Append(errs, loopErr)
	if r.sink != nil {
		if err := r.sink.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to close video output: %w", err))
		}
	}

	res := r.pipeline.Finalize()
	threats := r.tracker.Summary()

	if res.Total() == 0 {
		r.logger.Warn("No detections in the whole run")
	}

	r.logger.Info("Writing results",
		"json", r.opts.Paths.JSON,
		"csv", r.opts.Paths.CSV,
		"events", r.opts.Paths.Events,
		"labels", r.opts.Paths.Labels,
	)
	errs = multierr.Append(errs, r.deps.Artifacts.WriteAll(res, r.opts.Paths))

	summary := &Summary{
		Result:      res,
		Threats:     threats,
		Frames:      frames,
		VideoFrames: r.videoFrames,
		Elapsed:     clk.Since(started),
		Interrupted: interrupted,
	}

	if r.deps.Store != nil {
		info := store.RunInfo{
			Source:      r.opts.Source,
			Model:       r.opts.Model,
			Backend:     r.opts.Backend,
			OrderPolicy: r.opts.OrderPolicy.String(),
			StartedAt:   started,
			FinishedAt:  clk.Now(),
			Frames:      frames,
		}
		// The run is saved even when ctx was cancelled by a signal.
		id, err := r.deps.Store.SaveRun(context.WithoutCancel(ctx), info, res, threats)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to save run history: %w", err))
		} else {
			summary.RunID = id
		}
	}

	r.logger.Info("Run finished",
		"frames", frames,
		"detections", res.Total(),
		"classes", len(res.Events),
		"elapsed", summary.Elapsed.Seconds(),
		"interrupted", interrupted,
	)
	return summary, errs
}

func (r *Runner) loop(ctx context.Context, started time.Time) (frames int, interrupted bool, err error) {
	for {
		if r.opts.MaxFrames > 0 && frames >= r.opts.MaxFrames {
			r.logger.Info("Frame limit reached", "max_frames", r.opts.MaxFrames)
			return frames, false, nil
		}
		if ctx.Err() != nil {
			r.logger.Info("Run interrupted", "frames", frames)
			return frames, true, nil
		}

		frame, err := r.deps.Source.Next(ctx)
		if errors.Is(err, io.EOF) {
			if frames == 0 {
				r.logger.Error("No frames could be read from the source")
			} else {
				r.logger.Info("End of source", "frames", frames)
			}
			return frames, false, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("Run interrupted", "frames", frames)
				return frames, true, nil
			}
			return frames, false, fmt.Errorf("failed to read frame %d: %w", frames, err)
		}
		frames++

		recorded, err := r.processFrame(ctx, frame)
		if err != nil {
			return frames, false, err
		}

		if r.opts.ProgressEvery > 0 && frame.Index%r.opts.ProgressEvery == 0 {
			r.logger.Info("Progress",
				"frame", frame.Index,
				"detections", recorded,
				"elapsed", r.deps.Clock.Since(started).Seconds(),
			)
		}
	}
}

// processFrame runs one frame through detection and the pipeline and returns
// how many detections were recorded
func (r *Runner) processFrame(ctx context.Context, frame *video.Frame) (int, error) {
	dets, err := r.deps.Detector.Detect(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil
		}
		r.logger.Warn("Detection failed, frame counted as empty", "frame", frame.Index, "error", err)
		dets = nil
	}
	dets = r.deps.Filter.Apply(dets)

	boxes := make([]render.Box, 0, len(dets))
	for _, d := range dets {
		if err := r.pipeline.Record(d); err != nil {
			if errors.Is(err, detection.ErrInvalidDetection) {
				r.logger.Warn("Skipping invalid detection", "frame", frame.Index, "error", err)
				continue
			}
			return len(boxes), err
		}

		a := threat.Assess(d, frame.Width, frame.Height)
		r.tracker.Observe(d.Class, a)
		if a.Level == threat.LevelHigh {
			r.logger.Warn("High threat",
				"frame", d.FrameIndex,
				"timestamp", d.Timestamp,
				"class", d.Class,
				"confidence", d.Confidence,
				"threat_score", a.Score,
			)
		}
		boxes = append(boxes, render.Box{Detection: d, Level: a.Level})
	}

	r.publish(ctx, frame, boxes)
	return len(boxes), nil
}

// publish renders the frame for the video output and the preview. Failures
// here never stop the run.
func (r *Runner) publish(ctx context.Context, frame *video.Frame, boxes []render.Box) {
	wantVideo := r.deps.NewSink != nil && !r.sinkFailed
	if r.deps.Renderer == nil || (!wantVideo && r.deps.Preview == nil) {
		return
	}

	annotated := r.deps.Renderer.Draw(frame.Image, boxes)

	if wantVideo {
		if r.sink == nil {
			r.openSink(ctx, frame)
		}
		if r.sink != nil {
			if err := r.sink.WriteFrame(annotated); err != nil {
				r.logger.Warn("Video output failed, disabling it", "error", err)
				r.sinkFailed = true
			} else {
				r.videoFrames++
			}
		}
	}

	if r.deps.Preview != nil {
		if err := r.deps.Preview.Update(annotated); err != nil {
			r.logger.Debug("Preview update failed", "frame", frame.Index, "error", err)
		}
	}
}

func (r *Runner) openSink(ctx context.Context, frame *video.Frame) {
	fps := r.deps.Source.FPS()
	width, height := r.deps.Source.Size()
	if width <= 0 || height <= 0 {
		width, height = frame.Width, frame.Height
	}

	if fps <= 0 || width <= 0 || height <= 0 {
		r.logger.Warn("Video output enabled but fps or frame size is unknown, skipping video output",
			"fps", fps, "width", width, "height", height)
		r.sinkFailed = true
		return
	}

	sink, err := r.deps.NewSink(ctx, fps, width, height)
	if err != nil {
		r.logger.Warn("Failed to create video output", "error", err)
		r.sinkFailed = true
		return
	}
	r.sink = sink
}
