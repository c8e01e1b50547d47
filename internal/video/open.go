package video

import (
	"context"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/arturkwiek/SDD/internal/config"
	"github.com/arturkwiek/SDD/internal/logger"
)

// Open starts the frame source for a resolved input using the decoder chosen
// in cfg. Still images are decoded in-process and never need ffmpeg.
func Open(ctx context.Context, in Input, cfg config.SourceConfig, ffmpeg *FFmpegWrapper, clk clock.Clock, log *logger.Logger) (Source, error) {
	log = log.WithComponent("video")

	if in.Kind == KindImage {
		src, err := OpenImageSource(in.Location)
		if err != nil {
			return nil, err
		}
		w, h := src.Size()
		log.Info("Frame source opened", "kind", in.Kind.String(), "location", in.Location, "width", w, "height", h)
		return src, nil
	}

	if in.Kind == KindStream && cfg.ProbeRTSP && strings.HasPrefix(strings.ToLower(in.Location), "rtsp") {
		if _, err := ProbeRTSP(ctx, in.Location, cfg.RTSPTransport, cfg.ProbeTimeout, log); err != nil {
			return nil, fmt.Errorf("rtsp source unreachable: %w", err)
		}
	}

	opts := SourceOptions{RTSPTransport: cfg.RTSPTransport, Clock: clk}

	if cfg.Decoder == config.DecoderGoCV {
		return OpenNativeSource(in, opts)
	}

	if ffmpeg == nil {
		return nil, fmt.Errorf("ffmpeg is required to decode %s sources", in.Kind)
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	info, err := ffmpeg.Probe(probeCtx, in, cfg.RTSPTransport)
	cancel()
	if err != nil {
		log.Warn("Failed to probe source, fps and size unknown", "location", in.Location, "error", err)
	}
	opts.Info = info

	return OpenFFmpegSource(ctx, ffmpeg, in, opts, log)
}
