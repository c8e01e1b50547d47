package video

import (
	"context"
	"fmt"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/pion/rtp"

	"github.com/arturkwiek/SDD/internal/logger"
)

// RTSPProbeResult describes what an RTSP server offered
type RTSPProbeResult struct {
	Medias       int
	Formats      []string // Codec names, e.g. H264
	FirstPacket  time.Duration
	PayloadBytes int
}

// ProbeRTSP connects to an RTSP URL, sets up every media and waits for the
// first RTP packet. It fails fast on unreachable or silent cameras before
// ffmpeg is started.
func ProbeRTSP(ctx context.Context, rawURL, transport string, timeout time.Duration, log *logger.Logger) (*RTSPProbeResult, error) {
	u, err := base.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	client := &gortsplib.Client{
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	if transport == "udp" {
		t := gortsplib.TransportUDP
		client.Transport = &t
	} else {
		t := gortsplib.TransportTCP
		client.Transport = &t
	}

	started := time.Now()
	if err := client.Start(u.Scheme, u.Host); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Close()

	desc, _, err := client.Describe(u)
	if err != nil {
		return nil, fmt.Errorf("failed to describe stream: %w", err)
	}

	result := &RTSPProbeResult{Medias: len(desc.Medias)}
	for _, media := range desc.Medias {
		for _, forma := range media.Formats {
			result.Formats = append(result.Formats, forma.Codec())
		}
	}

	if err := client.SetupAll(desc.BaseURL, desc.Medias); err != nil {
		return nil, fmt.Errorf("failed to setup stream: %w", err)
	}

	packets := make(chan int, 1)
	client.OnPacketRTPAny(func(_ *description.Media, _ format.Format, pkt *rtp.Packet) {
		select {
		case packets <- len(pkt.Payload):
		default:
		}
	})

	if _, err := client.Play(nil); err != nil {
		return nil, fmt.Errorf("failed to play stream: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case n := <-packets:
		result.FirstPacket = time.Since(started)
		result.PayloadBytes = n
	case <-timer.C:
		return nil, fmt.Errorf("no RTP packets received within %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	log.Info("RTSP stream reachable",
		"host", u.Host,
		"medias", result.Medias,
		"formats", result.Formats,
		"first_packet", result.FirstPacket,
	)
	return result, nil
}
