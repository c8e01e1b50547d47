package video

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/image/bmp"

	"github.com/arturkwiek/SDD/internal/logger"
)

const bmpHeaderSize = 14

// SourceOptions configures a frame source
type SourceOptions struct {
	RTSPTransport string
	Info          StreamInfo  // Probed stream parameters, zero when unknown
	Clock         clock.Clock // Used for live timestamps; defaults to the wall clock
}

// FFmpegSource decodes frames by reading BMP images from an ffmpeg pipe
type FFmpegSource struct {
	logger *logger.Logger
	input  Input
	info   StreamInfo
	clock  clock.Clock

	cmd    *exec.Cmd
	cancel context.CancelFunc
	reader *bufio.Reader
	stderr *bytes.Buffer

	index   int
	start   time.Time
	lastTS  float64
	started bool
	done    bool
}

// OpenFFmpegSource starts ffmpeg on the input. The process lives until Close or
// until ctx is cancelled.
func OpenFFmpegSource(ctx context.Context, ffmpeg *FFmpegWrapper, in Input, opts SourceOptions, log *logger.Logger) (*FFmpegSource, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, inputArgs(in, opts.RTSPTransport)...)
	args = append(args, "-an", "-c:v", "bmp", "-f", "image2pipe", "-")

	ctx, cancel := context.WithCancel(ctx)
	cmd := ffmpeg.BuildCommand(ctx, args)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	log.Info("Frame source opened",
		"kind", in.Kind.String(),
		"location", in.Location,
		"fps", opts.Info.FPS,
		"width", opts.Info.Width,
		"height", opts.Info.Height,
	)

	return &FFmpegSource{
		logger: log,
		input:  in,
		info:   opts.Info,
		clock:  opts.Clock,
		cmd:    cmd,
		cancel: cancel,
		reader: bufio.NewReaderSize(pipe, 1<<20),
		stderr: stderr,
	}, nil
}

// Next reads the next frame. It returns io.EOF when ffmpeg finishes cleanly.
func (s *FFmpegSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.done {
		return nil, io.EOF
	}

	data, err := readBMP(s.reader)
	if err != nil {
		s.done = true
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, io.EOF) {
			if waitErr := s.wait(); waitErr != nil {
				return nil, waitErr
			}
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read frame %d: %w", s.index, err)
	}

	img, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		s.done = true
		return nil, fmt.Errorf("failed to decode frame %d: %w", s.index, err)
	}

	frame := NewFrame(s.index, s.timestamp(), img)
	s.index++
	if s.info.Width == 0 {
		s.info.Width, s.info.Height = frame.Width, frame.Height
	}
	return frame, nil
}

// timestamp returns media time for files with a known frame rate and elapsed
// wall time otherwise. The result never decreases.
func (s *FFmpegSource) timestamp() float64 {
	var ts float64
	if !s.input.Kind.Live() && s.info.FPS > 0 {
		ts = float64(s.index) / s.info.FPS
	} else {
		now := s.clock.Now()
		if !s.started {
			s.start = now
			s.started = true
		}
		ts = now.Sub(s.start).Seconds()
	}
	if ts < s.lastTS {
		ts = s.lastTS
	}
	s.lastTS = ts
	return ts
}

// readBMP reads one BMP file from r using the size in its header
func readBMP(r io.Reader) ([]byte, error) {
	header := make([]byte, bmpHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated bmp header: %w", err)
		}
		return nil, err
	}
	if header[0] != 'B' || header[1] != 'M' {
		return nil, fmt.Errorf("not a bmp frame")
	}

	size := binary.LittleEndian.Uint32(header[2:6])
	if size <= bmpHeaderSize {
		return nil, fmt.Errorf("invalid bmp size %d", size)
	}

	data := make([]byte, size)
	copy(data, header)
	if _, err := io.ReadFull(r, data[bmpHeaderSize:]); err != nil {
		return nil, fmt.Errorf("truncated bmp frame: %w", err)
	}
	return data, nil
}

func (s *FFmpegSource) wait() error {
	if s.cmd == nil {
		return nil
	}
	cmd := s.cmd
	s.cmd = nil
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg exited with error: %w (%s)", err, strings.TrimSpace(s.stderr.String()))
	}
	return nil
}

// FPS returns the probed frame rate, or 0 when unknown
func (s *FFmpegSource) FPS() float64 {
	return s.info.FPS
}

// Size returns the frame size
func (s *FFmpegSource) Size() (int, int) {
	return s.info.Width, s.info.Height
}

// Close stops ffmpeg
func (s *FFmpegSource) Close() error {
	s.done = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.cmd != nil {
		_ = s.cmd.Wait()
		s.cmd = nil
	}
	return nil
}
