package video

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strconv"

	"github.com/arturkwiek/SDD/internal/logger"
)

// VideoWriter encodes frames into a video file by piping raw RGBA pixels into ffmpeg
type VideoWriter struct {
	logger  *logger.Logger
	path    string
	width   int
	height  int
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	buf     *image.RGBA
	frames  int
	encoder string
}

// NewVideoWriter starts an ffmpeg encoder writing to path
func NewVideoWriter(ctx context.Context, ffmpeg *FFmpegWrapper, path string, fps float64, width, height int, log *logger.Logger) (*VideoWriter, error) {
	if fps <= 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("unknown output parameters: fps=%.2f size=%dx%d", fps, width, height)
	}

	encoder := ffmpeg.GetPreferredEncoder()
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
		"-an",
		"-c:v", encoder,
		"-pix_fmt", "yuv420p",
	}
	if encoder == "mpeg4" {
		args = append(args, "-q:v", "4")
	}
	// yuv420p needs even dimensions
	args = append(args, "-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2", path)

	cmd := ffmpeg.BuildCommand(ctx, args)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg encoder: %w", err)
	}

	log.Info("Video writer started", "path", path, "fps", fps, "width", width, "height", height, "encoder", encoder)

	return &VideoWriter{
		logger:  log,
		path:    path,
		width:   width,
		height:  height,
		cmd:     cmd,
		stdin:   stdin,
		buf:     image.NewRGBA(image.Rect(0, 0, width, height)),
		encoder: encoder,
	}, nil
}

// WriteFrame appends one frame. Frames of a different size are drawn onto
// the writer's canvas at the origin.
func (w *VideoWriter) WriteFrame(img image.Image) error {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Bounds() != w.buf.Bounds() || rgba.Stride != 4*w.width {
		draw.Draw(w.buf, w.buf.Bounds(), img, img.Bounds().Min, draw.Src)
		rgba = w.buf
	}
	if _, err := w.stdin.Write(rgba.Pix); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", w.frames, err)
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written
func (w *VideoWriter) Frames() int {
	return w.frames
}

// Close flushes the encoder and waits for ffmpeg to finish the file
func (w *VideoWriter) Close() error {
	if w.cmd == nil {
		return nil
	}
	cmd := w.cmd
	w.cmd = nil

	closeErr := w.stdin.Close()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg encoder failed: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close encoder input: %w", closeErr)
	}

	w.logger.Info("Video written", "path", w.path, "frames", w.frames)
	return nil
}
