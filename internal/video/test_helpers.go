package video

import (
	"bufio"
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/benbjohnson/clock"
	"golang.org/x/image/bmp"

	"github.com/arturkwiek/SDD/internal/logger"
)

func setupTestFFmpeg(t *testing.T) *FFmpegWrapper {
	log := logger.NewNopLogger()
	ffmpeg, err := NewFFmpegWrapper(log, "", "")
	if err != nil {
		t.Skipf("FFmpeg not available, skipping test: %v", err)
	}
	return ffmpeg
}

func testImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// bmpStream concatenates BMP encodings the way ffmpeg's image2pipe does
func bmpStream(t *testing.T, frames ...image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, img := range frames {
		if err := bmp.Encode(&buf, img); err != nil {
			t.Fatalf("Failed to encode bmp: %v", err)
		}
	}
	return buf.Bytes()
}

// pipeSource builds an FFmpegSource reading from data instead of a process
func pipeSource(data []byte, kind Kind, fps float64, clk clock.Clock) *FFmpegSource {
	return &FFmpegSource{
		logger: logger.NewNopLogger(),
		input:  Input{Kind: kind, Location: "test"},
		info:   StreamInfo{FPS: fps},
		clock:  clk,
		reader: bufio.NewReader(bytes.NewReader(data)),
		stderr: &bytes.Buffer{},
	}
}
