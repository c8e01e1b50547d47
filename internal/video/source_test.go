package video

import (
	"context"
	"image/color"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturkwiek/SDD/internal/config"
	"github.com/arturkwiek/SDD/internal/logger"
)

func TestFFmpegSource_MediaTimestamps(t *testing.T) {
	red := testImage(8, 6, color.RGBA{255, 0, 0, 255})
	src := pipeSource(bmpStream(t, red, red, red), KindFile, 25, clock.NewMock())
	ctx := context.Background()

	var stamps []float64
	for {
		frame, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, len(stamps), frame.Index)
		assert.Equal(t, 8, frame.Width)
		assert.Equal(t, 6, frame.Height)
		stamps = append(stamps, frame.Timestamp)
	}

	assert.Equal(t, []float64{0, 0.04, 0.08}, stamps)
	w, h := src.Size()
	assert.Equal(t, 8, w)
	assert.Equal(t, 6, h)

	_, err := src.Next(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestFFmpegSource_LiveTimestamps(t *testing.T) {
	img := testImage(4, 4, color.White)
	mock := clock.NewMock()
	src := pipeSource(bmpStream(t, img, img, img), KindStream, 30, mock)
	ctx := context.Background()

	mock.Add(time.Hour)
	first, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, first.Timestamp)

	mock.Add(250 * time.Millisecond)
	second, err := src.Next(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, second.Timestamp, 1e-9)

	mock.Add(time.Second)
	third, err := src.Next(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.25, third.Timestamp, 1e-9)
}

func TestFFmpegSource_UnknownFPSUsesClock(t *testing.T) {
	img := testImage(4, 4, color.Black)
	mock := clock.NewMock()
	src := pipeSource(bmpStream(t, img, img), KindFile, 0, mock)

	_, err := src.Next(context.Background())
	require.NoError(t, err)
	mock.Add(500 * time.Millisecond)
	frame, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, frame.Timestamp, 1e-9)
}

func TestFFmpegSource_Corrupt(t *testing.T) {
	src := pipeSource([]byte("XXnot-a-bitmap-header"), KindFile, 25, clock.NewMock())
	_, err := src.Next(context.Background())
	assert.ErrorContains(t, err, "not a bmp frame")

	data := bmpStream(t, testImage(4, 4, color.Black))
	src = pipeSource(data[:len(data)-5], KindFile, 25, clock.NewMock())
	_, err = src.Next(context.Background())
	assert.ErrorContains(t, err, "truncated")
}

func TestFFmpegSource_Cancelled(t *testing.T) {
	src := pipeSource(bmpStream(t, testImage(4, 4, color.Black)), KindFile, 25, clock.NewMock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImageSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "still.png")
	require.NoError(t, imaging.Save(testImage(32, 20, color.RGBA{0, 0, 255, 255}), path))

	src, err := OpenImageSource(path)
	require.NoError(t, err)
	defer src.Close()

	frame, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Index)
	assert.Equal(t, 0.0, frame.Timestamp)
	assert.Equal(t, 32, frame.Width)
	assert.Equal(t, 20, frame.Height)
	assert.Equal(t, 0.0, src.FPS())

	_, err = src.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestOpen_Image(t *testing.T) {
	path := filepath.Join(t.TempDir(), "still.jpg")
	require.NoError(t, imaging.Save(testImage(16, 16, color.White), path))

	in, err := Resolve(path, false, "")
	require.NoError(t, err)

	src, err := Open(context.Background(), in, config.Default().Source, nil, nil, logger.NewNopLogger())
	require.NoError(t, err)
	defer src.Close()

	w, h := src.Size()
	assert.Equal(t, 16, w)
	assert.Equal(t, 16, h)
}

func TestOpen_NativeWithoutTag(t *testing.T) {
	if NativeAvailable {
		t.Skip("built with gocv")
	}
	cfg := config.Default().Source
	cfg.Decoder = config.DecoderGoCV

	_, err := Open(context.Background(), Input{Kind: KindFile, Location: "a.mp4"}, cfg, nil, nil, logger.NewNopLogger())
	assert.ErrorIs(t, err, ErrNativeUnavailable)
}

// TestFFmpegRoundTrip encodes a short clip with VideoWriter and decodes it
// again through FFmpegSource.
func TestFFmpegRoundTrip(t *testing.T) {
	ffmpeg := setupTestFFmpeg(t)
	ctx := context.Background()
	log := logger.NewNopLogger()
	path := filepath.Join(t.TempDir(), "clip.mp4")

	writer, err := NewVideoWriter(ctx, ffmpeg, path, 10, 64, 48, log)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, writer.WriteFrame(testImage(64, 48, color.RGBA{uint8(i * 40), 0, 0, 255})))
	}
	require.NoError(t, writer.Close())
	assert.Equal(t, 5, writer.Frames())
	assert.FileExists(t, path)

	in, err := Resolve(path, false, "")
	require.NoError(t, err)
	cfg := config.Default().Source

	src, err := Open(ctx, in, cfg, ffmpeg, nil, log)
	require.NoError(t, err)
	defer src.Close()

	count := 0
	last := -1.0
	for {
		frame, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, 64, frame.Width)
		assert.GreaterOrEqual(t, frame.Timestamp, last)
		last = frame.Timestamp
		count++
	}
	assert.Equal(t, 5, count)
}

func TestNewVideoWriter_UnknownParameters(t *testing.T) {
	_, err := NewVideoWriter(context.Background(), nil, "out.mp4", 0, 640, 480, logger.NewNopLogger())
	assert.ErrorContains(t, err, "unknown output parameters")
}
