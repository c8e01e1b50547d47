package video

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "clip.mp4"))
	touch(t, filepath.Join(dir, "Photo.JPG"))

	tests := []struct {
		name   string
		source string
		kind   Kind
		loc    string
	}{
		{"camera", "0", KindCamera, cameraDevice(0)},
		{"second camera", "2", KindCamera, cameraDevice(2)},
		{"rtsp", "rtsp://user:pw@10.0.0.5:554/stream1", KindStream, "rtsp://user:pw@10.0.0.5:554/stream1"},
		{"http", "http://cam.local/video.mjpg", KindStream, "http://cam.local/video.mjpg"},
		{"srt", "srt://host:9000", KindStream, "srt://host:9000"},
		{"video file", filepath.Join(dir, "clip.mp4"), KindFile, filepath.Join(dir, "clip.mp4")},
		{"image upper case ext", filepath.Join(dir, "Photo.JPG"), KindImage, filepath.Join(dir, "Photo.JPG")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Resolve(tt.source, false, "")
			require.NoError(t, err)
			assert.Equal(t, tt.kind, in.Kind)
			assert.Equal(t, tt.loc, in.Location)
		})
	}
}

func TestResolve_FromSamples(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "birds.mp4"))

	in, err := Resolve("birds.mp4", true, dir)
	require.NoError(t, err)
	assert.Equal(t, KindFile, in.Kind)
	assert.Equal(t, filepath.Join(dir, "birds.mp4"), in.Location)

	// Cameras and URLs ignore the sample directory.
	in, err = Resolve("1", true, dir)
	require.NoError(t, err)
	assert.Equal(t, KindCamera, in.Kind)
	assert.Equal(t, 1, in.Camera)
}

func TestResolve_Errors(t *testing.T) {
	_, err := Resolve("", false, "")
	assert.Error(t, err)

	_, err = Resolve(filepath.Join(t.TempDir(), "missing.mp4"), false, "")
	assert.ErrorContains(t, err, "source not found")

	_, err = Resolve("-1", false, "")
	assert.Error(t, err, "negative numbers are not camera indices")
}

func TestInputArgs(t *testing.T) {
	args := inputArgs(Input{Kind: KindStream, Location: "rtsp://cam/1"}, "tcp")
	assert.Equal(t, []string{"-rtsp_transport", "tcp", "-i", "rtsp://cam/1"}, args)

	args = inputArgs(Input{Kind: KindStream, Location: "http://cam/1"}, "tcp")
	assert.Equal(t, []string{"-i", "http://cam/1"}, args)

	args = inputArgs(Input{Kind: KindFile, Location: "a.mp4"}, "tcp")
	assert.Equal(t, []string{"-i", "a.mp4"}, args)

	if runtime.GOOS == "linux" {
		args = inputArgs(Input{Kind: KindCamera, Location: "/dev/video0"}, "")
		assert.Equal(t, []string{"-f", "v4l2", "-i", "/dev/video0"}, args)
	}
}

func TestKind(t *testing.T) {
	assert.True(t, KindCamera.Live())
	assert.True(t, KindStream.Live())
	assert.False(t, KindFile.Live())
	assert.False(t, KindImage.Live())
	assert.Equal(t, "stream", KindStream.String())
}
