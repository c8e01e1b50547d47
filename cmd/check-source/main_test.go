package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	saved := os.Args
	os.Args = append([]string{"check-source"}, args...)
	t.Cleanup(func() { os.Args = saved })
}

func TestRun_MissingSource(t *testing.T) {
	withArgs(t)
	assert.Equal(t, 2, run())
}

func TestRun_UnknownFlag(t *testing.T) {
	withArgs(t, "--no-such-flag")
	assert.Equal(t, 2, run())
}

func TestRun_MissingConfig(t *testing.T) {
	withArgs(t, "clip.mp4", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 1, run())
}

func TestRun_UnresolvableSource(t *testing.T) {
	withArgs(t, filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Equal(t, 1, run())
}

func TestRun_ListCameras(t *testing.T) {
	withArgs(t, "--list-cameras")
	assert.Equal(t, 0, run())
}
