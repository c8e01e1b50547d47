package video

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Kind is the type of a frame source
type Kind int

const (
	KindFile Kind = iota
	KindImage
	KindCamera
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindCamera:
		return "camera"
	case KindStream:
		return "stream"
	}
	return "file"
}

// Live reports whether the source runs in real time and has no media clock
func (k Kind) Live() bool {
	return k == KindCamera || k == KindStream
}

// Input is a resolved frame source
type Input struct {
	Kind     Kind
	Location string // File path, URL or camera device
	Camera   int    // Camera index for KindCamera
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".gif": true, ".tif": true, ".tiff": true,
}

var streamSchemes = map[string]bool{
	"rtsp": true, "rtsps": true, "rtmp": true, "http": true, "https": true,
	"udp": true, "tcp": true, "srt": true,
}

// Resolve works out what kind of source the user named. A bare number is a
// camera index. With fromSamples the name is looked up in sampleDir first.
func Resolve(source string, fromSamples bool, sampleDir string) (Input, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Input{}, fmt.Errorf("empty source")
	}

	if idx, err := strconv.Atoi(source); err == nil && idx >= 0 && !strings.HasPrefix(source, "+") {
		return Input{Kind: KindCamera, Location: cameraDevice(idx), Camera: idx}, nil
	}

	if u, err := url.Parse(source); err == nil && streamSchemes[strings.ToLower(u.Scheme)] {
		return Input{Kind: KindStream, Location: source}, nil
	}

	path := source
	if fromSamples {
		path = filepath.Join(sampleDir, source)
	}
	if _, err := os.Stat(path); err != nil {
		return Input{}, fmt.Errorf("source not found: %s: %w", path, err)
	}

	if imageExtensions[strings.ToLower(filepath.Ext(path))] {
		return Input{Kind: KindImage, Location: path}, nil
	}
	return Input{Kind: KindFile, Location: path}, nil
}

// cameraDevice returns the ffmpeg input name of camera idx on this platform
func cameraDevice(idx int) string {
	switch runtime.GOOS {
	case "linux":
		return fmt.Sprintf("/dev/video%d", idx)
	case "windows":
		return fmt.Sprintf("video=%d", idx)
	}
	return strconv.Itoa(idx)
}

// inputArgs returns the ffmpeg/ffprobe arguments that open in
func inputArgs(in Input, rtspTransport string) []string {
	switch in.Kind {
	case KindCamera:
		switch runtime.GOOS {
		case "linux":
			return []string{"-f", "v4l2", "-i", in.Location}
		case "darwin":
			return []string{"-f", "avfoundation", "-framerate", "30", "-i", in.Location}
		case "windows":
			return []string{"-f", "dshow", "-i", in.Location}
		}
	case KindStream:
		if strings.HasPrefix(strings.ToLower(in.Location), "rtsp") && rtspTransport != "" {
			return []string{"-rtsp_transport", rtspTransport, "-i", in.Location}
		}
	}
	return []string{"-i", in.Location}
}
