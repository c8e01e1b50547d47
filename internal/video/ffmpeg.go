package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/arturkwiek/SDD/internal/logger"
)

// FFmpegWrapper wraps the ffmpeg and ffprobe binaries
type FFmpegWrapper struct {
	logger          *logger.Logger
	ffmpegPath      string
	ffprobePath     string
	hardwareAccel   HardwareAcceleration
	availableCodecs map[string]bool
	mu              sync.RWMutex
}

// HardwareAcceleration represents available hardware encoders
type HardwareAcceleration struct {
	IntelQSV    bool // Intel Quick Sync Video via VAAPI
	NVIDIANVENC bool // NVIDIA NVENC
	Software    bool // Software fallback (always available)
}

// NewFFmpegWrapper locates ffmpeg and ffprobe and detects the available codecs.
// Empty paths use the binaries on PATH.
func NewFFmpegWrapper(log *logger.Logger, ffmpegPath, ffprobePath string) (*FFmpegWrapper, error) {
	log = log.WithComponent("ffmpeg")
	wrapper := &FFmpegWrapper{
		logger:          log,
		availableCodecs: make(map[string]bool),
	}

	path, err := detectBinary(ffmpegPath, "ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	wrapper.ffmpegPath = path

	// ffprobe is optional: without it fps and size are learned from the first frame.
	if path, err := detectBinary(ffprobePath, "ffprobe"); err != nil {
		log.Warn("ffprobe not found, source parameters will be unknown", "error", err)
	} else {
		wrapper.ffprobePath = path
	}

	encoders, err := wrapper.listCodecs("-encoders")
	if err != nil {
		log.Warn("Failed to detect encoders", "error", err)
	} else {
		wrapper.availableCodecs = encoders
	}
	wrapper.hardwareAccel = wrapper.detectHardwareAcceleration()

	log.Debug("FFmpeg wrapper initialized",
		"path", wrapper.ffmpegPath,
		"ffprobe", wrapper.ffprobePath,
		"intel_qsv", wrapper.hardwareAccel.IntelQSV,
		"nvidia_nvenc", wrapper.hardwareAccel.NVIDIANVENC,
	)

	return wrapper, nil
}

// detectBinary returns the first candidate that answers -version
func detectBinary(configured, name string) (string, error) {
	paths := []string{name, "/usr/bin/" + name, "/usr/local/bin/" + name}
	if configured != "" && configured != name {
		paths = append([]string{configured}, paths...)
	}

	for _, path := range paths {
		if err := exec.Command(path, "-version").Run(); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%s not found in PATH or common locations", name)
}

// detectHardwareAcceleration checks for hardware h264 encoders. The device
// tools must answer too, otherwise ffmpeg lists encoders it cannot open.
func (f *FFmpegWrapper) detectHardwareAcceleration() HardwareAcceleration {
	accel := HardwareAcceleration{Software: true}

	if f.availableCodecs["h264_vaapi"] && exec.Command("vainfo").Run() == nil {
		accel.IntelQSV = true
	}
	if f.availableCodecs["h264_nvenc"] && exec.Command("nvidia-smi").Run() == nil {
		accel.NVIDIANVENC = true
	}

	return accel
}

// listCodecs parses the output of ffmpeg -encoders or -decoders
func (f *FFmpegWrapper) listCodecs(flag string) (map[string]bool, error) {
	output, err := exec.Command(f.ffmpegPath, "-hide_banner", flag).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list codecs: %w", err)
	}
	return parseCodecList(string(output)), nil
}

// parseCodecList extracts codec names from lines like " V....D libx264 ..."
func parseCodecList(output string) map[string]bool {
	codecs := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		if kind := fields[0][0]; kind != 'V' && kind != 'A' && kind != 'S' {
			continue
		}
		codecs[fields[1]] = true
	}
	return codecs
}

// GetHardwareAcceleration returns available hardware acceleration
func (f *FFmpegWrapper) GetHardwareAcceleration() HardwareAcceleration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.hardwareAccel
}

// IsCodecAvailable checks if an encoder is available
func (f *FFmpegWrapper) IsCodecAvailable(codec string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.availableCodecs[codec]
}

// GetPreferredEncoder returns the encoder for the output video: libx264 when
// present, otherwise the mpeg4 encoder every ffmpeg build ships.
func (f *FFmpegWrapper) GetPreferredEncoder() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.availableCodecs["libx264"] {
		return "libx264"
	}
	return "mpeg4"
}

// BuildCommand builds an ffmpeg command
func (f *FFmpegWrapper) BuildCommand(ctx context.Context, args []string) *exec.Cmd {
	return exec.CommandContext(ctx, f.ffmpegPath, args...)
}

// GetVersion returns the ffmpeg version line
func (f *FFmpegWrapper) GetVersion() (string, error) {
	output, err := exec.Command(f.ffmpegPath, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}

	return "unknown", nil
}

// StreamInfo describes the video stream of a source. Zero values mean unknown.
type StreamInfo struct {
	Width  int
	Height int
	FPS    float64
	Codec  string
}

// Probe runs ffprobe against the input and returns its first video stream
func (f *FFmpegWrapper) Probe(ctx context.Context, in Input, rtspTransport string) (StreamInfo, error) {
	if f.ffprobePath == "" {
		return StreamInfo{}, fmt.Errorf("ffprobe not available")
	}

	args := []string{"-v", "quiet", "-print_format", "json", "-show_streams", "-select_streams", "v:0"}
	args = append(args, inputArgs(in, rtspTransport)...)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return StreamInfo{}, fmt.Errorf("ffprobe failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (StreamInfo, error) {
	var raw struct {
		Streams []struct {
			CodecName    string `json:"codec_name"`
			CodecType    string `json:"codec_type"`
			Width        int    `json:"width"`
			Height       int    `json:"height"`
			AvgFrameRate string `json:"avg_frame_rate"`
			RFrameRate   string `json:"r_frame_rate"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(output, &raw); err != nil {
		return StreamInfo{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	for _, s := range raw.Streams {
		if s.CodecType != "" && s.CodecType != "video" {
			continue
		}
		if s.Width == 0 || s.Height == 0 {
			continue
		}
		fps := parseFrameRate(s.AvgFrameRate)
		if fps == 0 {
			fps = parseFrameRate(s.RFrameRate)
		}
		return StreamInfo{Width: s.Width, Height: s.Height, FPS: fps, Codec: s.CodecName}, nil
	}

	return StreamInfo{}, fmt.Errorf("no video stream found")
}

// parseFrameRate parses "30000/1001" or "25". Anything unusable yields 0.
func parseFrameRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n <= 0 {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d <= 0 {
		return 0
	}
	return n / d
}
