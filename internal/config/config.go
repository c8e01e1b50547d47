package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Detector backends
const (
	BackendHTTP = "http"
	BackendONNX = "onnx"
)

// Frame decoders
const (
	DecoderFFmpeg = "ffmpeg"
	DecoderGoCV   = "gocv" // Requires a binary built with -tags gocv
)

// Out-of-order policies for the aggregation pipeline
const (
	OrderReject   = "reject"
	OrderTolerate = "tolerate"
)

// Config represents the application configuration. It is built once at
// start-up (Load, ApplyOverrides, Validate) and treated as read-only afterwards.
type Config struct {
	Detector DetectorConfig `yaml:"detector"`
	Source   SourceConfig   `yaml:"source"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log,omitempty"`
}

// DetectorConfig contains model and inference settings
type DetectorConfig struct {
	Backend             string        `yaml:"backend"`
	Model               string        `yaml:"model"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	IoUThreshold        float64       `yaml:"iou_threshold"`
	TargetClasses       []string      `yaml:"target_classes"` // Optional: filter by class names
	ServiceURL          string        `yaml:"service_url"`
	Timeout             time.Duration `yaml:"timeout"`
	MaxRetries          int           `yaml:"max_retries"`
	RetryDelay          time.Duration `yaml:"retry_delay"`
	ONNX                ONNXConfig    `yaml:"onnx"`
}

// ONNXConfig contains settings for the local onnxruntime backend
type ONNXConfig struct {
	LibraryPath string `yaml:"library_path"`
	InputSize   int    `yaml:"input_size"`
	LabelsPath  string `yaml:"labels_path"`
	InputName   string `yaml:"input_name"`
	OutputName  string `yaml:"output_name"`
	NumClasses  int    `yaml:"num_classes"`
	NumBoxes    int    `yaml:"num_boxes"`
	Threads     int    `yaml:"threads"`
}

// SourceConfig contains frame source settings
type SourceConfig struct {
	SampleDir     string        `yaml:"sample_dir"`
	Decoder       string        `yaml:"decoder"`
	RTSPTransport string        `yaml:"rtsp_transport"`
	ProbeRTSP     bool          `yaml:"probe_rtsp"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	MaxFrames     int           `yaml:"max_frames"` // 0 = unlimited
	FFmpegPath    string        `yaml:"ffmpeg_path"`
	FFprobePath   string        `yaml:"ffprobe_path"`
}

// RuntimeConfig contains preview, output and pipeline settings
type RuntimeConfig struct {
	ShowPreview      bool   `yaml:"show_preview"`
	PreviewAddr      string `yaml:"preview_addr"`
	SaveVideo        bool   `yaml:"save_video"`
	OutputVideoPath  string `yaml:"output_video_path"`
	OutputJSONPath   string `yaml:"output_json_path"`
	OutputCSVPath    string `yaml:"output_csv_path"`
	OutputEventsPath string `yaml:"output_events_path"` // Derived from the CSV path when empty
	OutputLabelsPath string `yaml:"output_labels_path"` // Derived from the CSV path when empty
	ProgressEvery    int    `yaml:"progress_every"`
	OrderPolicy      string `yaml:"order_policy"`
	ColorByThreat    bool   `yaml:"color_by_threat"`
}

// StoreConfig contains run history database settings
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// rawConfig lets Load tell "absent" from an explicit zero value for fields
// whose default is not the zero value.
type rawConfig struct {
	Detector struct {
		ConfidenceThreshold *float64 `yaml:"confidence_threshold"`
		IoUThreshold        *float64 `yaml:"iou_threshold"`
	} `yaml:"detector"`
	Runtime struct {
		ShowPreview   *bool `yaml:"show_preview"`
		ColorByThreat *bool `yaml:"color_by_threat"`
	} `yaml:"runtime"`
	Source struct {
		ProbeRTSP *bool `yaml:"probe_rtsp"`
	} `yaml:"source"`
}

// Load reads and parses the configuration file. An empty path searches the
// default locations and falls back to built-in defaults when none exists.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = findDefaultConfigPath()
	}

	var cfg Config
	var raw rawConfig

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}

		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse configuration: %w", err)
		}
	}

	cfg.setDefaults(raw)
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	var cfg Config
	cfg.setDefaults(rawConfig{})
	return &cfg
}

// findDefaultConfigPath returns the first existing default config file, or ""
func findDefaultConfigPath() string {
	paths := []string{
		"./config/sdd.yaml",
		"./sdd.yaml",
		"/etc/sdd/config.yaml",
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// DefaultSampleDir returns the directory holding sample videos and images
func DefaultSampleDir() string {
	if runtime.GOOS == "windows" {
		return "C:/VideoSource"
	}
	return "/mnt/c/VideoSource"
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults(raw rawConfig) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Detector.Backend == "" {
		c.Detector.Backend = BackendHTTP
	}
	if c.Detector.Model == "" {
		c.Detector.Model = "yolov8n.pt"
	}
	if raw.Detector.ConfidenceThreshold == nil {
		c.Detector.ConfidenceThreshold = 0.35
	}
	if raw.Detector.IoUThreshold == nil {
		c.Detector.IoUThreshold = 0.45
	}
	if c.Detector.ServiceURL == "" {
		c.Detector.ServiceURL = "http://localhost:8000"
	}
	if c.Detector.Timeout == 0 {
		c.Detector.Timeout = 30 * time.Second
	}
	if c.Detector.RetryDelay == 0 {
		c.Detector.RetryDelay = 500 * time.Millisecond
	}
	if c.Detector.ONNX.InputSize == 0 {
		c.Detector.ONNX.InputSize = 640
	}
	if c.Detector.ONNX.InputName == "" {
		c.Detector.ONNX.InputName = "images"
	}
	if c.Detector.ONNX.OutputName == "" {
		c.Detector.ONNX.OutputName = "output0"
	}
	if c.Detector.ONNX.NumClasses == 0 {
		c.Detector.ONNX.NumClasses = 80
	}
	if c.Detector.ONNX.NumBoxes == 0 {
		c.Detector.ONNX.NumBoxes = 8400
	}
	if c.Detector.ONNX.Threads == 0 {
		c.Detector.ONNX.Threads = runtime.NumCPU()
	}

	if c.Source.SampleDir == "" {
		c.Source.SampleDir = DefaultSampleDir()
	}
	if c.Source.Decoder == "" {
		c.Source.Decoder = DecoderFFmpeg
	}
	if c.Source.RTSPTransport == "" {
		c.Source.RTSPTransport = "tcp"
	}
	if raw.Source.ProbeRTSP == nil {
		c.Source.ProbeRTSP = true
	}
	if c.Source.ProbeTimeout == 0 {
		c.Source.ProbeTimeout = 10 * time.Second
	}
	if c.Source.FFmpegPath == "" {
		c.Source.FFmpegPath = "ffmpeg"
	}
	if c.Source.FFprobePath == "" {
		c.Source.FFprobePath = "ffprobe"
	}

	if raw.Runtime.ShowPreview == nil {
		c.Runtime.ShowPreview = true
	}
	if raw.Runtime.ColorByThreat == nil {
		c.Runtime.ColorByThreat = true
	}
	if c.Runtime.PreviewAddr == "" {
		c.Runtime.PreviewAddr = "127.0.0.1:8090"
	}
	if c.Runtime.OutputVideoPath == "" {
		c.Runtime.OutputVideoPath = "output_detection.mp4"
	}
	if c.Runtime.OutputJSONPath == "" {
		c.Runtime.OutputJSONPath = "detections.json"
	}
	if c.Runtime.OutputCSVPath == "" {
		c.Runtime.OutputCSVPath = "detections.csv"
	}
	if c.Runtime.ProgressEvery == 0 {
		c.Runtime.ProgressEvery = 30
	}
	if c.Runtime.OrderPolicy == "" {
		c.Runtime.OrderPolicy = OrderReject
	}

	if c.Store.Path == "" {
		c.Store.Path = "sdd.db"
	}
}

// EventsPath returns the per-class events CSV path. detections.csv becomes
// detections_events.csv; a path without the .csv suffix gets _events.csv appended.
func (c *Config) EventsPath() string {
	if c.Runtime.OutputEventsPath != "" {
		return c.Runtime.OutputEventsPath
	}
	return DerivePath(c.Runtime.OutputCSVPath, "_events.csv")
}

// LabelsPath returns the label-counts text path (detections.csv -> detections_labels.txt)
func (c *Config) LabelsPath() string {
	if c.Runtime.OutputLabelsPath != "" {
		return c.Runtime.OutputLabelsPath
	}
	return DerivePath(c.Runtime.OutputCSVPath, "_labels.txt")
}

// DerivePath strips a case-insensitive .csv suffix from csvPath and appends suffix
func DerivePath(csvPath, suffix string) string {
	if strings.HasSuffix(strings.ToLower(csvPath), ".csv") {
		return csvPath[:len(csvPath)-4] + suffix
	}
	return csvPath + suffix
}

// SamplePath joins name onto the configured sample directory
func (c *Config) SamplePath(name string) string {
	return filepath.Join(c.Source.SampleDir, name)
}
