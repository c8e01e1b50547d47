package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Overrides carries command-line values. Nil pointers and empty strings mean
// "not given" and leave the file/default value untouched.
type Overrides struct {
	Backend       string
	Model         string
	Confidence    *float64
	IoU           *float64
	TargetClasses []string
	ServiceURL    string

	NoPreview   bool
	PreviewAddr string
	SaveVideo   bool
	VideoOut    string
	JSONOut     string
	CSVOut      string
	EventsOut   string
	LabelsOut   string
	OrderPolicy string

	MaxFrames *int
	SampleDir string
	Decoder   string

	DBPath string

	LogLevel  string
	LogFormat string
}

// WithOverrides returns a copy of the configuration with the given overrides applied
func (c Config) WithOverrides(o Overrides) *Config {
	out := c
	out.Detector.TargetClasses = append([]string(nil), c.Detector.TargetClasses...)

	if o.Backend != "" {
		out.Detector.Backend = o.Backend
	}
	if o.Model != "" {
		out.Detector.Model = o.Model
	}
	if o.Confidence != nil {
		out.Detector.ConfidenceThreshold = *o.Confidence
	}
	if o.IoU != nil {
		out.Detector.IoUThreshold = *o.IoU
	}
	if classes := splitClasses(o.TargetClasses); len(classes) > 0 {
		out.Detector.TargetClasses = classes
	}
	if o.ServiceURL != "" {
		out.Detector.ServiceURL = o.ServiceURL
	}

	if o.NoPreview {
		out.Runtime.ShowPreview = false
	}
	if o.PreviewAddr != "" {
		out.Runtime.PreviewAddr = o.PreviewAddr
	}
	if o.SaveVideo {
		out.Runtime.SaveVideo = true
	}
	if o.VideoOut != "" {
		out.Runtime.OutputVideoPath = o.VideoOut
	}
	if o.JSONOut != "" {
		out.Runtime.OutputJSONPath = o.JSONOut
	}
	if o.CSVOut != "" {
		out.Runtime.OutputCSVPath = o.CSVOut
	}
	if o.EventsOut != "" {
		out.Runtime.OutputEventsPath = o.EventsOut
	}
	if o.LabelsOut != "" {
		out.Runtime.OutputLabelsPath = o.LabelsOut
	}
	if o.OrderPolicy != "" {
		out.Runtime.OrderPolicy = o.OrderPolicy
	}

	if o.MaxFrames != nil {
		out.Source.MaxFrames = *o.MaxFrames
	}
	if o.SampleDir != "" {
		out.Source.SampleDir = o.SampleDir
	}
	if o.Decoder != "" {
		out.Source.Decoder = o.Decoder
	}

	if o.DBPath != "" {
		out.Store.Enabled = true
		out.Store.Path = o.DBPath
	}

	if o.LogLevel != "" {
		out.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		out.Log.Format = o.LogFormat
	}

	return &out
}

// splitClasses accepts both repeated flags and comma separated lists
func splitClasses(values []string) []string {
	var classes []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				classes = append(classes, part)
			}
		}
	}
	return classes
}

// applyEnvOverrides applies SDD_* environment variables on top of the file values
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("SDD_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv("SDD_LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}

	if val := os.Getenv("SDD_DETECTOR_BACKEND"); val != "" {
		cfg.Detector.Backend = val
	}
	if val := os.Getenv("SDD_SERVICE_URL"); val != "" {
		cfg.Detector.ServiceURL = val
	}
	if val := os.Getenv("SDD_CONFIDENCE_THRESHOLD"); val != "" {
		if threshold, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Detector.ConfidenceThreshold = threshold
		}
	}
	if val := os.Getenv("SDD_DETECTOR_TIMEOUT"); val != "" {
		if timeout, err := time.ParseDuration(val); err == nil {
			cfg.Detector.Timeout = timeout
		}
	}
	if val := os.Getenv("SDD_TARGET_CLASSES"); val != "" {
		cfg.Detector.TargetClasses = splitClasses([]string{val})
	}
	if val := os.Getenv("SDD_ONNX_LIBRARY_PATH"); val != "" {
		cfg.Detector.ONNX.LibraryPath = val
	}

	if val := os.Getenv("SDD_SAMPLE_DIR"); val != "" {
		cfg.Source.SampleDir = val
	}
}
