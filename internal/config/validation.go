package config

import (
	"fmt"
	"strings"
)

// Validate validates the configuration with detailed error messages
func (c *Config) Validate() error {
	var errors []string

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errors = append(errors, fmt.Sprintf("invalid log.level: %s (must be: debug, info, warn, error)", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errors = append(errors, fmt.Sprintf("invalid log.format: %s (must be: text or json)", c.Log.Format))
	}

	switch c.Detector.Backend {
	case BackendHTTP:
		if c.Detector.ServiceURL == "" {
			errors = append(errors, "detector.service_url is required for the http backend")
		}
	case BackendONNX:
		if c.Detector.ONNX.InputSize <= 0 {
			errors = append(errors, fmt.Sprintf("detector.onnx.input_size must be > 0, got: %d", c.Detector.ONNX.InputSize))
		}
		if c.Detector.ONNX.NumClasses <= 0 || c.Detector.ONNX.NumBoxes <= 0 {
			errors = append(errors, "detector.onnx.num_classes and detector.onnx.num_boxes must be > 0")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid detector.backend: %s (must be: http or onnx)", c.Detector.Backend))
	}

	if c.Detector.Model == "" {
		errors = append(errors, "detector.model is required")
	}
	if c.Detector.ConfidenceThreshold < 0 || c.Detector.ConfidenceThreshold > 1 {
		errors = append(errors, fmt.Sprintf("detector.confidence_threshold must be between 0 and 1, got: %.2f", c.Detector.ConfidenceThreshold))
	}
	if c.Detector.IoUThreshold < 0 || c.Detector.IoUThreshold > 1 {
		errors = append(errors, fmt.Sprintf("detector.iou_threshold must be between 0 and 1, got: %.2f", c.Detector.IoUThreshold))
	}
	if c.Detector.Timeout <= 0 {
		errors = append(errors, fmt.Sprintf("detector.timeout must be > 0, got: %v", c.Detector.Timeout))
	}
	if c.Detector.MaxRetries < 0 {
		errors = append(errors, fmt.Sprintf("detector.max_retries must be >= 0, got: %d", c.Detector.MaxRetries))
	}

	if c.Source.MaxFrames < 0 {
		errors = append(errors, fmt.Sprintf("source.max_frames must be >= 0, got: %d", c.Source.MaxFrames))
	}
	if c.Source.Decoder != DecoderFFmpeg && c.Source.Decoder != DecoderGoCV {
		errors = append(errors, fmt.Sprintf("invalid source.decoder: %s (must be: ffmpeg or gocv)", c.Source.Decoder))
	}
	if c.Source.RTSPTransport != "tcp" && c.Source.RTSPTransport != "udp" {
		errors = append(errors, fmt.Sprintf("invalid source.rtsp_transport: %s (must be: tcp or udp)", c.Source.RTSPTransport))
	}
	if c.Source.ProbeTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("source.probe_timeout must be > 0, got: %v", c.Source.ProbeTimeout))
	}

	if c.Runtime.OutputJSONPath == "" {
		errors = append(errors, "runtime.output_json_path is required")
	}
	if c.Runtime.OutputCSVPath == "" {
		errors = append(errors, "runtime.output_csv_path is required")
	}
	if c.Runtime.SaveVideo && c.Runtime.OutputVideoPath == "" {
		errors = append(errors, "runtime.output_video_path is required when save_video is enabled")
	}
	if c.Runtime.ShowPreview && c.Runtime.PreviewAddr == "" {
		errors = append(errors, "runtime.preview_addr is required when show_preview is enabled")
	}
	if c.Runtime.ProgressEvery < 0 {
		errors = append(errors, fmt.Sprintf("runtime.progress_every must be >= 0, got: %d", c.Runtime.ProgressEvery))
	}
	if c.Runtime.OrderPolicy != OrderReject && c.Runtime.OrderPolicy != OrderTolerate {
		errors = append(errors, fmt.Sprintf("invalid runtime.order_policy: %s (must be: reject or tolerate)", c.Runtime.OrderPolicy))
	}

	outputs := map[string]string{}
	for name, path := range map[string]string{
		"json":   c.Runtime.OutputJSONPath,
		"csv":    c.Runtime.OutputCSVPath,
		"events": c.EventsPath(),
		"labels": c.LabelsPath(),
	} {
		if path == "" {
			continue
		}
		if other, ok := outputs[path]; ok {
			errors = append(errors, fmt.Sprintf("output paths for %s and %s are the same: %s", other, name, path))
			continue
		}
		outputs[path] = name
	}

	if c.Store.Enabled && c.Store.Path == "" {
		errors = append(errors, "store.path is required when the store is enabled")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}
