package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"

	"github.com/arturkwiek/SDD/internal/config"
	"github.com/arturkwiek/SDD/internal/detection"
	"github.com/arturkwiek/SDD/internal/logger"
	"github.com/arturkwiek/SDD/internal/video"
)

const jpegQuality = 90

// Client is an HTTP client for a YOLO inference service. It implements
// detection.Detector.
type Client struct {
	serviceURL     string
	httpClient     *http.Client
	logger         *logger.Logger
	model          string
	confidence     float64
	iou            float64
	enabledClasses []string
	labels         []string
	maxRetries     int
	retryDelay     time.Duration
}

// NewClient creates a new inference service client. Class ids the service
// returns without a name are looked up in the model labels.
func NewClient(cfg config.DetectorConfig, log *logger.Logger) (*Client, error) {
	labels, err := ModelLabels(cfg.ONNX)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		serviceURL: cfg.ServiceURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:         log.WithComponent("ai-client"),
		model:          cfg.Model,
		confidence:     cfg.ConfidenceThreshold,
		iou:            cfg.IoUThreshold,
		enabledClasses: cfg.TargetClasses,
		labels:         labels,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
	}, nil
}

// Detect runs inference on one frame and returns its detections stamped with
// the frame index and timestamp
func (c *Client) Detect(ctx context.Context, frame *video.Frame) ([]detection.Detection, error) {
	resp, err := c.InferWithRetry(ctx, frame, c.maxRetries, c.retryDelay)
	if err != nil {
		return nil, err
	}
	return c.toDetections(frame, resp), nil
}

// toDetections converts service boxes, dropping boxes under the threshold or
// degenerate after clipping to the frame
func (c *Client) toDetections(frame *video.Frame, resp *InferenceResponse) []detection.Detection {
	labels := resp.ClassNames
	if len(labels) == 0 {
		labels = c.labels
	}

	dets := make([]detection.Detection, 0, len(resp.BoundingBoxes))
	for _, b := range resp.BoundingBoxes {
		if b.Confidence < c.confidence {
			continue
		}
		name := b.ClassName
		if name == "" {
			name = ClassName(labels, b.ClassID)
		}
		box := detection.BBox{b.X1, b.Y1, b.X2, b.Y2}
		if frame.Width > 0 && frame.Height > 0 {
			box = box.Clip(float64(frame.Width), float64(frame.Height))
		}
		if box.Width() <= 0 || box.Height() <= 0 {
			continue
		}
		dets = append(dets, detection.Detection{
			FrameIndex: frame.Index,
			Timestamp:  frame.Timestamp,
			Class:      name,
			Confidence: b.Confidence,
			BBox:       box,
		})
	}
	return dets
}

// Infer performs inference on a single frame
func (c *Client) Infer(ctx context.Context, frame *video.Frame) (*InferenceResponse, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame.Image, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	req := InferenceRequest{
		Image: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Model: c.model,
	}

	// Add optional parameters if configured
	if c.confidence > 0 {
		req.ConfidenceThreshold = &c.confidence
	}
	if c.iou > 0 {
		req.IoUThreshold = &c.iou
	}
	if len(c.enabledClasses) > 0 {
		req.EnabledClasses = c.enabledClasses
	}

	return c.inferRequest(ctx, req)
}

// inferRequest performs a single inference request
func (c *Client) inferRequest(ctx context.Context, req InferenceRequest) (*InferenceResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/inference", c.serviceURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	requestDuration := time.Since(startTime)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn(
			"Inference service returned error",
			"status", resp.StatusCode,
			"response", string(body),
		)
		return nil, fmt.Errorf("inference service returned status %d: %s", resp.StatusCode, string(body))
	}

	var inferenceResp InferenceResponse
	if err := json.Unmarshal(body, &inferenceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	c.logger.Debug(
		"Inference completed",
		"detection_count", len(inferenceResp.BoundingBoxes),
		"inference_time_ms", inferenceResp.InferenceTimeMs,
		"request_duration_ms", requestDuration.Milliseconds(),
	)

	return &inferenceResp, nil
}

// InferWithRetry performs inference with retry logic
func (c *Client) InferWithRetry(
	ctx context.Context,
	frame *video.Frame,
	maxRetries int,
	retryDelay time.Duration,
) (*InferenceResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug(
				"Retrying inference",
				"attempt", attempt,
				"max_retries", maxRetries,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		resp, err := c.Infer(ctx, frame)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		c.logger.Warn(
			"Inference attempt failed",
			"frame", frame.Index,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return nil, fmt.Errorf("inference failed after %d retries: %w", maxRetries, lastErr)
}

// HealthCheck checks if the inference service is ready
func (c *Client) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/health/ready", c.serviceURL)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service health check failed: status %d", resp.StatusCode)
	}

	return nil
}

// Labels returns the class names used for unnamed class ids
func (c *Client) Labels() []string {
	return c.labels
}

// Close is a no-op for the HTTP client
func (c *Client) Close() error {
	return nil
}
