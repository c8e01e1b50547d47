package ai

// InferenceRequest represents a request to the inference service
type InferenceRequest struct {
	Image               string   `json:"image"`                          // Base64-encoded JPEG image
	Model               string   `json:"model,omitempty"`                // Model weights the service should use
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"` // Optional override
	IoUThreshold        *float64 `json:"iou_threshold,omitempty"`        // Optional NMS override
	EnabledClasses      []string `json:"enabled_classes,omitempty"`      // Optional filter
}

// BoundingBox represents a detected object's bounding box
type BoundingBox struct {
	X1         float64 `json:"x1"`         // Left coordinate
	Y1         float64 `json:"y1"`         // Top coordinate
	X2         float64 `json:"x2"`         // Right coordinate
	Y2         float64 `json:"y2"`         // Bottom coordinate
	Confidence float64 `json:"confidence"` // Detection confidence (0.0 to 1.0)
	ClassID    int     `json:"class_id"`   // Model class index
	ClassName  string  `json:"class_name"` // Human-readable class name
}

// InferenceResponse represents the response from the inference service
type InferenceResponse struct {
	BoundingBoxes   []BoundingBox `json:"bounding_boxes"`    // Detected objects
	InferenceTimeMs float64       `json:"inference_time_ms"` // Inference duration
	FrameShape      []int         `json:"frame_shape"`       // [height, width]
	ModelInputShape []int         `json:"model_input_shape"` // [height, width]
	DetectionCount  int           `json:"detection_count"`   // Number of detections
	ClassNames      []string      `json:"class_names,omitempty"`
}
