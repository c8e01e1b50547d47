package ai

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/arturkwiek/SDD/internal/config"
	"github.com/arturkwiek/SDD/internal/detection"
	"github.com/arturkwiek/SDD/internal/logger"
	"github.com/arturkwiek/SDD/internal/video"
)

// ONNXDetector runs a YOLO ONNX export in-process through onnxruntime.
// The session and its tensors are reused across frames, so Detect calls are
// serialized.
type ONNXDetector struct {
	logger     *logger.Logger
	session    *ort.AdvancedSession
	input      *ort.Tensor[float32]
	output     *ort.Tensor[float32]
	layout     YOLOOutput
	labels     []string
	confidence float64
	iou        float64
	mu         sync.Mutex
}

// NewONNXDetector initializes the onnxruntime environment and loads the model
func NewONNXDetector(cfg config.DetectorConfig, log *logger.Logger) (*ONNXDetector, error) {
	log = log.WithComponent("onnx")
	oc := cfg.ONNX

	labels, err := ModelLabels(oc)
	if err != nil {
		return nil, err
	}
	if len(labels) != oc.NumClasses {
		log.Warn("Label count does not match model classes", "labels", len(labels), "num_classes", oc.NumClasses)
	}

	if oc.LibraryPath != "" {
		ort.SetSharedLibraryPath(oc.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("error initializing onnxruntime: %w", err)
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	if oc.Threads > 0 {
		if err := options.SetIntraOpNumThreads(oc.Threads); err != nil {
			return nil, fmt.Errorf("error setting thread count: %w", err)
		}
	}

	inputShape := ort.NewShape(1, 3, int64(oc.InputSize), int64(oc.InputSize))
	outputShape := ort.NewShape(1, int64(4+oc.NumClasses), int64(oc.NumBoxes))

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.Model,
		[]string{oc.InputName},
		[]string{oc.OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	log.Info("ONNX model loaded",
		"model", cfg.Model,
		"input_size", oc.InputSize,
		"classes", oc.NumClasses,
		"boxes", oc.NumBoxes,
	)

	return &ONNXDetector{
		logger:     log,
		session:    session,
		input:      inputTensor,
		output:     outputTensor,
		layout:     YOLOOutput{NumClasses: oc.NumClasses, NumBoxes: oc.NumBoxes, InputSize: oc.InputSize},
		labels:     labels,
		confidence: cfg.ConfidenceThreshold,
		iou:        cfg.IoUThreshold,
	}, nil
}

// Detect runs the model on one frame
func (d *ONNXDetector) Detect(ctx context.Context, frame *video.Frame) ([]detection.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	resized := imaging.Resize(frame.Image, d.layout.InputSize, d.layout.InputSize, imaging.Linear)
	fillInput(resized, d.input.GetData())

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	cands, err := d.layout.Decode(d.output.GetData(), d.confidence, frame.Width, frame.Height)
	if err != nil {
		return nil, fmt.Errorf("process predictions: %w", err)
	}

	kept := NMS(cands, d.iou)
	dets := make([]detection.Detection, 0, len(kept))
	for _, c := range kept {
		dets = append(dets, detection.Detection{
			FrameIndex: frame.Index,
			Timestamp:  frame.Timestamp,
			Class:      ClassName(d.labels, c.ClassID),
			Confidence: c.Confidence,
			BBox:       c.Box,
		})
	}
	return dets, nil
}

// fillInput writes img as planar RGB scaled to [0,1]
func fillInput(img *image.NRGBA, buffer []float32) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	channelSize := w * h
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			i := y*w + x
			p := row[x*4:]
			buffer[i] = float32(p[0]) / 255.0
			buffer[channelSize+i] = float32(p[1]) / 255.0
			buffer[2*channelSize+i] = float32(p[2]) / 255.0
		}
	}
}

// Labels returns the model's class names
func (d *ONNXDetector) Labels() []string {
	return d.labels
}

// Close releases the session and its tensors
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	if d.session != nil {
		err = d.session.Destroy()
		d.session = nil
	}
	if d.input != nil {
		d.input.Destroy()
		d.input = nil
	}
	if d.output != nil {
		d.output.Destroy()
		d.output = nil
	}
	return err
}
