package onnx

import (
	"context"
	"fmt"
	"image"

	"go-herbal-inspector/internal/inference"

	ort "github.com/yalue/onnxruntime_go"
)

// Classifier runs an image classification model with a [1,3,S,S] input
// and a [1,N] output of logits, or of probabilities when probs is set.
type Classifier struct {
	pool      *sessionPool
	labels    []string
	inputSize int
	probs     bool
}

// NewClassifier creates a pooled classifier session
func NewClassifier(path, inputName, outputName string, labels []string, inputSize, poolSize int, probs bool) (*Classifier, error) {
	pool, err := newSessionPool(sessionSpec{
		path:        path,
		inputName:   inputName,
		outputName:  outputName,
		inputShape:  ort.NewShape(1, 3, int64(inputSize), int64(inputSize)),
		outputShape: ort.NewShape(1, int64(len(labels))),
	}, poolSize)
	if err != nil {
		return nil, err
	}
	return &Classifier{pool: pool, labels: labels, inputSize: inputSize, probs: probs}, nil
}

func (c *Classifier) Labels() []string {
	return c.labels
}

// OutputsProbabilities reports whether the graph ends in a softmax
func (c *Classifier) OutputsProbabilities() bool {
	return c.probs
}

func (c *Classifier) Predict(ctx context.Context, img image.Image) ([]float32, error) {
	var scores []float32
	err := c.pool.withSession(ctx, func(s *session) error {
		inference.FillCHW(img, c.inputSize, c.inputSize, inference.ImageNetMean, inference.ImageNetStd, s.input.GetData())
		if err := s.run.Run(); err != nil {
			return fmt.Errorf("classifier inference: %w", err)
		}
		out := s.output.GetData()
		scores = make([]float32, len(out))
		copy(scores, out)
		return nil
	})
	return scores, err
}

func (c *Classifier) Close() error {
	c.pool.close()
	return nil
}

// nmsIoU is the overlap above which same-class boxes are suppressed
const nmsIoU = 0.45

// candidateFloor drops near-zero anchors before NMS; callers apply their
// own confidence thresholds afterwards.
const candidateFloor = 0.05

// Detector runs a YOLOv8-style detector with a [1,3,S,S] input and a
// [1,4+classes,anchors] output.
type Detector struct {
	pool      *sessionPool
	labels    []string
	inputSize int
	anchors   int
}

// NewDetector creates a pooled detector session
func NewDetector(path, inputName, outputName string, labels []string, inputSize, anchors, poolSize int) (*Detector, error) {
	pool, err := newSessionPool(sessionSpec{
		path:        path,
		inputName:   inputName,
		outputName:  outputName,
		inputShape:  ort.NewShape(1, 3, int64(inputSize), int64(inputSize)),
		outputShape: ort.NewShape(1, int64(4+len(labels)), int64(anchors)),
	}, poolSize)
	if err != nil {
		return nil, err
	}
	return &Detector{pool: pool, labels: labels, inputSize: inputSize, anchors: anchors}, nil
}

func (d *Detector) Labels() []string {
	return d.labels
}

func (d *Detector) Detect(ctx context.Context, img image.Image) ([]inference.Detection, error) {
	b := img.Bounds()
	scaleX := float64(b.Dx()) / float64(d.inputSize)
	scaleY := float64(b.Dy()) / float64(d.inputSize)

	var detections []inference.Detection
	err := d.pool.withSession(ctx, func(s *session) error {
		inference.FillCHW(img, d.inputSize, d.inputSize, inference.UnitMean, inference.UnitStd, s.input.GetData())
		if err := s.run.Run(); err != nil {
			return fmt.Errorf("detector inference: %w", err)
		}
		detections = inference.ParseYOLO(s.output.GetData(), d.labels, d.anchors, candidateFloor, scaleX, scaleY)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inference.NMS(detections, nmsIoU), nil
}

func (d *Detector) Close() error {
	d.pool.close()
	return nil
}
