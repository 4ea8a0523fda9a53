package analyzer

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"
	"time"

	"go-herbal-inspector/internal/inference"
	"go-herbal-inspector/pkg/models"
)

// Detector runs object and disease detection models
type Detector struct {
	source DetectorSource
	opts   Options
}

// NewDetector creates a detector reading models from source
func NewDetector(source DetectorSource, opts Options) *Detector {
	return &Detector{source: source, opts: opts}
}

// DetectObjects returns detections scoring at least the object threshold,
// ordered by confidence descending. Boxes are clipped to the image.
func (d *Detector) DetectObjects(ctx context.Context, img image.Image) (models.DetectionResult, error) {
	start := time.Now()
	model, err := d.source.ObjectDetector()
	if err != nil {
		return models.EmptyDetectionResult(), err
	}

	dets, err := model.Detect(ctx, img)
	if err != nil {
		return models.EmptyDetectionResult(), fmt.Errorf("object detection: %w", err)
	}

	bounds := img.Bounds()
	result := models.EmptyDetectionResult()
	for _, det := range dets {
		if det.Score < d.opts.ObjectThreshold {
			continue
		}
		box := clipBox(det.Box, float64(bounds.Dx()), float64(bounds.Dy()))
		result.Objects = append(result.Objects, models.DetectedObject{
			ClassName:  det.Label,
			Confidence: models.Clamp01(det.Score),
			BBox:       [4]float64{box.X, box.Y, box.W, box.H},
			Area:       box.Area(),
		})
	}
	sort.SliceStable(result.Objects, func(i, j int) bool {
		return result.Objects[i].Confidence > result.Objects[j].Confidence
	})

	result.TotalObjects = len(result.Objects)
	result.ProcessingTime = time.Since(start).Seconds()
	return result, nil
}

// DetectDiseases returns the distinct disease labels scoring strictly above
// the disease threshold, in order of first appearance. Herbs without a
// disease model yield an empty list.
func (d *Detector) DetectDiseases(ctx context.Context, img image.Image, herbType string) ([]string, error) {
	diseases := []string{}
	model, ok := d.source.DiseaseDetector(herbType)
	if !ok {
		return diseases, nil
	}

	dets, err := model.Detect(ctx, img)
	if err != nil {
		return diseases, fmt.Errorf("disease detection for %s: %w", herbType, err)
	}

	seen := make(map[string]bool)
	for _, det := range dets {
		if det.Score <= d.opts.DiseaseThreshold || seen[det.Label] {
			continue
		}
		seen[det.Label] = true
		diseases = append(diseases, det.Label)
	}
	return diseases, nil
}

func clipBox(b inference.Box, width, height float64) inference.Box {
	x0 := math.Max(0, b.X)
	y0 := math.Max(0, b.Y)
	x1 := math.Min(width, b.X+b.W)
	y1 := math.Min(height, b.Y+b.H)
	return inference.Box{X: x0, Y: y0, W: math.Max(0, x1-x0), H: math.Max(0, y1-y0)}
}
