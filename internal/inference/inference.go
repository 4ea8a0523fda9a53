// Package inference defines the model contracts used by the analyzers and
// the runtime-independent tensor helpers shared by model backends.
package inference

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// ImageNet normalization constants used by the classification models
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
	// UnitMean/UnitStd leave pixels in [0,1], as YOLO exports expect
	UnitMean = [3]float32{0, 0, 0}
	UnitStd  = [3]float32{1, 1, 1}
)

// ClassificationModel returns one score per label. Scores are logits unless
// the model also implements ProbabilityOutput and reports true.
// Implementations must be safe for concurrent use.
type ClassificationModel interface {
	Labels() []string
	Predict(ctx context.Context, img image.Image) ([]float32, error)
	Close() error
}

// ProbabilityOutput is implemented by classifiers that can emit normalized
// probabilities instead of logits.
type ProbabilityOutput interface {
	OutputsProbabilities() bool
}

// Probabilities turns the scores of model into per-label probabilities,
// applying Softmax only when the model emits logits.
func Probabilities(model ClassificationModel, scores []float32) []float64 {
	p, ok := model.(ProbabilityOutput)
	if !ok || !p.OutputsProbabilities() {
		return Softmax(scores)
	}
	if len(scores) == 0 {
		return nil
	}
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = math.Min(math.Max(float64(s), 0), 1)
	}
	return out
}

// Box is an axis-aligned rectangle in image pixels
type Box struct {
	X, Y, W, H float64
}

func (b Box) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// Detection is one post-processed model detection
type Detection struct {
	ClassID int
	Label   string
	Score   float64
	Box     Box
}

// DetectionModel localizes labelled objects.
// Implementations must be safe for concurrent use.
type DetectionModel interface {
	Labels() []string
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
	Close() error
}

// Softmax converts raw scores into probabilities
func Softmax(scores []float32) []float64 {
	if len(scores) == 0 {
		return nil
	}
	maxScore := float64(scores[0])
	for _, s := range scores[1:] {
		if float64(s) > maxScore {
			maxScore = float64(s)
		}
	}

	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(float64(s) - maxScore)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// ArgMax returns the index and value of the largest element, or -1 when empty
func ArgMax(values []float64) (int, float64) {
	best, bestVal := -1, math.Inf(-1)
	for i, v := range values {
		if v > bestVal {
			best, bestVal = i, v
		}
	}
	return best, bestVal
}

// FillCHW resizes img to w×h and writes it into dst in planar CHW order,
// normalizing each channel with (v/255 - mean) / std.
func FillCHW(img image.Image, w, h int, mean, std [3]float32, dst []float32) {
	resized := imaging.Resize(img, w, h, imaging.Linear)
	plane := w * h

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := resized.PixOffset(x, y)
			p := y*w + x
			dst[p] = (float32(resized.Pix[i])/255.0 - mean[0]) / std[0]
			dst[plane+p] = (float32(resized.Pix[i+1])/255.0 - mean[1]) / std[1]
			dst[2*plane+p] = (float32(resized.Pix[i+2])/255.0 - mean[2]) / std[2]
		}
	}
}

// ParseYOLO decodes a [1, 4+classes, anchors] YOLOv8-style output. Box
// coordinates are center-based in model input pixels and are rescaled by
// scaleX/scaleY into source image pixels.
func ParseYOLO(output []float32, labels []string, anchors int, threshold, scaleX, scaleY float64) []Detection {
	numClasses := len(labels)
	if anchors <= 0 || numClasses == 0 || len(output) < (4+numClasses)*anchors {
		return nil
	}

	detections := make([]Detection, 0, 32)
	for a := 0; a < anchors; a++ {
		bestClass, bestScore := -1, 0.0
		for c := 0; c < numClasses; c++ {
			score := float64(output[(4+c)*anchors+a])
			if score > bestScore {
				bestClass, bestScore = c, score
			}
		}
		if bestClass < 0 || bestScore < threshold {
			continue
		}

		cx := float64(output[a]) * scaleX
		cy := float64(output[anchors+a]) * scaleY
		bw := float64(output[2*anchors+a]) * scaleX
		bh := float64(output[3*anchors+a]) * scaleY

		detections = append(detections, Detection{
			ClassID: bestClass,
			Label:   labels[bestClass],
			Score:   bestScore,
			Box:     Box{X: cx - bw/2, Y: cy - bh/2, W: bw, H: bh},
		})
	}
	return detections
}

// IoU is the intersection-over-union of two boxes
func IoU(a, b Box) float64 {
	x1 := math.Max(a.X, b.X)
	y1 := math.Max(a.Y, b.Y)
	x2 := math.Min(a.X+a.W, b.X+b.W)
	y2 := math.Min(a.Y+a.H, b.Y+b.H)

	inter := Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}.Area()
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// NMS performs class-aware greedy non-maximum suppression. The result is
// sorted by descending score.
func NMS(detections []Detection, iouThreshold float64) []Detection {
	sorted := make([]Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	kept := make([]Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == d.ClassID && IoU(k.Box, d.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}
