package document

import (
	"context"
	"fmt"
	"image"
	"math"

	"go-herbal-inspector/internal/analyzer"
	"go-herbal-inspector/internal/inference"
	"go-herbal-inspector/internal/normalizer"
	"go-herbal-inspector/pkg/models"

	"gonum.org/v1/gonum/stat"
)

const (
	mapPenalty          = 0.7
	issueMismatchPrefix = "ประเภทเอกสารไม่ตรงกัน: คาดว่าเป็น "
	issueNoMapElements  = "ไม่พบองค์ประกอบแผนที่ที่สำคัญ"
)

// Farm map heuristic thresholds
const (
	mapEdgeMagnitude = 200.0
	mapMinDensity    = 0.02
	mapMaxDensity    = 0.45
	mapLineFraction  = 0.5
	mapMinLines      = 3
)

func (v *Validator) validateImage(ctx context.Context, docType string, data []byte) (bool, float64, []string) {
	if !isKnownType(docType) {
		return processingError(fmt.Errorf("unknown document type %q", docType))
	}

	norm, err := normalizer.Normalize(data)
	if err != nil {
		return processingError(err)
	}

	if v.models == nil {
		return processingError(fmt.Errorf("document model unavailable"))
	}
	model, err := v.models.DocumentClassifier()
	if err != nil {
		return processingError(fmt.Errorf("document model unavailable"))
	}

	scores, err := model.Predict(ctx, norm.Image)
	if err != nil {
		return processingError(err)
	}
	labels := model.Labels()
	if len(scores) == 0 || len(scores) != len(labels) {
		return processingError(fmt.Errorf("document model returned %d scores for %d labels", len(scores), len(labels)))
	}

	top, confidence := inference.ArgMax(inference.Probabilities(model, scores))
	predicted := labels[top]

	issues := []string{}
	valid := predicted == docType
	if !valid {
		issues = append(issues, issueMismatchPrefix+ThaiName(predicted))
	}

	if docType == models.DocFarmMap && !ContainsMapElements(analyzer.ToGray(norm.Image)) {
		issues = append(issues, issueNoMapElements)
		confidence *= mapPenalty
	}

	return valid, confidence, issues
}

func processingError(err error) (bool, float64, []string) {
	return false, 0, []string{"Image processing error: " + err.Error()}
}

// ContainsMapElements reports whether a grayscale image looks like a drawn
// map: a moderate share of edge pixels and at least a few long straight
// horizontal or vertical lines.
func ContainsMapElements(gray *image.Gray) bool {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return false
	}

	innerW, innerH := w-2, h-2
	rowEdges := make([]float64, innerH)
	rowHorizontal := make([]float64, innerH)
	colVertical := make([]float64, innerW)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx, gy := analyzer.SobelGradient(gray, b.Min.X+x, b.Min.Y+y)
			if math.Hypot(float64(gx), float64(gy)) < mapEdgeMagnitude {
				continue
			}
			rowEdges[y-1]++
			if abs(gy) > abs(gx) {
				rowHorizontal[y-1]++
			} else if abs(gx) > abs(gy) {
				colVertical[x-1]++
			}
		}
	}

	for i := range rowEdges {
		rowEdges[i] /= float64(innerW)
	}
	density := stat.Mean(rowEdges, nil)
	if density < mapMinDensity || density > mapMaxDensity {
		return false
	}

	lines := countAbove(rowHorizontal, mapLineFraction*float64(innerW)) +
		countAbove(colVertical, mapLineFraction*float64(innerH))
	return lines >= mapMinLines
}

func countAbove(values []float64, threshold float64) int {
	n := 0
	for _, v := range values {
		if v >= threshold {
			n++
		}
	}
	return n
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
