package analyzer

import (
	"image"
	"math"

	"go-herbal-inspector/pkg/models"
)

// Defect labels reported by the quality assessor
const (
	DefectDarkSpots     = "dark_spots"
	DefectDiscoloration = "discoloration"
	DefectBlurry        = "blurry_image"
	DefectOverexposed   = "overexposed"
)

// Defect thresholds
const (
	darkSpotRatio      = 0.15
	discolorationRatio = 0.25
	blurVariance       = 50.0
	overexposedRatio   = 0.3
)

// Texture band on Laplacian variance
const (
	textureSharpMin = 300.0
	textureSharpMax = 1500.0
	textureNoisyRun = 3000.0
)

// Foreground coverage band scored as ideal
const (
	coverageMin = 0.3
	coverageMax = 0.8
)

// referenceHues is the expected dominant hue, in degrees, of each dried
// or fresh herb sample.
var referenceHues = map[string]float64{
	models.HerbCannabis:       100,
	models.HerbTurmeric:       40,
	models.HerbGinger:         45,
	models.HerbBlackGalingale: 280,
	models.HerbPlai:           50,
	models.HerbKratom:         95,
}

// neutralColorScore is used when the herb type has no reference hue
const neutralColorScore = 0.7

// QualityAssessor scores image quality from color and sharpness statistics
type QualityAssessor struct {
	opts    Options
	metrics MetricsCalculator
}

// NewQualityAssessor creates an assessor with the given options
func NewQualityAssessor(opts Options) *QualityAssessor {
	return &QualityAssessor{opts: opts, metrics: NewMetricsCalculator()}
}

// Assess computes the sub-scores, defects, grade and compliance for img.
// The result is a pure function of the pixels and herbType.
func (qa *QualityAssessor) Assess(img *image.NRGBA, herbType string) models.QualityAssessment {
	cs := qa.metrics.CalculateColorStats(img)
	lapVar := qa.metrics.CalculateLaplacianVariance(ToGray(img))

	freshness := freshnessScore(cs)
	color := colorScore(cs, herbType)
	texture := textureScore(lapVar)
	size := sizeScore(cs.foreground)
	defects := detectDefects(cs, lapVar)

	w := qa.opts.Weights
	overall := (w.Freshness*freshness + w.Color*color + w.Texture*texture + w.Size*size) / w.Sum()
	overall = models.Clamp01(overall - qa.opts.DefectPenalty*float64(len(defects)))

	return models.QualityAssessment{
		OverallScore:   overall,
		Freshness:      freshness,
		Color:          color,
		Texture:        texture,
		Size:           size,
		Defects:        defects,
		Grade:          GradeFor(overall),
		GACPCompliance: ComplianceScore(overall, len(defects)),
	}
}

// ComplianceScore blends the overall score with a defect-count term
func ComplianceScore(overall float64, defects int) float64 {
	return models.Clamp01(0.7*overall + 0.3*(1-0.25*float64(defects)))
}

// DefaultAssessment is substituted when quality scoring fails
func DefaultAssessment() models.QualityAssessment {
	return models.QualityAssessment{Defects: []string{}, Grade: models.GradeD}
}

func freshnessScore(cs colorStats) float64 {
	sat := models.Clamp01(cs.meanSat / 0.45)
	balance := models.Clamp01(1 - math.Abs(cs.meanVal-0.55)/0.55)
	return models.Clamp01(0.6*sat + 0.4*balance - 0.5*cs.brownRatio)
}

func colorScore(cs colorStats, herbType string) float64 {
	ref, ok := referenceHues[herbType]
	if !ok {
		return neutralColorScore
	}
	if cs.hueSpread >= 1 {
		// achromatic: no hue to compare against
		return 0
	}
	hueScore := models.Clamp01(1 - hueDistance(cs.meanHue, ref)/90)
	return models.Clamp01(0.6*hueScore + 0.4*(1-cs.hueSpread))
}

// hueDistance is the angular distance between two hues in degrees
func hueDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

func textureScore(lapVar float64) float64 {
	switch {
	case lapVar < textureSharpMin:
		return models.Clamp01(lapVar / textureSharpMin)
	case lapVar <= textureSharpMax:
		return 1
	default:
		return math.Max(0.5, 1-(lapVar-textureSharpMax)/textureNoisyRun)
	}
}

func sizeScore(coverage float64) float64 {
	switch {
	case coverage < coverageMin:
		return models.Clamp01(coverage / coverageMin)
	case coverage <= coverageMax:
		return 1
	default:
		return math.Max(0.5, 1-(coverage-coverageMax)/(1-coverageMax)*0.5)
	}
}

// detectDefects reports defect labels in a fixed order
func detectDefects(cs colorStats, lapVar float64) []string {
	defects := []string{}
	if cs.darkRatio > darkSpotRatio {
		defects = append(defects, DefectDarkSpots)
	}
	if cs.brownRatio > discolorationRatio {
		defects = append(defects, DefectDiscoloration)
	}
	if lapVar < blurVariance {
		defects = append(defects, DefectBlurry)
	}
	if cs.brightRatio > overexposedRatio {
		defects = append(defects, DefectOverexposed)
	}
	return defects
}
