package models

// SchemaVersion is the serialization contract version carried by every
// analysis payload. Bump it whenever a field changes meaning.
const SchemaVersion = "3.0"

// UnknownHerb is the label used when the herb cannot be identified
const UnknownHerb = "unknown"

// Grade is the letter-bucketed quality tier
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// HerbPrediction is the classifier output for one image
type HerbPrediction struct {
	HerbType      string  `json:"herb_type"`
	Confidence    float64 `json:"confidence"`
	Subspecies    string  `json:"subspecies,omitempty"`
	BotanicalName string  `json:"botanical_name,omitempty"`
}

// QualityAssessment holds the per-dimension scores, defects and grade
type QualityAssessment struct {
	OverallScore   float64  `json:"overall_score"`
	Freshness      float64  `json:"freshness"`
	Color          float64  `json:"color"`
	Texture        float64  `json:"texture"`
	Size           float64  `json:"size"`
	Defects        []string `json:"defects"`
	Grade          Grade    `json:"grade"`
	GACPCompliance float64  `json:"gacp_compliance"`
}

// DetectedObject is a single localized detection.
// BBox is [x, y, width, height] in normalized-image pixels.
type DetectedObject struct {
	ClassName  string     `json:"class_name"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
	Area       float64    `json:"area"`
}

// DetectionResult is the ordered list of detections for an image
type DetectionResult struct {
	Objects        []DetectedObject `json:"objects"`
	TotalObjects   int              `json:"total_objects"`
	ProcessingTime float64          `json:"processing_time"`
}

// EmptyDetectionResult returns a result with no objects and a non-nil slice
func EmptyDetectionResult() DetectionResult {
	return DetectionResult{Objects: []DetectedObject{}}
}

// Clamp01 bounds a score to [0,1]
func Clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
