package models

// ImageProperties describes the normalized image that was analyzed
type ImageProperties struct {
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	OriginalWidth   int    `json:"original_width"`
	OriginalHeight  int    `json:"original_height"`
	Format          string `json:"format"`
	Channels        int    `json:"channels"`
	HasTransparency bool   `json:"has_transparency"`
	Resized         bool   `json:"resized"`
}

// StageTiming records how long one pipeline stage took
type StageTiming struct {
	Stage      string  `json:"stage"`
	DurationMS float64 `json:"duration_ms"`
	Degraded   bool    `json:"degraded,omitempty"`
}

// AnalysisMetadata is attached to every full analysis
type AnalysisMetadata struct {
	SchemaVersion   string            `json:"schema_version"`
	ProcessingTime  float64           `json:"processing_time"`
	ModelVersions   map[string]string `json:"model_versions"`
	ImageProperties ImageProperties   `json:"image_properties"`
	Stages          []StageTiming     `json:"stages"`
	DegradedStages  []string          `json:"degraded_stages,omitempty"`
	DemoMode        bool              `json:"demo_mode"`
	HerbTypeHint    string            `json:"herb_type_hint,omitempty"`
	Upload          string            `json:"upload,omitempty"`
}

// AnalysisResponse is the signed payload returned by POST /analyze
type AnalysisResponse struct {
	Success           bool              `json:"success"`
	AnalysisID        string            `json:"analysis_id"`
	Timestamp         string            `json:"timestamp"`
	HerbPrediction    HerbPrediction    `json:"herb_prediction"`
	QualityAssessment QualityAssessment `json:"quality_assessment"`
	DetectionResult   DetectionResult   `json:"detection_result"`
	Diseases          []string          `json:"diseases"`
	Recommendations   []string          `json:"recommendations"`
	DigitalSignature  string            `json:"digital_signature"`
	Metadata          AnalysisMetadata  `json:"metadata"`
}

// BatchItemResult is the outcome for one image of a batch
type BatchItemResult struct {
	Index             int                `json:"index"`
	Filename          string             `json:"filename"`
	Success           bool               `json:"success"`
	HerbPrediction    *HerbPrediction    `json:"herb_prediction,omitempty"`
	QualityAssessment *QualityAssessment `json:"quality_assessment,omitempty"`
	Error             string             `json:"error,omitempty"`
}

// BatchAnalysisResponse is returned by POST /batch/analyze
type BatchAnalysisResponse struct {
	Success            bool              `json:"success"`
	Timestamp          string            `json:"timestamp"`
	TotalImages        int               `json:"total_images"`
	SuccessfulAnalyses int               `json:"successful_analyses"`
	Results            []BatchItemResult `json:"results"`
}
