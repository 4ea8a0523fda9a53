package models

// TextEvidence summarizes OCR findings for an image document.
// It is informational and never changes validity.
type TextEvidence struct {
	Engine        string   `json:"engine"`
	KeywordsFound []string `json:"keywords_found"`
	HeaderWER     float64  `json:"header_wer"`
	HeaderMatched bool     `json:"header_matched"`
}

// DocumentValidationResult is the verdict for one uploaded document
type DocumentValidationResult struct {
	DocumentType string        `json:"document_type"`
	IsValid      bool          `json:"is_valid"`
	Confidence   float64       `json:"confidence"`
	Issues       []string      `json:"issues"`
	ThaiName     string        `json:"thai_name"`
	TextEvidence *TextEvidence `json:"text_evidence,omitempty"`
}

// DocumentValidationResponse aggregates a batch of document verdicts
type DocumentValidationResponse struct {
	OverallValid bool                       `json:"overall_valid"`
	Results      []DocumentValidationResult `json:"results"`
}

type HerbalType struct {
	Name     string `json:"name"`
	ThaiName string `json:"thai_name"`
}

// PredictionRequest is the body of POST /predict
type PredictionRequest struct {
	Features    map[string]float64 `json:"features"`
	HerbalTypes []HerbalType       `json:"herbal_types"`
}

// PredictionResult is returned by POST /predict
type PredictionResult struct {
	Prediction      float64  `json:"prediction"`
	Confidence      float64  `json:"confidence"`
	Recommendations []string `json:"recommendations"`
}

// KnowledgeQuery is the body of POST /query-knowledge
type KnowledgeQuery struct {
	Entities      []string `json:"entities"`
	Relationships []string `json:"relationships"`
}

// KnowledgeResponse is returned by POST /query-knowledge.
// Each result holds "entity", "data" and one key per matched relationship.
type KnowledgeResponse struct {
	Results []map[string]interface{} `json:"results"`
}

// DocHealthResponse is returned by GET /health on the document service
type DocHealthResponse struct {
	Status             string `json:"status"`
	ModelLoaded        bool   `json:"model_loaded"`
	KnowledgeBaseReady bool   `json:"knowledge_base_loaded"`
	YieldModelLoaded   bool   `json:"yield_model_loaded"`
	OCREnabled         bool   `json:"ocr_enabled"`
}
