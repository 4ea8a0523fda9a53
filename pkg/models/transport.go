package models

// AnalyzeRequest is the JSON form of an image submission.
// Image holds base64 data, optionally with a data URI prefix.
type AnalyzeRequest struct {
	Image    string `json:"image"`
	HerbType string `json:"herb_type,omitempty"`
}

// ErrorResponse is the failure envelope shared by both services
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ClassifyResponse is returned by POST /classify
type ClassifyResponse struct {
	Success    bool           `json:"success"`
	Timestamp  string         `json:"timestamp"`
	Prediction HerbPrediction `json:"prediction"`
	DemoMode   bool           `json:"demo_mode,omitempty"`
}

// QualityResponse is returned by POST /quality
type QualityResponse struct {
	Success    bool              `json:"success"`
	Timestamp  string            `json:"timestamp"`
	Assessment QualityAssessment `json:"assessment"`
}

// ModelStatus reports one model slot of the repository
type ModelStatus struct {
	Name      string `json:"name"`
	Loaded    bool   `json:"loaded"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
	LoadError string `json:"load_error,omitempty"`
}

// HealthResponse is returned by GET /health on the analysis service
type HealthResponse struct {
	Status       string                 `json:"status"`
	Timestamp    string                 `json:"timestamp"`
	Models       map[string]bool        `json:"models"`
	GPUAvailable bool                   `json:"gpu_available"`
	DemoMode     bool                   `json:"demo_mode"`
	Version      string                 `json:"version"`
	Metrics      map[string]interface{} `json:"metrics,omitempty"`
}

// ModelsResponse is returned by GET /models
type ModelsResponse struct {
	AvailableModels  []ModelStatus `json:"available_models"`
	SupportedHerbs   []string      `json:"supported_herbs"`
	SupportedFormats []string      `json:"supported_formats"`
	LoadedAt         string        `json:"loaded_at,omitempty"`
}

// VerifyResponse is returned by POST /verify
type VerifyResponse struct {
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
	Valid     bool   `json:"valid"`
}

// ReloadResponse is returned by POST /models/reload
type ReloadResponse struct {
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	Timestamp string        `json:"timestamp"`
	Models    []ModelStatus `json:"models"`
}
