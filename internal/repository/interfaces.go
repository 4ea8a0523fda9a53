package repository

import (
	"context"
	"time"

	"go-herbal-inspector/pkg/models"
)

// AnalysisRepository defines the interface for analysis history operations
type AnalysisRepository interface {
	// Save stores a completed analysis, replacing any previous record with
	// the same analysis ID
	Save(ctx context.Context, result *models.AnalysisResponse) error

	// Get retrieves a stored analysis; ErrAnalysisNotFound when missing
	Get(ctx context.Context, id string) (*models.AnalysisResponse, error)

	// Recent lists the newest analyses first
	Recent(ctx context.Context, limit int) ([]AnalysisSummary, error)
}

// AnalysisSummary is the indexed subset of a stored analysis
type AnalysisSummary struct {
	ID         string    `json:"analysis_id"`
	HerbType   string    `json:"herb_type"`
	Grade      string    `json:"grade"`
	Overall    float64   `json:"overall_score"`
	DemoMode   bool      `json:"demo_mode"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}
