package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-herbal-inspector/internal/repository"
	"go-herbal-inspector/pkg/models"
)

// AnalysisRepository implements repository.AnalysisRepository for SQLite.
// The full response is kept as JSON; the indexed columns serve listings.
type AnalysisRepository struct {
	db *DB
}

// NewAnalysisRepository creates a new SQLite analysis repository.
func NewAnalysisRepository(db *DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Save stores the analysis and its defects in a single transaction.
func (r *AnalysisRepository) Save(ctx context.Context, result *models.AnalysisResponse) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	analyzedAt, err := time.Parse(time.RFC3339Nano, result.Timestamp)
	if err != nil {
		analyzedAt = time.Now().UTC()
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM analysis_defects WHERE analysis_id = ?`, result.AnalysisID); err != nil {
		return fmt.Errorf("failed to clear defects: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO analyses (id, herb_type, grade, overall_score, demo_mode, analyzed_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, result.AnalysisID,
		result.HerbPrediction.HerbType,
		string(result.QualityAssessment.Grade),
		result.QualityAssessment.OverallScore,
		result.Metadata.DemoMode,
		analyzedAt,
		string(payload))
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	for _, defect := range result.QualityAssessment.Defects {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO analysis_defects (analysis_id, defect) VALUES (?, ?)
		`, result.AnalysisID, defect); err != nil {
			return fmt.Errorf("failed to insert defect: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Get retrieves a stored analysis by ID.
func (r *AnalysisRepository) Get(ctx context.Context, id string) (*models.AnalysisResponse, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var payload string
	err := r.db.conn.QueryRowContext(ctx, `SELECT payload FROM analyses WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}

	var result models.AnalysisResponse
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &result, nil
}

// Recent lists the newest analyses first.
func (r *AnalysisRepository) Recent(ctx context.Context, limit int) ([]repository.AnalysisSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, herb_type, grade, overall_score, demo_mode, analyzed_at
		FROM analyses
		ORDER BY analyzed_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	summaries := []repository.AnalysisSummary{}
	for rows.Next() {
		var s repository.AnalysisSummary
		if err := rows.Scan(&s.ID, &s.HerbType, &s.Grade, &s.Overall, &s.DemoMode, &s.AnalyzedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
