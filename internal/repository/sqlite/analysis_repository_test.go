package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go-herbal-inspector/internal/repository"
	"go-herbal-inspector/pkg/models"
)

func newTestRepository(t *testing.T) *AnalysisRepository {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "history", "analyses.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAnalysisRepository(db)
}

func sampleAnalysis(id, timestamp string, grade models.Grade) *models.AnalysisResponse {
	return &models.AnalysisResponse{
		Success:        true,
		AnalysisID:     id,
		Timestamp:      timestamp,
		HerbPrediction: models.HerbPrediction{HerbType: models.HerbTurmeric, Confidence: 0.8},
		QualityAssessment: models.QualityAssessment{
			OverallScore: 0.72,
			Defects:      []string{"dark_spots", "blurry_image"},
			Grade:        grade,
		},
		DetectionResult:  models.EmptyDetectionResult(),
		Diseases:         []string{},
		Recommendations:  []string{"ควรปรับปรุงให้เป็นไปตามมาตรฐาน GACP"},
		DigitalSignature: "abc123",
		Metadata:         models.AnalysisMetadata{SchemaVersion: models.SchemaVersion, DemoMode: true},
	}
}

func TestSaveAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	in := sampleAnalysis("analysis_20240101_120000_aaaa0001", "2024-01-01T12:00:00Z", models.GradeB)

	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	out, err := repo.Get(ctx, in.AnalysisID)
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if out.AnalysisID != in.AnalysisID || out.DigitalSignature != "abc123" {
		t.Errorf("Expected stored analysis, got %+v", out)
	}
	if len(out.QualityAssessment.Defects) != 2 || out.Recommendations[0] != in.Recommendations[0] {
		t.Errorf("Expected payload to round trip, got %+v", out)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Get(context.Background(), "analysis_missing")
	if !errors.Is(err, repository.ErrAnalysisNotFound) {
		t.Errorf("Expected ErrAnalysisNotFound, got %v", err)
	}
}

func TestSave_ReplacesExisting(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	id := "analysis_20240101_120000_aaaa0002"

	if err := repo.Save(ctx, sampleAnalysis(id, "2024-01-01T12:00:00Z", models.GradeB)); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if err := repo.Save(ctx, sampleAnalysis(id, "2024-01-01T12:00:00Z", models.GradeA)); err != nil {
		t.Fatalf("Failed to save again: %v", err)
	}

	recent, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(recent) != 1 || recent[0].Grade != "A" {
		t.Errorf("Expected a single replaced record, got %+v", recent)
	}
}

func TestRecent_NewestFirst(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	inputs := []*models.AnalysisResponse{
		sampleAnalysis("analysis_a", "2024-01-01T10:00:00Z", models.GradeC),
		sampleAnalysis("analysis_b", "2024-01-03T10:00:00Z", models.GradeA),
		sampleAnalysis("analysis_c", "2024-01-02T10:00:00Z", models.GradeB),
	}
	for _, in := range inputs {
		if err := repo.Save(ctx, in); err != nil {
			t.Fatalf("Failed to save %s: %v", in.AnalysisID, err)
		}
	}

	recent, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(recent))
	}
	if recent[0].ID != "analysis_b" || recent[1].ID != "analysis_c" {
		t.Errorf("Expected b then c, got %s then %s", recent[0].ID, recent[1].ID)
	}
	if !recent[0].DemoMode || recent[0].HerbType != models.HerbTurmeric {
		t.Errorf("Expected indexed columns to be populated, got %+v", recent[0])
	}
}
