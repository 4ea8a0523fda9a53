package prediction

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	apperrors "go-herbal-inspector/internal/errors"
	"go-herbal-inspector/pkg/models"
)

type staticRecs map[string][]string

func (s staticRecs) HerbRecommendations(herb string) []string {
	return s[herb]
}

func TestLoadYieldModel(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"valid", `{"intercept": 1.5, "coefficients": {"temperature": 0.1}}`, false},
		{"no coefficients", `{"intercept": 1.5}`, true},
		{"malformed", `{"intercept":`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadYieldModel(path)
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidYieldModel) {
				t.Errorf("Expected ErrInvalidYieldModel, got %v", err)
			}
		})
	}

	if _, err := LoadYieldModel(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestYieldModel_Predict(t *testing.T) {
	m, err := NewYieldModel(2, map[string]float64{
		"temperature":   0.5,
		"soil_moisture": 10,
		"herb_ginger":   3,
	})
	if err != nil {
		t.Fatalf("Failed to build model: %v", err)
	}

	row := FeatureRow(map[string]float64{
		"temperature":   30,
		"soil_moisture": 0.4,
		"rainfall":      120, // unknown to the model
	}, []string{"ginger", "turmeric"})

	// 2 + 0.5*30 + 10*0.4 + 3*1
	want := 24.0
	if got := m.Predict(row); math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %v, got %v", want, got)
	}

	if got := m.Predict(nil); got != 2 {
		t.Errorf("Expected intercept for empty row, got %v", got)
	}
}

func TestRecommendations(t *testing.T) {
	kb := staticRecs{
		"ginger":   {"g1", "g2", "g3"},
		"turmeric": {"t1", "t2"},
	}

	tests := []struct {
		name     string
		features map[string]float64
		herbs    []string
		want     []string
	}{
		{"defaults produce no rules", nil, nil, []string{}},
		{"dry soil", map[string]float64{"soil_moisture": 0.2}, nil, []string{recIncreaseWatering}},
		{"wet soil and cold", map[string]float64{"soil_moisture": 0.8, "temperature": 15}, nil,
			[]string{recReduceWatering, recGreenhouse}},
		{"boundaries are not triggered", map[string]float64{"soil_moisture": 0.3, "temperature": 20}, nil, []string{}},
		{"herb advice follows rules", map[string]float64{"soil_moisture": 0.1}, []string{"turmeric"},
			[]string{recIncreaseWatering, "t1", "t2"}},
		{"capped at five", map[string]float64{"temperature": 10}, []string{"ginger", "turmeric"},
			[]string{recGreenhouse, "g1", "g2", "g3", "t1"}},
		{"unknown herb", nil, []string{"kratom"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recommendations(tt.features, tt.herbs, kb)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPredictor(t *testing.T) {
	m, _ := NewYieldModel(1, map[string]float64{"temperature": 1})
	p := NewPredictor(m, staticRecs{"plai": {"p1"}})

	if !p.Ready() {
		t.Error("Expected predictor to be ready")
	}

	res, err := p.Predict(context.Background(), models.PredictionRequest{
		Features:    map[string]float64{"temperature": 18},
		HerbalTypes: []models.HerbalType{{Name: "plai", ThaiName: "ไพล"}},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Prediction != 19 {
		t.Errorf("Expected prediction 19, got %v", res.Prediction)
	}
	if res.Confidence != DefaultConfidence {
		t.Errorf("Expected confidence %v, got %v", DefaultConfidence, res.Confidence)
	}
	if !reflect.DeepEqual(res.Recommendations, []string{recGreenhouse, "p1"}) {
		t.Errorf("Unexpected recommendations: %v", res.Recommendations)
	}
}

func TestPredictor_NoModel(t *testing.T) {
	p := NewPredictor(nil, nil)
	if p.Ready() {
		t.Error("Expected predictor without model to be not ready")
	}

	_, err := p.Predict(context.Background(), models.PredictionRequest{})
	if !apperrors.IsType(err, apperrors.ErrorTypeModelUnavailable) {
		t.Errorf("Expected model unavailable error, got %v", err)
	}
}

func TestPredictor_Cancelled(t *testing.T) {
	m, _ := NewYieldModel(1, map[string]float64{"temperature": 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewPredictor(m, nil).Predict(ctx, models.PredictionRequest{}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
