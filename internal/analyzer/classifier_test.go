package analyzer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"go-herbal-inspector/internal/inference"
	"go-herbal-inspector/internal/inference/inferencetest"
	"go-herbal-inspector/internal/modelrepo"
	"go-herbal-inspector/pkg/models"
)

// fakeSource serves fixed models to the classifier and detector
type fakeSource struct {
	classifier inference.ClassificationModel
	objects    inference.DetectionModel
	diseases   map[string]inference.DetectionModel
}

func (s *fakeSource) HerbClassifier() (inference.ClassificationModel, error) {
	if s.classifier == nil {
		return nil, modelrepo.ErrModelUnavailable
	}
	return s.classifier, nil
}

func (s *fakeSource) ObjectDetector() (inference.DetectionModel, error) {
	if s.objects == nil {
		return nil, modelrepo.ErrModelUnavailable
	}
	return s.objects, nil
}

func (s *fakeSource) DiseaseDetector(herbType string) (inference.DetectionModel, bool) {
	m, ok := s.diseases[herbType]
	return m, ok
}

func TestClassify_TopClass(t *testing.T) {
	model := &inferencetest.MockClassifier{
		LabelList: []string{"cannabis", "turmeric", "ginger"},
		Scores:    []float32{0.1, 3.0, 0.2},
	}
	c := NewHerbClassifier(&fakeSource{classifier: model})

	pred, err := c.Classify(context.Background(), createTestImage(8, 8, color.NRGBA{200, 160, 30, 255}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if pred.HerbType != models.HerbTurmeric {
		t.Errorf("Expected turmeric, got %s", pred.HerbType)
	}
	if pred.Confidence < 0.85 || pred.Confidence > 0.95 {
		t.Errorf("Expected softmax confidence near 0.9, got %f", pred.Confidence)
	}
	if pred.BotanicalName != "Curcuma longa L." {
		t.Errorf("Expected botanical name for turmeric, got %q", pred.BotanicalName)
	}
	if model.CallCount != 1 {
		t.Errorf("Expected one model call, got %d", model.CallCount)
	}
}

func TestClassify_ProbabilityOutputSkipsSoftmax(t *testing.T) {
	model := &inferencetest.MockClassifier{
		LabelList:     []string{"cannabis", "turmeric"},
		Scores:        []float32{0.3, 0.7},
		Probabilities: true,
	}
	c := NewHerbClassifier(&fakeSource{classifier: model})

	pred, err := c.Classify(context.Background(), createTestImage(8, 8, color.NRGBA{200, 160, 30, 255}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if pred.HerbType != models.HerbTurmeric {
		t.Errorf("Expected turmeric, got %s", pred.HerbType)
	}
	// softmax over [0.3, 0.7] would give about 0.599
	if pred.Confidence < 0.69 || pred.Confidence > 0.71 {
		t.Errorf("Expected model probability 0.7 to be kept, got %f", pred.Confidence)
	}
}

func TestClassify_Errors(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	tests := []struct {
		name   string
		source *fakeSource
		is     error
	}{
		{"no model", &fakeSource{}, modelrepo.ErrModelUnavailable},
		{
			"label mismatch",
			&fakeSource{classifier: &inferencetest.MockClassifier{LabelList: []string{"a"}, Scores: []float32{1, 2}}},
			nil,
		},
		{
			"model failure",
			&fakeSource{classifier: &inferencetest.MockClassifier{
				LabelList: []string{"a"},
				PredictFunc: func(ctx context.Context, img image.Image) ([]float32, error) {
					return nil, context.DeadlineExceeded
				},
			}},
			context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHerbClassifier(tt.source).Classify(context.Background(), img)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("Expected %v, got %v", tt.is, err)
			}
		})
	}
}

func TestNormalizeHerbLabel(t *testing.T) {
	tests := []struct {
		label      string
		herb       string
		subspecies string
	}{
		{"cannabis", models.HerbCannabis, ""},
		{"Black Galingale", models.HerbBlackGalingale, ""},
		{"black-galingale", models.HerbBlackGalingale, ""},
		{"cannabis:indica", models.HerbCannabis, "indica"},
		{"tumeric", models.HerbTurmeric, ""},
		{"gingr", models.HerbGinger, ""},
		{"ขมิ้นชัน", models.HerbTurmeric, ""},
		{"กระท่อม", models.HerbKratom, ""},
		{"basil", models.UnknownHerb, ""},
		{"", models.UnknownHerb, ""},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			herb, sub := NormalizeHerbLabel(tt.label)
			if herb != tt.herb || sub != tt.subspecies {
				t.Errorf("Expected (%s, %s), got (%s, %s)", tt.herb, tt.subspecies, herb, sub)
			}
		})
	}
}

func TestDemoPrediction(t *testing.T) {
	pred := DemoPrediction()
	if pred.HerbType != models.UnknownHerb || pred.Confidence != 0 {
		t.Errorf("Expected unknown with zero confidence, got %+v", pred)
	}
}
