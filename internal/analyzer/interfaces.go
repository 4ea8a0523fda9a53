package analyzer

import (
	"context"
	"image"

	"go-herbal-inspector/internal/inference"
	"go-herbal-inspector/pkg/models"
)

// MetricsCalculator handles image statistics computation
type MetricsCalculator interface {
	CalculateColorStats(img *image.NRGBA) colorStats
	CalculateLaplacianVariance(gray *image.Gray) float64
}

// Classifier identifies the herb in a normalized image
type Classifier interface {
	Classify(ctx context.Context, img image.Image) (models.HerbPrediction, error)
}

// Assessor scores the quality of a normalized image for a herb type
type Assessor interface {
	Assess(img *image.NRGBA, herbType string) models.QualityAssessment
}

// ObjectDiseaseDetector locates objects and recognizes diseases
type ObjectDiseaseDetector interface {
	DetectObjects(ctx context.Context, img image.Image) (models.DetectionResult, error)
	DetectDiseases(ctx context.Context, img image.Image, herbType string) ([]string, error)
}

// ClassifierSource yields the current herb classification model
type ClassifierSource interface {
	HerbClassifier() (inference.ClassificationModel, error)
}

// DetectorSource yields the current detection models
type DetectorSource interface {
	ObjectDetector() (inference.DetectionModel, error)
	DiseaseDetector(herbType string) (inference.DetectionModel, bool)
}
