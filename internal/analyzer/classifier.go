package analyzer

import (
	"context"
	"fmt"
	"image"

	"go-herbal-inspector/internal/inference"
	"go-herbal-inspector/pkg/models"
)

// HerbClassifier resolves the herb type from the current classification model
type HerbClassifier struct {
	source ClassifierSource
}

// NewHerbClassifier creates a classifier reading models from source
func NewHerbClassifier(source ClassifierSource) *HerbClassifier {
	return &HerbClassifier{source: source}
}

// Classify runs the model and returns the top class. Errors from the model
// source (including modelrepo.ErrModelUnavailable) are returned wrapped.
func (c *HerbClassifier) Classify(ctx context.Context, img image.Image) (models.HerbPrediction, error) {
	model, err := c.source.HerbClassifier()
	if err != nil {
		return models.HerbPrediction{}, err
	}

	scores, err := model.Predict(ctx, img)
	if err != nil {
		return models.HerbPrediction{}, fmt.Errorf("herb classification: %w", err)
	}
	labels := model.Labels()
	if len(scores) != len(labels) {
		return models.HerbPrediction{}, fmt.Errorf("herb classification: model returned %d scores for %d labels", len(scores), len(labels))
	}

	probs := inference.Probabilities(model, scores)
	top, prob := inference.ArgMax(probs)
	if top < 0 {
		return models.HerbPrediction{}, fmt.Errorf("herb classification: empty model output")
	}

	herb, subspecies := NormalizeHerbLabel(labels[top])
	return models.HerbPrediction{
		HerbType:      herb,
		Confidence:    models.Clamp01(prob),
		Subspecies:    subspecies,
		BotanicalName: models.BotanicalNames[herb],
	}, nil
}

// DemoPrediction is substituted when no classification model is loaded
func DemoPrediction() models.HerbPrediction {
	return models.HerbPrediction{HerbType: models.UnknownHerb, Confidence: 0}
}
