package prediction

import (
	"context"

	apperrors "go-herbal-inspector/internal/errors"
	"go-herbal-inspector/internal/logger"
	"go-herbal-inspector/pkg/models"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultConfidence is reported until the model exports its own
	DefaultConfidence = 0.85

	MaxRecommendations = 5

	defaultSoilMoisture = 0.5
	defaultTemperature  = 25.0

	lowMoisture     = 0.3
	highMoisture    = 0.7
	lowTemperature  = 20.0
	featureMoisture = "soil_moisture"
	featureTemp     = "temperature"
)

const (
	recIncreaseWatering = "ควรเพิ่มการรดน้ำ ดินมีความชื้นต่ำเกินไป"
	recReduceWatering   = "ควรลดการรดน้ำ ดินมีความชื้นสูงเกินไป"
	recGreenhouse       = "อุณหภูมิต่ำเกินไปสำหรับสมุนไพรบางชนิด ควรพิจารณาใช้โรงเรือน"
)

// HerbRecommender supplies per-herb cultivation advice
type HerbRecommender interface {
	HerbRecommendations(herb string) []string
}

// Predictor serves POST /predict
type Predictor interface {
	Predict(ctx context.Context, req models.PredictionRequest) (*models.PredictionResult, error)
	Ready() bool
}

type predictor struct {
	model *YieldModel
	herbs HerbRecommender
}

// NewPredictor accepts a nil model (predictions then fail with a model
// unavailable error) and a nil recommender (rules only).
func NewPredictor(model *YieldModel, herbs HerbRecommender) Predictor {
	return &predictor{model: model, herbs: herbs}
}

func (p *predictor) Ready() bool {
	return p.model != nil
}

func (p *predictor) Predict(ctx context.Context, req models.PredictionRequest) (*models.PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("prediction cancelled", err)
	}
	if p.model == nil {
		return nil, apperrors.NewModelUnavailableError("yield model not loaded", nil)
	}

	names := make([]string, 0, len(req.HerbalTypes))
	for _, h := range req.HerbalTypes {
		names = append(names, h.Name)
	}

	yield := p.model.Predict(FeatureRow(req.Features, names))

	logger.WithFields(logrus.Fields{
		"herbs":      names,
		"features":   len(req.Features),
		"prediction": yield,
	}).Debug("Yield predicted")

	return &models.PredictionResult{
		Prediction:      yield,
		Confidence:      DefaultConfidence,
		Recommendations: Recommendations(req.Features, names, p.herbs),
	}, nil
}

// Recommendations applies the moisture and temperature rules, then appends
// knowledge base advice for each herb, keeping at most MaxRecommendations.
func Recommendations(features map[string]float64, herbs []string, source HerbRecommender) []string {
	recs := []string{}

	moisture := featureOrDefault(features, featureMoisture, defaultSoilMoisture)
	switch {
	case moisture < lowMoisture:
		recs = append(recs, recIncreaseWatering)
	case moisture > highMoisture:
		recs = append(recs, recReduceWatering)
	}

	if featureOrDefault(features, featureTemp, defaultTemperature) < lowTemperature {
		recs = append(recs, recGreenhouse)
	}

	if source != nil {
		for _, h := range herbs {
			recs = append(recs, source.HerbRecommendations(h)...)
		}
	}

	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs
}

func featureOrDefault(features map[string]float64, key string, def float64) float64 {
	if v, ok := features[key]; ok {
		return v
	}
	return def
}
