// Package prediction scores cultivation yield from environmental features
// and derives cultivation recommendations.
package prediction

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidYieldModel is returned for model files without coefficients
var ErrInvalidYieldModel = errors.New("invalid yield model")

// herbFeaturePrefix marks one-hot herb indicator features
const herbFeaturePrefix = "herb_"

// YieldModel is a linear regression over named features
type YieldModel struct {
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`

	names   []string
	weights []float64
}

// LoadYieldModel reads a model exported as {"intercept", "coefficients"}
func LoadYieldModel(path string) (*YieldModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read yield model: %w", err)
	}

	var m YieldModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYieldModel, err)
	}
	if err := m.init(); err != nil {
		return nil, err
	}
	return &m, nil
}

// NewYieldModel builds a model from in-memory coefficients
func NewYieldModel(intercept float64, coefficients map[string]float64) (*YieldModel, error) {
	m := &YieldModel{Intercept: intercept, Coefficients: coefficients}
	if err := m.init(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *YieldModel) init() error {
	if len(m.Coefficients) == 0 {
		return fmt.Errorf("%w: no coefficients", ErrInvalidYieldModel)
	}
	if math.IsNaN(m.Intercept) || math.IsInf(m.Intercept, 0) {
		return fmt.Errorf("%w: intercept is not finite", ErrInvalidYieldModel)
	}

	m.names = make([]string, 0, len(m.Coefficients))
	for name := range m.Coefficients {
		m.names = append(m.names, name)
	}
	sort.Strings(m.names)

	m.weights = make([]float64, len(m.names))
	for i, name := range m.names {
		m.weights[i] = m.Coefficients[name]
	}
	return nil
}

// Predict scores one row. Features the model does not know are ignored and
// features it expects but are absent count as zero.
func (m *YieldModel) Predict(features map[string]float64) float64 {
	row := make([]float64, len(m.names))
	for i, name := range m.names {
		row[i] = features[name]
	}
	return m.Intercept + floats.Dot(m.weights, row)
}

// FeatureRow merges the request features with one-hot herb indicators
func FeatureRow(features map[string]float64, herbs []string) map[string]float64 {
	row := make(map[string]float64, len(features)+len(herbs))
	for k, v := range features {
		row[k] = v
	}
	for _, h := range herbs {
		row[herbFeaturePrefix+h] = 1
	}
	return row
}
