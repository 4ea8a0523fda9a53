// Package inferencetest provides in-memory model doubles for tests.
package inferencetest

import (
	"context"
	"image"
	"sync"

	"go-herbal-inspector/internal/inference"
)

// MockClassifier is a mock implementation of inference.ClassificationModel
type MockClassifier struct {
	LabelList   []string
	Scores      []float32
	PredictFunc func(ctx context.Context, img image.Image) ([]float32, error)
	// Probabilities makes Scores count as softmax output instead of logits
	Probabilities bool

	mu         sync.Mutex
	CallCount  int
	CloseCount int
}

func (m *MockClassifier) Labels() []string {
	return m.LabelList
}

func (m *MockClassifier) OutputsProbabilities() bool {
	return m.Probabilities
}

func (m *MockClassifier) Predict(ctx context.Context, img image.Image) ([]float32, error) {
	m.mu.Lock()
	m.CallCount++
	m.mu.Unlock()

	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, img)
	}
	out := make([]float32, len(m.Scores))
	copy(out, m.Scores)
	return out, nil
}

func (m *MockClassifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCount++
	return nil
}

// Closed reports whether Close has been called at least once
func (m *MockClassifier) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CloseCount > 0
}

// MockDetector is a mock implementation of inference.DetectionModel
type MockDetector struct {
	LabelList  []string
	Detections []inference.Detection
	DetectFunc func(ctx context.Context, img image.Image) ([]inference.Detection, error)

	mu         sync.Mutex
	CallCount  int
	CloseCount int
}

func (m *MockDetector) Labels() []string {
	return m.LabelList
}

func (m *MockDetector) Detect(ctx context.Context, img image.Image) ([]inference.Detection, error) {
	m.mu.Lock()
	m.CallCount++
	m.mu.Unlock()

	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, img)
	}
	out := make([]inference.Detection, len(m.Detections))
	copy(out, m.Detections)
	return out, nil
}

func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCount++
	return nil
}

// Closed reports whether Close has been called at least once
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CloseCount > 0
}

// StaticLoader returns pre-built snapshots in sequence; the last one repeats.
// It is generic over the snapshot type to avoid an import cycle with modelrepo.
type StaticLoader[T any] struct {
	Snapshots []*T
	Errs      []error

	mu    sync.Mutex
	calls int
}

func (l *StaticLoader[T]) Load(ctx context.Context) (*T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.calls
	l.calls++

	var snap *T
	if len(l.Snapshots) > 0 {
		snap = l.Snapshots[min(i, len(l.Snapshots)-1)]
	}
	var err error
	if len(l.Errs) > 0 {
		err = l.Errs[min(i, len(l.Errs)-1)]
	}
	return snap, err
}

// Calls returns how many times Load has been invoked
func (l *StaticLoader[T]) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}
