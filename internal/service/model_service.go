package service

import (
	"context"
	"time"

	apperrors "go-herbal-inspector/internal/errors"
	"go-herbal-inspector/internal/logger"
	"go-herbal-inspector/internal/modelrepo"
	"go-herbal-inspector/internal/observer"
	"go-herbal-inspector/pkg/models"
)

// ServiceVersion is reported by the health endpoint
const ServiceVersion = "3.0.0"

// ModelReloader is the model repository as seen by the model service
type ModelReloader interface {
	ModelCatalog
	Reload(ctx context.Context) (*modelrepo.Snapshot, error)
}

// MetricsSource supplies counters for the health report
type MetricsSource interface {
	GetMetrics() map[string]interface{}
}

// ModelService reports and reloads the loaded models
type ModelService interface {
	Health(ctx context.Context) *models.HealthResponse
	Models(ctx context.Context) *models.ModelsResponse
	Reload(ctx context.Context) (*models.ReloadResponse, error)
}

type modelService struct {
	repo    ModelReloader
	metrics MetricsSource
	events  observer.Subject
}

// NewModelService creates a model service. metrics and events may be nil.
func NewModelService(repo ModelReloader, metrics MetricsSource, events observer.Subject) ModelService {
	return &modelService{repo: repo, metrics: metrics, events: events}
}

func (s *modelService) Health(ctx context.Context) *models.HealthResponse {
	snap := s.repo.Snapshot()
	resp := &models.HealthResponse{
		Status:       "healthy",
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		Models:       snap.Availability(),
		GPUAvailable: false,
		DemoMode:     snap.DemoMode(),
		Version:      ServiceVersion,
	}
	if s.metrics != nil {
		resp.Metrics = s.metrics.GetMetrics()
	}
	return resp
}

func (s *modelService) Models(ctx context.Context) *models.ModelsResponse {
	snap := s.repo.Snapshot()
	return &models.ModelsResponse{
		AvailableModels:  statusesOf(snap),
		SupportedHerbs:   append([]string(nil), models.SupportedHerbs...),
		SupportedFormats: append([]string(nil), models.SupportedFormats...),
		LoadedAt:         snap.LoadedAt.Format(time.RFC3339Nano),
	}
}

// Reload rebuilds the model snapshot. Partial loads succeed and report
// the failed slots in their statuses; a loader that produces nothing is an
// error and the previous snapshot stays in place.
func (s *modelService) Reload(ctx context.Context) (*models.ReloadResponse, error) {
	before := s.repo.Snapshot()
	snap, err := s.repo.Reload(ctx)
	if err != nil && snap == before {
		return nil, apperrors.NewModelUnavailableError("failed to reload models", err)
	}
	if err != nil {
		logger.WithError(err).Warn("Model reload completed with errors")
	}

	if s.events != nil {
		s.events.NotifyObservers(ctx, observer.AnalysisEvent{
			EventType: observer.ModelsReloaded,
			Source:    "api",
			Success:   err == nil,
			Metadata:  map[string]interface{}{"demo_mode": snap.DemoMode()},
		})
	}

	return &models.ReloadResponse{
		Success:   true,
		Message:   "Models reloaded successfully",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Models:    statusesOf(snap),
	}, nil
}

func statusesOf(snap *modelrepo.Snapshot) []models.ModelStatus {
	out := make([]models.ModelStatus, len(snap.Statuses))
	copy(out, snap.Statuses)
	return out
}
