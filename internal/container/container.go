package container

import (
	"context"
	"fmt"
	"net/http"

	"go-herbal-inspector/internal/analyzer"
	"go-herbal-inspector/internal/config"
	"go-herbal-inspector/internal/factory"
	"go-herbal-inspector/internal/inference/onnx"
	"go-herbal-inspector/internal/logger"
	"go-herbal-inspector/internal/modelrepo"
	"go-herbal-inspector/internal/observer"
	"go-herbal-inspector/internal/repository"
	"go-herbal-inspector/internal/repository/sqlite"
	"go-herbal-inspector/internal/service"
	"go-herbal-inspector/internal/signature"
	"go-herbal-inspector/internal/transport"

	"github.com/sirupsen/logrus"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	models          *modelrepo.Repository
	db              *sqlite.DB
	hub             *observer.WebSocketHub
	analysisService service.AnalysisService
	modelService    service.ModelService
	handler         http.Handler
}

// NewContainer creates a new dependency injection container. Model load
// failures are logged and leave the service in demo mode.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory()

	loader, err := components.ModelFactory.CreateLoader(
		factory.AnalysisRole, cfg.Models.Dir, cfg.Models.RuntimeLibPath, cfg.Models.PoolSize,
	)
	if err != nil {
		return nil, err
	}
	repo := modelrepo.NewRepository(loader, cfg.Models.RetireGrace)
	if err := repo.Load(ctx); err != nil {
		logger.WithError(err).Warn("Model loading incomplete, affected stages run in demo mode")
	}

	uploads, err := components.StorageFactory.CreateStorage(cfg.Uploads)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to create upload store: %w", err)
	}

	var (
		db      *sqlite.DB
		history repository.AnalysisRepository
	)
	if cfg.HistoryDBPath != "" {
		db, err = sqlite.New(cfg.HistoryDBPath)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		history = sqlite.NewAnalysisRepository(db)
	}

	metrics := observer.NewMetricsObserver()
	hub := observer.NewWebSocketHub()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)
	events.Subscribe(hub)

	opts := analyzerOptions(cfg.Models)

	analysisService := service.NewAnalysisService(service.Dependencies{
		Classifier: analyzer.NewHerbClassifier(repo),
		Assessor:   analyzer.NewQualityAssessor(opts),
		Detector:   analyzer.NewDetector(repo, opts),
		Models:     repo,
		Signer:     signature.NewSigner(cfg.SigningSecret),
		History:    history,
		Uploads:    uploads,
		Events:     events,
	}, service.Options{
		MaxBatchSize:    cfg.MaxBatchSize,
		AnalysisTimeout: cfg.AnalysisTimeout,
	})
	modelService := service.NewModelService(repo, metrics, events)

	logger.WithFields(logrus.Fields{
		"upload_backend":  uploads.Backend(),
		"history_enabled": history != nil,
		"signing_enabled": cfg.SigningSecret != "",
		"demo_mode":       repo.Snapshot().DemoMode(),
	}).Info("Container initialized")

	return &Container{
		config:          cfg,
		models:          repo,
		db:              db,
		hub:             hub,
		analysisService: analysisService,
		modelService:    modelService,
		handler:         transport.NewHandler(analysisService, modelService, hub, cfg),
	}, nil
}

// analyzerOptions applies configured thresholds and quality tuning
func analyzerOptions(m config.ModelConfig) analyzer.Options {
	w := m.QualityWeights
	return analyzer.DefaultOptions().
		WithThresholds(m.ObjectThreshold, m.DiseaseThreshold).
		WithWeights(analyzer.QualityWeights{Freshness: w[0], Color: w[1], Texture: w[2], Size: w[3]}).
		WithDefectPenalty(m.DefectPenalty)
}

// Run serves websocket clients until ctx is cancelled
func (c *Container) Run(ctx context.Context) {
	c.hub.Run(ctx)
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close releases models, the history database and the model runtime
func (c *Container) Close() {
	c.models.Close()
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close history database")
		}
	}
	onnx.Shutdown()
}
