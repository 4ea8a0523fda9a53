package container

import (
	"context"
	"net/http"

	"go-herbal-inspector/internal/config"
	"go-herbal-inspector/internal/docservice"
	"go-herbal-inspector/internal/document"
	"go-herbal-inspector/internal/factory"
	"go-herbal-inspector/internal/inference/onnx"
	"go-herbal-inspector/internal/knowledge"
	"go-herbal-inspector/internal/logger"
	"go-herbal-inspector/internal/modelrepo"
	"go-herbal-inspector/internal/prediction"

	"github.com/sirupsen/logrus"
)

// DocContainer wires the document validation service
type DocContainer struct {
	config  *config.DocServiceConfig
	models  *modelrepo.Repository
	handler http.Handler
}

// NewDocContainer loads the document model, knowledge base and yield model.
// Each may be missing; the affected endpoints then report it.
func NewDocContainer(ctx context.Context, cfg *config.DocServiceConfig) (*DocContainer, error) {
	components := factory.NewComponentFactory()

	loader, err := components.ModelFactory.CreateLoader(factory.DocumentRole, cfg.ModelDir, cfg.RuntimeLibPath, cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	repo := modelrepo.NewRepository(loader, 0)
	if err := repo.Load(ctx); err != nil {
		logger.WithError(err).Warn("Document model not loaded")
	}

	var kb docservice.KnowledgeBase
	var herbs prediction.HerbRecommender
	if base, err := knowledge.Load(cfg.KnowledgeBasePath); err != nil {
		logger.WithError(err).WithField("path", cfg.KnowledgeBasePath).Warn("Knowledge base not loaded")
	} else {
		kb, herbs = base, base
	}

	yield, err := prediction.LoadYieldModel(cfg.YieldModelPath)
	if err != nil {
		logger.WithError(err).WithField("path", cfg.YieldModelPath).Warn("Yield model not loaded")
	}

	opts := []document.Option{document.WithWorkers(cfg.Workers)}
	ocr := components.ModelFactory.CreateTextExtractor(cfg.OCREnabled, cfg.OCRLanguages)
	if ocr != nil {
		opts = append(opts, document.WithTextExtractor(ocr))
	}

	handler := docservice.NewHandler(docservice.Dependencies{
		Validator: document.NewValidator(repo, opts...),
		Models:    repo,
		Predictor: prediction.NewPredictor(yield, herbs),
		Knowledge: kb,
		OCR:       ocr != nil,
	}, cfg)

	logger.WithFields(logrus.Fields{
		"knowledge_base": kb != nil,
		"yield_model":    yield != nil,
		"ocr_enabled":    ocr != nil,
	}).Info("Document service initialized")

	return &DocContainer{config: cfg, models: repo, handler: handler}, nil
}

func (c *DocContainer) Handler() http.Handler {
	return c.handler
}

func (c *DocContainer) Close() {
	c.models.Close()
	onnx.Shutdown()
}
