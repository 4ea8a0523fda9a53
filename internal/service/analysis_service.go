package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"go-herbal-inspector/internal/analyzer"
	apperrors "go-herbal-inspector/internal/errors"
	"go-herbal-inspector/internal/logger"
	"go-herbal-inspector/internal/modelrepo"
	"go-herbal-inspector/internal/normalizer"
	"go-herbal-inspector/internal/observer"
	"go-herbal-inspector/internal/recommendation"
	"go-herbal-inspector/internal/repository"
	"go-herbal-inspector/internal/signature"
	"go-herbal-inspector/internal/storage"
	"go-herbal-inspector/pkg/models"
	"go-herbal-inspector/pkg/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AnalyzeInput is one image submitted for full analysis
type AnalyzeInput struct {
	Data         []byte
	Filename     string
	HerbTypeHint string
	Source       string
}

// BatchItem is one image of a batch request
type BatchItem struct {
	Filename string
	Data     []byte
}

// AnalysisService defines the herb image analysis operations
type AnalysisService interface {
	Analyze(ctx context.Context, in AnalyzeInput) (*models.AnalysisResponse, error)
	Classify(ctx context.Context, data []byte) (*models.ClassifyResponse, error)
	AssessQuality(ctx context.Context, data []byte, herbType string) (*models.QualityResponse, error)
	AnalyzeBatch(ctx context.Context, items []BatchItem) (*models.BatchAnalysisResponse, error)

	GetAnalysis(ctx context.Context, id string) (*models.AnalysisResponse, error)
	RecentAnalyses(ctx context.Context, limit int) ([]repository.AnalysisSummary, error)
	OpenUpload(ctx context.Context, name string) (io.ReadCloser, error)
	VerifySignature(resp models.AnalysisResponse) bool
}

// ModelCatalog exposes the currently published model snapshot
type ModelCatalog interface {
	Snapshot() *modelrepo.Snapshot
}

// Dependencies wires the analysis service. History, Uploads and Events
// are optional.
type Dependencies struct {
	Classifier analyzer.Classifier
	Assessor   analyzer.Assessor
	Detector   analyzer.ObjectDiseaseDetector
	Models     ModelCatalog
	Signer     *signature.Signer
	Validator  *validation.UploadValidator
	History    repository.AnalysisRepository
	Uploads    storage.UploadStore
	Events     observer.Subject
}

// Options tunes request handling
type Options struct {
	MaxBatchSize    int
	AnalysisTimeout time.Duration
}

type analysisService struct {
	deps  Dependencies
	opts  Options
	clock func() time.Time
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(deps Dependencies, opts Options) AnalysisService {
	if deps.Validator == nil {
		deps.Validator = validation.NewUploadValidator()
	}
	if deps.Signer == nil {
		deps.Signer = signature.NewSigner("")
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 10
	}
	return &analysisService{
		deps:  deps,
		opts:  opts,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// Analyze runs the full pipeline. Only an undecodable image fails the
// request; model and signing failures degrade the affected stage.
func (s *analysisService) Analyze(ctx context.Context, in AnalyzeInput) (*models.AnalysisResponse, error) {
	p := newPipeline(s.clock)
	analysisID := newAnalysisID(p.started)
	log := logger.WithFields(logrus.Fields{"analysis_id": analysisID, "source": in.Source})

	s.publish(ctx, observer.AnalysisEvent{
		EventType:  observer.AnalysisStarted,
		AnalysisID: analysisID,
		Source:     in.Source,
	})

	if in.Filename != "" {
		if _, err := s.deps.Validator.ValidateFilename(in.Filename); err != nil {
			p.fail()
			s.publishFailure(ctx, analysisID, in.Source, err)
			return nil, err
		}
	}

	norm, err := normalizer.Normalize(in.Data)
	if err != nil {
		p.fail()
		s.publishFailure(ctx, analysisID, in.Source, err)
		return nil, apperrors.NewValidationError("Invalid image", err)
	}
	p.advance(StageNormalized, false)

	uploadName := s.archive(ctx, log, in.Data, norm.Properties.Format)

	modelCtx, cancel := s.modelContext(ctx)
	defer cancel()

	pred, demo, err := s.classify(modelCtx, norm.Image)
	if err != nil {
		log.WithError(err).Warn("Herb classification degraded")
	}
	p.advance(StageClassified, err != nil)

	hint := ""
	if in.HerbTypeHint != "" {
		hint, _ = analyzer.NormalizeHerbLabel(in.HerbTypeHint)
	}
	scoringHerb := pred.HerbType
	if scoringHerb == models.UnknownHerb && hint != "" && hint != models.UnknownHerb {
		scoringHerb = hint
	}

	quality, err := s.assess(norm.Image, scoringHerb)
	if err != nil {
		log.WithError(err).Warn("Quality assessment degraded")
	}
	p.advance(StageQualityScored, err != nil)

	detection, err := s.deps.Detector.DetectObjects(modelCtx, norm.Image)
	detectDegraded := err != nil
	if err != nil {
		log.WithError(err).Warn("Object detection degraded")
		detection = models.EmptyDetectionResult()
	}
	diseases, err := s.deps.Detector.DetectDiseases(modelCtx, norm.Image, scoringHerb)
	if err != nil {
		log.WithError(err).Warn("Disease detection degraded")
		diseases = []string{}
		detectDegraded = true
	}
	p.advance(StageDetected, detectDegraded)

	recs := recommendation.Generate(pred, quality, diseases)
	p.advance(StageRecommended, false)

	snap := s.snapshot()
	demo = demo || snap.DemoMode()
	detection.ProcessingTime = p.elapsed()

	resp := &models.AnalysisResponse{
		Success:           true,
		AnalysisID:        analysisID,
		Timestamp:         p.started.Format(time.RFC3339Nano),
		HerbPrediction:    pred,
		QualityAssessment: quality,
		DetectionResult:   detection,
		Diseases:          diseases,
		Recommendations:   recs,
		Metadata: models.AnalysisMetadata{
			SchemaVersion:   models.SchemaVersion,
			ProcessingTime:  p.elapsed(),
			ModelVersions:   snap.Versions(),
			ImageProperties: norm.Properties,
			Stages:          p.Timings(),
			DegradedStages:  p.Degraded(),
			DemoMode:        demo,
			HerbTypeHint:    strings.TrimSpace(in.HerbTypeHint),
			Upload:          uploadName,
		},
	}

	sig, err := s.sign(*resp)
	if err != nil {
		log.WithError(err).Warn("Response signing degraded")
	}
	resp.DigitalSignature = sig
	p.advance(StageSigned, err != nil)
	if err != nil {
		resp.Metadata.DegradedStages = p.Degraded()
	}
	p.advance(StageComplete, false)

	if err := p.Err(); err != nil {
		s.publishFailure(ctx, analysisID, in.Source, err)
		return nil, err
	}

	for _, stage := range p.Degraded() {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:  observer.StageDegraded,
			AnalysisID: analysisID,
			Source:     in.Source,
			Success:    true,
			Metadata:   map[string]interface{}{"stage": stage},
		})
	}

	if s.deps.History != nil {
		if err := s.deps.History.Save(ctx, resp); err != nil {
			log.WithError(err).Warn("Failed to store analysis history")
		}
	}

	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		AnalysisID:     analysisID,
		Source:         in.Source,
		HerbType:       pred.HerbType,
		Grade:          string(quality.Grade),
		ProcessingTime: time.Duration(resp.Metadata.ProcessingTime * float64(time.Second)),
		Success:        true,
		Metadata: map[string]interface{}{
			"demo_mode":       demo,
			"degraded_stages": len(resp.Metadata.DegradedStages),
		},
	})

	return resp, nil
}

// Classify normalizes the image and returns the herb prediction only
func (s *analysisService) Classify(ctx context.Context, data []byte) (*models.ClassifyResponse, error) {
	norm, err := normalizer.Normalize(data)
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid image", err)
	}

	modelCtx, cancel := s.modelContext(ctx)
	defer cancel()

	pred, demo, err := s.classify(modelCtx, norm.Image)
	if err != nil {
		logger.WithError(err).Warn("Herb classification degraded")
	}

	return &models.ClassifyResponse{
		Success:    true,
		Timestamp:  s.clock().Format(time.RFC3339Nano),
		Prediction: pred,
		DemoMode:   demo,
	}, nil
}

// AssessQuality scores the image for the given herb type; an empty or
// unrecognized herb type is scored as unknown.
func (s *analysisService) AssessQuality(ctx context.Context, data []byte, herbType string) (*models.QualityResponse, error) {
	norm, err := normalizer.Normalize(data)
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid image", err)
	}

	herb := models.UnknownHerb
	if strings.TrimSpace(herbType) != "" {
		herb, _ = analyzer.NormalizeHerbLabel(herbType)
	}

	quality, err := s.assess(norm.Image, herb)
	if err != nil {
		logger.WithError(err).Warn("Quality assessment degraded")
	}

	return &models.QualityResponse{
		Success:    true,
		Timestamp:  s.clock().Format(time.RFC3339Nano),
		Assessment: quality,
	}, nil
}

// AnalyzeBatch runs a quick analysis (classify + quality) over each item in
// order. A failing item is reported in its result and does not affect the
// others.
func (s *analysisService) AnalyzeBatch(ctx context.Context, items []BatchItem) (*models.BatchAnalysisResponse, error) {
	if len(items) == 0 {
		return nil, apperrors.NewValidationError("No images provided", nil)
	}
	if len(items) > s.opts.MaxBatchSize {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("Maximum %d images per batch", s.opts.MaxBatchSize), nil,
		)
	}

	resp := &models.BatchAnalysisResponse{
		Success:     true,
		Timestamp:   s.clock().Format(time.RFC3339Nano),
		TotalImages: len(items),
		Results:     make([]models.BatchItemResult, 0, len(items)),
	}

	for i, item := range items {
		result := s.analyzeBatchItem(ctx, i, item)
		if result.Success {
			resp.SuccessfulAnalyses++
		}
		resp.Results = append(resp.Results, result)
	}

	logger.WithFields(logrus.Fields{
		"total_images": resp.TotalImages,
		"successful":   resp.SuccessfulAnalyses,
	}).Info("Batch analysis completed")

	return resp, nil
}

func (s *analysisService) analyzeBatchItem(ctx context.Context, index int, item BatchItem) models.BatchItemResult {
	result := models.BatchItemResult{Index: index, Filename: item.Filename}

	fail := func(err error) models.BatchItemResult {
		logger.WithError(err).WithFields(logrus.Fields{
			"index":    index,
			"filename": item.Filename,
		}).Warn("Batch item failed")
		result.Error = clientMessage(err)
		return result
	}

	if err := ctx.Err(); err != nil {
		return fail(apperrors.NewTimeoutError("Analysis cancelled", err))
	}
	if item.Filename != "" {
		if _, err := s.deps.Validator.ValidateFilename(item.Filename); err != nil {
			return fail(err)
		}
	}

	norm, err := normalizer.Normalize(item.Data)
	if err != nil {
		return fail(apperrors.NewValidationError("Invalid image", err))
	}

	modelCtx, cancel := s.modelContext(ctx)
	defer cancel()

	pred, _, err := s.classify(modelCtx, norm.Image)
	if err != nil {
		logger.WithError(err).WithField("index", index).Warn("Herb classification degraded")
	}
	quality, err := s.assess(norm.Image, pred.HerbType)
	if err != nil {
		logger.WithError(err).WithField("index", index).Warn("Quality assessment degraded")
	}

	result.Success = true
	result.HerbPrediction = &pred
	result.QualityAssessment = &quality
	return result
}

// GetAnalysis returns a stored analysis
func (s *analysisService) GetAnalysis(ctx context.Context, id string) (*models.AnalysisResponse, error) {
	if s.deps.History == nil {
		return nil, apperrors.NewNotFoundError("Analysis history is disabled", repository.ErrRepositoryUnavailable)
	}
	resp, err := s.deps.History.Get(ctx, id)
	if errors.Is(err, repository.ErrAnalysisNotFound) {
		return nil, apperrors.NewNotFoundError("Analysis not found", err)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load analysis", err)
	}
	return resp, nil
}

// RecentAnalyses lists the newest stored analyses
func (s *analysisService) RecentAnalyses(ctx context.Context, limit int) ([]repository.AnalysisSummary, error) {
	if s.deps.History == nil {
		return []repository.AnalysisSummary{}, nil
	}
	summaries, err := s.deps.History.Recent(ctx, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list analyses", err)
	}
	return summaries, nil
}

// OpenUpload opens an archived upload by its stored name
func (s *analysisService) OpenUpload(ctx context.Context, name string) (io.ReadCloser, error) {
	if _, err := s.deps.Validator.ValidateFilename(name); err != nil {
		return nil, err
	}
	if s.deps.Uploads == nil {
		return nil, apperrors.NewNotFoundError("File not found", storage.ErrUploadNotFound)
	}
	rc, err := s.deps.Uploads.Open(ctx, name)
	if errors.Is(err, storage.ErrUploadNotFound) {
		return nil, apperrors.NewNotFoundError("File not found", err)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to open upload", err)
	}
	return rc, nil
}

func (s *analysisService) VerifySignature(resp models.AnalysisResponse) bool {
	return s.deps.Signer.Verify(resp)
}

// classify returns the demo prediction when the model is missing or fails.
// demo is true only when no classifier is loaded.
func (s *analysisService) classify(ctx context.Context, img image.Image) (models.HerbPrediction, bool, error) {
	pred, err := s.deps.Classifier.Classify(ctx, img)
	if err != nil {
		return analyzer.DemoPrediction(), errors.Is(err, modelrepo.ErrModelUnavailable), err
	}
	return pred, false, nil
}

func (s *analysisService) assess(img *image.NRGBA, herbType string) (qa models.QualityAssessment, err error) {
	defer func() {
		if r := recover(); r != nil {
			qa = analyzer.DefaultAssessment()
			err = fmt.Errorf("quality assessment panicked: %v", r)
		}
	}()
	return s.deps.Assessor.Assess(img, herbType), nil
}

func (s *analysisService) sign(resp models.AnalysisResponse) (string, error) {
	if !s.deps.Signer.Enabled() {
		return "", signature.ErrNoSecret
	}
	return s.deps.Signer.Sign(resp)
}

// archive stores the raw upload and returns its name, or "" when storage
// is disabled or fails.
func (s *analysisService) archive(ctx context.Context, log *logrus.Entry, data []byte, format string) string {
	if s.deps.Uploads == nil {
		return ""
	}
	name := storage.NewUploadName(format)
	if err := s.deps.Uploads.Save(ctx, name, data); err != nil {
		log.WithError(err).WithField("backend", s.deps.Uploads.Backend()).Warn("Failed to archive upload")
		return ""
	}
	return name
}

func (s *analysisService) snapshot() *modelrepo.Snapshot {
	if s.deps.Models == nil {
		return &modelrepo.Snapshot{}
	}
	return s.deps.Models.Snapshot()
}

func (s *analysisService) modelContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.AnalysisTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.AnalysisTimeout)
}

func (s *analysisService) publish(ctx context.Context, event observer.AnalysisEvent) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.NotifyObservers(ctx, event)
}

func (s *analysisService) publishFailure(ctx context.Context, analysisID, source string, err error) {
	s.publish(ctx, observer.AnalysisEvent{
		EventType:    observer.AnalysisFailed,
		AnalysisID:   analysisID,
		Source:       source,
		ErrorMessage: err.Error(),
	})
}

// newAnalysisID formats analysis_YYYYmmdd_HHMMSS_<8 hex>
func newAnalysisID(t time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("analysis_%s_%s", t.Format("20060102_150405"), hex[:8])
}

func clientMessage(err error) string {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.ClientMessage()
	}
	return "Analysis failed"
}
