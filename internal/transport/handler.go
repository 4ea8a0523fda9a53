package transport

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go-herbal-inspector/internal/auth"
	"go-herbal-inspector/internal/config"
	apperrors "go-herbal-inspector/internal/errors"
	"go-herbal-inspector/internal/logger"
	"go-herbal-inspector/internal/normalizer"
	"go-herbal-inspector/internal/service"
	"go-herbal-inspector/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handler serves the herb analysis API
type Handler struct {
	analysis service.AnalysisService
	models   service.ModelService
	events   http.Handler
	cfg      *config.Config
}

// NewHandler builds the gin router. events may be nil, in which case
// /events is not served.
func NewHandler(analysis service.AnalysisService, modelSvc service.ModelService, events http.Handler, cfg *config.Config) http.Handler {
	h := &Handler{analysis: analysis, models: modelSvc, events: events, cfg: cfg}

	r := gin.New()
	r.Use(
		recovery(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", h.health)
	r.GET("/models", h.listModels)
	r.POST("/models/reload", auth.RequireAPIKey(cfg.APIKey), h.reloadModels)

	r.POST("/analyze", h.analyze)
	r.POST("/classify", h.classify)
	r.POST("/quality", h.quality)
	r.POST("/batch/analyze", h.batchAnalyze)

	r.GET("/uploads/:filename", h.serveUpload)
	r.GET("/analyses", h.recentAnalyses)
	r.GET("/analyses/:id", h.getAnalysis)
	r.POST("/verify", h.verifySignature)

	if events != nil {
		r.GET("/events", gin.WrapH(events))
	}

	r.NoRoute(func(c *gin.Context) {
		respondError(c, apperrors.NewNotFoundError("Endpoint not found", nil))
	})

	return r
}

// imageInput is an image extracted from either request encoding
type imageInput struct {
	data     []byte
	filename string
	herbType string
}

// readImage accepts multipart field "image" or a JSON body with base64 data
func readImage(c *gin.Context) (imageInput, error) {
	if isMultipart(c.Request) {
		fh, err := c.FormFile("image")
		if err != nil {
			if isTooLarge(err) {
				return imageInput{}, err
			}
			return imageInput{}, apperrors.NewValidationError("No image provided", err)
		}
		data, err := readFormFile(fh)
		if err != nil {
			return imageInput{}, err
		}
		return imageInput{
			data:     data,
			filename: fh.Filename,
			herbType: c.PostForm("herb_type"),
		}, nil
	}

	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if isTooLarge(err) {
			return imageInput{}, err
		}
		return imageInput{}, apperrors.NewValidationError("No image provided", err)
	}
	if strings.TrimSpace(req.Image) == "" {
		return imageInput{}, apperrors.NewValidationError("No image provided", nil)
	}
	data, err := normalizer.DecodeBase64(req.Image)
	if err != nil {
		return imageInput{}, apperrors.NewValidationError("Invalid image", err)
	}
	return imageInput{data: data, herbType: req.HerbType}, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid image", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid image", err)
	}
	return data, nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func isTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
}

func (h *Handler) analyze(c *gin.Context) {
	in, err := readImage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	resp, err := h.analysis.Analyze(ctx, service.AnalyzeInput{
		Data:         in.data,
		Filename:     in.filename,
		HerbTypeHint: in.herbType,
		Source:       "api",
	})
	if err != nil {
		respondError(c, err)
		return
	}

	logger.WithFields(logrus.Fields{
		"analysis_id": resp.AnalysisID,
		"herb_type":   resp.HerbPrediction.HerbType,
		"grade":       resp.QualityAssessment.Grade,
		"demo_mode":   resp.Metadata.DemoMode,
	}).Info("Analysis completed")

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) classify(c *gin.Context) {
	in, err := readImage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	resp, err := h.analysis.Classify(ctx, in.data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) quality(c *gin.Context) {
	in, err := readImage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	resp, err := h.analysis.AssessQuality(ctx, in.data, in.herbType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) batchAnalyze(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		if isTooLarge(err) {
			respondError(c, err)
			return
		}
		respondError(c, apperrors.NewValidationError("No images provided", err))
		return
	}

	files := form.File["images"]
	if len(files) == 0 {
		respondError(c, apperrors.NewValidationError("No images provided", nil))
		return
	}
	if len(files) > h.cfg.MaxBatchSize {
		respondError(c, apperrors.NewValidationError(
			"Maximum "+strconv.Itoa(h.cfg.MaxBatchSize)+" images per batch", nil,
		))
		return
	}

	items := make([]service.BatchItem, 0, len(files))
	for _, fh := range files {
		// unreadable parts are left empty and reported per item
		data, _ := readFormFile(fh)
		items = append(items, service.BatchItem{Filename: fh.Filename, Data: data})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	resp, err := h.analysis.AnalyzeBatch(ctx, items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, h.models.Health(c.Request.Context()))
}

func (h *Handler) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, h.models.Models(c.Request.Context()))
}

func (h *Handler) reloadModels(c *gin.Context) {
	resp, err := h.models.Reload(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) serveUpload(c *gin.Context) {
	name := c.Param("filename")
	rc, err := h.analysis.OpenUpload(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}

func (h *Handler) getAnalysis(c *gin.Context) {
	resp, err := h.analysis.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// verifySignature checks a previously returned analysis against its
// digital_signature. A tampered or unsigned analysis reports valid=false.
func (h *Handler) verifySignature(c *gin.Context) {
	var resp models.AnalysisResponse
	if err := c.ShouldBindJSON(&resp); err != nil {
		if isTooLarge(err) {
			respondError(c, err)
			return
		}
		respondError(c, apperrors.NewValidationError("Invalid analysis payload", err))
		return
	}

	c.JSON(http.StatusOK, models.VerifyResponse{
		Success:   true,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Valid:     h.analysis.VerifySignature(resp),
	})
}

func (h *Handler) recentAnalyses(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		respondError(c, apperrors.NewValidationError("limit must be between 1 and 100", err))
		return
	}

	summaries, err := h.analysis.RecentAnalyses(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"analyses":  summaries,
	})
}
