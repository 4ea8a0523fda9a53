// Package docservice serves GACP document validation, yield prediction and
// knowledge base queries.
package docservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go-herbal-inspector/internal/config"
	"go-herbal-inspector/internal/document"
	apperrors "go-herbal-inspector/internal/errors"
	"go-herbal-inspector/internal/prediction"
	"go-herbal-inspector/pkg/models"

	"github.com/gorilla/mux"
)

// multipartMemory is held in memory before parts spill to disk
const multipartMemory = 32 << 20

// DocumentValidator checks uploaded documents
type DocumentValidator interface {
	Validate(ctx context.Context, files []document.File) models.DocumentValidationResponse
}

// KnowledgeBase answers entity queries
type KnowledgeBase interface {
	Query(q models.KnowledgeQuery) models.KnowledgeResponse
}

// Dependencies are the collaborators of the document service. Knowledge
// may be nil when no knowledge base was loaded.
type Dependencies struct {
	Validator DocumentValidator
	Models    document.ModelSource
	Predictor prediction.Predictor
	Knowledge KnowledgeBase
	OCR       bool
}

type handler struct {
	deps Dependencies
	cfg  *config.DocServiceConfig
}

func NewHandler(deps Dependencies, cfg *config.DocServiceConfig) http.Handler {
	h := &handler{deps: deps, cfg: cfg}

	r := mux.NewRouter()
	r.Use(recovery(), requestLogger(), requestSizeLimiter(cfg.MaxRequestBodySize))

	r.HandleFunc("/validate-documents", h.validateDocuments).Methods(http.MethodPost)
	r.HandleFunc("/predict", h.predict).Methods(http.MethodPost)
	r.HandleFunc("/query-knowledge", h.queryKnowledge).Methods(http.MethodPost)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, apperrors.NewNotFoundError("Endpoint not found", nil))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{
			Success:   false,
			Error:     http.StatusText(http.StatusMethodNotAllowed),
			Message:   "Method not allowed",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	return r
}

func (h *handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
}

func (h *handler) validateDocuments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			writeError(w, r, err)
			return
		}
		writeError(w, r, apperrors.NewValidationError("No files provided", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, r, apperrors.NewValidationError("No files provided", nil))
		return
	}

	files := make([]document.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			writeError(w, r, apperrors.NewValidationError("Unreadable file: "+fh.Filename, err))
			return
		}
		files = append(files, document.File{Name: fh.Filename, Data: data})
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	writeJSON(w, http.StatusOK, h.deps.Validator.Validate(ctx, files))
}

func (h *handler) predict(w http.ResponseWriter, r *http.Request) {
	var req models.PredictionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	res, err := h.deps.Predictor.Predict(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) queryKnowledge(w http.ResponseWriter, r *http.Request) {
	var q models.KnowledgeQuery
	if err := decodeJSON(r, &q); err != nil {
		writeError(w, r, err)
		return
	}
	if h.deps.Knowledge == nil {
		writeError(w, r, apperrors.NewModelUnavailableError("knowledge base not loaded", nil))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Knowledge.Query(q))
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	modelLoaded := false
	if h.deps.Models != nil {
		_, err := h.deps.Models.DocumentClassifier()
		modelLoaded = err == nil
	}

	writeJSON(w, http.StatusOK, models.DocHealthResponse{
		Status:             "healthy",
		ModelLoaded:        modelLoaded,
		KnowledgeBaseReady: h.deps.Knowledge != nil,
		YieldModelLoaded:   h.deps.Predictor != nil && h.deps.Predictor.Ready(),
		OCREnabled:         h.deps.OCR,
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if isTooLarge(err) {
			return err
		}
		return apperrors.NewValidationError("Invalid request body", err)
	}
	return nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func isTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}
