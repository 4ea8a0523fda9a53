package document

import (
	"context"
	"path/filepath"
	"slices"
	"strings"

	"go-herbal-inspector/internal/inference"
	"go-herbal-inspector/internal/logger"
	"go-herbal-inspector/internal/workerpool"
	"go-herbal-inspector/pkg/models"

	"github.com/sirupsen/logrus"
)

// ModelSource supplies the document classifier
type ModelSource interface {
	DocumentClassifier() (inference.ClassificationModel, error)
}

// TextExtractor reads text from a document image
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
	Engine() string
}

// File is one uploaded document
type File struct {
	Name string
	Data []byte
}

// Validator checks uploaded GACP documents
type Validator struct {
	models  ModelSource
	ocr     TextExtractor
	workers int
}

// Option configures a Validator
type Option func(*Validator)

// WithTextExtractor enables OCR text evidence for image documents
func WithTextExtractor(e TextExtractor) Option {
	return func(v *Validator) { v.ocr = e }
}

// WithWorkers bounds how many documents are validated at once
func WithWorkers(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.workers = n
		}
	}
}

func NewValidator(source ModelSource, opts ...Option) *Validator {
	v := &Validator{models: source, workers: 4}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks every file; results keep the upload order
func (v *Validator) Validate(ctx context.Context, files []File) models.DocumentValidationResponse {
	results := workerpool.Map(ctx, v.workers, files, func(ctx context.Context, _ int, f File) models.DocumentValidationResult {
		return v.ValidateOne(ctx, f)
	})

	overall := true
	for _, r := range results {
		overall = overall && r.IsValid
	}
	return models.DocumentValidationResponse{OverallValid: overall, Results: results}
}

// ValidateOne checks a single file. The document type is taken from the
// file name without its extension.
func (v *Validator) ValidateOne(ctx context.Context, f File) models.DocumentValidationResult {
	docType := DocumentType(f.Name)
	result := models.DocumentValidationResult{
		DocumentType: docType,
		ThaiName:     ThaiName(docType),
		Issues:       []string{},
	}

	if isPDFType(docType) {
		result.IsValid, result.Confidence, result.Issues = validatePDF(docType, f.Data)
	} else {
		result.IsValid, result.Confidence, result.Issues = v.validateImage(ctx, docType, f.Data)
		result.TextEvidence = v.textEvidence(ctx, docType, f.Data)
	}

	logger.WithFields(logrus.Fields{
		"document_type": docType,
		"is_valid":      result.IsValid,
		"confidence":    result.Confidence,
		"issues":        len(result.Issues),
	}).Debug("Document validated")

	return result
}

// DocumentType strips directories and the extension from a file name
func DocumentType(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ThaiName returns the Thai display name of a document type
func ThaiName(docType string) string {
	if name, ok := models.DocumentThaiNames[docType]; ok {
		return name
	}
	return models.UnknownDocumentThaiName
}

func isPDFType(docType string) bool {
	return docType == models.DocCommercialRegistration || docType == models.DocLandDocument
}

func isKnownType(docType string) bool {
	return slices.Contains(models.DocumentTypes, docType)
}
