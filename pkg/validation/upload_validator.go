package validation

import (
	"path/filepath"
	"strings"

	apperrors "go-herbal-inspector/internal/errors"
	"go-herbal-inspector/pkg/models"
)

// maxFilenameLength bounds client-supplied upload names
const maxFilenameLength = 255

// UploadValidator handles upload filename validation logic
type UploadValidator struct {
	allowedExtensions []string
}

// NewUploadValidator creates a validator accepting the supported image formats
func NewUploadValidator() *UploadValidator {
	return &UploadValidator{
		allowedExtensions: models.SupportedFormats,
	}
}

// NewUploadValidatorWithOptions creates a validator with custom extensions,
// given without the leading dot
func NewUploadValidatorWithOptions(extensions []string) *UploadValidator {
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		normalized = append(normalized, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}
	return &UploadValidator{
		allowedExtensions: normalized,
	}
}

// ValidateFilename checks that name is a plain file name with an allowed
// extension and returns the lowercased extension
func (v *UploadValidator) ValidateFilename(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", apperrors.NewValidationError("Filename cannot be empty", nil)
	}
	if len(name) > maxFilenameLength {
		return "", apperrors.NewValidationError("Filename is too long", nil)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || strings.ContainsRune(name, 0) {
		return "", apperrors.NewValidationError("Filename must not contain path elements", nil)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return "", apperrors.NewValidationError("Filename has no extension", nil)
	}
	if !v.isExtensionAllowed(ext) {
		return "", apperrors.NewValidationError("File type not allowed", nil).
			WithDetails("allowed: " + strings.Join(v.allowedExtensions, ", "))
	}
	return ext, nil
}

// isExtensionAllowed checks if the extension is in the allowed list
func (v *UploadValidator) isExtensionAllowed(ext string) bool {
	for _, allowed := range v.allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
