package validation

import (
	"strings"
	"testing"

	apperrors "go-herbal-inspector/internal/errors"
)

func TestUploadValidator_ValidateFilename(t *testing.T) {
	validator := NewUploadValidator()

	tests := []struct {
		name    string
		file    string
		wantExt string
		wantErr bool
	}{
		{"jpeg", "leaf.jpg", "jpg", false},
		{"uppercase extension", "LEAF.JPEG", "jpeg", false},
		{"webp", "sample.webp", "webp", false},
		{"uuid name", "3f0c9a1e-0000-4000-8000-000000000001.png", "png", false},
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"no extension", "leaf", "", true},
		{"pdf not allowed", "report.pdf", "", true},
		{"traversal", "../secret.jpg", "", true},
		{"nested", "dir/leaf.jpg", "", true},
		{"windows separator", `dir\leaf.jpg`, "", true},
		{"too long", strings.Repeat("a", 300) + ".jpg", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := validator.ValidateFilename(tt.file)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.file)
				}
				if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
					t.Errorf("Expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if ext != tt.wantExt {
				t.Errorf("Expected extension %s, got %s", tt.wantExt, ext)
			}
		})
	}
}

func TestUploadValidatorWithOptions(t *testing.T) {
	validator := NewUploadValidatorWithOptions([]string{".PDF", "png"})

	if ext, err := validator.ValidateFilename("commercial_registration.pdf"); err != nil || ext != "pdf" {
		t.Errorf("Expected pdf to be accepted, got %q, %v", ext, err)
	}
	if _, err := validator.ValidateFilename("farm_map.jpg"); err == nil {
		t.Error("Expected jpg to be rejected")
	}
}
