// Package tesseract extracts document text with the Tesseract OCR engine.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Extractor runs Tesseract with a fixed language set. A client is created
// per call since gosseract clients are not safe for concurrent use.
type Extractor struct {
	languages []string
}

func New(languages []string) *Extractor {
	return &Extractor{languages: languages}
}

func (e *Extractor) Engine() string {
	return "tesseract"
}

func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(e.languages) > 0 {
		if err := client.SetLanguage(e.languages...); err != nil {
			return "", fmt.Errorf("tesseract languages: %w", err)
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("tesseract image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract text: %w", err)
	}
	return text, nil
}
