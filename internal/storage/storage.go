package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
)

// ErrUploadNotFound indicates the requested upload does not exist
var ErrUploadNotFound = errors.New("upload not found")

// UploadStore archives uploaded images and serves them back by name
type UploadStore interface {
	Save(ctx context.Context, name string, data []byte) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Backend() string
}

// NewUploadName returns a collision-free object name keeping the
// lowercased extension, e.g. "3f0c...e1.jpg".
func NewUploadName(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		ext = "bin"
	}
	return uuid.NewString() + "." + ext
}
