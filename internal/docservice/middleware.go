package docservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apperrors "go-herbal-inspector/internal/errors"
	"go-herbal-inspector/internal/logger"
	"go-herbal-inspector/pkg/models"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// statusRecorder remembers the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.status = code
		r.written = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.status = http.StatusOK
		r.written = true
	}
	return r.ResponseWriter.Write(b)
}

func requestLogger() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			entry := logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"latency_ms": time.Since(start).Milliseconds(),
				"ip":         r.RemoteAddr,
			})
			if rec.status >= http.StatusInternalServerError {
				entry.Warn("Request completed with server error")
				return
			}
			entry.Info("Request completed")
		})
	}
}

func recovery() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithFields(logrus.Fields{
						"panic":  rec,
						"path":   r.URL.Path,
						"method": r.Method,
					}).Error("Recovered from panic")
					writeError(w, r, apperrors.NewInternalError("panic", nil))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func requestSizeLimiter(maxBytes int64) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func statusCode(err error) int {
	if _, ok := apperrors.As(err); ok {
		return apperrors.GetStatusCode(err)
	}

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs the full error and writes the client-safe envelope
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)

	message := "An unexpected error occurred during processing"
	if appErr, ok := apperrors.As(err); ok {
		message = appErr.ClientMessage()
	} else if code < http.StatusInternalServerError {
		message = http.StatusText(code)
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        r.URL.Path,
		"method":      r.Method,
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	writeJSON(w, code, models.ErrorResponse{
		Success:   false,
		Error:     http.StatusText(code),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Warn("Failed to encode response")
	}
}
