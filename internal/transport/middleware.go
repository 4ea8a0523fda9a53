package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	apperrors "go-herbal-inspector/internal/errors"
	"go-herbal-inspector/internal/logger"
	"go-herbal-inspector/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request completed with server error")
			return
		}
		entry.Info("Request completed")
	}
}

// recovery turns a panic into the standard 500 envelope
func recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(logrus.Fields{
					"panic":  r,
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				}).Error("Recovered from panic")
				respondError(c, apperrors.NewInternalError("panic", nil))
			}
		}()
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, c.Errors.Last().Err)
		}
	}
}

func determineStatusCode(err error) int {
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

// respondError logs the full error and writes the client-safe envelope
func respondError(c *gin.Context, err error) {
	code := determineStatusCode(err)

	message := "An unexpected error occurred during processing"
	if appErr, ok := apperrors.As(err); ok {
		message = appErr.ClientMessage()
	} else if code < http.StatusInternalServerError {
		message = http.StatusText(code)
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Success:   false,
		Error:     http.StatusText(code),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}
