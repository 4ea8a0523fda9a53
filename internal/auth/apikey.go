package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"go-herbal-inspector/internal/logger"
	"go-herbal-inspector/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HeaderAPIKey carries the token when no Authorization header is sent
const HeaderAPIKey = "X-API-Key"

// RequireAPIKey rejects requests whose token does not match key.
// An empty key disables the check.
func RequireAPIKey(key string) gin.HandlerFunc {
	if key == "" {
		return func(c *gin.Context) { c.Next() }
	}
	expected := []byte(key)

	return func(c *gin.Context) {
		token := TokenFromRequest(c.Request)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			logger.WithFields(logrus.Fields{
				"path":      c.Request.URL.Path,
				"ip":        c.ClientIP(),
				"has_token": token != "",
			}).Warn("Rejected request with invalid API key")

			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Success:   false,
				Error:     http.StatusText(http.StatusUnauthorized),
				Message:   "Invalid or missing API key",
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			})
			return
		}
		c.Next()
	}
}

// TokenFromRequest returns the bearer token, falling back to X-API-Key
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
	}
	return strings.TrimSpace(r.Header.Get(HeaderAPIKey))
}
