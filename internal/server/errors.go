package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/scrumban/internal/apperr"
)

// statusOf maps an error's taxonomy kind to an HTTP status.
func statusOf(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrInvalidArgument:
		return http.StatusBadRequest
	case apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrConstraintViolation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// fail logs err with full detail and responds with a coarse message.
func fail(c *gin.Context, action string, err error) {
	status := statusOf(err)
	fallback := "failed to " + action
	msg := apperr.Message(err, fallback)
	if errors.Is(err, apperr.ErrNotFound) {
		msg = fallback + ": not found"
	}

	ctx := c.Request.Context()
	attrs := []any{"action", action, "status", status, "path", c.FullPath(), "err", err}
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request failed", attrs...)
	} else {
		slog.WarnContext(ctx, "request rejected", attrs...)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// badRequest responds to a malformed request body.
func badRequest(c *gin.Context, err error) {
	slog.WarnContext(c.Request.Context(), "malformed request", "path", c.FullPath(), "err", err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.DebugContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
