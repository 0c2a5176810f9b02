package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/repository"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/service"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/extractor"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/middleware"
)

// unavailableMessage is returned for store and dependency failures
const unavailableMessage = "Service temporarily unavailable, please try again"

// writeServiceError maps errors shared by every handler to HTTP responses.
// Anything unrecognized is treated as a transient backend outage.
func writeServiceError(c *gin.Context, logger *slog.Logger, err error) {
	var validationErr *service.ValidationError
	var extractionErr *extractor.ExtractionError

	switch {
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason, "field": validationErr.Field})
	case errors.As(err, &extractionErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": extractionErr.Reason})
	case errors.Is(err, repository.ErrReportNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
	case errors.Is(err, repository.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat session not found"})
	case errors.Is(err, repository.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	default:
		logger.Error("❌ [Handler] Backend unavailable", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": unavailableMessage, "retryable": true})
	}
}

// requireUser returns the authenticated user id or writes 401
func requireUser(c *gin.Context, logger *slog.Logger) (uint, bool) {
	userID := middleware.UserID(c)
	if userID == 0 {
		logger.Error("❌ [Handler] User ID not found in context", "path", c.FullPath())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return userID, true
}
