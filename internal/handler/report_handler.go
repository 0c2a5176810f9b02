package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/config"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/service"
)

// ReportHandler handles medical report upload and retrieval
type ReportHandler struct {
	service     service.ReportService
	maxFileSize int64
	logger      *slog.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(service service.ReportService, cfg *config.Config, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		service:     service,
		maxFileSize: cfg.MaxFileSize,
		logger:      logger,
	}
}

// Upload accepts a multipart "file" with an optional "reportType" and
// returns the stored report after analysis.
func (h *ReportHandler) Upload(c *gin.Context) {
	userID, ok := requireUser(c, h.logger)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		h.logger.Warn("⚠️ [ReportHandler] File not provided", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "File not provided"})
		return
	}

	if header.Size > h.maxFileSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("file exceeds the %d MB limit", h.maxFileSize/(1024*1024)),
			"field": "file",
		})
		return
	}

	h.logger.Info("📁 [ReportHandler] Processing file",
		"user_id", userID,
		"filename", header.Filename,
		"size", header.Size,
	)

	file, err := header.Open()
	if err != nil {
		h.logger.Error("❌ [ReportHandler] Failed to open uploaded file", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read uploaded file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		h.logger.Error("❌ [ReportHandler] Failed to read uploaded file", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read uploaded file"})
		return
	}

	report, err := h.service.Upload(c.Request.Context(), service.UploadInput{
		UserID:     userID,
		FileName:   header.Filename,
		MimeType:   header.Header.Get("Content-Type"),
		Size:       int64(len(data)),
		ReportType: c.PostForm("reportType"),
		Data:       data,
	})
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"report": report})
}

// List returns the caller's reports, newest first
func (h *ReportHandler) List(c *gin.Context) {
	userID, ok := requireUser(c, h.logger)
	if !ok {
		return
	}

	reports, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports, "total": len(reports)})
}

// Get returns one report owned by the caller
func (h *ReportHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c, h.logger)
	if !ok {
		return
	}
	reportID, ok := h.reportID(c)
	if !ok {
		return
	}

	report, err := h.service.Get(c.Request.Context(), userID, reportID)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

// Delete removes one report owned by the caller
func (h *ReportHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c, h.logger)
	if !ok {
		return
	}
	reportID, ok := h.reportID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, reportID); err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Report deleted"})
}

func (h *ReportHandler) reportID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		// A malformed id cannot name any report
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return uuid.Nil, false
	}
	return id, true
}
