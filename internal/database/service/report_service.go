package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/config"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/repository"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/extractor"
)

// MinExtractedChars is the least extracted text an upload needs to be stored
const MinExtractedChars = 10

// allowedMimeTypes lists the declared types accepted for upload
var allowedMimeTypes = map[string]bool{
	"application/pdf":    true,
	"text/plain":         true,
	"image/jpeg":         true,
	"image/jpg":          true,
	"image/png":          true,
	"image/gif":          true,
	"image/bmp":          true,
	"image/webp":         true,
	"image/tiff":         true,
	extractor.MimeMSWord: true,
	extractor.MimeDocx:   true,
}

// allowedExtensions are accepted even when the browser sends a generic MIME type
var allowedExtensions = map[string]bool{
	".txt":  true,
	".doc":  true,
	".docx": true,
}

// TextExtractor converts uploaded bytes into text
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType, fileName string) (string, error)
}

// UploadInput carries one uploaded file
type UploadInput struct {
	UserID     uint
	FileName   string
	MimeType   string
	Size       int64
	ReportType string
	Data       []byte
}

// ReportService defines the interface for medical report business logic
type ReportService interface {
	Upload(ctx context.Context, in UploadInput) (*models.MedicalReport, error)
	List(ctx context.Context, userID uint) ([]models.MedicalReport, error)
	Get(ctx context.Context, userID uint, reportID uuid.UUID) (*models.MedicalReport, error)
	Delete(ctx context.Context, userID uint, reportID uuid.UUID) error
}

type reportService struct {
	reportRepo repository.ReportRepository
	extractor  TextExtractor
	analysis   AnalysisService
	cfg        *config.Config
	logger     *slog.Logger
}

// NewReportService creates a new report service instance
func NewReportService(
	reportRepo repository.ReportRepository,
	extractor TextExtractor,
	analysis AnalysisService,
	cfg *config.Config,
	logger *slog.Logger,
) ReportService {
	return &reportService{
		reportRepo: reportRepo,
		extractor:  extractor,
		analysis:   analysis,
		cfg:        cfg,
		logger:     logger,
	}
}

// Upload validates and extracts a file, stores the report, and analyzes it
// before returning. Extraction failures store nothing; analysis failures
// leave a failed report.
func (s *reportService) Upload(ctx context.Context, in UploadInput) (*models.MedicalReport, error) {
	if in.UserID == 0 {
		return nil, ErrUnauthorized
	}

	s.logger.Info("📤 [ReportService] Upload received",
		"user_id", in.UserID,
		"mime_type", in.MimeType,
		"size", len(in.Data),
	)

	reportType, err := s.validateUpload(&in)
	if err != nil {
		s.logger.Warn("⚠️ [ReportService] Upload rejected", "user_id", in.UserID, "error", err)
		return nil, err
	}

	text, err := s.extractor.Extract(ctx, in.Data, in.MimeType, in.FileName)
	if err != nil {
		s.logger.Warn("⚠️ [ReportService] Extraction failed", "user_id", in.UserID, "error", err)
		return nil, err
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinExtractedChars {
		return nil, &extractor.ExtractionError{Reason: "the file does not contain enough readable text"}
	}

	report := &models.MedicalReport{
		ID:             uuid.New(),
		OwnerID:        in.UserID,
		OriginalName:   in.FileName,
		MimeType:       in.MimeType,
		FileSize:       int64(len(in.Data)),
		ReportType:     reportType,
		AnalysisStatus: models.AnalysisStatusProcessing,
		ExtractedText:  text,
	}
	report.FileName = report.ID.String() + strings.ToLower(filepath.Ext(in.FileName))

	if err := s.reportRepo.Create(ctx, report); err != nil {
		s.logger.Error("❌ [ReportService] Failed to create report", "error", err)
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	if err := s.analysis.Analyze(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to record analysis: %w", err)
	}

	stored, err := s.reportRepo.FindByIDForOwner(ctx, report.ID, in.UserID)
	if err != nil {
		s.logger.Error("❌ [ReportService] Failed to reload report", "report_id", report.ID, "error", err)
		return nil, err
	}

	s.logger.Info("✅ [ReportService] Report stored",
		"report_id", stored.ID,
		"status", stored.AnalysisStatus,
	)
	return stored, nil
}

// validateUpload checks name, size, type and category; it normalizes the MIME type in place
func (s *reportService) validateUpload(in *UploadInput) (models.ReportType, error) {
	name := strings.TrimSpace(in.FileName)
	if name == "" {
		return "", newValidationError("file", "a file name is required")
	}
	if utf8.RuneCountInString(name) > s.cfg.MaxFilenameLength {
		return "", newValidationError("file", fmt.Sprintf("file name must be at most %d characters", s.cfg.MaxFilenameLength))
	}
	if !safeFileName(name) {
		return "", newValidationError("file", "file name contains characters that are not allowed")
	}
	in.FileName = name

	size := int64(len(in.Data))
	if in.Size > size {
		size = in.Size
	}
	if len(in.Data) == 0 {
		return "", newValidationError("file", "file is empty")
	}
	if size > s.cfg.MaxFileSize {
		return "", newValidationError("file", fmt.Sprintf("file exceeds the %d MB limit", s.cfg.MaxFileSize/(1024*1024)))
	}

	mime := strings.ToLower(strings.TrimSpace(in.MimeType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedMimeTypes[mime] && !allowedExtensions[ext] {
		return "", newValidationError("file", "file type is not allowed; upload a PDF, image, text or Word document")
	}
	in.MimeType = mime

	reportType := models.ReportType(strings.ToLower(strings.TrimSpace(in.ReportType)))
	if reportType == "" {
		reportType = models.ReportTypeOther
	}
	if !reportType.Valid() {
		return "", newValidationError("reportType", "unknown report type")
	}

	return reportType, nil
}

// safeFileName rejects path components and characters unsafe on common filesystems
func safeFileName(name string) bool {
	if strings.Contains(name, "..") {
		return false
	}
	for _, r := range name {
		if unicode.IsControl(r) || strings.ContainsRune(`/\<>:"|?*`, r) {
			return false
		}
	}
	return true
}

func (s *reportService) List(ctx context.Context, userID uint) ([]models.MedicalReport, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}
	return s.reportRepo.ListByOwner(ctx, userID)
}

func (s *reportService) Get(ctx context.Context, userID uint, reportID uuid.UUID) (*models.MedicalReport, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}
	return s.reportRepo.FindByIDForOwner(ctx, reportID, userID)
}

func (s *reportService) Delete(ctx context.Context, userID uint, reportID uuid.UUID) error {
	if userID == 0 {
		return ErrUnauthorized
	}
	if err := s.reportRepo.DeleteForOwner(ctx, reportID, userID); err != nil {
		return err
	}
	s.logger.Info("🗑️ [ReportService] Report deleted", "report_id", reportID, "user_id", userID)
	return nil
}
