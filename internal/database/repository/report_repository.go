package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/models"
)

// ReportRepository defines the interface for medical report data operations.
// Every read and write is scoped by the owner id.
type ReportRepository interface {
	Create(ctx context.Context, report *models.MedicalReport) error
	FindByIDForOwner(ctx context.Context, id uuid.UUID, ownerID uint) (*models.MedicalReport, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]models.MedicalReport, error)
	DeleteForOwner(ctx context.Context, id uuid.UUID, ownerID uint) error

	// FindLatestCompleted returns the owner's newest report whose analysis completed
	FindLatestCompleted(ctx context.Context, ownerID uint) (*models.MedicalReport, error)

	// Status transitions; both only apply to reports still processing
	CompleteAnalysis(ctx context.Context, id uuid.UUID, result *models.AnalysisResult, analyzedAt time.Time) error
	FailAnalysis(ctx context.Context, id uuid.UUID) error
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository instance
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *models.MedicalReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *reportRepository) FindByIDForOwner(ctx context.Context, id uuid.UUID, ownerID uint) (*models.MedicalReport, error) {
	var report models.MedicalReport
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

func (r *reportRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.MedicalReport, error) {
	var reports []models.MedicalReport
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *reportRepository) DeleteForOwner(ctx context.Context, id uuid.UUID, ownerID uint) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&models.MedicalReport{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReportNotFound
	}
	return nil
}

func (r *reportRepository) FindLatestCompleted(ctx context.Context, ownerID uint) (*models.MedicalReport, error) {
	var report models.MedicalReport
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND analysis_status = ?", ownerID, models.AnalysisStatusCompleted).
		Order("created_at DESC").
		Take(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &report, nil
}

func (r *reportRepository) CompleteAnalysis(ctx context.Context, id uuid.UUID, result *models.AnalysisResult, analyzedAt time.Time) error {
	if result == nil {
		return errors.New("analysis result is required to complete a report")
	}

	res := r.db.WithContext(ctx).
		Model(&models.MedicalReport{}).
		Where("id = ? AND analysis_status = ?", id, models.AnalysisStatusProcessing).
		Updates(models.MedicalReport{
			AnalysisStatus: models.AnalysisStatusCompleted,
			AIAnalysis:     result,
			AnalyzedAt:     &analyzedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrReportNotProcessing
	}
	return nil
}

func (r *reportRepository) FailAnalysis(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.MedicalReport{}).
		Where("id = ? AND analysis_status = ?", id, models.AnalysisStatusProcessing).
		Update("analysis_status", models.AnalysisStatusFailed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrReportNotProcessing
	}
	return nil
}

// Repository errors
var (
	ErrReportNotFound      = errors.New("report not found")
	ErrReportNotProcessing = errors.New("report analysis already finalized")
)
