package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReportType is the category a user declares for an uploaded document
type ReportType string

const (
	ReportTypeBloodTest    ReportType = "blood_test"
	ReportTypeXRay         ReportType = "xray"
	ReportTypeMRI          ReportType = "mri"
	ReportTypeCTScan       ReportType = "ct_scan"
	ReportTypePrescription ReportType = "prescription"
	ReportTypeLabReport    ReportType = "lab_report"
	ReportTypeOther        ReportType = "other"
)

// Valid reports whether t is one of the known categories
func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeBloodTest, ReportTypeXRay, ReportTypeMRI, ReportTypeCTScan,
		ReportTypePrescription, ReportTypeLabReport, ReportTypeOther:
		return true
	}
	return false
}

// Label returns a human-readable category name used in prompts
func (t ReportType) Label() string {
	switch t {
	case ReportTypeBloodTest:
		return "Blood Test"
	case ReportTypeXRay:
		return "X-Ray"
	case ReportTypeMRI:
		return "MRI"
	case ReportTypeCTScan:
		return "CT Scan"
	case ReportTypePrescription:
		return "Prescription"
	case ReportTypeLabReport:
		return "Lab Report"
	default:
		return "Other"
	}
}

// AnalysisStatus represents the processing state of a report
type AnalysisStatus string

const (
	AnalysisStatusPending    AnalysisStatus = "pending"
	AnalysisStatusProcessing AnalysisStatus = "processing"
	AnalysisStatusCompleted  AnalysisStatus = "completed"
	AnalysisStatusFailed     AnalysisStatus = "failed"
)

// AnalysisResult is the structured write-up attached to a completed report
type AnalysisResult struct {
	Summary         string   `json:"summary"`
	KeyFindings     []string `json:"key_findings"`
	Recommendations []string `json:"recommendations"`
	RiskFactors     []string `json:"risk_factors"`
	Confidence      int      `json:"confidence"`
}

// MedicalReport is the processing record of one uploaded document.
// Only the extracted text is kept; the uploaded bytes are never stored.
type MedicalReport struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID        uint            `gorm:"not null;index:idx_reports_owner_created" json:"owner_id"`
	FileName       string          `gorm:"not null;size:255" json:"file_name"`
	OriginalName   string          `gorm:"not null;size:255" json:"original_name"`
	MimeType       string          `gorm:"not null;size:255" json:"mime_type"`
	FileSize       int64           `gorm:"not null;default:0" json:"file_size"`
	ReportType     ReportType      `gorm:"type:varchar(32);not null;default:other" json:"report_type"`
	AnalysisStatus AnalysisStatus  `gorm:"type:varchar(20);not null;default:pending;index" json:"analysis_status"`
	ExtractedText  string          `gorm:"type:text;not null" json:"extracted_text"`
	AIAnalysis     *AnalysisResult `gorm:"serializer:json" json:"ai_analysis,omitempty"`
	AnalyzedAt     *time.Time      `json:"analyzed_at,omitempty"`
	CreatedAt      time.Time       `gorm:"index:idx_reports_owner_created" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	Owner User `gorm:"foreignKey:OwnerID" json:"-"`
}

// TableName overrides the table name
func (MedicalReport) TableName() string {
	return "medical_reports"
}

// BeforeCreate hook to generate UUID if not set
func (r *MedicalReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// IsCompleted returns true if the analysis bundle is available
func (r *MedicalReport) IsCompleted() bool {
	return r.AnalysisStatus == AnalysisStatusCompleted
}

// IsFailed returns true if the analysis step failed
func (r *MedicalReport) IsFailed() bool {
	return r.AnalysisStatus == AnalysisStatusFailed
}
