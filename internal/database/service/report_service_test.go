package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/ai"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/repository"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/service"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/extractor"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/testutil"
)

func newReportService(t *testing.T, db *gorm.DB, ext service.TextExtractor, client ai.GenerativeClient) service.ReportService {
	t.Helper()
	cfg := testutil.TestConfig()
	logger := testutil.TestLogger()
	repo := repository.NewReportRepository(db)
	analysis := service.NewAnalysisService(repo, client, cfg, logger)
	return service.NewReportService(repo, ext, analysis, cfg, logger)
}

func countReports(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.MedicalReport{}).Count(&n).Error)
	return n
}

func TestReportService_UploadTextFile(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "patient@example.com")
	svc := newReportService(t, db, extractor.New(nil, nil, testutil.TestLogger()), ai.NewOfflineClient())

	content := "Hemoglobin: 13.5 g/dL. Cholesterol: 180 mg/dL. Ok."
	report, err := svc.Upload(context.Background(), service.UploadInput{
		UserID:     user.ID,
		FileName:   "labs.txt",
		MimeType:   "text/plain; charset=utf-8",
		ReportType: "blood_test",
		Data:       []byte(content),
	})
	require.NoError(t, err)

	assert.Equal(t, content, report.ExtractedText)
	assert.Equal(t, "labs.txt", report.OriginalName)
	assert.Equal(t, "text/plain", report.MimeType)
	assert.Equal(t, int64(len(content)), report.FileSize)
	assert.Equal(t, models.ReportTypeBloodTest, report.ReportType)
	assert.Equal(t, models.AnalysisStatusCompleted, report.AnalysisStatus)
	assert.Equal(t, report.ID.String()+".txt", report.FileName)
	require.NotNil(t, report.AIAnalysis)
	require.NotNil(t, report.AnalyzedAt)

	reports, err := svc.List(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, report.ID, reports[0].ID)
}

func TestReportService_UploadCleansInvalidText(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "patient@example.com")
	svc := newReportService(t, db, extractor.New(nil, nil, testutil.TestLogger()), ai.NewOfflineClient())

	data := append([]byte("Hemoglobin 13.2 g/dL, caf"), 0xE9, 0x00, 0xFF)
	report, err := svc.Upload(context.Background(), service.UploadInput{
		UserID:   user.ID,
		FileName: "labs.txt",
		MimeType: "text/plain",
		Data:     data,
	})
	require.NoError(t, err)

	stored, err := svc.Get(context.Background(), user.ID, report.ID)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(stored.ExtractedText))
	assert.NotContains(t, stored.ExtractedText, "\x00")
	assert.Equal(t, "Hemoglobin 13.2 g/dL, caf\uFFFD\uFFFD", stored.ExtractedText)
}

func TestReportService_DefaultsToOtherCategory(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "patient@example.com")
	svc := newReportService(t, db, testutil.StaticExtractor{Text: "Some readable report text"}, ai.NewOfflineClient())

	report, err := svc.Upload(context.Background(), service.UploadInput{
		UserID:   user.ID,
		FileName: "scan.png",
		MimeType: "image/png",
		Data:     []byte("png-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportTypeOther, report.ReportType)
}

func TestReportService_TooLittleTextStoresNothing(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "patient@example.com")
	svc := newReportService(t, db, extractor.New(nil, nil, testutil.TestLogger()), ai.NewOfflineClient())

	_, err := svc.Upload(context.Background(), service.UploadInput{
		UserID:   user.ID,
		FileName: "short.txt",
		MimeType: "text/plain",
		Data:     []byte("  tiny   "),
	})

	var extractionErr *extractor.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Zero(t, countReports(t, db))
}

func TestReportService_ExtractionFailureStoresNothing(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "patient@example.com")
	failing := testutil.StaticExtractor{Err: &extractor.ExtractionError{Reason: "no text found in image"}}
	svc := newReportService(t, db, failing, ai.NewOfflineClient())

	_, err := svc.Upload(context.Background(), service.UploadInput{
		UserID:   user.ID,
		FileName: "blank.png",
		MimeType: "image/png",
		Data:     []byte("png-bytes"),
	})

	var extractionErr *extractor.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Zero(t, countReports(t, db))
}

func TestReportService_AnalysisFailureKeepsFailedReport(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "patient@example.com")

	client := new(testutil.MockGenerativeClient)
	client.On("AnalyzeDocument", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &ai.ServiceError{Provider: "mock", Err: context.DeadlineExceeded})
	svc := newReportService(t, db, testutil.StaticExtractor{Text: "Glucose 110 mg/dL fasting"}, client)

	report, err := svc.Upload(context.Background(), service.UploadInput{
		UserID:   user.ID,
		FileName: "glucose.txt",
		MimeType: "text/plain",
		Data:     []byte("Glucose 110 mg/dL fasting"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusFailed, report.AnalysisStatus)
	assert.Nil(t, report.AIAnalysis)
	assert.Equal(t, "Glucose 110 mg/dL fasting", report.ExtractedText)
	assert.Equal(t, int64(1), countReports(t, db))
}

func TestReportService_ValidationErrors(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "patient@example.com")
	svc := newReportService(t, db, testutil.StaticExtractor{Text: "plenty of readable text"}, ai.NewOfflineClient())

	tests := []struct {
		name  string
		input service.UploadInput
	}{
		{"empty file", service.UploadInput{FileName: "a.txt", MimeType: "text/plain"}},
		{"missing name", service.UploadInput{FileName: " ", MimeType: "text/plain", Data: []byte("x")}},
		{"path traversal", service.UploadInput{FileName: "../etc/passwd.txt", MimeType: "text/plain", Data: []byte("x")}},
		{"long name", service.UploadInput{FileName: strings.Repeat("a", 256) + ".txt", MimeType: "text/plain", Data: []byte("x")}},
		{"declared too large", service.UploadInput{FileName: "a.pdf", MimeType: "application/pdf", Size: 11 * 1024 * 1024, Data: []byte("x")}},
		{"disallowed type", service.UploadInput{FileName: "run.exe", MimeType: "application/x-msdownload", Data: []byte("x")}},
		{"unknown category", service.UploadInput{FileName: "a.txt", MimeType: "text/plain", ReportType: "dental", Data: []byte("x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.input.UserID = user.ID
			_, err := svc.Upload(context.Background(), tt.input)

			var validationErr *service.ValidationError
			require.ErrorAs(t, err, &validationErr)
		})
	}
	assert.Zero(t, countReports(t, db))
}

func TestReportService_AcceptsWordByExtension(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "patient@example.com")
	svc := newReportService(t, db, extractor.New(nil, nil, testutil.TestLogger()), ai.NewOfflineClient())

	report, err := svc.Upload(context.Background(), service.UploadInput{
		UserID:   user.ID,
		FileName: "letter.docx",
		MimeType: "application/octet-stream",
		Data:     []byte("PK\x03\x04"),
	})
	require.NoError(t, err)
	assert.Equal(t, extractor.WordNotSupportedMessage, report.ExtractedText)
}

func TestReportService_OwnerScoping(t *testing.T) {
	db := testutil.NewTestDB(t)
	owner := testutil.CreateUser(t, db, "owner@example.com")
	other := testutil.CreateUser(t, db, "other@example.com")
	svc := newReportService(t, db, testutil.StaticExtractor{Text: "plenty of readable text"}, ai.NewOfflineClient())
	ctx := context.Background()

	report, err := svc.Upload(ctx, service.UploadInput{
		UserID:   owner.ID,
		FileName: "labs.txt",
		MimeType: "text/plain",
		Data:     []byte("plenty of readable text"),
	})
	require.NoError(t, err)

	_, err = svc.Get(ctx, other.ID, report.ID)
	assert.ErrorIs(t, err, repository.ErrReportNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, other.ID, report.ID), repository.ErrReportNotFound)

	reports, err := svc.List(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, reports)

	require.NoError(t, svc.Delete(ctx, owner.ID, report.ID))
	_, err = svc.Get(ctx, owner.ID, report.ID)
	assert.ErrorIs(t, err, repository.ErrReportNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, owner.ID, uuid.New()), repository.ErrReportNotFound)
}

func TestReportService_RequiresUser(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := newReportService(t, db, testutil.StaticExtractor{}, ai.NewOfflineClient())

	_, err := svc.List(context.Background(), 0)
	assert.True(t, errors.Is(err, service.ErrUnauthorized))
	_, err = svc.Upload(context.Background(), service.UploadInput{})
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}
