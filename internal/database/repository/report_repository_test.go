package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/repository"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/testutil"
)

func newReport(ownerID uint, status models.AnalysisStatus, createdAt time.Time) *models.MedicalReport {
	id := uuid.New()
	return &models.MedicalReport{
		ID:             id,
		OwnerID:        ownerID,
		FileName:       id.String() + ".txt",
		OriginalName:   "labs.txt",
		MimeType:       "text/plain",
		FileSize:       42,
		ReportType:     models.ReportTypeBloodTest,
		AnalysisStatus: status,
		ExtractedText:  "Hemoglobin 13.5 g/dL",
		CreatedAt:      createdAt,
	}
}

func setupReportRepo(t *testing.T) (repository.ReportRepository, *gorm.DB, *models.User, *models.User) {
	db := testutil.NewTestDB(t)
	owner := testutil.CreateUser(t, db, "owner@example.com")
	other := testutil.CreateUser(t, db, "other@example.com")
	return repository.NewReportRepository(db), db, owner, other
}

func TestReportRepository_FindIsScopedByOwner(t *testing.T) {
	repo, _, owner, other := setupReportRepo(t)
	ctx := context.Background()

	report := newReport(owner.ID, models.AnalysisStatusProcessing, time.Now())
	require.NoError(t, repo.Create(ctx, report))

	found, err := repo.FindByIDForOwner(ctx, report.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, found.ID)
	assert.Nil(t, found.AIAnalysis)

	_, err = repo.FindByIDForOwner(ctx, report.ID, other.ID)
	assert.ErrorIs(t, err, repository.ErrReportNotFound)
}

func TestReportRepository_ListNewestFirst(t *testing.T) {
	repo, _, owner, other := setupReportRepo(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	older := newReport(owner.ID, models.AnalysisStatusFailed, base)
	newer := newReport(owner.ID, models.AnalysisStatusProcessing, base.Add(time.Minute))
	foreign := newReport(other.ID, models.AnalysisStatusProcessing, base.Add(2*time.Minute))
	for _, r := range []*models.MedicalReport{older, newer, foreign} {
		require.NoError(t, repo.Create(ctx, r))
	}

	reports, err := repo.ListByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, newer.ID, reports[0].ID)
	assert.Equal(t, older.ID, reports[1].ID)
}

func TestReportRepository_DeleteForOwner(t *testing.T) {
	repo, _, owner, other := setupReportRepo(t)
	ctx := context.Background()

	report := newReport(owner.ID, models.AnalysisStatusProcessing, time.Now())
	require.NoError(t, repo.Create(ctx, report))

	assert.ErrorIs(t, repo.DeleteForOwner(ctx, report.ID, other.ID), repository.ErrReportNotFound)
	require.NoError(t, repo.DeleteForOwner(ctx, report.ID, owner.ID))

	_, err := repo.FindByIDForOwner(ctx, report.ID, owner.ID)
	assert.ErrorIs(t, err, repository.ErrReportNotFound)
	reports, err := repo.ListByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, reports)

	assert.ErrorIs(t, repo.DeleteForOwner(ctx, report.ID, owner.ID), repository.ErrReportNotFound)
}

func TestReportRepository_CompleteAnalysisOnlyOnce(t *testing.T) {
	repo, _, owner, _ := setupReportRepo(t)
	ctx := context.Background()

	report := newReport(owner.ID, models.AnalysisStatusProcessing, time.Now())
	require.NoError(t, repo.Create(ctx, report))

	result := &models.AnalysisResult{
		Summary:         "Mild anemia.",
		KeyFindings:     []string{"Hemoglobin slightly low"},
		Recommendations: []string{"Repeat test in 3 months"},
		RiskFactors:     []string{},
		Confidence:      85,
	}
	analyzedAt := time.Now()
	require.NoError(t, repo.CompleteAnalysis(ctx, report.ID, result, analyzedAt))

	stored, err := repo.FindByIDForOwner(ctx, report.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusCompleted, stored.AnalysisStatus)
	require.NotNil(t, stored.AIAnalysis)
	assert.Equal(t, "Mild anemia.", stored.AIAnalysis.Summary)
	assert.Equal(t, []string{"Hemoglobin slightly low"}, stored.AIAnalysis.KeyFindings)
	require.NotNil(t, stored.AnalyzedAt)

	assert.ErrorIs(t, repo.CompleteAnalysis(ctx, report.ID, result, analyzedAt), repository.ErrReportNotProcessing)
	assert.ErrorIs(t, repo.FailAnalysis(ctx, report.ID), repository.ErrReportNotProcessing)
}

func TestReportRepository_FailAnalysisLeavesNoBundle(t *testing.T) {
	repo, _, owner, _ := setupReportRepo(t)
	ctx := context.Background()

	report := newReport(owner.ID, models.AnalysisStatusProcessing, time.Now())
	require.NoError(t, repo.Create(ctx, report))

	require.NoError(t, repo.FailAnalysis(ctx, report.ID))

	stored, err := repo.FindByIDForOwner(ctx, report.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusFailed, stored.AnalysisStatus)
	assert.Nil(t, stored.AIAnalysis)
	assert.Nil(t, stored.AnalyzedAt)
}

func TestReportRepository_FindLatestCompleted(t *testing.T) {
	repo, _, owner, other := setupReportRepo(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	_, err := repo.FindLatestCompleted(ctx, owner.ID)
	assert.ErrorIs(t, err, repository.ErrReportNotFound)

	oldCompleted := newReport(owner.ID, models.AnalysisStatusCompleted, base)
	oldCompleted.OriginalName = "old.txt"
	newCompleted := newReport(owner.ID, models.AnalysisStatusCompleted, base.Add(time.Minute))
	newCompleted.OriginalName = "new.txt"
	newestFailed := newReport(owner.ID, models.AnalysisStatusFailed, base.Add(2*time.Minute))
	foreign := newReport(other.ID, models.AnalysisStatusCompleted, base.Add(3*time.Minute))
	for _, r := range []*models.MedicalReport{oldCompleted, newCompleted, newestFailed, foreign} {
		require.NoError(t, repo.Create(ctx, r))
	}

	latest, err := repo.FindLatestCompleted(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "new.txt", latest.OriginalName)
}
