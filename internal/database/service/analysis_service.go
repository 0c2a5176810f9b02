package service

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/ai"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/config"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/repository"
)

// Analysis list caps and confidence bounds
const (
	MaxKeyFindings     = 5
	MaxRecommendations = 5
	MaxRiskFactors     = 3

	DefaultConfidence = 85
	MinConfidence     = 60
	MaxConfidence     = 99
)

// AnalysisService runs the AI write-up for an uploaded report
type AnalysisService interface {
	// Analyze moves a processing report to completed or failed. AI problems
	// never surface as errors; only store failures do.
	Analyze(ctx context.Context, report *models.MedicalReport) error
}

type analysisService struct {
	reportRepo repository.ReportRepository
	client     ai.GenerativeClient
	timeout    time.Duration
	logger     *slog.Logger
}

// NewAnalysisService creates a new analysis service instance
func NewAnalysisService(
	reportRepo repository.ReportRepository,
	client ai.GenerativeClient,
	cfg *config.Config,
	logger *slog.Logger,
) AnalysisService {
	return &analysisService{
		reportRepo: reportRepo,
		client:     client,
		timeout:    cfg.AITimeoutDuration(),
		logger:     logger,
	}
}

func (s *analysisService) Analyze(ctx context.Context, report *models.MedicalReport) error {
	s.logger.Info("🧪 [AnalysisService] Analyzing report",
		"report_id", report.ID,
		"report_type", report.ReportType,
	)

	aiCtx, cancel := context.WithTimeout(ctx, s.timeout)
	completion, err := s.client.AnalyzeDocument(aiCtx, report.ExtractedText, report.ReportType.Label())
	cancel()

	var result *models.AnalysisResult
	if err == nil {
		result = ParseAnalysis(completion.Content)
	}

	if err != nil || result == nil {
		s.logger.Warn("⚠️ [AnalysisService] Analysis failed, marking report failed",
			"report_id", report.ID,
			"error", err,
		)
		if err := s.reportRepo.FailAnalysis(ctx, report.ID); err != nil {
			s.logger.Error("❌ [AnalysisService] Failed to mark report failed", "report_id", report.ID, "error", err)
			return err
		}
		report.AnalysisStatus = models.AnalysisStatusFailed
		report.AIAnalysis = nil
		return nil
	}

	analyzedAt := time.Now()
	if err := s.reportRepo.CompleteAnalysis(ctx, report.ID, result, analyzedAt); err != nil {
		s.logger.Error("❌ [AnalysisService] Failed to store analysis", "report_id", report.ID, "error", err)
		return err
	}

	report.AnalysisStatus = models.AnalysisStatusCompleted
	report.AIAnalysis = result
	report.AnalyzedAt = &analyzedAt

	s.logger.Info("✅ [AnalysisService] Report analyzed",
		"report_id", report.ID,
		"findings", len(result.KeyFindings),
		"recommendations", len(result.Recommendations),
		"risk_factors", len(result.RiskFactors),
		"model", completion.Model,
	)
	return nil
}

var (
	sectionHeader  = regexp.MustCompile(`(?i)(key\s+findings?|recommendations?|risk\s+factors?|summary)\s*:`)
	bulletMarker   = regexp.MustCompile(`(?m)(?:^|\s)[•\-*]\s+`)
	numberedMarker = regexp.MustCompile(`^\d+[.)]`)
)

type sectionKind int

const (
	sectionOther sectionKind = iota
	sectionFindings
	sectionRecommendations
	sectionRisks
)

func classifyHeader(header string) sectionKind {
	h := strings.ToLower(header)
	switch {
	case strings.HasPrefix(h, "key"):
		return sectionFindings
	case strings.HasPrefix(h, "recommendation"):
		return sectionRecommendations
	case strings.HasPrefix(h, "risk"):
		return sectionRisks
	default:
		return sectionOther
	}
}

// ParseAnalysis turns a free-text model reply into an analysis bundle.
// Sections start at "Key Findings:", "Recommendations:" or "Risk Factors:"
// (case-insensitive) and end at the next header. It returns nil for an
// empty reply.
func ParseAnalysis(raw string) *models.AnalysisResult {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}

	sections := map[sectionKind]string{}
	matches := sectionHeader.FindAllStringSubmatchIndex(text, -1)
	for i, m := range matches {
		kind := classifyHeader(text[m[2]:m[3]])
		if kind == sectionOther {
			continue
		}
		if _, seen := sections[kind]; seen {
			continue
		}
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections[kind] = text[m[1]:end]
	}

	return &models.AnalysisResult{
		Summary:         text,
		KeyFindings:     splitItems(sections[sectionFindings], MaxKeyFindings),
		Recommendations: splitItems(sections[sectionRecommendations], MaxRecommendations),
		RiskFactors:     splitItems(sections[sectionRisks], MaxRiskFactors),
		Confidence:      clampConfidence(DefaultConfidence),
	}
}

func splitItems(section string, limit int) []string {
	items := make([]string, 0, limit)
	for _, part := range bulletMarker.Split(section, -1) {
		item := strings.Join(strings.Fields(part), " ")
		item = strings.Trim(item, "*#_ ")
		if item == "" || numberedMarker.MatchString(item) {
			continue
		}
		items = append(items, item)
		if len(items) == limit {
			break
		}
	}
	return items
}

func clampConfidence(v int) int {
	if v < MinConfidence {
		return MinConfidence
	}
	if v > MaxConfidence {
		return MaxConfidence
	}
	return v
}
