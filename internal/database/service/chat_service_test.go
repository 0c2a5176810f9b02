package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/ai"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/repository"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/service"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/testutil"
)

func isChatRequest(messages []ai.Message) bool {
	return !testutil.IsTitleRequest(messages)
}

func newChatService(t *testing.T, db *gorm.DB, client ai.GenerativeClient, cache database.ChatHistoryStore) service.ChatService {
	t.Helper()
	return service.NewChatService(
		repository.NewChatRepository(db),
		repository.NewReportRepository(db),
		client,
		cache,
		testutil.TestConfig(),
		testutil.TestLogger(),
	)
}

func TestChatService_ConversationGrowsByTwo(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "patient@example.com")

	var lastPrompt []ai.Message
	client := new(testutil.MockGenerativeClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(testutil.IsTitleRequest)).
		Return(testutil.Completion("Blood Pressure Questions"), nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(isChatRequest)).
		Run(func(args mock.Arguments) { lastPrompt = args.Get(1).([]ai.Message) }).
		Return(testutil.Completion("Here is some general information."), nil)

	svc := newChatService(t, db, client, nil)
	ctx := context.Background()

	var result *service.SendResult
	for i := 0; i < 3; i++ {
		var err error
		result, err = svc.Send(ctx, service.SendInput{
			UserID:    user.ID,
			SessionID: "medication-42",
			Message:   "Is my blood pressure too high?",
		})
		require.NoError(t, err)
		assert.False(t, result.Degraded)
	}

	assert.Equal(t, 6, result.Session.MessageCount)
	assert.Equal(t, "Blood Pressure Questions", result.Session.Title)
	assert.Equal(t, models.SessionTypeMedication, result.Session.Type)
	assert.Equal(t, "Here is some general information.", result.Reply.Content)
	assert.Equal(t, "mock-model", result.Reply.Metadata["model"])

	// system prompt, four stored messages, then the new question
	require.Len(t, lastPrompt, 6)
	assert.Equal(t, ai.RoleSystem, lastPrompt[0].Role)
	assert.Equal(t, ai.RoleUser, lastPrompt[1].Role)
	assert.Equal(t, ai.RoleAssistant, lastPrompt[2].Role)
	assert.Equal(t, ai.RoleUser, lastPrompt[5].Role)

	messages, err := repository.NewChatRepository(db).GetMessages(ctx, result.Session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 6)
	for i, m := range messages {
		assert.Equal(t, i+1, m.Sequence)
	}
	client.AssertNumberOfCalls(t, "Complete", 4)
}

func TestChatService_ProviderTimeoutStoresFallback(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "patient@example.com")

	cfg := testutil.TestConfig()
	cfg.AITimeout = 1
	svc := service.NewChatService(
		repository.NewChatRepository(db),
		repository.NewReportRepository(db),
		testutil.SlowClient{},
		nil,
		cfg,
		testutil.TestLogger(),
	)

	result, err := svc.Send(context.Background(), service.SendInput{
		UserID:    user.ID,
		SessionID: "report-1",
		Message:   "What does my report say?",
		Type:      "report",
	})
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.Equal(t, service.FallbackReply, result.Reply.Content)
	assert.Equal(t, service.DefaultTitle, result.Session.Title)
	assert.Equal(t, 2, result.Session.MessageCount)

	messages, err := repository.NewChatRepository(db).GetMessages(context.Background(), result.Session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.True(t, messages[1].IsFallback())
	assert.Equal(t, true, messages[1].Metadata["error"])
}

func completedReport(t *testing.T, db *gorm.DB, ownerID uint, text, summary string) {
	t.Helper()
	report := insertProcessingReport(t, db, ownerID, text)
	err := repository.NewReportRepository(db).CompleteAnalysis(context.Background(), report.ID,
		&models.AnalysisResult{Summary: summary, Confidence: service.DefaultConfidence}, time.Now())
	require.NoError(t, err)
}

func TestChatService_ReportContextUsesNewestCompletedReport(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "patient@example.com")

	completedReport(t, db, user.ID, "older report text", "older summary")
	time.Sleep(10 * time.Millisecond)
	completedReport(t, db, user.ID, "newest report text", "newest summary")
	time.Sleep(10 * time.Millisecond)
	insertProcessingReport(t, db, user.ID, "still processing text")

	var systemPrompt string
	client := new(testutil.MockGenerativeClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(testutil.IsTitleRequest)).
		Return(testutil.Completion("Cholesterol Follow Up"), nil)
	client.On("Complete", mock.Anything, mock.MatchedBy(isChatRequest)).
		Run(func(args mock.Arguments) { systemPrompt = args.Get(1).([]ai.Message)[0].Content }).
		Return(testutil.Completion("Your latest report shows..."), nil)

	svc := newChatService(t, db, client, nil)
	_, err := svc.Send(context.Background(), service.SendInput{
		UserID:    user.ID,
		SessionID: "report-7",
		Message:   "Explain my results",
	})
	require.NoError(t, err)

	assert.Contains(t, systemPrompt, "newest report text")
	assert.Contains(t, systemPrompt, "newest summary")
	assert.Contains(t, systemPrompt, "Blood Test")
	assert.NotContains(t, systemPrompt, "older report text")
	assert.NotContains(t, systemPrompt, "still processing text")

	var stored []models.ChatMessage
	require.NoError(t, db.Find(&stored).Error)
	for _, m := range stored {
		assert.NotEqual(t, models.RoleSystem, m.Role)
		assert.NotContains(t, m.Content, "newest report text")
	}
}

func TestChatService_MedicationSessionSkipsReports(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "patient@example.com")
	completedReport(t, db, user.ID, "private report text", "summary")

	var systemPrompt string
	client := new(testutil.MockGenerativeClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(testutil.IsTitleRequest)).
		Return(testutil.Completion("Ibuprofen Side Effects"), nil)
	client.On("Complete", mock.Anything, mock.MatchedBy(isChatRequest)).
		Run(func(args mock.Arguments) { systemPrompt = args.Get(1).([]ai.Message)[0].Content }).
		Return(testutil.Completion("Common side effects include..."), nil)

	svc := newChatService(t, db, client, nil)
	result, err := svc.Send(context.Background(), service.SendInput{
		UserID:    user.ID,
		SessionID: "chat-1",
		Message:   "What are the side effects of ibuprofen?",
		Type:      "medication",
	})
	require.NoError(t, err)

	assert.Equal(t, models.SessionTypeMedication, result.Session.Type)
	assert.NotContains(t, systemPrompt, "private report text")
}

func TestChatService_SessionIDOwnedByAnotherUser(t *testing.T) {
	db := testutil.NewTestDB(t)
	owner := testutil.CreateUser(t, db, "owner@example.com")
	intruder := testutil.CreateUser(t, db, "intruder@example.com")

	svc := newChatService(t, db, ai.NewOfflineClient(), nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, service.SendInput{UserID: owner.ID, SessionID: "report-shared", Message: "hello there"})
	require.NoError(t, err)

	_, err = svc.Send(ctx, service.SendInput{UserID: intruder.ID, SessionID: "report-shared", Message: "hello there"})
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestChatService_WritesThroughCache(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "patient@example.com")
	_, rdb := testutil.NewMiniRedis(t)
	cache := database.NewRedisClientFromClient(rdb, testutil.TestConfig(), testutil.TestLogger())

	svc := newChatService(t, db, ai.NewOfflineClient(), cache)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Send(ctx, service.SendInput{UserID: user.ID, SessionID: "report-9", Message: "what is cholesterol?"})
		require.NoError(t, err)
	}

	cached, err := cache.GetChatHistory(ctx, "report-9")
	require.NoError(t, err)
	require.Len(t, cached, 4)
	assert.Equal(t, models.RoleUser, cached[0].Role)
	assert.Equal(t, models.RoleAssistant, cached[3].Role)
}

func TestChatService_Validation(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "patient@example.com")
	svc := newChatService(t, db, ai.NewOfflineClient(), nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		input service.SendInput
	}{
		{"blank message", service.SendInput{UserID: user.ID, SessionID: "report-1", Message: "   "}},
		{"blank session", service.SendInput{UserID: user.ID, SessionID: "", Message: "hi"}},
		{"bad type", service.SendInput{UserID: user.ID, SessionID: "report-1", Message: "hi", Type: "dental"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Send(ctx, tt.input)
			var validationErr *service.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}

	_, err := svc.Send(ctx, service.SendInput{SessionID: "report-1", Message: "hi"})
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestResolveSessionType(t *testing.T) {
	tests := []struct {
		declared  models.SessionType
		sessionID string
		want      models.SessionType
	}{
		{models.SessionTypeReport, "medication-1", models.SessionTypeReport},
		{models.SessionTypeMedication, "report-1", models.SessionTypeMedication},
		{"", "Medication-Chat-1", models.SessionTypeMedication},
		{"", "report-1", models.SessionTypeReport},
		{"", "anything", models.SessionTypeReport},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, service.ResolveSessionType(tt.declared, tt.sessionID), tt.sessionID)
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`  "Blood Pressure Basics"` + "\nextra line", "Blood Pressure Basics"},
		{"**Ibuprofen Dosing**", "Ibuprofen Dosing"},
		{"Hi", service.DefaultTitle},
		{"", service.DefaultTitle},
		{"Title: My Results", service.DefaultTitle},
		{"Report Analysis", service.DefaultTitle},
		{strings.Repeat("x", 80), strings.Repeat("x", ai.TitleMaxLength)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, service.NormalizeTitle(tt.raw), tt.raw)
	}
}

// missingOnceRepo hides the session from the first lookup, as when another
// request creates it between this request's lookup and its write.
type missingOnceRepo struct {
	repository.ChatRepository
	missed bool
}

func (r *missingOnceRepo) FindActive(ctx context.Context, userID uint, sessionID string) (*models.ChatSession, error) {
	if !r.missed {
		r.missed = true
		return nil, repository.ErrSessionNotFound
	}
	return r.ChatRepository.FindActive(ctx, userID, sessionID)
}

func TestChatService_ConcurrentFirstSendJoinsSession(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "patient@example.com")
	chatRepo := repository.NewChatRepository(db)
	ctx := context.Background()

	first := newChatService(t, db, ai.NewOfflineClient(), nil)
	_, err := first.Send(ctx, service.SendInput{UserID: user.ID, SessionID: "report-race", Message: "First question"})
	require.NoError(t, err)

	second := service.NewChatService(
		&missingOnceRepo{ChatRepository: chatRepo},
		repository.NewReportRepository(db),
		ai.NewOfflineClient(),
		nil,
		testutil.TestConfig(),
		testutil.TestLogger(),
	)
	result, err := second.Send(ctx, service.SendInput{UserID: user.ID, SessionID: "report-race", Message: "Second question"})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Session.MessageCount)
	assert.Equal(t, 3, result.UserMessage.Sequence)

	sessions, err := chatRepo.ListActive(ctx, user.ID, "", 50)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	messages, err := chatRepo.GetMessages(ctx, sessions[0].ID)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	assert.Equal(t, "First question", messages[0].Content)
	assert.Equal(t, "Second question", messages[2].Content)
}
