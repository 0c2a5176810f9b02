package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/ai"
)

// ==================== MOCK GENERATIVE CLIENT ====================

// MockGenerativeClient implements ai.GenerativeClient for testing
type MockGenerativeClient struct {
	mock.Mock
}

func (m *MockGenerativeClient) Complete(ctx context.Context, messages []ai.Message) (*ai.Completion, error) {
	args := m.Called(ctx, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ai.Completion), args.Error(1)
}

func (m *MockGenerativeClient) AnalyzeDocument(ctx context.Context, text, category string) (*ai.Completion, error) {
	args := m.Called(ctx, text, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ai.Completion), args.Error(1)
}

func (m *MockGenerativeClient) Model() string {
	return "mock-model"
}

// IsTitleRequest matches the prompt used to name a new session
func IsTitleRequest(messages []ai.Message) bool {
	return len(messages) == 2 && messages[0].Content == ai.TitleMessages("")[0].Content
}

// Completion builds a completion as a live provider would return it
func Completion(content string) *ai.Completion {
	return &ai.Completion{
		Content: content,
		Model:   "mock-model",
		Usage:   ai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// ==================== SLOW CLIENT ====================

// SlowClient blocks until its context is done, like a provider that never answers
type SlowClient struct{}

func (SlowClient) Complete(ctx context.Context, _ []ai.Message) (*ai.Completion, error) {
	<-ctx.Done()
	return nil, &ai.ServiceError{Provider: "slow", Err: ctx.Err()}
}

func (c SlowClient) AnalyzeDocument(ctx context.Context, _, _ string) (*ai.Completion, error) {
	return c.Complete(ctx, nil)
}

func (SlowClient) Model() string { return "slow" }

// ==================== INLINE RUNNER ====================

// InlineRunner runs background tasks synchronously
type InlineRunner struct{}

func (InlineRunner) SubmitWithTimeout(timeout time.Duration, task func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	task(ctx)
}

// ==================== RECORDING MAILER ====================

// SentMail is one message captured by RecordingMailer
type SentMail struct {
	To      string
	Subject string
	HTML    string
}

// RecordingMailer keeps every message instead of sending it
type RecordingMailer struct {
	mu   sync.Mutex
	Sent []SentMail
	Err  error
}

func (m *RecordingMailer) Send(_ context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMail{To: to, Subject: subject, HTML: html})
	return nil
}

// Last returns the most recent message, or nil
func (m *RecordingMailer) Last() *SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	last := m.Sent[len(m.Sent)-1]
	return &last
}

// ==================== STATIC EXTRACTOR ====================

// StaticExtractor returns fixed text or error for every file
type StaticExtractor struct {
	Text string
	Err  error
}

func (e StaticExtractor) Extract(context.Context, []byte, string, string) (string, error) {
	return e.Text, e.Err
}
