package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/config"
)

// Message roles understood by BuildPrompt
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the rolling conversation sent to a provider
type Message struct {
	Role    string
	Content string
}

// Usage holds token counts estimated from character length, not billing data
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is a generated reply
type Completion struct {
	Content string
	Model   string
	Usage   Usage
}

// GenerativeClient produces text from a message list.
// Implementations keep no conversation state between calls.
type GenerativeClient interface {
	Complete(ctx context.Context, messages []Message) (*Completion, error)
	AnalyzeDocument(ctx context.Context, text, category string) (*Completion, error)
	Model() string
}

// generateFunc sends one flattened prompt to a provider
type generateFunc func(ctx context.Context, prompt string) (string, error)

// BuildPrompt flattens messages into a single prompt: system text first,
// then Human/Assistant turns in order, ending with an open Assistant turn.
func BuildPrompt(messages []Message) string {
	var system []string
	var turns []string

	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		switch m.Role {
		case RoleSystem:
			system = append(system, content)
		case RoleAssistant:
			turns = append(turns, "Assistant: "+content)
		default:
			turns = append(turns, "Human: "+content)
		}
	}

	parts := make([]string, 0, len(system)+len(turns)+1)
	parts = append(parts, system...)
	parts = append(parts, turns...)
	parts = append(parts, "Assistant:")
	return strings.Join(parts, "\n\n")
}

// EstimateTokens approximates a token count as characters divided by four
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

func estimateUsage(prompt, completion string) Usage {
	p := EstimateTokens(prompt)
	c := EstimateTokens(completion)
	return Usage{PromptTokens: p, CompletionTokens: c, TotalTokens: p + c}
}

// completeWith runs the shared flatten, call, and usage steps for live providers
func completeWith(ctx context.Context, provider, model string, messages []Message, generate generateFunc) (*Completion, error) {
	if len(messages) == 0 {
		return nil, &ServiceError{Provider: provider, Err: ErrNoMessages}
	}

	prompt := BuildPrompt(messages)
	text, err := generate(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, &ServiceError{Provider: provider, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ServiceError{Provider: provider, Err: ErrEmptyResponse}
	}

	return &Completion{
		Content: text,
		Model:   model,
		Usage:   estimateUsage(prompt, text),
	}, nil
}

// AnalysisMessages builds the fixed document-analysis instruction template
func AnalysisMessages(text, category string) []Message {
	if strings.TrimSpace(category) == "" {
		category = "medical"
	}
	return []Message{
		{Role: RoleSystem, Content: analysisInstructions},
		{Role: RoleUser, Content: fmt.Sprintf(
			"Please analyze the following %s document and provide the structured write-up.\n\nDocument text:\n%s",
			category, text,
		)},
	}
}

const analysisInstructions = `You are a medical document analysis assistant. You explain medical reports in plain language for patients.
Structure your response exactly with these sections:
Summary: a short overview of the document.
Key Findings:
- one finding per bullet
Recommendations:
- one recommendation per bullet
Risk Factors:
- one risk factor per bullet
Use "-" bullets for every list item. Do not invent values that are not in the document.
Remind the reader that this is general information and not a diagnosis, and that they should consult a healthcare professional.`

// NewClient selects the generative client named by AI_PROVIDER. A missing
// credential or a failing live constructor selects the offline client.
func NewClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) GenerativeClient {
	client, err := newConfiguredClient(ctx, cfg)
	if err == nil {
		logger.Info("🤖 [AI] Generative client ready", "provider", cfg.AIProvider, "model", client.Model())
		return client
	}

	if errors.Is(err, ErrMissingCredential) {
		logger.Warn("⚠️ [AI] No API key configured, using offline assistant", "provider", cfg.AIProvider)
	} else {
		logger.Error("❌ [AI] Live client construction failed, falling back to offline assistant",
			"provider", cfg.AIProvider,
			"error", err,
		)
	}
	return NewOfflineClient()
}

func newConfiguredClient(ctx context.Context, cfg *config.Config) (GenerativeClient, error) {
	switch cfg.AIProvider {
	case config.AIProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, ErrMissingCredential
		}
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case config.AIProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, ErrMissingCredential
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil
	case config.AIProviderOffline:
		return NewOfflineClient(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}
}

// ServiceError wraps any provider failure. Its text is for logs only.
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("ai service error (%s): %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call ran out of time
func (e *ServiceError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// AI client errors
var (
	ErrMissingCredential = errors.New("ai provider credential not configured")
	ErrEmptyResponse     = errors.New("ai provider returned an empty response")
	ErrNoMessages        = errors.New("no messages to send")
)

// TitleMaxLength bounds generated session titles
const TitleMaxLength = 50

const titleInstructions = `Generate a short title of at most 50 characters for a health conversation that starts with the message below.
Reply with the title only, without quotes or punctuation at the end.`

// TitleMessages builds the prompt used to name a new chat session
func TitleMessages(firstMessage string) []Message {
	return []Message{
		{Role: RoleSystem, Content: titleInstructions},
		{Role: RoleUser, Content: firstMessage},
	}
}
