package ai

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient calls the OpenAI chat completion API with a single user
// message holding the flattened prompt.
type OpenAIClient struct {
	client    *openai.Client
	chatModel string
}

// NewOpenAIClient creates an OpenAI backed client. An empty baseURL uses the public API.
func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		client:    openai.NewClientWithConfig(cfg),
		chatModel: model,
	}
}

// Model returns the configured model name
func (c *OpenAIClient) Model() string {
	return c.chatModel
}

// Complete sends the conversation as one prompt and returns the reply
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	return completeWith(ctx, "openai", c.chatModel, messages, c.generate)
}

// AnalyzeDocument runs the fixed analysis template through Complete
func (c *OpenAIClient) AnalyzeDocument(ctx context.Context, text, category string) (*Completion, error) {
	return c.Complete(ctx, AnalysisMessages(text, category))
}

func (c *OpenAIClient) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
