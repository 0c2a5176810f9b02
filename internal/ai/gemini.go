package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient calls Google Gemini with a single flattened prompt per request
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient creates a Gemini client; it does not contact the API.
// Extra options override the transport, such as the endpoint.
func NewGeminiClient(ctx context.Context, apiKey, modelName string, opts ...option.ClientOption) (*GeminiClient, error) {
	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiClient{client: cl, modelName: modelName}, nil
}

// Close releases the underlying connection
func (g *GeminiClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Model returns the configured model name
func (g *GeminiClient) Model() string {
	return g.modelName
}

// Complete sends the conversation as one prompt and returns the reply
func (g *GeminiClient) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	return completeWith(ctx, "gemini", g.modelName, messages, g.generate)
}

// AnalyzeDocument runs the fixed analysis template through Complete
func (g *GeminiClient) AnalyzeDocument(ctx context.Context, text, category string) (*Completion, error) {
	return g.Complete(ctx, AnalysisMessages(text, category))
}

func (g *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	m := g.client.GenerativeModel(g.modelName)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}
