package insight

import (
	"context"
	"fmt"
	"strings"

	"github.com/cortexai/chatbi/internal/service"
	"github.com/sashabaranov/go-openai"
)

// OpenAIGenerator talks to any OpenAI-compatible chat completion endpoint.
type OpenAIGenerator struct {
	client *openai.Client
	apiKey string
	model  string
	local  bool
}

// NewOpenAIGenerator creates a generator. A custom baseURL without an API key
// is treated as a local endpoint and still counts as available.
func NewOpenAIGenerator(apiKey, model, baseURL string) *OpenAIGenerator {
	if model == "" {
		model = openai.GPT4oMini
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		apiKey: apiKey,
		model:  model,
		local:  baseURL != "",
	}
}

func (g *OpenAIGenerator) Name() string    { return "openai" }
func (g *OpenAIGenerator) Available() bool { return g.apiKey != "" || g.local }

func (g *OpenAIGenerator) Generate(ctx context.Context, query string, result *service.ResultTable) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(query, result)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("openai call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
