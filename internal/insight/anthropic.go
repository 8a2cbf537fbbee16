package insight

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cortexai/chatbi/internal/service"
)

// AnthropicGenerator asks a Claude model (or a compatible provider) for the insight.
type AnthropicGenerator struct {
	client    *anthropic.Client
	apiKey    string
	model     string
	maxTokens int
}

func NewAnthropicGenerator(apiKey, model, baseURL string) *AnthropicGenerator {
	if model == "" {
		model = "claude-sonnet-4-6"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicGenerator{
		client:    anthropic.NewClient(opts...),
		apiKey:    apiKey,
		model:     model,
		maxTokens: 1024,
	}
}

func (g *AnthropicGenerator) Name() string    { return "anthropic" }
func (g *AnthropicGenerator) Available() bool { return g.apiKey != "" }

func (g *AnthropicGenerator) Generate(ctx context.Context, query string, result *service.ResultTable) (string, error) {
	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(g.model)),
		MaxTokens: anthropic.F(int64(g.maxTokens)),
		System: anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(systemPrompt),
		}),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(query, result))),
		}),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic call failed: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if b, ok := block.AsUnion().(anthropic.TextBlock); ok {
			text += b.Text
		}
	}
	return text, nil
}
