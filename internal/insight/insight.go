// Package insight turns a question and its result table into a short
// narrative. Remote language models are tried first; the local summary
// always answers.
package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cortexai/chatbi/internal/config"
	"github.com/cortexai/chatbi/internal/service"
	"github.com/rs/zerolog/log"
)

// ErrNoInsight is returned when every generator in a chain failed.
var ErrNoInsight = errors.New("no insight generator succeeded")

// Generator produces an insight text for a question and its result.
type Generator interface {
	Generate(ctx context.Context, query string, result *service.ResultTable) (string, error)
	Available() bool
	Name() string
}

// Chain tries generators in order and returns the first success.
type Chain struct {
	generators []Generator
	timeout    time.Duration
}

// NewChain builds a chain. timeout bounds every single attempt; zero disables it.
func NewChain(timeout time.Duration, generators ...Generator) *Chain {
	return &Chain{generators: generators, timeout: timeout}
}

// NewChainFromConfig puts the configured remote model in front of the local summary.
func NewChainFromConfig(cfg *config.Config) *Chain {
	var gens []Generator
	switch cfg.InsightType {
	case "anthropic":
		gens = append(gens, NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicBaseURL))
	case "openai":
		gens = append(gens, NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL))
	}
	gens = append(gens, NewLocalGenerator())
	return NewChain(time.Duration(cfg.InsightTimeout)*time.Second, gens...)
}

// Names lists the generators in the order they are tried.
func (c *Chain) Names() []string {
	names := make([]string, len(c.generators))
	for i, g := range c.generators {
		names[i] = g.Name()
	}
	return names
}

func (c *Chain) Generate(ctx context.Context, query string, result *service.ResultTable) (string, error) {
	for _, g := range c.generators {
		if !g.Available() {
			continue
		}
		text, err := c.attempt(ctx, g, query, result)
		if err != nil {
			log.Warn().Err(err).Str("generator", g.Name()).Msg("insight generation failed, falling back")
			continue
		}
		return text, nil
	}
	return "", ErrNoInsight
}

func (c *Chain) attempt(ctx context.Context, g Generator, query string, result *service.ResultTable) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	text, err := g.Generate(ctx, query, result)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s returned an empty insight", g.Name())
	}
	log.Debug().Str("generator", g.Name()).Dur("elapsed", time.Since(start)).Msg("insight generated")
	return text, nil
}

const systemPrompt = `You are a business intelligence analyst. You receive a user's question and the table
of rows that answered it. Reply with a short plain-text analysis: the main figures,
notable differences between groups, and one suggestion for a follow-up question.
Do not invent numbers that are not in the data. Do not use markdown headings.`

// maxPromptRows caps how many rows are sent to a remote model.
const maxPromptRows = 50

func buildPrompt(query string, result *service.ResultTable) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", query)
	if result == nil {
		b.WriteString("The query returned no table.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(result.ColumnNames(), ", "))
	fmt.Fprintf(&b, "Row count: %d\n", result.Len())

	rows := result.Rows
	if len(rows) > maxPromptRows {
		rows = rows[:maxPromptRows]
		fmt.Fprintf(&b, "First %d rows:\n", maxPromptRows)
	} else {
		b.WriteString("Rows:\n")
	}
	for _, row := range rows {
		line, err := json.Marshal(row)
		if err != nil {
			continue
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}
