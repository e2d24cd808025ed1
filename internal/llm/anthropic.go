package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"aura/internal/aura"
	"aura/internal/config"
	"aura/internal/logging"
)

type anthropicClient struct {
	sdk   anthropic.Client
	model anthropic.Model
}

func newAnthropicClient(cfg config.LLMConfig) *anthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := anthropic.ModelClaudeSonnet4_5
	if cfg.Model != "" {
		model = anthropic.Model(cfg.Model)
	}
	return &anthropicClient{sdk: anthropic.NewClient(opts...), model: model}
}

func (c *anthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, *aura.Error) {
	log := logging.For(logging.CategoryLLM)

	msg, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", Usage{}, classifyAnthropicError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", Usage{}, aura.NewError(aura.ErrLLMBadResponse, "anthropic returned no text blocks", nil)
	}

	usage := Usage{PromptTokens: int(msg.Usage.InputTokens), CompletionTokens: int(msg.Usage.OutputTokens)}
	log.Debugw("anthropic completion", "model", c.model, "usage", usage)
	return text.String(), usage, nil
}

func classifyAnthropicError(err error) *aura.Error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return aura.NewError(aura.ErrLLMAuth, "anthropic authentication failed", err)
		case 429:
			return aura.NewError(aura.ErrLLMRateLimit, "anthropic rate limit exceeded", err)
		}
	}
	return aura.NewError(aura.ErrLLMNetwork, "anthropic request failed", err)
}
