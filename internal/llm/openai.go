package llm

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"aura/internal/aura"
	"aura/internal/config"
	"aura/internal/logging"
)

type openAIClient struct {
	sdk   *openai.Client
	model string
}

func newOpenAIClient(cfg config.LLMConfig) *openAIClient {
	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaiCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &openAIClient{sdk: openai.NewClientWithConfig(oaiCfg), model: model}
}

func (c *openAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, *aura.Error) {
	log := logging.For(logging.CategoryLLM)

	resp, err := c.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", Usage{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, aura.NewError(aura.ErrLLMBadResponse, "openai returned no choices", nil)
	}

	usage := Usage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens}
	log.Debugw("openai completion", "model", c.model, "usage", usage)
	return resp.Choices[0].Message.Content, usage, nil
}

func classifyOpenAIError(err error) *aura.Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return aura.NewError(aura.ErrLLMAuth, "openai authentication failed", err)
		case 429:
			return aura.NewError(aura.ErrLLMRateLimit, "openai rate limit exceeded", err)
		}
	}
	return aura.NewError(aura.ErrLLMNetwork, "openai request failed", err)
}
