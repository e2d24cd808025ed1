package llm

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"aura/internal/aura"
	"aura/internal/config"
	"aura/internal/logging"
)

type geminiClient struct {
	sdk    *genai.Client
	model  string
	apiKey string
}

func newGeminiClient(cfg config.LLMConfig) *geminiClient {
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &geminiClient{model: model, apiKey: cfg.APIKey} // sdk lazily constructed; see connect()
}

// connect defers genai.NewClient until first use since it requires a
// context and can itself fail on credential resolution.
func (c *geminiClient) connect(ctx context.Context) (*genai.Client, error) {
	if c.sdk != nil {
		return c.sdk, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	c.sdk = client
	return client, nil
}

func (c *geminiClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, *aura.Error) {
	log := logging.For(logging.CategoryLLM)

	client, err := c.connect(ctx)
	if err != nil {
		return "", Usage{}, aura.NewError(aura.ErrLLMAuth, "gemini client initialization failed", err)
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(0.1)),
	})
	if err != nil {
		return "", Usage{}, classifyGeminiError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", Usage{}, aura.NewError(aura.ErrLLMBadResponse, "gemini returned no text", nil)
	}

	var usage Usage
	if resp.UsageMetadata != nil {
		usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	log.Debugw("gemini completion", "model", c.model, "usage", usage)
	return text, usage, nil
}

func classifyGeminiError(err error) *aura.Error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "PERMISSION_DENIED"):
		return aura.NewError(aura.ErrLLMAuth, "gemini authentication failed", err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return aura.NewError(aura.ErrLLMRateLimit, "gemini rate limit exceeded", err)
	default:
		return aura.NewError(aura.ErrLLMNetwork, "gemini request failed", err)
	}
}
