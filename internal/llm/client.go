// Package llm is the LLM Client Adapter: a single Complete contract behind
// which Layer 1.5 (Code-Gen Fallback), Layer 2 (Planner), and the
// conversational fallback in the Hybrid Orchestrator all call out to a
// model provider. Grounded on the teacher's internal/perception multi-
// provider client pattern (client_factory.go's ProviderConfig/
// NewClientFromConfig dispatch) — but where the teacher hand-rolled HTTP
// request/response structs per provider, AURA uses each provider's official
// Go SDK, since those SDKs were already part of the pack's dependency
// surface.
package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"aura/internal/aura"
	"aura/internal/config"
)

// Usage reports token accounting for one completion. The Session's
// tokens_saved_estimate stat does not read it; that stat uses a flat
// per-command estimate.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Client is the uniform adapter every layer calls through. Implementations
// must classify failures into the closed ErrorKind taxonomy (spec §7)
// rather than leaking provider-specific error types.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (text string, usage Usage, err *aura.Error)
}

// New constructs the configured provider's Client. The provider name and
// API key come from config.LLMConfig, following DetectProvider's
// config-then-env precedence in the teacher's client_factory.go.
func New(cfg config.LLMConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: no API key configured for provider %q", cfg.Provider)
	}

	var client Client
	switch cfg.Provider {
	case "openai":
		client = newOpenAIClient(cfg)
	case "anthropic":
		client = newAnthropicClient(cfg)
	case "gemini":
		client = newGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}

	if cfg.RateLimitPerSecond > 0 {
		client = newRateLimitedClient(client, cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	}
	return client, nil
}

// rateLimitedClient throttles outbound completions client-side, ahead of
// any provider-side 429, so a command burst degrades to LlmRateLimit
// locally rather than exhausting the account's actual rate limit.
type rateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

func newRateLimitedClient(inner Client, perSecond float64, burst int) *rateLimitedClient {
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedClient{inner: inner, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (c *rateLimitedClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, *aura.Error) {
	if !c.limiter.Allow() {
		return "", Usage{}, aura.NewError(aura.ErrLLMRateLimit, "client-side LLM rate limit exceeded", nil)
	}
	return c.inner.Complete(ctx, systemPrompt, userPrompt)
}

// classifyCommonError maps a transport-layer failure to LlmNetwork. The
// provider files classify their own errors (classifyAnthropicError,
// classifyOpenAIError, classifyGeminiError) and do not call it.
func classifyCommonError(err error) *aura.Error {
	if err == nil {
		return nil
	}
	return aura.NewError(aura.ErrLLMNetwork, "llm request failed", err)
}
