package llm

import (
	"context"
	"testing"

	"aura/internal/aura"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct{ calls int }

func (s *stubClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, *aura.Error) {
	s.calls++
	return "ok", Usage{}, nil
}

func TestRateLimitedClientThrottlesBurst(t *testing.T) {
	inner := &stubClient{}
	c := newRateLimitedClient(inner, 1, 1)

	text, _, err := c.Complete(context.Background(), "sys", "user")
	require.Nil(t, err)
	assert.Equal(t, "ok", text)

	_, _, err = c.Complete(context.Background(), "sys", "user")
	require.NotNil(t, err)
	assert.Equal(t, aura.ErrLLMRateLimit, err.Kind)
	assert.Equal(t, 1, inner.calls, "second call should be throttled before reaching the inner client")
}
