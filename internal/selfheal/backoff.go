// Package selfheal implements the Self-Healing Loop (Layer 3, spec §4.8):
// bounded retry/backoff for retryable tool failures, a persisted
// Capability store for promoted routing rules, and constrained dependency
// repair. Grounded on the teacher's timeout/backoff discipline in
// internal/tactile/executor.go and the promotion bookkeeping of
// internal/autopoiesis/toolgen.go (ToolNeed, idempotent trigger matching).
package selfheal

import (
	"context"
	"time"

	"aura/internal/aura"
	"aura/internal/config"
	"aura/internal/logging"
)

// Retry runs fn up to cfg.MaxRetries additional times, with capped
// exponential backoff (base * factor^attempt), stopping as soon as fn
// succeeds or returns a non-retryable error. Only ErrorKind.Retryable()
// kinds (Timeout, Unavailable, LlmNetwork, LlmRateLimit — spec §7) are
// retried; anything else returns immediately on the first failure.
func Retry(ctx context.Context, cfg config.SelfHealConfig, fn func() *aura.Error) *aura.Error {
	log := logging.For(logging.CategorySelfHeal)

	var lastErr *aura.Error
	attempts := cfg.MaxRetries
	if attempts < 0 {
		attempts = 0
	}

	for attempt := 0; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !lastErr.Kind.Retryable() {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		delay := backoffDelay(cfg, attempt)
		log.Warnw("retrying after failure", "attempt", attempt+1, "kind", lastErr.Kind, "delay", delay)
		select {
		case <-ctx.Done():
			return aura.NewError(aura.ErrTimeout, "retry aborted: context cancelled", ctx.Err())
		case <-time.After(delay):
		}
	}
	return lastErr
}

func backoffDelay(cfg config.SelfHealConfig, attempt int) time.Duration {
	base := cfg.BackoffBase
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	factor := cfg.BackoffFactor
	if factor <= 0 {
		factor = 2.0
	}
	d := float64(base)
	for i := 0; i < attempt; i++ {
		d *= factor
	}
	return time.Duration(d)
}
