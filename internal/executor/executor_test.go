package executor

import (
	"context"
	"testing"
	"time"

	"aura/internal/aura"
	"aura/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain verifies no goroutine outlives the package's tests — Execute's
// per-call timeout goroutine is exactly what a stuck TestExecuteTimeout
// would otherwise leak silently.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestExecutor(t *testing.T) (*Executor, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	exec := New(reg, nil, nil, 2*time.Second)
	return exec, reg
}

func TestExecuteUnknownTool(t *testing.T) {
	exec, _ := newTestExecutor(t)
	res := exec.Execute(context.Background(), "does_not_exist", nil, Policy{})
	require.False(t, res.OK)
	assert.Equal(t, aura.ErrUnknownTool, res.Error.Kind)
}

func TestExecuteBadArgs(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Register(aura.ToolSpec{
		Name:      "greet",
		RiskLevel: aura.RiskLow,
		ArgSchema: map[string]aura.ArgSpec{"name": {Type: aura.ArgString, Required: true}},
	}))
	exec.Bind("greet", func(ctx context.Context, args map[string]any) (any, error) {
		return "hi " + args["name"].(string), nil
	})

	res := exec.Execute(context.Background(), "greet", map[string]any{}, Policy{})
	require.False(t, res.OK)
	assert.Equal(t, aura.ErrBadArgs, res.Error.Kind)
}

func TestExecuteSuccess(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Register(aura.ToolSpec{
		Name:      "greet",
		RiskLevel: aura.RiskLow,
		ArgSchema: map[string]aura.ArgSpec{"name": {Type: aura.ArgString, Required: true}},
	}))
	exec.Bind("greet", func(ctx context.Context, args map[string]any) (any, error) {
		return "hi " + args["name"].(string), nil
	})

	res := exec.Execute(context.Background(), "greet", map[string]any{"name": "Ada"}, Policy{})
	require.True(t, res.OK)
	assert.Equal(t, "hi Ada", res.Value)
}

func TestExecuteRequiresConfirmation(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Register(aura.ToolSpec{Name: "shutdown_system", RiskLevel: aura.RiskConfirm}))
	exec.Bind("shutdown_system", func(ctx context.Context, args map[string]any) (any, error) { return nil, nil })

	res := exec.Execute(context.Background(), "shutdown_system", nil, Policy{Confirmed: false})
	require.False(t, res.OK)
	assert.Equal(t, aura.ErrConfirmationNeeded, res.Error.Kind)

	res = exec.Execute(context.Background(), "shutdown_system", nil, Policy{Confirmed: true})
	require.True(t, res.OK)
}

func TestExecuteMissingCapabilityFallsBackWhenBound(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Register(aura.ToolSpec{Name: "set_brightness", RiskLevel: aura.RiskLow, Requires: []string{"display"}}))
	exec.hasCap = func(tag string) bool { return false }
	exec.Bind("set_brightness", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, assertNeverCalled(t)
	})
	exec.BindFallback("set_brightness", func(ctx context.Context, args map[string]any) (any, error) {
		return "fallback", nil
	})

	res := exec.Execute(context.Background(), "set_brightness", nil, Policy{})
	require.True(t, res.OK)
	assert.Equal(t, "fallback", res.Value)
}

func TestExecuteMissingCapabilityNoFallbackIsUnsupported(t *testing.T) {
	exec, reg := newTestExecutor(t)
	require.NoError(t, reg.Register(aura.ToolSpec{Name: "set_brightness", RiskLevel: aura.RiskLow, Requires: []string{"display"}}))
	exec.hasCap = func(tag string) bool { return false }
	exec.Bind("set_brightness", func(ctx context.Context, args map[string]any) (any, error) { return nil, nil })

	res := exec.Execute(context.Background(), "set_brightness", nil, Policy{})
	require.False(t, res.OK)
	assert.Equal(t, aura.ErrUnsupported, res.Error.Kind)
}

func TestExecuteTimeout(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(aura.ToolSpec{Name: "slow", RiskLevel: aura.RiskLow, TimeoutMs: 20}))
	exec := New(reg, nil, nil, time.Second)
	exec.Bind("slow", func(ctx context.Context, args map[string]any) (any, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return "too slow", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	res := exec.Execute(context.Background(), "slow", nil, Policy{})
	require.False(t, res.OK)
	assert.Equal(t, aura.ErrTimeout, res.Error.Kind)
}

func assertNeverCalled(t *testing.T) error {
	t.Helper()
	t.Fatal("handler should not have been called when a fallback is bound")
	return nil
}
