package selfheal

import (
	"context"
	"testing"
	"time"

	"aura/internal/aura"
	"aura/internal/config"
	"aura/internal/executor"
	"aura/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoop(t *testing.T) (*Loop, *registry.Registry, *executor.Executor) {
	t.Helper()
	reg := registry.New()
	exec := executor.New(reg, nil, nil, 2*time.Second)
	store, err := NewCapabilityStore(t.TempDir(), reg)
	require.NoError(t, err)
	return NewLoop(exec, store, testCfg()), reg, exec
}

func TestLoopExecuteSucceedsOnFirstTry(t *testing.T) {
	loop, reg, exec := newLoop(t)
	require.NoError(t, reg.Register(aura.ToolSpec{Name: "ok_tool", RiskLevel: aura.RiskLow}))
	exec.Bind("ok_tool", func(ctx context.Context, args map[string]any) (any, error) { return "done", nil })

	res := loop.Execute(context.Background(), "ok_tool", nil, executor.Policy{})
	require.True(t, res.OK)
	assert.Equal(t, "done", res.Value)
}

func TestLoopExecuteRetriesTransientFailure(t *testing.T) {
	loop, reg, exec := newLoop(t)
	calls := 0
	require.NoError(t, reg.Register(aura.ToolSpec{Name: "flaky_tool", RiskLevel: aura.RiskLow}))
	exec.Bind("flaky_tool", func(ctx context.Context, args map[string]any) (any, error) {
		calls++
		if calls < 2 {
			return nil, aura.NewError(aura.ErrUnavailable, "still warming up", nil)
		}
		return "done", nil
	})

	res := loop.Execute(context.Background(), "flaky_tool", nil, executor.Policy{})
	require.True(t, res.OK)
	assert.Equal(t, 2, calls)
}

func TestLoopExecuteDoesNotRetryNonRetryableFailure(t *testing.T) {
	loop, reg, exec := newLoop(t)
	calls := 0
	require.NoError(t, reg.Register(aura.ToolSpec{Name: "broken_tool", RiskLevel: aura.RiskLow}))
	exec.Bind("broken_tool", func(ctx context.Context, args map[string]any) (any, error) {
		calls++
		return nil, aura.NewError(aura.ErrBadArgs, "nope", nil)
	})

	res := loop.Execute(context.Background(), "broken_tool", nil, executor.Policy{})
	require.False(t, res.OK)
	assert.Equal(t, 1, calls)
}

func TestExtractModuleFindsImportPath(t *testing.T) {
	assert.Equal(t, "github.com/foo/bar", extractModule("missing dependency: github.com/foo/bar"))
	assert.Equal(t, "", extractModule("no module mentioned here"))
}

func TestIsGeneralizableUtterance(t *testing.T) {
	generalizable := []string{
		"convert meters to feet",
		"validate the email",
		"parse the csv",
		"analyze the log",
		"count words",
	}
	for _, u := range generalizable {
		assert.True(t, isGeneralizableUtterance(u), "expected %q to be generalizable", u)
	}

	literal := []string{
		"convert 42 meters to feet",
		`parse "hello world"`,
		"parse /etc/hosts",
		"",
	}
	for _, u := range literal {
		assert.False(t, isGeneralizableUtterance(u), "expected %q to not be generalizable", u)
	}

	assert.False(t, isGeneralizableUtterance("what is the capital of France"))
}

func TestProposePromotionSkipsLiteralUtterance(t *testing.T) {
	loop, _, _ := newLoop(t)
	loop.ProposePromotion(`convert "42" to binary`, "func RunTool(input string) (string, error) { return input, nil }")
	assert.Empty(t, loop.caps.List())
}

func TestProposePromotionPromotesGeneralizableUtterance(t *testing.T) {
	loop, _, _ := newLoop(t)
	code := "func RunTool(input string) (string, error) { return strings.ToUpper(input), nil }"
	loop.ProposePromotion("convert input to uppercase", code)

	got := loop.caps.List()
	require.Len(t, got, 1)
	assert.Equal(t, "run_program", got[0].ToolName)
	assert.Equal(t, code, got[0].ArgsTemplate["code"])
	assert.Contains(t, got[0].Triggers, "convert input to uppercase")
}

func TestProposePromotionIsIdempotent(t *testing.T) {
	loop, _, _ := newLoop(t)
	code := "func RunTool(input string) (string, error) { return input, nil }"
	loop.ProposePromotion("validate the input", code)
	loop.ProposePromotion("validate the input", code)
	assert.Len(t, loop.caps.List(), 1)
}
