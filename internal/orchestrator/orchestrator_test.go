package orchestrator

import (
	"context"
	"testing"
	"time"

	"aura/internal/aura"
	"aura/internal/codegen"
	"aura/internal/config"
	"aura/internal/executor"
	"aura/internal/llm"
	"aura/internal/planner"
	"aura/internal/registry"
	"aura/internal/router"
	"aura/internal/sandbox"
	"aura/internal/selfheal"
	"aura/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient is a fake llm.Client returning pre-scripted completions in
// order, mirroring the fakes used in the codegen and planner test suites.
type scriptedClient struct {
	replies []string
	errs    []*aura.Error
	calls   int
}

func (c *scriptedClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, llm.Usage, *aura.Error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return "", llm.Usage{}, c.errs[i]
	}
	if i < len(c.replies) {
		return c.replies[i], llm.Usage{}, nil
	}
	return "", llm.Usage{}, aura.NewError(aura.ErrLLMBadResponse, "no scripted reply", nil)
}

func testOrchestrator(t *testing.T, client llm.Client) (*Orchestrator, *registry.Registry, *executor.Executor) {
	t.Helper()

	reg := registry.New()
	exec := executor.New(reg, nil, nil, 2*time.Second)
	require.NoError(t, reg.Register(aura.ToolSpec{
		Name: "lock_screen", RiskLevel: aura.RiskMedium,
		Keywords: []string{"lock", "screen"}, Phrases: []string{"lock the screen"},
	}))
	require.NoError(t, reg.Register(aura.ToolSpec{
		Name: "shutdown_system", RiskLevel: aura.RiskConfirm,
		Keywords: []string{"shutdown", "shut", "down"}, Phrases: []string{"shut down the computer"},
	}))
	exec.Bind("lock_screen", func(ctx context.Context, args map[string]any) (any, error) { return "locked", nil })
	exec.Bind("shutdown_system", func(ctx context.Context, args map[string]any) (any, error) { return "shutting down", nil })

	rt := router.New()

	capStore, err := selfheal.NewCapabilityStore(t.TempDir(), reg)
	require.NoError(t, err)

	cfg := config.SelfHealConfig{MaxRetries: 1, BackoffBase: time.Millisecond, BackoffFactor: 1.0}
	healer := selfheal.NewLoop(exec, capStore, cfg)

	sb := sandbox.New(config.SandboxConfig{Timeout: 2 * time.Second, MaxMemoryMB: 64, AllowedImports: []string{"strings"}})
	cg := codegen.New(client, sb, []string{"strings"})

	pl, err := planner.New(client, exec, reg)
	require.NoError(t, err)

	o := New(reg, exec, rt, capStore, healer, cg, pl, client, nil)
	return o, reg, exec
}

func TestProcessRoutesHighConfidenceToLayer1(t *testing.T) {
	o, _, _ := testOrchestrator(t, &scriptedClient{})
	sess := session.New("")

	resp := o.Process(context.Background(), aura.Utterance{ID: 1, Text: "lock the screen"}, sess)
	assert.True(t, resp.OK)
	assert.Equal(t, aura.Layer1, resp.SourceLayer)
	assert.False(t, resp.UsedLLM)
}

func TestProcessConversationUsesLLMAndCaches(t *testing.T) {
	client := &scriptedClient{replies: []string{"Paris is the capital of France."}}
	o, _, _ := testOrchestrator(t, client)
	sess := session.New("")

	first := o.Process(context.Background(), aura.Utterance{ID: 1, Text: "what is the capital of France"}, sess)
	assert.True(t, first.OK)
	assert.Equal(t, aura.LayerConversation, first.SourceLayer)
	assert.True(t, first.UsedLLM)
	assert.Equal(t, 1, client.calls)

	second := o.Process(context.Background(), aura.Utterance{ID: 2, Text: "what is the capital of France"}, sess)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, 1, client.calls, "repeat question should hit the conversation cache, not call the LLM again")
}

func TestProcessConfirmationFollowUpReRunsWithConfirmed(t *testing.T) {
	o, _, _ := testOrchestrator(t, &scriptedClient{})
	sess := session.New("")

	first := o.Process(context.Background(), aura.Utterance{ID: 1, Text: "shut down the computer"}, sess)
	assert.False(t, first.OK)
	require.NotNil(t, first.Err)
	assert.Equal(t, aura.ErrConfirmationNeeded, first.Err.Kind)

	second := o.Process(context.Background(), aura.Utterance{ID: 2, Text: "yes"}, sess)
	assert.True(t, second.OK)
	assert.Equal(t, aura.Layer1, second.SourceLayer)
}

func TestProcessUnknownUtteranceFallsBackToCodegen(t *testing.T) {
	client := &scriptedClient{replies: []string{"```go\nfunc RunTool(input string) (string, error) { return \"ok\", nil }\n```"}}
	o, _, _ := testOrchestrator(t, client)
	sess := session.New("")

	resp := o.Process(context.Background(), aura.Utterance{ID: 1, Text: "compute something obscure"}, sess)
	assert.Equal(t, aura.Layer1_5, resp.SourceLayer)
	assert.True(t, resp.UsedLLM)
}

func TestProcessCodegenFallbackProposesPromotionOnGeneralizableUtterance(t *testing.T) {
	reg := registry.New()
	exec := executor.New(reg, nil, nil, 2*time.Second)
	rt := router.New()
	capStore, err := selfheal.NewCapabilityStore(t.TempDir(), reg)
	require.NoError(t, err)
	cfg := config.SelfHealConfig{MaxRetries: 1, BackoffBase: time.Millisecond, BackoffFactor: 1.0}
	healer := selfheal.NewLoop(exec, capStore, cfg)
	sb := sandbox.New(config.SandboxConfig{Timeout: 2 * time.Second, MaxMemoryMB: 64, AllowedImports: []string{"strings"}})
	client := &scriptedClient{replies: []string{"```go\nimport \"strings\"\nfunc RunTool(input string) (string, error) { return strings.ToUpper(input), nil }\n```"}}
	cg := codegen.New(client, sb, []string{"strings"})
	pl, err := planner.New(client, exec, reg)
	require.NoError(t, err)
	o := New(reg, exec, rt, capStore, healer, cg, pl, client, nil)

	sess := session.New("")
	resp := o.Process(context.Background(), aura.Utterance{ID: 1, Text: "convert input to uppercase"}, sess)
	require.True(t, resp.OK)

	got := capStore.List()
	require.Len(t, got, 1)
	assert.Equal(t, "run_program", got[0].ToolName)
	assert.Contains(t, got[0].Triggers, "convert input to uppercase")
}

func TestProcessRecordsSessionStats(t *testing.T) {
	o, _, _ := testOrchestrator(t, &scriptedClient{})
	sess := session.New("")

	o.Process(context.Background(), aura.Utterance{ID: 1, Text: "lock the screen"}, sess)
	stats := sess.Stats()
	assert.Equal(t, int64(1), stats.LocalCommands)
	assert.Equal(t, int64(0), stats.LLMCommands)
}
