package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"aura/internal/aura"
	"aura/internal/codegen"
	"aura/internal/config"
	"aura/internal/executor"
	"aura/internal/history"
	"aura/internal/llm"
	"aura/internal/logging"
	"aura/internal/orchestrator"
	"aura/internal/osboundary"
	"aura/internal/planner"
	"aura/internal/registry"
	"aura/internal/router"
	"aura/internal/sandbox"
	"aura/internal/selfheal"
	"aura/internal/session"
)

// App bundles every wired component a cobra command needs. One App is
// built per invocation; newApp's cleanup func shuts down the trace
// provider and closes the capability watcher and history index.
type App struct {
	Cfg          *config.Config
	Registry     *registry.Registry
	Executor     *executor.Executor
	Router       *router.Router
	Caps         *selfheal.CapabilityStore
	Healer       *selfheal.Loop
	Orchestrator *orchestrator.Orchestrator
	Session      *session.Session
	History      *history.Store
	tracerProvider *sdktrace.TracerProvider
}

// noCredentialsClient is the llm.Client stand-in used when LLM_API_KEY is
// unset, so Layer 1.5/2/conversation calls fail with a typed NoCredentials
// error (spec §6) instead of a nil-interface panic.
type noCredentialsClient struct{}

func (noCredentialsClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, llm.Usage, *aura.Error) {
	return "", llm.Usage{}, aura.NewError(aura.ErrNoCredentials, "no LLM credentials configured", nil)
}

// newApp loads config, wires every layer, and registers the built-in tool
// set. The returned cleanup func must be deferred by the caller.
func newApp() (*App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("aura: loading config: %w", err)
	}
	if debugFlag {
		cfg.Debug = true
	}

	if err := logging.Init(cfg.DataDir, cfg.Debug); err != nil {
		return nil, nil, fmt.Errorf("aura: initializing logging: %w", err)
	}

	reg := registry.New()
	boundary := osboundary.New()
	exec := executor.New(reg, boundary, nil, cfg.Execution.DefaultTimeout)
	sb := sandbox.New(cfg.Sandbox)
	if err := executor.RegisterBuiltins(reg, exec, boundary, sb); err != nil {
		return nil, nil, fmt.Errorf("aura: registering builtin tools: %w", err)
	}

	caps, err := selfheal.NewCapabilityStore(cfg.DataDir, reg)
	if err != nil {
		return nil, nil, fmt.Errorf("aura: opening capability store: %w", err)
	}
	if err := caps.Watch(); err != nil {
		logging.For(logging.CategorySelfHeal).Warnw("capability file watch disabled", "error", err)
	}

	healer := selfheal.NewLoop(exec, caps, cfg.SelfHeal)
	rt := router.New()
	sess := session.New(cfg.DataDir)

	var llmClient llm.Client = noCredentialsClient{}
	if cfg.HasCredentials() {
		llmClient, err = llm.New(cfg.LLM)
		if err != nil {
			return nil, nil, fmt.Errorf("aura: building LLM client: %w", err)
		}
	}

	cg := codegen.New(llmClient, sb, cfg.Sandbox.AllowedImports)

	pl, err := planner.New(llmClient, exec, reg)
	if err != nil {
		return nil, nil, fmt.Errorf("aura: building planner: %w", err)
	}

	var traceWriter io.Writer
	if traceFlag {
		traceWriter = os.Stdout
	}
	tp, err := orchestrator.NewTracerProvider(traceWriter)
	if err != nil {
		return nil, nil, fmt.Errorf("aura: building tracer provider: %w", err)
	}

	orch := orchestrator.New(reg, exec, rt, caps, healer, cg, pl, llmClient, tp)
	if auditWriter, err := logging.NewAuditWriter(cfg.DataDir); err != nil {
		logging.For(logging.CategoryOrchestrator).Warnw("audit log disabled", "error", err)
	} else {
		orch.SetAudit(auditWriter)
	}

	hist, err := history.Open(cfg.DataDir)
	if err != nil {
		logging.For(logging.CategoryOrchestrator).Warnw("history index disabled", "error", err)
	} else {
		orch.SetHistory(hist)
	}

	app := &App{
		Cfg: cfg, Registry: reg, Executor: exec, Router: rt, Caps: caps,
		Healer: healer, Orchestrator: orch, Session: sess, History: hist,
		tracerProvider: tp,
	}

	cleanup := func() {
		_ = app.tracerProvider.Shutdown(context.Background())
		_ = caps.Close()
		if app.History != nil {
			_ = app.History.Close()
		}
	}
	return app, cleanup, nil
}

var utteranceSeq uint64

// nextUtteranceID hands out a process-local, monotonically increasing
// utterance id; AURA runs a single orchestration task per utterance (spec
// §5), so a plain atomic counter is enough identity.
func nextUtteranceID() uint64 {
	return atomic.AddUint64(&utteranceSeq, 1)
}
