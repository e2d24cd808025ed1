// Package executor implements the Tool Executor (spec §4.4): the single
// execution authority. Every tool handler invocation passes through
// Execute, which enforces schema validation, capability availability, risk
// policy, and per-call timeouts before ever calling a handler — grounded on
// the teacher's internal/tools.Registry.Execute pre-flight checks plus
// internal/tactile's timeout-via-context discipline.
package executor

import (
	"context"
	"time"

	"aura/internal/aura"
	"aura/internal/logging"
	"aura/internal/osboundary"
	"aura/internal/registry"
)

// Handler is a tool's pure implementation: given a context and validated
// args, it returns a value or fails. Handlers never invoke other tools
// (spec §4.4) — composition belongs to a Plan.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Policy carries the confirmation flag required for risk_level=confirm
// tools (spec §4.4 step 4).
type Policy struct {
	Confirmed bool
}

// CapabilityChecker reports whether a capability tag (e.g. "os.audio",
// "windowing", "network") is available on the current host.
type CapabilityChecker func(tag string) bool

// Executor is the single execution authority. Construct one per process.
type Executor struct {
	reg        *registry.Registry
	boundary   osboundary.Boundary
	handlers   map[string]Handler
	fallbacks  map[string]Handler // cross-platform fallback per tool name
	hasCap     CapabilityChecker
	defaultTTL time.Duration
}

// New creates an Executor bound to a registry and OS Boundary.
func New(reg *registry.Registry, boundary osboundary.Boundary, hasCap CapabilityChecker, defaultTimeout time.Duration) *Executor {
	if hasCap == nil {
		hasCap = func(string) bool { return true }
	}
	return &Executor{
		reg:        reg,
		boundary:   boundary,
		handlers:   make(map[string]Handler),
		fallbacks:  make(map[string]Handler),
		hasCap:     hasCap,
		defaultTTL: defaultTimeout,
	}
}

// Bind attaches a handler implementation to a registered tool name.
func (e *Executor) Bind(toolName string, h Handler) {
	e.handlers[toolName] = h
}

// BindFallback attaches a cross-platform fallback handler, used when the
// tool's primary handler needs a capability the host doesn't have
// (spec §4.4 step 3).
func (e *Executor) BindFallback(toolName string, h Handler) {
	e.fallbacks[toolName] = h
}

// Execute is the Tool Executor's contract: validate, check capabilities and
// risk policy, dispatch under a timeout, and report the outcome. The
// Executor never retries — that is the Self-Healing Loop's job (spec §4.4).
func (e *Executor) Execute(ctx context.Context, toolName string, rawArgs map[string]any, policy Policy) *aura.InvocationResult {
	start := time.Now()
	log := logging.For(logging.CategoryExecutor)

	spec, ok := e.reg.Lookup(toolName)
	if !ok {
		return fail(aura.NewError(aura.ErrUnknownTool, "unknown tool: "+toolName, nil), start)
	}

	args, argErr := registry.Coerce(spec, rawArgs)
	if argErr != nil {
		return fail(argErr, start)
	}

	handler := e.handlers[toolName]
	for _, tag := range spec.Requires {
		if !e.hasCap(tag) {
			if fb, ok := e.fallbacks[toolName]; ok {
				log.Infow("using cross-platform fallback", "tool", toolName, "missing_capability", tag)
				handler = fb
				break
			}
			return fail(aura.NewError(aura.ErrUnsupported, "capability unavailable: "+tag, nil), start)
		}
	}
	if handler == nil {
		return fail(aura.NewError(aura.ErrInternal, "no handler bound for tool: "+toolName, nil), start)
	}

	if spec.RiskLevel == aura.RiskConfirm && !policy.Confirmed {
		return fail(aura.NewError(aura.ErrConfirmationNeeded, "tool requires confirmation: "+toolName, nil), start)
	}

	ttl := e.defaultTTL
	if spec.TimeoutMs > 0 {
		ttl = time.Duration(spec.TimeoutMs) * time.Millisecond
	}
	callCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()

	resultCh := make(chan struct {
		val any
		err error
	}, 1)
	go func() {
		val, err := handler(callCtx, args)
		resultCh <- struct {
			val any
			err error
		}{val, err}
	}()

	select {
	case r := <-resultCh:
		elapsed := time.Since(start).Milliseconds()
		if r.err != nil {
			log.Warnw("tool execution failed", "tool", toolName, "error", r.err)
			return &aura.InvocationResult{OK: false, Error: toExecError(r.err), ElapsedMs: elapsed}
		}
		log.Debugw("tool execution succeeded", "tool", toolName, "elapsed_ms", elapsed)
		return &aura.InvocationResult{OK: true, Value: r.val, ElapsedMs: elapsed}
	case <-callCtx.Done():
		elapsed := time.Since(start).Milliseconds()
		log.Warnw("tool execution timed out", "tool", toolName, "elapsed_ms", elapsed)
		return &aura.InvocationResult{OK: false, Error: aura.NewError(aura.ErrTimeout, "tool timed out: "+toolName, callCtx.Err()), ElapsedMs: elapsed}
	}
}

func fail(e *aura.Error, start time.Time) *aura.InvocationResult {
	return &aura.InvocationResult{OK: false, Error: e, ElapsedMs: time.Since(start).Milliseconds()}
}

func toExecError(err error) *aura.Error {
	if ae, ok := err.(*aura.Error); ok {
		return ae
	}
	return aura.NewError(aura.ErrInternal, err.Error(), err)
}
