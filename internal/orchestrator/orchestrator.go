// Package orchestrator implements the Hybrid Orchestrator (spec §4.1): the
// single entry point that classifies an utterance via the Intent Router
// and routes it to the conversation layer, the Tool Executor (Layer 1),
// the Code-Gen Fallback (Layer 1.5), or the Planner (Layer 2), and updates
// Session stats before returning a uniform Response. Layer 1 tool calls
// (including confirmed re-runs) go through the Self-Healing Loop; Plan
// steps call the Executor directly, and conversation, Code-Gen and Planner
// failures are returned without a Self-Healing pass.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"aura/internal/aura"
	"aura/internal/codegen"
	"aura/internal/executor"
	"aura/internal/history"
	"aura/internal/llm"
	"aura/internal/logging"
	"aura/internal/planner"
	"aura/internal/registry"
	"aura/internal/router"
	"aura/internal/selfheal"
	"aura/internal/session"
)

// conversationSystemPrompt frames a plain chat reply, not a tool call.
const conversationSystemPrompt = "You are AURA, a concise desktop assistant. " +
	"Answer the user's question directly in at most three sentences. " +
	"This is a conversational reply, not a command — do not describe running a tool."

// conversationCacheSize bounds the per-session conversational reply cache
// (spec's "last 8 conversational turns" supplement).
const conversationCacheSize = 8

// affirmativeTokens are the tokens that confirm a pending risk_level=confirm
// tool call (spec's ConfirmationRequired follow-up protocol supplement).
var affirmativeTokens = map[string]struct{}{
	"yes": {}, "y": {}, "yeah": {}, "yep": {}, "confirm": {}, "confirmed": {},
	"do it": {}, "go ahead": {}, "sure": {}, "please do": {}, "ok": {}, "okay": {},
}

// NewTracerProvider builds a stdout-exporting TracerProvider writing spans
// to w. Passing nil discards spans (nullWriter), which is the default for a
// CLI invocation that didn't request --trace. Callers own its lifecycle and
// should call Shutdown on process exit.
func NewTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	if w == nil {
		w = nullWriter{}
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: building stdout exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp)), nil
}

// nullWriter discards spans by default; cmd/aura swaps this for os.Stdout
// when --trace is requested, keeping span export opt-in for a CLI tool.
type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

// pendingConfirmation remembers the tool call a risk_level=confirm
// rejection was raised for, so the very next affirmative utterance can
// re-run it with confirmation set.
type pendingConfirmation struct {
	ToolName string
	Args     map[string]any
}

type cacheEntry struct {
	hash  string
	reply string
}

// conversationCache is a tiny fixed-size ring of normalized-utterance-hash
// to cached reply, avoiding a repeat LLM call for an exact repeat question.
type conversationCache struct {
	entries []cacheEntry
}

func (c *conversationCache) lookup(hash string) (string, bool) {
	for _, e := range c.entries {
		if e.hash == hash {
			return e.reply, true
		}
	}
	return "", false
}

func (c *conversationCache) store(hash, reply string) {
	for _, e := range c.entries {
		if e.hash == hash {
			return
		}
	}
	c.entries = append(c.entries, cacheEntry{hash: hash, reply: reply})
	if len(c.entries) > conversationCacheSize {
		c.entries = c.entries[len(c.entries)-conversationCacheSize:]
	}
}

// Orchestrator wires every layer together behind the single Process entry
// point (spec §4.1).
type Orchestrator struct {
	reg       *registry.Registry
	exec      *executor.Executor
	router    *router.Router
	caps      *selfheal.CapabilityStore
	healer    *selfheal.Loop
	codegen   *codegen.Fallback
	planner   *planner.Planner
	llmClient llm.Client
	tracer    trace.Tracer
	sf        singleflight.Group
	audit     *logging.AuditWriter
	history   *history.Store

	mu               sync.Mutex
	pendingConfirm   map[*session.Session]pendingConfirmation
	convCache        map[*session.Session]*conversationCache
	fallbackFailures map[*session.Session]map[string]int
}

// New builds an Orchestrator. tp may be nil, in which case the global otel
// TracerProvider is used (itself a no-op unless the process configured
// one).
func New(
	reg *registry.Registry,
	exec *executor.Executor,
	rt *router.Router,
	caps *selfheal.CapabilityStore,
	healer *selfheal.Loop,
	cg *codegen.Fallback,
	pl *planner.Planner,
	llmClient llm.Client,
	tp trace.TracerProvider,
) *Orchestrator {
	var tracer trace.Tracer
	if tp != nil {
		tracer = tp.Tracer("aura/orchestrator")
	} else {
		tracer = otel.Tracer("aura/orchestrator")
	}
	return &Orchestrator{
		reg: reg, exec: exec, router: rt, caps: caps, healer: healer,
		codegen: cg, planner: pl, llmClient: llmClient, tracer: tracer,
		pendingConfirm:   make(map[*session.Session]pendingConfirmation),
		convCache:        make(map[*session.Session]*conversationCache),
		fallbackFailures: make(map[*session.Session]map[string]int),
	}
}

// SetAudit attaches an audit log sink; every subsequent Process call appends
// one AuditEntry line (spec §6 persisted state layout). Optional: a nil
// sink (the default) simply skips audit logging.
func (o *Orchestrator) SetAudit(w *logging.AuditWriter) {
	o.audit = w
}

// SetHistory attaches a queryable history index; every subsequent Process
// call is also indexed there for later search by tool or outcome.
// Optional: a nil store (the default) simply skips indexing.
func (o *Orchestrator) SetHistory(h *history.Store) {
	o.history = h
}

// Process is the Orchestrator's single entry point (spec §4.1 contract).
// Concurrent calls for the same session and the same (normalized)
// utterance are collapsed via singleflight so writes to session state and
// the capability store stay serialized per spec §5.
func (o *Orchestrator) Process(ctx context.Context, u aura.Utterance, sess *session.Session) aura.Response {
	ctx, span := o.tracer.Start(ctx, "orchestrator.process", trace.WithAttributes(
		attribute.String("aura.utterance_source", string(u.Source)),
	))
	defer span.End()

	sess.Record(u)
	start := time.Now()

	key := fmt.Sprintf("%p:%s", sess, normalizeUtterance(u.Text))
	v, _, _ := o.sf.Do(key, func() (interface{}, error) {
		return o.process(ctx, u, sess), nil
	})
	resp := v.(aura.Response)
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.String("aura.source_layer", string(resp.SourceLayer)),
		attribute.Bool("aura.ok", resp.OK),
		attribute.Bool("aura.used_llm", resp.UsedLLM),
	)

	errKind := ""
	if resp.Err != nil {
		errKind = string(resp.Err.Kind)
	}

	if o.audit != nil {
		entry := logging.AuditEntry{
			ID: u.ID, Utterance: u.Text, Layer: string(resp.SourceLayer), Tool: resp.Tool,
			OK: resp.OK, ElapsedMs: elapsed.Milliseconds(), Error: errKind,
		}
		if err := o.audit.Write(entry); err != nil {
			logging.For(logging.CategoryOrchestrator).Warnw("audit write failed", "error", err)
		}
	}

	if o.history != nil {
		entry := history.Entry{
			ID: u.ID, Utterance: u.Text, Layer: string(resp.SourceLayer), Tool: resp.Tool,
			OK: resp.OK, ElapsedMs: elapsed.Milliseconds(), Error: errKind,
		}
		if err := o.history.Record(entry); err != nil {
			logging.For(logging.CategoryOrchestrator).Warnw("history index failed", "error", err)
		}
	}
	return resp
}

func (o *Orchestrator) process(ctx context.Context, u aura.Utterance, sess *session.Session) aura.Response {
	log := logging.For(logging.CategoryOrchestrator)

	if resp, handled := o.tryConfirmationFollowUp(ctx, u, sess); handled {
		sess.RecordOutcome(resp)
		return resp
	}

	match := o.router.Classify(u.Text, o.reg.Snapshot(), o.caps.List())
	log.Debugw("classified utterance", "reason", match.Reason, "tool", match.ToolName, "confidence", match.Confidence)

	var resp aura.Response
	switch {
	case match.Reason == aura.ReasonConversation:
		resp = o.conversationReply(ctx, u, sess)
	case match.Reason != aura.ReasonNone && match.Confidence >= aura.ConfidenceHigh && o.reg.Has(match.ToolName):
		resp = o.runTool(ctx, match, sess)
	case match.Confidence >= aura.ConfidenceLow:
		resp = o.escalate(ctx, u, sess)
	default:
		resp = o.codegenFallback(ctx, u, sess)
	}

	sess.RecordOutcome(resp)
	return resp
}

// tryConfirmationFollowUp implements the ConfirmationRequired follow-up
// protocol: if the session has a pending confirm-gated tool call and this
// utterance is an affirmative token, re-run it with confirmation set
// instead of reclassifying.
func (o *Orchestrator) tryConfirmationFollowUp(ctx context.Context, u aura.Utterance, sess *session.Session) (aura.Response, bool) {
	o.mu.Lock()
	pending, ok := o.pendingConfirm[sess]
	o.mu.Unlock()
	if !ok || !isAffirmative(u.Text) {
		return aura.Response{}, false
	}

	o.mu.Lock()
	delete(o.pendingConfirm, sess)
	o.mu.Unlock()

	result := o.healer.Execute(ctx, pending.ToolName, pending.Args, executor.Policy{Confirmed: true})
	return resultToResponse(result, aura.Layer1, pending.ToolName), true
}

func isAffirmative(text string) bool {
	_, ok := affirmativeTokens[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// runTool is Layer 1: a direct, high-confidence Executor call (through
// Self-Healing). A ConfirmationRequired rejection is remembered against
// the session for the follow-up protocol above.
func (o *Orchestrator) runTool(ctx context.Context, match aura.IntentMatch, sess *session.Session) aura.Response {
	result := o.healer.Execute(ctx, match.ToolName, match.Args, executor.Policy{})
	if result.Error != nil && result.Error.Kind == aura.ErrConfirmationNeeded {
		o.mu.Lock()
		o.pendingConfirm[sess] = pendingConfirmation{ToolName: match.ToolName, Args: match.Args}
		o.mu.Unlock()
	}
	return resultToResponse(result, aura.Layer1, match.ToolName)
}

func resultToResponse(result *aura.InvocationResult, layer aura.SourceLayer, tool string) aura.Response {
	if result.OK {
		return aura.Response{Text: fmt.Sprintf("%v", result.Value), OK: true, SourceLayer: layer, Tool: tool}
	}
	return aura.Response{Text: result.Error.Error(), OK: false, SourceLayer: layer, Tool: tool, Err: result.Error}
}

// escalate implements the Layer 1.5 vs Layer 2 tie-break (spec §4.1's
// escalation policy): a plan is preferred when the utterance carries
// multi-step markers, or when Layer 1.5 has already failed twice for this
// exact utterance within the session.
func (o *Orchestrator) escalate(ctx context.Context, u aura.Utterance, sess *session.Session) aura.Response {
	if planner.NeedsPlan(u.Text) || o.fallbackFailureCount(sess, u.Text) >= 2 {
		return o.planner.Run(ctx, u.Text)
	}
	return o.codegenFallback(ctx, u, sess)
}

func (o *Orchestrator) codegenFallback(ctx context.Context, u aura.Utterance, sess *session.Session) aura.Response {
	resp := o.codegen.Handle(ctx, u.Text)
	if !resp.OK {
		o.recordFallbackFailure(sess, u.Text)
		return resp
	}
	if resp.GeneratedCode != "" {
		o.healer.ProposePromotion(u.Text, resp.GeneratedCode)
	}
	return resp
}

func (o *Orchestrator) fallbackFailureCount(sess *session.Session, utterance string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.fallbackFailures[sess]
	if !ok {
		return 0
	}
	return m[normalizeUtterance(utterance)]
}

func (o *Orchestrator) recordFallbackFailure(sess *session.Session, utterance string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.fallbackFailures[sess]
	if !ok {
		m = make(map[string]int)
		o.fallbackFailures[sess] = m
	}
	m[normalizeUtterance(utterance)]++
}

// conversationReply is the "conversation" layer: a plain chat completion,
// cached per session for exact repeat questions.
func (o *Orchestrator) conversationReply(ctx context.Context, u aura.Utterance, sess *session.Session) aura.Response {
	hash := normalizeUtterance(u.Text)

	o.mu.Lock()
	cache, ok := o.convCache[sess]
	if !ok {
		cache = &conversationCache{}
		o.convCache[sess] = cache
	}
	if cached, hit := cache.lookup(hash); hit {
		o.mu.Unlock()
		return aura.Response{Text: cached, OK: true, SourceLayer: aura.LayerConversation}
	}
	o.mu.Unlock()

	if o.llmClient == nil {
		return aura.Response{
			Text: "I can't chat without an LLM configured.", OK: false,
			SourceLayer: aura.LayerConversation,
			Err:         aura.NewError(aura.ErrNoCredentials, "no LLM client configured", nil),
		}
	}

	text, _, llmErr := o.llmClient.Complete(ctx, conversationSystemPrompt, u.Text)
	if llmErr != nil {
		return aura.Response{Text: llmErr.Error(), OK: false, UsedLLM: true, SourceLayer: aura.LayerConversation, Err: llmErr}
	}

	o.mu.Lock()
	cache.store(hash, text)
	o.mu.Unlock()

	return aura.Response{Text: text, OK: true, UsedLLM: true, SourceLayer: aura.LayerConversation}
}

func normalizeUtterance(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(text))))
	return hex.EncodeToString(sum[:])
}
