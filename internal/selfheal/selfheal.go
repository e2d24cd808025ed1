package selfheal

import (
	"context"
	"regexp"
	"strings"

	"aura/internal/aura"
	"aura/internal/config"
	"aura/internal/executor"
	"aura/internal/logging"
)

// Loop is the Self-Healing Loop (Layer 3): it wraps Tool Executor calls
// with bounded retry/backoff, attempts constrained dependency repair on
// aura.ErrMissingDependency, and owns the promoted Capability store.
type Loop struct {
	exec  *executor.Executor
	caps  *CapabilityStore
	cfg   config.SelfHealConfig
}

// NewLoop builds a Self-Healing Loop bound to the shared Executor and
// Capability store.
func NewLoop(exec *executor.Executor, caps *CapabilityStore, cfg config.SelfHealConfig) *Loop {
	return &Loop{exec: exec, caps: caps, cfg: cfg}
}

// missingModulePattern extracts a Go import path from the *aura.Error's
// message when the Code Sandbox or Executor reports ErrMissingDependency,
// e.g. "missing dependency: github.com/foo/bar".
var missingModulePattern = regexp.MustCompile(`[A-Za-z0-9_.\-]+(?:/[A-Za-z0-9_.\-]+)+`)

// Execute runs a tool invocation through the Tool Executor with the
// recovery matrix from spec §7: retryable kinds (Timeout, Unavailable,
// LlmNetwork, LlmRateLimit) get bounded exponential-backoff retries;
// MissingDependency gets exactly one constrained repair attempt via the
// install_dependency tool before a single retry; everything else surfaces
// immediately, since the Executor itself never retries (spec §4.4).
func (l *Loop) Execute(ctx context.Context, toolName string, args map[string]any, policy executor.Policy) *aura.InvocationResult {
	log := logging.For(logging.CategorySelfHeal)

	var result *aura.InvocationResult
	healErr := Retry(ctx, l.cfg, func() *aura.Error {
		result = l.exec.Execute(ctx, toolName, args, policy)
		return result.Error
	})

	if healErr != nil && healErr.Kind == aura.ErrMissingDependency {
		module := extractModule(healErr.Msg)
		if module != "" {
			log.Infow("attempting dependency repair", "tool", toolName, "module", module)
			repairResult := l.exec.Execute(ctx, "install_dependency", map[string]any{"module": module}, executor.Policy{Confirmed: true})
			if repairResult.OK {
				result = l.exec.Execute(ctx, toolName, args, policy)
			}
		}
	}

	return result
}

func extractModule(msg string) string {
	return missingModulePattern.FindString(strings.TrimSpace(msg))
}

// Capabilities exposes the Loop's Capability store for promotion proposals
// from the Code-Gen Fallback layer and the CLI's `aura caps` commands.
func (l *Loop) Capabilities() *CapabilityStore {
	return l.caps
}

// genericTemplatePatterns are shapes of a verb + generic object that
// generalize across repeat invocations, the way the teacher's
// toolTypePatterns (validator/converter/parser/analyzer/formatter) name a
// command by its shape rather than its literal text.
var genericTemplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^convert\s+\w+\s+to\s+\w+$`),
	regexp.MustCompile(`(?i)^validate\s+(the\s+)?\w+$`),
	regexp.MustCompile(`(?i)^parse\s+(the\s+)?\w+$`),
	regexp.MustCompile(`(?i)^(analyze|summarize|format)\s+(the\s+)?\w+$`),
	regexp.MustCompile(`(?i)^(check|count)\s+\w+$`),
}

// literalDataPattern flags an utterance as carrying one-off data (a number,
// a quoted string, a path) rather than a reusable template; such utterances
// never generalize regardless of verb shape.
var literalDataPattern = regexp.MustCompile(`[0-9"'/\\]`)

// isGeneralizableUtterance decides whether a successful Layer 1.5 run's
// utterance matches a generalizable template eligible for Capability
// promotion (spec §4.8.3's "given a successful program that matches a
// generalizable utterance template"). It is a cheap heuristic, not an LLM
// call, mirroring the decomposition gate's planner.NeedsPlan shape.
func isGeneralizableUtterance(utterance string) bool {
	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" || literalDataPattern.MatchString(trimmed) {
		return false
	}
	for _, p := range genericTemplatePatterns {
		if p.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// ProposePromotion implements skill promotion (spec §4.8.3): when utterance
// matches a generalizable template, code (the program that just ran it
// successfully) is synthesized into a `run_program` Capability and
// persisted. A rejected or already-present promotion is logged, never
// surfaced — a promotion outcome never changes the response the caller
// already has.
func (l *Loop) ProposePromotion(utterance, code string) {
	if !isGeneralizableUtterance(utterance) {
		return
	}
	log := logging.For(logging.CategorySelfHeal)
	trigger := strings.ToLower(strings.TrimSpace(utterance))
	newCap := aura.Capability{
		Name:         "codegen_" + slugify(trigger),
		Triggers:     []string{trigger},
		ToolName:     "run_program",
		ArgsTemplate: map[string]any{"code": code},
	}
	if err := l.caps.Promote(newCap); err != nil {
		log.Debugw("skill promotion skipped", "utterance", utterance, "error", err)
	}
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns an utterance into a stable Capability name fragment.
func slugify(s string) string {
	return strings.Trim(nonSlugChars.ReplaceAllString(s, "_"), "_")
}
