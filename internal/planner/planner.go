// Package planner implements the Planner / Agentic Layer (Layer 2, spec
// §4.7): a decomposition gate, LLM-driven plan generation validated
// against a JSON Schema, and sequential execution of the resulting steps
// through the Tool Executor. Grounded on the teacher's
// internal/campaign/decomposer.go — the LLM-proposes-a-structured-plan,
// validate, reject-and-reask-once, then-execute shape — narrowed from
// campaign's multi-phase/Mangle-validated build plans down to a flat,
// single-shot sequence of tool invocations, since AURA plans are not
// persisted or resumed across process restarts (spec §4.7).
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"aura/internal/aura"
	"aura/internal/executor"
	"aura/internal/llm"
	"aura/internal/logging"
	"aura/internal/registry"
)

// multiStepMarkers are the conjunctions/connectives spec §4.1's escalation
// policy names as evidence a request needs more than one tool call.
var multiStepMarkers = []string{" and then ", " then ", " after that ", " after ", ", then", "; then"}

const planSchemaJSON = `{
  "type": "object",
  "required": ["steps"],
  "properties": {
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["tool_name", "on_failure"],
        "properties": {
          "tool_name": {"type": "string"},
          "args": {"type": "object"},
          "on_failure": {"type": "string", "enum": ["abort", "continue", "retry"]},
          "retry_count": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`

// Planner decomposes multi-step utterances into a Plan and runs it.
type Planner struct {
	llmClient llm.Client
	exec      *executor.Executor
	reg       *registry.Registry
	schema    *jsonschema.Schema
}

// New builds a Planner, compiling the plan JSON Schema once at construction
// so Run never pays that cost per utterance.
func New(client llm.Client, exec *executor.Executor, reg *registry.Registry) (*Planner, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("plan.json", strings.NewReader(planSchemaJSON)); err != nil {
		return nil, fmt.Errorf("planner: failed to load plan schema: %w", err)
	}
	schema, err := compiler.Compile("plan.json")
	if err != nil {
		return nil, fmt.Errorf("planner: failed to compile plan schema: %w", err)
	}
	return &Planner{llmClient: client, exec: exec, reg: reg, schema: schema}, nil
}

// NeedsPlan implements the decomposition gate: a deterministic heuristic,
// not an LLM call, so the gate itself stays cheap and fast (spec §4.1/§4.7).
// It looks for multi-step connectives or more than one imperative verb.
func NeedsPlan(utterance string) bool {
	lower := " " + strings.ToLower(strings.TrimSpace(utterance)) + " "
	for _, marker := range multiStepMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return countImperativeVerbs(lower) > 1
}

// countImperativeVerbs is a small stdlib-only tokenizer: it counts how many
// of a fixed set of common imperative command verbs appear in the
// utterance. More than one is treated as evidence of multiple objectives.
func countImperativeVerbs(lower string) int {
	verbs := []string{"open", "close", "set", "mute", "unmute", "lock", "sleep", "shutdown",
		"create", "delete", "move", "write", "read", "click", "type", "press", "take", "send",
		"launch", "start", "stop", "install", "copy"}
	count := 0
	for _, v := range verbs {
		if strings.Contains(lower, " "+v+" ") || strings.Contains(lower, " "+v) {
			count++
		}
	}
	return count
}

// rawPlan mirrors the JSON shape the LLM is asked to return; it decouples
// wire parsing from aura.Plan's internal representation.
type rawPlan struct {
	Steps []rawStep `json:"steps"`
}

type rawStep struct {
	ToolName   string         `json:"tool_name"`
	Args       map[string]any `json:"args"`
	OnFailure  string         `json:"on_failure"`
	RetryCount int            `json:"retry_count"`
}

// Run proposes a plan for utterance, validates it, executes its steps
// sequentially through the Tool Executor, and reports partial progress
// regardless of the terminal outcome (spec §4.7).
func (p *Planner) Run(ctx context.Context, utterance string) aura.Response {
	log := logging.For(logging.CategoryPlanner)

	plan, err := p.proposeValidPlan(ctx, utterance)
	if err != nil {
		return aura.Response{OK: false, UsedLLM: true, SourceLayer: aura.Layer2, Err: err}
	}

	var completed, failed int
	var lastErr *aura.Error
	for _, step := range plan.Steps {
		result := p.exec.Execute(ctx, step.ToolName, step.Args, executor.Policy{Confirmed: true})
		if result.OK {
			completed++
			continue
		}

		failed++
		lastErr = result.Error
		log.Warnw("plan step failed", "tool", step.ToolName, "on_failure", step.OnFailure, "error", result.Error)

		switch step.OnFailure {
		case aura.OnFailureContinue:
			continue
		case aura.OnFailureRetry:
			if retried := p.retryStep(ctx, step); retried {
				completed++
				failed--
				continue
			}
			return p.partial(plan, completed, failed, lastErr)
		default: // abort, including the zero value
			return p.partial(plan, completed, failed, lastErr)
		}
	}

	text := fmt.Sprintf("Completed %d/%d steps.", completed, len(plan.Steps))
	return aura.Response{Text: text, OK: failed == 0, UsedLLM: true, SourceLayer: aura.Layer2, Err: lastErr}
}

func (p *Planner) retryStep(ctx context.Context, step aura.PlanStep) bool {
	attempts := step.RetryCount
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if result := p.exec.Execute(ctx, step.ToolName, step.Args, executor.Policy{Confirmed: true}); result.OK {
			return true
		}
	}
	return false
}

func (p *Planner) partial(plan *aura.Plan, completed, failed int, lastErr *aura.Error) aura.Response {
	text := fmt.Sprintf("Completed %d/%d steps before stopping.", completed, len(plan.Steps))
	return aura.Response{Text: text, OK: false, UsedLLM: true, SourceLayer: aura.Layer2, Err: lastErr}
}

// proposeValidPlan asks the LLM for a plan and validates it against both
// the JSON Schema and the live tool registry. On the first validation
// failure it re-asks once with the violation described, per spec §4.7's
// "reject and re-ask once" rule; a second failure is terminal.
func (p *Planner) proposeValidPlan(ctx context.Context, utterance string) (*aura.Plan, *aura.Error) {
	plan, raw, llmErr := p.requestPlan(ctx, utterance, "")
	if llmErr != nil {
		return nil, llmErr
	}

	if violation := p.validate(raw); violation != "" {
		plan, raw, llmErr = p.requestPlan(ctx, utterance, violation)
		if llmErr != nil {
			return nil, llmErr
		}
		if violation := p.validate(raw); violation != "" {
			return nil, aura.NewError(aura.ErrBadArgs, "plan failed validation twice: "+violation, nil)
		}
	}

	return plan, nil
}

func (p *Planner) validate(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "plan is not valid JSON: " + err.Error()
	}
	if err := p.schema.Validate(v); err != nil {
		return "schema violation: " + err.Error()
	}

	var parsed rawPlan
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "plan does not match expected shape: " + err.Error()
	}
	for _, step := range parsed.Steps {
		spec, ok := p.reg.Lookup(step.ToolName)
		if !ok {
			return fmt.Sprintf("unknown tool %q", step.ToolName)
		}
		if _, err := registry.Coerce(spec, step.Args); err != nil {
			return fmt.Sprintf("tool %q: %v", step.ToolName, err)
		}
	}
	return ""
}

func (p *Planner) requestPlan(ctx context.Context, utterance, priorViolation string) (*aura.Plan, json.RawMessage, *aura.Error) {
	sys := p.systemPrompt()
	user := "User request: " + utterance
	if priorViolation != "" {
		user += "\n\nYour previous plan was rejected: " + priorViolation + "\nReturn a corrected plan."
	}

	text, _, err := p.llmClient.Complete(ctx, sys, user)
	if err != nil {
		return nil, nil, err
	}

	raw := json.RawMessage(extractJSON(text))
	var parsed rawPlan
	if jsonErr := json.Unmarshal(raw, &parsed); jsonErr != nil {
		return nil, raw, aura.NewError(aura.ErrLLMBadResponse, "planner could not parse LLM plan", jsonErr)
	}

	plan := &aura.Plan{ID: uuid.NewString(), Steps: make([]aura.PlanStep, 0, len(parsed.Steps))}
	for _, s := range parsed.Steps {
		plan.Steps = append(plan.Steps, aura.PlanStep{
			ToolName:   s.ToolName,
			Args:       s.Args,
			OnFailure:  aura.FailureAction(s.OnFailure),
			RetryCount: s.RetryCount,
		})
	}
	return plan, raw, nil
}

func (p *Planner) systemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are a planning assistant. Decompose the user's request into a sequence of tool calls.\n")
	sb.WriteString("Only use tools from this catalog (name: description [args]):\n")
	for _, spec := range p.reg.Snapshot() {
		sb.WriteString(fmt.Sprintf("- %s: %s [", spec.Name, spec.Description))
		first := true
		for name, arg := range spec.ArgSchema {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(fmt.Sprintf("%s:%s", name, arg.Type))
		}
		sb.WriteString("]\n")
	}
	sb.WriteString("\nRespond with JSON only, matching this shape:\n")
	sb.WriteString(`{"steps": [{"tool_name": "...", "args": {...}, "on_failure": "abort|continue|retry", "retry_count": 0}]}`)
	sb.WriteString("\nDefault on_failure to \"abort\" unless the user's request tolerates partial failure.")
	return sb.String()
}

// extractJSON pulls the first top-level JSON object out of text, tolerating
// markdown code fences the way the teacher's cleanJSONResponse does.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
