// Package codegen implements the Code-Gen Fallback (Layer 1.5, spec §4.6):
// when the Router can't confidently match a tool, this layer asks the LLM
// to write a small Go program, runs it in the Code Sandbox, and — on
// failure — retries once with the sandbox's error fed back into the
// prompt. Grounded on the teacher's internal/autopoiesis/toolgen.go
// generateToolCode/regenerateToolCodeWithFeedback pair and its
// extractCodeBlock helper, narrowed to the single `RunTool(string) (string,
// error)` entry point the Code Sandbox expects instead of toolgen's
// general tool-authoring surface.
package codegen

import (
	"context"
	"strings"

	"aura/internal/aura"
	"aura/internal/llm"
	"aura/internal/logging"
	"aura/internal/sandbox"
)

const systemPrompt = `You write small, self-contained Go programs that are interpreted by Yaegi, not compiled.
Rules:
- Define exactly one function: func RunTool(input string) (string, error)
- Only import packages from this allowed list: %s
- Never use panic, os/exec, net, or unsafe
- Return errors instead of panicking
- Keep the program short and focused on the user's request

Respond with a single ` + "```go" + ` code block and nothing else.`

// Fallback drives Layer 1.5: generate, run, and — once — repair.
type Fallback struct {
	llmClient llm.Client
	sandbox   *sandbox.Sandbox
	allowed   []string
}

// New builds a Fallback bound to an LLM client and the shared sandbox.
func New(client llm.Client, sb *sandbox.Sandbox, allowedImports []string) *Fallback {
	return &Fallback{llmClient: client, sandbox: sb, allowed: allowedImports}
}

// Handle generates code for utterance, runs it, and on a sandbox failure
// makes one repair attempt with the error appended to the prompt, matching
// spec §4.6's "LLM call → sandbox run → on failure, one repair attempt
// with the error fed back" contract.
func (f *Fallback) Handle(ctx context.Context, utterance string) aura.Response {
	log := logging.For(logging.CategoryCodegen)

	code, usage, llmErr := f.generate(ctx, utterance, "")
	if llmErr != nil {
		return failResponse(llmErr)
	}
	log.Debugw("generated candidate code", "utterance", utterance, "prompt_tokens", usage.PromptTokens)

	out, sandboxErr := f.sandbox.Run(ctx, code, utterance)
	if sandboxErr == nil {
		return aura.Response{Text: out, OK: true, UsedLLM: true, SourceLayer: aura.Layer1_5, GeneratedCode: code}
	}

	log.Warnw("first attempt failed, repairing", "error", sandboxErr)
	repaired, _, llmErr := f.generate(ctx, utterance, sandboxErr.Error())
	if llmErr != nil {
		return failResponse(llmErr)
	}

	out, sandboxErr = f.sandbox.Run(ctx, repaired, utterance)
	if sandboxErr != nil {
		log.Warnw("repair attempt also failed", "error", sandboxErr)
		return failResponse(sandboxErr)
	}
	return aura.Response{Text: out, OK: true, UsedLLM: true, SourceLayer: aura.Layer1_5, GeneratedCode: repaired}
}

func (f *Fallback) generate(ctx context.Context, utterance, priorError string) (string, llm.Usage, *aura.Error) {
	sys := buildSystemPrompt(f.allowed)
	user := "User request: " + utterance
	if priorError != "" {
		user += "\n\nYour previous attempt failed with this error:\n" + priorError + "\nFix it."
	}

	text, usage, err := f.llmClient.Complete(ctx, sys, user)
	if err != nil {
		return "", usage, err
	}
	return extractCodeBlock(text), usage, nil
}

func buildSystemPrompt(allowed []string) string {
	return strings.Replace(systemPrompt, "%s", strings.Join(allowed, ", "), 1)
}

func failResponse(err *aura.Error) aura.Response {
	return aura.Response{OK: false, UsedLLM: true, SourceLayer: aura.Layer1_5, Err: err}
}

// extractCodeBlock pulls the fenced ```go block out of an LLM response,
// falling back to the raw text if the model didn't fence it.
func extractCodeBlock(text string) string {
	const fence = "```go"
	if idx := strings.Index(text, fence); idx != -1 {
		start := idx + len(fence)
		if end := strings.Index(text[start:], "```"); end != -1 {
			return strings.TrimSpace(text[start : start+end])
		}
	}
	if idx := strings.Index(text, "```"); idx != -1 {
		start := idx + 3
		if end := strings.Index(text[start:], "```"); end != -1 {
			return strings.TrimSpace(text[start : start+end])
		}
	}
	return strings.TrimSpace(text)
}
