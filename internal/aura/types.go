// Package aura holds the data model shared across every layer of the
// Hybrid Orchestrator: utterances, intent matches, tool specs, plans,
// capabilities, and the uniform response shape returned to the UI/CLI.
package aura

import "time"

// Source tags where an utterance originated.
type Source string

const (
	SourceVoice Source = "voice"
	SourceText  Source = "text"
)

// Utterance is raw user input. Immutable once created.
type Utterance struct {
	ID     uint64
	Text   string
	Source Source
}

// MatchReason identifies which Router phase produced an IntentMatch.
type MatchReason string

const (
	ReasonPattern      MatchReason = "pattern"
	ReasonKeyword      MatchReason = "keyword"
	ReasonFuzzy        MatchReason = "fuzzy"
	ReasonConversation MatchReason = "conversation"
	ReasonNone         MatchReason = "none"
)

// Confidence thresholds are fixed contract values (spec §3).
const (
	ConfidenceHigh = 0.85
	ConfidenceLow  = 0.50
)

// IntentMatch is produced by the Router: a candidate tool invocation with
// a confidence score and the phase that produced it.
type IntentMatch struct {
	ToolName   string
	Args       map[string]any
	Confidence float64
	Reason     MatchReason
}

// Unknown reports whether the Router failed to classify the utterance.
func (m IntentMatch) Unknown() bool {
	return m.ToolName == "" && m.Reason != ReasonConversation
}

// RiskLevel gates whether a tool invocation requires explicit confirmation.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskConfirm RiskLevel = "confirm"
)

// ArgType is the coercion target for a tool argument.
type ArgType string

const (
	ArgString ArgType = "string"
	ArgInt    ArgType = "int"
	ArgFloat  ArgType = "float"
	ArgBool   ArgType = "bool"
	ArgEnum   ArgType = "enum"
)

// ArgSpec describes one named argument of a ToolSpec.
type ArgSpec struct {
	Type       ArgType
	Required   bool
	Default    any
	Enum       []string
	Min, Max   float64
	HasRange   bool
}

// ToolSpec is the registry's catalog entry for one tool.
type ToolSpec struct {
	Name        string
	Description string
	ArgSchema   map[string]ArgSpec
	RiskLevel   RiskLevel
	Requires    []string // capability tags, e.g. "os.audio", "windowing", "network"
	HandlerID   string
	TimeoutMs   int // 0 means use the executor default (30s)

	// Keywords and Phrases feed the Intent Router's keyword and fuzzy
	// phases (spec §4.2 steps 3-4). Keywords is a lowercase, deduplicated
	// token set; Phrases are canonical example utterances for the tool.
	Keywords []string
	Phrases  []string
}

// ErrorKind is the closed error taxonomy from spec §7.
type ErrorKind string

const (
	ErrUnknownTool         ErrorKind = "UnknownTool"
	ErrBadArgs             ErrorKind = "BadArgs"
	ErrUnsupported         ErrorKind = "Unsupported"
	ErrConfirmationNeeded  ErrorKind = "ConfirmationRequired"
	ErrTimeout             ErrorKind = "Timeout"
	ErrUnavailable         ErrorKind = "Unavailable"
	ErrMissingDependency   ErrorKind = "MissingDependency"
	ErrSandboxViolation    ErrorKind = "SandboxViolation"
	ErrLLMNetwork          ErrorKind = "LlmNetwork"
	ErrLLMRateLimit        ErrorKind = "LlmRateLimit"
	ErrLLMAuth             ErrorKind = "LlmAuth"
	ErrLLMBadResponse      ErrorKind = "LlmBadResponse"
	ErrNoCredentials       ErrorKind = "NoCredentials"
	ErrInternal            ErrorKind = "Internal"
)

// Error wraps an ErrorKind with a human message and optional cause.
// It implements Unwrap so errors.Is/errors.As work against the cause.
type Error struct {
	Kind  ErrorKind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, &Error{Kind: X}) style comparisons by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError constructs an *Error, optionally wrapping a cause.
func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Retryable reports whether the recovery matrix (spec §7) retries this kind.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrTimeout, ErrUnavailable, ErrLLMNetwork, ErrLLMRateLimit:
		return true
	default:
		return false
	}
}

// InvocationResult is the outcome of one Tool Executor call.
type InvocationResult struct {
	OK         bool
	Value      any
	Error      *Error
	ElapsedMs  int64
	RetriesUsed int
}

// FailureAction controls what a Plan does when a step fails.
type FailureAction string

const (
	OnFailureAbort    FailureAction = "abort"
	OnFailureContinue FailureAction = "continue"
	OnFailureRetry    FailureAction = "retry"
)

// PlanStep is one tool invocation within a Plan.
type PlanStep struct {
	ToolName    string
	Args        map[string]any
	OnFailure   FailureAction
	RetryCount  int // only meaningful when OnFailure == OnFailureRetry
}

// Plan is an ordered, finite, acyclic sequence of tool invocations produced
// by the Planner (Layer 2).
type Plan struct {
	ID    string
	Steps []PlanStep
}

// CapabilitySource records whether a routing rule shipped with AURA or was
// learned at runtime via promotion.
type CapabilitySource string

const (
	CapabilityBuiltin   CapabilitySource = "builtin"
	CapabilityPromoted  CapabilitySource = "promoted"
)

// Capability is a promoted, persisted routing rule that lets the Router
// reach a tool without calling the LLM.
type Capability struct {
	Name         string
	Triggers     []string
	ToolName     string
	ArgsTemplate map[string]any
	Source       CapabilitySource
	CreatedAt    time.Time
}

// SourceLayer identifies which layer produced a Response.
type SourceLayer string

const (
	LayerConversation SourceLayer = "conversation"
	Layer1            SourceLayer = "layer1"
	Layer1_5          SourceLayer = "layer1.5"
	Layer2            SourceLayer = "layer2"
)

// Response is the uniform result every layer returns to the Orchestrator,
// and the Orchestrator returns to the UI/CLI.
type Response struct {
	Text        string
	OK          bool
	UsedLLM     bool
	SourceLayer SourceLayer
	Tool        string // the tool invoked, if any; empty for conversation/codegen/plan replies
	Err         *Error

	// GeneratedCode is the Code Sandbox source that produced Text, set only
	// on a successful Layer 1.5 run. The Orchestrator reads it to propose
	// Capability promotion (spec §4.8.3); it never reaches the user.
	GeneratedCode string
}
