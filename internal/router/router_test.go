package router

import (
	"testing"

	"aura/internal/aura"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTools() []aura.ToolSpec {
	return []aura.ToolSpec{
		{
			Name:      "open_app",
			Keywords:  []string{"open", "launch", "start", "app", "application"},
			Phrases:   []string{"open notes", "launch the browser"},
			ArgSchema: map[string]aura.ArgSpec{"name": {Type: aura.ArgString, Required: true}},
		},
		{
			Name:     "set_volume",
			Keywords: []string{"volume", "set", "audio", "sound"},
			Phrases:  []string{"set the volume to 50", "turn the volume up"},
		},
		{
			Name:     "screenshot",
			Keywords: []string{"screenshot", "capture", "screen"},
			Phrases:  []string{"take a screenshot"},
		},
	}
}

func TestClassifyConversationDetector(t *testing.T) {
	r := New()
	m := r.Classify("what is the capital of France", testTools(), nil)
	assert.Equal(t, aura.ReasonConversation, m.Reason)
	assert.Equal(t, 0.95, m.Confidence)
	assert.Empty(t, m.ToolName)
}

func TestClassifyPatternPhaseWinsOverConversationMarkers(t *testing.T) {
	r := New()
	m := r.Classify("what is the current volume", testTools(), nil)
	assert.Equal(t, aura.ReasonPattern, m.Reason)
	assert.Equal(t, "get_volume", m.ToolName)
	assert.Equal(t, 0.95, m.Confidence)
}

func TestClassifyPatternPopulatesNamedArgs(t *testing.T) {
	r := New()
	m := r.Classify("open Notes", testTools(), nil)
	require.Equal(t, aura.ReasonPattern, m.Reason)
	assert.Equal(t, "open_app", m.ToolName)
	assert.Equal(t, "Notes", m.Args["name"])
}

func TestClassifyPatternSetVolumeCapturesLevel(t *testing.T) {
	r := New()
	m := r.Classify("set the volume to 42", testTools(), nil)
	require.Equal(t, aura.ReasonPattern, m.Reason)
	assert.Equal(t, "set_volume", m.ToolName)
	assert.Equal(t, "42", m.Args["level"])
}

func TestClassifyKeywordPhase(t *testing.T) {
	r := New()
	// Doesn't match any built-in pattern or conversation marker, but shares
	// three of four "set_volume" keywords.
	m := r.Classify("please adjust audio sound volume", testTools(), nil)
	require.Equal(t, aura.ReasonKeyword, m.Reason)
	assert.Equal(t, "set_volume", m.ToolName)
	assert.GreaterOrEqual(t, m.Confidence, aura.ConfidenceLow)
	assert.LessOrEqual(t, m.Confidence, aura.ConfidenceHigh)
}

func TestClassifyFuzzyPhase(t *testing.T) {
	r := New()
	// Missing one letter from "take a screenshot" but still a true
	// subsequence of it, so it clears neither the exact pattern nor the
	// keyword phase, only the fuzzy one.
	m := r.Classify("take a screnshot", testTools(), nil)
	require.Equal(t, aura.ReasonFuzzy, m.Reason)
	assert.Equal(t, "screenshot", m.ToolName)
	assert.GreaterOrEqual(t, m.Confidence, aura.ConfidenceLow)
}

func TestClassifyUnknownFallsThrough(t *testing.T) {
	r := New()
	m := r.Classify("xyzzy plugh qux", testTools(), nil)
	assert.Equal(t, aura.ReasonNone, m.Reason)
	assert.True(t, m.Unknown())
}

func TestClassifyPromotedCapabilityMatchesByTrigger(t *testing.T) {
	r := New()
	caps := []aura.Capability{
		{
			Name:         "morning_routine",
			Triggers:     []string{"morning", "routine", "coffee"},
			ToolName:     "run_program",
			ArgsTemplate: map[string]any{"source": "morning.go"},
			Source:       aura.CapabilityPromoted,
		},
	}
	m := r.Classify("run my morning coffee routine please", nil, caps)
	require.Equal(t, aura.ReasonKeyword, m.Reason)
	assert.Equal(t, "run_program", m.ToolName)
	assert.Equal(t, "morning.go", m.Args["source"])
}

func TestClassifyPromotedCapabilityInjectsUtteranceAsInput(t *testing.T) {
	r := New()
	caps := []aura.Capability{
		{
			Name:         "convert_case",
			Triggers:     []string{"uppercase"},
			ToolName:     "run_program",
			ArgsTemplate: map[string]any{"code": "..."},
			Source:       aura.CapabilityPromoted,
		},
	}
	m := r.Classify("make this uppercase", nil, caps)
	require.Equal(t, "run_program", m.ToolName)
	assert.Equal(t, "make this uppercase", m.Args["input"])
	assert.Equal(t, "...", m.Args["code"])
}

func TestClassifyNonRunProgramMatchGetsNoInputArg(t *testing.T) {
	r := New()
	m := r.Classify("open Notes", testTools(), nil)
	require.Equal(t, "open_app", m.ToolName)
	assert.Equal(t, "Notes", m.Args["name"])
	_, hasInput := m.Args["input"]
	assert.False(t, hasInput)
}

func TestClassifyBuiltinsTakePrecedenceOverPromotedOnTie(t *testing.T) {
	r := New()
	caps := []aura.Capability{
		{Name: "fake_screenshot", Triggers: []string{"screenshot", "capture", "screen"}, ToolName: "custom_tool"},
	}
	m := r.Classify("please capture the screen screenshot", testTools(), caps)
	require.Equal(t, aura.ReasonKeyword, m.Reason)
	assert.Equal(t, "screenshot", m.ToolName)
}

func TestClassifyIsDeterministic(t *testing.T) {
	r := New()
	tools := testTools()
	first := r.Classify("launch the browser app", tools, nil)
	second := r.Classify("launch the browser app", tools, nil)
	assert.Equal(t, first, second)
}

func TestLevenshteinAndSimilarity(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 1, levenshtein("abc", "abd"))
	assert.Equal(t, 1.0, normalizedSimilarity("", ""))
	assert.InDelta(t, 0.666, normalizedSimilarity("abc", "abd"), 0.01)
}
