package router

import (
	"reflect"
	"testing"

	"aura/internal/aura"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestClassifyIsDeterministicProperty checks the Router's determinism
// invariant (spec §8): classifying the same utterance against the same
// tool/capability snapshot always returns the same IntentMatch, across an
// arbitrary sample of utterances, not just the handful of fixed cases in
// router_test.go.
func TestClassifyIsDeterministicProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	r := New()
	tools := testTools()

	properties.Property("classify is a pure function of its inputs", prop.ForAll(
		func(utterance string) bool {
			first := r.Classify(utterance, tools, nil)
			second := r.Classify(utterance, tools, nil)
			return reflect.DeepEqual(first, second)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestConversationMarkersOverrideKeywordsProperty checks the spec §8
// invariant that a conversation-marker utterance is classified as
// conversation regardless of how many tool keywords it also happens to
// contain, as long as it doesn't match a pattern first.
func TestConversationMarkersOverrideKeywordsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	r := New()
	tools := testTools()

	questionWords := []string{"what", "why", "how", "when", "where", "who"}

	properties.Property("a leading question word wins over keyword overlap", prop.ForAll(
		func(idx int) bool {
			word := questionWords[idx%len(questionWords)]
			utterance := word + " is the volume audio sound set"
			m := r.Classify(utterance, tools, nil)
			return m.Reason == aura.ReasonConversation
		},
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

// TestConfidenceAlwaysBoundedProperty checks the spec §8 invariant that
// Classify never returns a confidence outside [0, 1], and that an
// unmatched utterance always carries exactly 0.0 confidence — over an
// arbitrary sample of utterances rather than a handful of fixed strings.
func TestConfidenceAlwaysBoundedProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	r := New()
	tools := testTools()

	properties.Property("confidence stays within [0, 1]", prop.ForAll(
		func(utterance string) bool {
			m := r.Classify(utterance, tools, nil)
			return m.Confidence >= 0.0 && m.Confidence <= 1.0
		},
		gen.AlphaString(),
	))

	properties.Property("ReasonNone always carries zero confidence", prop.ForAll(
		func(utterance string) bool {
			m := r.Classify(utterance, tools, nil)
			if m.Reason != aura.ReasonNone {
				return true
			}
			return m.Confidence == 0.0
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
