// Package router implements the Intent Router (Layer 1): a pure,
// allocation-light classifier that maps an utterance to a candidate tool
// invocation without ever calling the LLM. It is the fast path every
// utterance is checked against before escalating to the Code-Gen Fallback
// or Planner.
package router

import (
	"regexp"
	"strings"

	"github.com/sahilm/fuzzy"

	"aura/internal/aura"
)

// CompiledPattern is one entry in the Router's pattern table: a regex whose
// named capture groups populate IntentMatch.Args when it matches.
type CompiledPattern struct {
	Regex    *regexp.Regexp
	ToolName string
	ArgNames []string
}

// keywordThreshold and fuzzyThreshold are the fixed contract values (spec
// §4.2 steps 3-4).
const (
	keywordThreshold = 0.60
	fuzzyThreshold   = 0.75
)

// conversationMarkers is the fixed set checked by the conversation detector
// (spec §4.2 step 1).
var conversationMarkers = []string{
	"what", "who", "why", "how", "when", "where", "tell me", "explain",
	"describe", "can you", "could you", "teach me", "chat", "discuss",
	"compare", "difference between",
}

var tokenSplitter = regexp.MustCompile(`[^a-z0-9]+`)

// Router holds the compiled pattern table built once at construction. It
// carries no other state: the registry and capability-store snapshots are
// passed into Classify so the call stays a pure function of its inputs, per
// the classify(utterance) contract.
type Router struct {
	patterns []CompiledPattern
}

// New compiles the built-in pattern table and returns a ready Router.
// Intended to be constructed once at process start, alongside Registry
// load.
func New() *Router {
	return &Router{patterns: compiledBuiltinPatterns()}
}

// compiledBuiltinPatterns is the declared-order table of direct-command
// patterns for the fixed OS Boundary tool set. Order is part of the
// contract: first match wins.
func compiledBuiltinPatterns() []CompiledPattern {
	return []CompiledPattern{
		{regexp.MustCompile(`(?i)^set (?:the )?volume to (?P<level>\d+)%?$`), "set_volume", []string{"level"}},
		{regexp.MustCompile(`(?i)^mute(?: the)?(?: volume| audio| sound)?$`), "mute", nil},
		{regexp.MustCompile(`(?i)^unmute(?: the)?(?: volume| audio| sound)?$`), "unmute", nil},
		{regexp.MustCompile(`(?i)^(?:what(?:'s| is) the )?(?:current )?volume\??$`), "get_volume", nil},
		{regexp.MustCompile(`(?i)^set (?:the )?brightness to (?P<level>\d+)%?$`), "set_brightness", []string{"level"}},
		{regexp.MustCompile(`(?i)^(?:what(?:'s| is) the )?(?:current )?brightness\??$`), "get_brightness", nil},
		{regexp.MustCompile(`(?i)^lock (?:the )?screen$`), "lock_screen", nil},
		{regexp.MustCompile(`(?i)^(?:go to )?sleep$`), "sleep_system", nil},
		{regexp.MustCompile(`(?i)^shut ?down(?: the)?(?: computer| machine| system)?$`), "shutdown_system", nil},
		{regexp.MustCompile(`(?i)^open (?P<name>.+)$`), "open_app", []string{"name"}},
		{regexp.MustCompile(`(?i)^(?:close|quit) (?P<name>.+)$`), "close_app", []string{"name"}},
		{regexp.MustCompile(`(?i)^(?:focus|switch to) (?P<name>.+)$`), "focus_app", []string{"name"}},
		{regexp.MustCompile(`(?i)^type (?P<text>.+)$`), "type_text", []string{"text"}},
		{regexp.MustCompile(`(?i)^press (?:the )?(?P<key>\w+)(?: key)?$`), "press_key", []string{"key"}},
		{regexp.MustCompile(`(?i)^(?:take a )?screenshot$`), "screenshot", nil},
		{regexp.MustCompile(`(?i)^(?:copy|write) (?P<text>.+) to (?:the )?clipboard$`), "clipboard_write", []string{"text"}},
		{regexp.MustCompile(`(?i)^(?:what'?s on the|read the) clipboard\??$`), "clipboard_read", nil},
	}
}

// candidate unifies a built-in ToolSpec and a promoted Capability under one
// shape for the keyword and fuzzy phases.
type candidate struct {
	toolName     string
	keywords     []string
	phrases      []string
	argsTemplate map[string]any
}

// Classify implements the §4.2 algorithm: pattern phase, then the
// conversation detector (only when no pattern matched), keyword phase,
// fuzzy phase, else unknown. tools and caps must
// already be sorted (Registry.Snapshot and CapabilityStore.List both sort
// by name); caps are appended after tools so promoted capabilities never
// shadow a built-in with the same trigger.
func (r *Router) Classify(utterance string, tools []aura.ToolSpec, caps []aura.Capability) aura.IntentMatch {
	trimmed := strings.TrimSpace(utterance)
	lower := strings.ToLower(trimmed)

	patternMatch, patternOK := r.matchPattern(trimmed)
	if !patternOK && isConversational(lower) {
		return aura.IntentMatch{Confidence: 0.95, Reason: aura.ReasonConversation}
	}
	if patternOK {
		return patternMatch
	}

	candidates := orderedCandidates(tools, caps)

	if m, ok := classifyKeyword(lower, candidates); ok {
		return withRunProgramInput(m, trimmed)
	}
	if m, ok := classifyFuzzy(trimmed, candidates); ok {
		return withRunProgramInput(m, trimmed)
	}
	return aura.IntentMatch{Reason: aura.ReasonNone}
}

// withRunProgramInput supplies the triggering utterance as the "input" arg
// for a promoted run_program Capability: ArgsTemplate only carries the
// stored generated code (spec §4.8.3's args_template), so the live text the
// sandboxed program should run against has to come from the match itself.
func withRunProgramInput(m aura.IntentMatch, utterance string) aura.IntentMatch {
	if m.ToolName != "run_program" {
		return m
	}
	if m.Args == nil {
		m.Args = make(map[string]any, 1)
	}
	if _, ok := m.Args["input"]; !ok {
		m.Args["input"] = utterance
	}
	return m
}

func (r *Router) matchPattern(utterance string) (aura.IntentMatch, bool) {
	for _, p := range r.patterns {
		m := p.Regex.FindStringSubmatch(utterance)
		if m == nil {
			continue
		}
		args := argsFromCaptures(p.Regex, m)
		return aura.IntentMatch{ToolName: p.ToolName, Args: args, Confidence: 0.95, Reason: aura.ReasonPattern}, true
	}
	return aura.IntentMatch{}, false
}

func argsFromCaptures(re *regexp.Regexp, groups []string) map[string]any {
	names := re.SubexpNames()
	var args map[string]any
	for i, name := range names {
		if i == 0 || name == "" {
			continue
		}
		if args == nil {
			args = make(map[string]any, len(names))
		}
		args[name] = groups[i]
	}
	return args
}

func isConversational(lower string) bool {
	for _, marker := range conversationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func orderedCandidates(tools []aura.ToolSpec, caps []aura.Capability) []candidate {
	out := make([]candidate, 0, len(tools)+len(caps))
	for _, t := range tools {
		out = append(out, candidate{toolName: t.Name, keywords: t.Keywords, phrases: t.Phrases})
	}
	for _, c := range caps {
		out = append(out, candidate{toolName: c.ToolName, keywords: c.Triggers, phrases: c.Triggers, argsTemplate: c.ArgsTemplate})
	}
	return out
}

func classifyKeyword(lower string, candidates []candidate) (aura.IntentMatch, bool) {
	tokens := toSet(tokenize(lower))
	if len(tokens) == 0 {
		return aura.IntentMatch{}, false
	}

	var best candidate
	bestScore := 0.0
	found := false

	for _, c := range candidates {
		if len(c.keywords) == 0 {
			continue
		}
		kwSet := toSet(c.keywords)
		if len(kwSet) == 0 {
			continue
		}
		score := float64(intersectionCount(tokens, kwSet)) / float64(len(kwSet))
		if score > bestScore {
			bestScore = score
			best = c
			found = true
		}
	}

	if !found || bestScore <= keywordThreshold {
		return aura.IntentMatch{}, false
	}

	confidence := bestScore + 0.20
	if confidence > aura.ConfidenceHigh {
		confidence = aura.ConfidenceHigh
	}
	return aura.IntentMatch{
		ToolName:   best.toolName,
		Args:       copyArgs(best.argsTemplate),
		Confidence: confidence,
		Reason:     aura.ReasonKeyword,
	}, true
}

// classifyFuzzy ranks every candidate's canonical phrases with
// github.com/sahilm/fuzzy, then normalizes the winning phrase's confidence
// via edit-distance similarity (1 - distance/maxLen) since the library's
// own internal score isn't the normalized [0,1] figure the contract wants.
func classifyFuzzy(utterance string, candidates []candidate) (aura.IntentMatch, bool) {
	var universe []string
	var owners []candidate
	for _, c := range candidates {
		for _, phrase := range c.phrases {
			universe = append(universe, phrase)
			owners = append(owners, c)
		}
	}
	if len(universe) == 0 {
		return aura.IntentMatch{}, false
	}

	matches := fuzzy.Find(utterance, universe)
	if len(matches) == 0 {
		return aura.IntentMatch{}, false
	}

	top := matches[0]
	owner := owners[top.Index]
	similarity := normalizedSimilarity(strings.ToLower(utterance), strings.ToLower(top.Str))
	if similarity <= fuzzyThreshold {
		return aura.IntentMatch{}, false
	}

	confidence := similarity
	if confidence > 0.84 {
		confidence = 0.84
	}
	if confidence < aura.ConfidenceLow {
		confidence = aura.ConfidenceLow
	}
	return aura.IntentMatch{
		ToolName:   owner.toolName,
		Args:       copyArgs(owner.argsTemplate),
		Confidence: confidence,
		Reason:     aura.ReasonFuzzy,
	}, true
}

func normalizedSimilarity(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1 - float64(levenshtein(a, b))/float64(maxLen)
}

// levenshtein computes classic edit distance. sahilm/fuzzy doesn't expose
// its internal distance metric, only a ranking score, so the contract's
// explicit 1-(distance/maxLen) normalization is computed directly here.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	m, n := len(ra), len(rb)
	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}
	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[n]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func tokenize(lower string) []string {
	parts := tokenSplitter.Split(lower, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[strings.ToLower(it)] = struct{}{}
	}
	return s
}

func intersectionCount(a, b map[string]struct{}) int {
	small, big := a, b
	if len(b) < len(a) {
		small, big = b, a
	}
	count := 0
	for k := range small {
		if _, ok := big[k]; ok {
			count++
		}
	}
	return count
}

func copyArgs(template map[string]any) map[string]any {
	if len(template) == 0 {
		return nil
	}
	out := make(map[string]any, len(template))
	for k, v := range template {
		out[k] = v
	}
	return out
}

