// Package session implements the Session & Context component: a bounded
// ring buffer of recent utterances plus running stats, guarded by a single
// writer lock the way the teacher's internal/context.Compressor guards its
// recentTurns slice and counters — narrowed from the teacher's Mangle-
// backed semantic compression down to a flat, fixed-size ring buffer,
// since AURA's spec scopes Session to recency (last 20 utterances) rather
// than unbounded compressed history.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"aura/internal/aura"
)

// RingSize is the fixed capacity of the recent-utterance ring buffer
// (spec §4.9/session contract: last 20 utterances).
const RingSize = 20

// Stats tracks the running counters the Orchestrator updates after every
// utterance (spec §4.1).
type Stats struct {
	LocalCommands       int64 `json:"local_commands"`
	LLMCommands         int64 `json:"llm_commands"`
	TokensSavedEstimate int64 `json:"tokens_saved_estimate"`
}

// estimatedTokensPerLocalCommand is the flat per-command estimate used to
// compute TokensSavedEstimate: a local (non-LLM) command is assumed to have
// saved roughly this many tokens versus routing through an LLM call.
const estimatedTokensPerLocalCommand = 150

// Session is a single conversation's bounded history plus stats. All
// mutation goes through Session's own methods (the single-writer
// discipline) — callers never touch the ring buffer directly.
type Session struct {
	mu    sync.Mutex
	ring  [RingSize]aura.Utterance
	head  int // index of the next write
	count int // number of valid entries, capped at RingSize

	stats    Stats
	statsPath string

	metricLocal prometheus.Counter
	metricLLM   prometheus.Counter
	metricSaved prometheus.Counter
}

// New creates an empty Session. dataDir, if non-empty, is where stats.json
// is persisted; an empty dataDir keeps the session purely in-memory
// (useful for tests and one-shot CLI invocations).
func New(dataDir string) *Session {
	s := &Session{
		metricLocal: prometheus.NewCounter(prometheus.CounterOpts{Name: "aura_session_local_commands_total", Help: "Utterances resolved without an LLM call."}),
		metricLLM:   prometheus.NewCounter(prometheus.CounterOpts{Name: "aura_session_llm_commands_total", Help: "Utterances that required an LLM call."}),
		metricSaved: prometheus.NewCounter(prometheus.CounterOpts{Name: "aura_session_tokens_saved_estimate_total", Help: "Estimated tokens saved by resolving utterances locally."}),
	}
	if dataDir != "" {
		s.statsPath = filepath.Join(dataDir, "stats.json")
		_ = s.loadStats()
	}
	return s
}

// Registerer is the subset of *prometheus.Registry Session needs, so
// callers can pass the process's shared registry without an import cycle.
type Registerer interface {
	Register(prometheus.Collector) error
}

// RegisterMetrics registers Session's counters with reg. Safe to call once
// per process; a duplicate registration error is ignored since multiple
// Sessions may share one registry in tests.
func (s *Session) RegisterMetrics(reg Registerer) {
	_ = reg.Register(s.metricLocal)
	_ = reg.Register(s.metricLLM)
	_ = reg.Register(s.metricSaved)
}

// Record appends an utterance to the ring buffer, overwriting the oldest
// entry once the buffer is full.
func (s *Session) Record(u aura.Utterance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring[s.head] = u
	s.head = (s.head + 1) % RingSize
	if s.count < RingSize {
		s.count++
	}
}

// Recent returns the recorded utterances oldest-first, most recent last.
func (s *Session) Recent() []aura.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]aura.Utterance, 0, s.count)
	start := (s.head - s.count + RingSize) % RingSize
	for i := 0; i < s.count; i++ {
		out = append(out, s.ring[(start+i)%RingSize])
	}
	return out
}

// RecordOutcome updates stats after an utterance resolves, per spec §4.1's
// "updates session stats (local_commands, llm_commands,
// tokens_saved_estimate)" contract, and persists the new totals if a data
// directory was configured.
func (s *Session) RecordOutcome(resp aura.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if resp.UsedLLM {
		s.stats.LLMCommands++
		s.metricLLM.Inc()
	} else {
		s.stats.LocalCommands++
		s.stats.TokensSavedEstimate += estimatedTokensPerLocalCommand
		s.metricLocal.Inc()
		s.metricSaved.Add(estimatedTokensPerLocalCommand)
	}

	if s.statsPath != "" {
		_ = s.persistStatsLocked()
	}
}

// Stats returns a snapshot of the current counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) loadStats() error {
	data, err := os.ReadFile(s.statsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("session: reading %s: %w", s.statsPath, err)
	}
	return json.Unmarshal(data, &s.stats)
}

// persistStatsLocked must be called with s.mu held.
func (s *Session) persistStatsLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.statsPath), 0o755); err != nil {
		return fmt.Errorf("session: creating data dir: %w", err)
	}
	data, err := json.MarshalIndent(s.stats, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshaling stats: %w", err)
	}
	tmp := s.statsPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("session: writing %s: %w", tmp, err)
	}
	return os.Rename(tmp, s.statsPath)
}
