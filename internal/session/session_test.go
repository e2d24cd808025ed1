package session

import (
	"fmt"
	"path/filepath"
	"testing"

	"aura/internal/aura"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentIsEmptyForNewSession(t *testing.T) {
	s := New("")
	assert.Empty(t, s.Recent())
}

func TestRecordAppendsInOrder(t *testing.T) {
	s := New("")
	s.Record(aura.Utterance{ID: 1, Text: "first"})
	s.Record(aura.Utterance{ID: 2, Text: "second"})

	recent := s.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "first", recent[0].Text)
	assert.Equal(t, "second", recent[1].Text)
}

func TestRecordWrapsAfterRingSize(t *testing.T) {
	s := New("")
	for i := 0; i < RingSize+5; i++ {
		s.Record(aura.Utterance{ID: uint64(i), Text: fmt.Sprintf("utterance-%d", i)})
	}

	recent := s.Recent()
	require.Len(t, recent, RingSize)
	assert.Equal(t, "utterance-5", recent[0].Text)
	assert.Equal(t, fmt.Sprintf("utterance-%d", RingSize+4), recent[RingSize-1].Text)
}

func TestRecordOutcomeTracksLocalAndLLMCommands(t *testing.T) {
	s := New("")
	s.RecordOutcome(aura.Response{OK: true, UsedLLM: false})
	s.RecordOutcome(aura.Response{OK: true, UsedLLM: true})
	s.RecordOutcome(aura.Response{OK: true, UsedLLM: false})

	stats := s.Stats()
	assert.Equal(t, int64(2), stats.LocalCommands)
	assert.Equal(t, int64(1), stats.LLMCommands)
	assert.Equal(t, int64(2*estimatedTokensPerLocalCommand), stats.TokensSavedEstimate)
}

func TestStatsPersistAndReloadAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	s1 := New(dir)
	s1.RecordOutcome(aura.Response{OK: true, UsedLLM: false})
	s1.RecordOutcome(aura.Response{OK: true, UsedLLM: false})

	s2 := New(dir)
	stats := s2.Stats()
	assert.Equal(t, int64(2), stats.LocalCommands)

	assert.FileExists(t, filepath.Join(dir, "stats.json"))
}
