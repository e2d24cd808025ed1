package selfheal

import (
	"os"
	"path/filepath"
	"testing"

	"aura/internal/aura"
	"aura/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *CapabilityStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewCapabilityStore(dir, registry.New())
	require.NoError(t, err)
	return s
}

func TestNewCapabilityStoreStartsEmpty(t *testing.T) {
	s := newTestStore(t)
	assert.Empty(t, s.List())
}

func TestPromoteThenListRoundTrips(t *testing.T) {
	s := newTestStore(t)
	cap := aura.Capability{
		Name:     "open_notes",
		Triggers: []string{"open notes"},
		ToolName: "open_app",
		ArgsTemplate: map[string]any{"name": "notes"},
	}
	require.NoError(t, s.Promote(cap))

	got := s.List()
	require.Len(t, got, 1)
	assert.Equal(t, "open_notes", got[0].Name)
	assert.Equal(t, aura.CapabilityPromoted, got[0].Source)
}

func TestPromoteIsIdempotentForSameTriggersAndTool(t *testing.T) {
	s := newTestStore(t)
	cap := aura.Capability{Name: "open_notes", Triggers: []string{"open notes"}, ToolName: "open_app"}
	require.NoError(t, s.Promote(cap))
	require.NoError(t, s.Promote(cap))
	assert.Len(t, s.List(), 1)
}

func TestPromoteRejectsConflictingTriggers(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Promote(aura.Capability{Name: "a", Triggers: []string{"open notes"}, ToolName: "open_app"}))
	err := s.Promote(aura.Capability{Name: "b", Triggers: []string{"open notes"}, ToolName: "close_app"})
	require.Error(t, err)
	assert.Len(t, s.List(), 1)
}

func TestPromotePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewCapabilityStore(dir, registry.New())
	require.NoError(t, err)
	require.NoError(t, s1.Promote(aura.Capability{Name: "open_notes", Triggers: []string{"open notes"}, ToolName: "open_app"}))

	s2, err := NewCapabilityStore(dir, registry.New())
	require.NoError(t, err)
	assert.Len(t, s2.List(), 1)

	data, err := os.ReadFile(filepath.Join(dir, "capabilities.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "open_notes")
}

func TestRevokeRemovesCapability(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Promote(aura.Capability{Name: "a", Triggers: []string{"x"}, ToolName: "t"}))
	require.NoError(t, s.Revoke("a"))
	assert.Empty(t, s.List())
}

func TestRevokeUnknownNameErrors(t *testing.T) {
	s := newTestStore(t)
	err := s.Revoke("does-not-exist")
	assert.Error(t, err)
}
