package overlay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slashsense/internal/types"
)

func TestLookupHit(t *testing.T) {
	s := NewFromEntries([]types.OverlayEntry{
		{Phrase: "ship it", CommandID: "/sc:git"},
	})

	cand, ok := s.Lookup("ship it")
	require.True(t, ok)
	assert.Equal(t, "/sc:git", cand.CommandID)
	assert.Equal(t, 1.0, cand.Confidence)
	assert.Equal(t, types.MethodCustom, cand.Method)
}

func TestLookupNormalizes(t *testing.T) {
	s := NewFromEntries([]types.OverlayEntry{
		{Phrase: "  Ship   IT ", CommandID: "/sc:git"},
	})

	_, ok := s.Lookup("ship it")
	assert.True(t, ok)
	_, ok = s.Lookup("SHIP\tIT")
	assert.True(t, ok)
}

func TestLookupExactOnly(t *testing.T) {
	s := NewFromEntries([]types.OverlayEntry{
		{Phrase: "ship it", CommandID: "/sc:git"},
	})

	// No partial or superset matching: the overlay is exact by contract.
	_, ok := s.Lookup("ship it now")
	assert.False(t, ok)
	_, ok = s.Lookup("ship")
	assert.False(t, ok)
	_, ok = s.Lookup("")
	assert.False(t, ok)
}

func TestDuplicatePriorityWins(t *testing.T) {
	s := NewFromEntries([]types.OverlayEntry{
		{Phrase: "ship it", CommandID: "/low", Priority: 1},
		{Phrase: "ship it", CommandID: "/high", Priority: 10},
		{Phrase: "ship it", CommandID: "/late-low", Priority: 5},
	})

	cand, ok := s.Lookup("ship it")
	require.True(t, ok)
	assert.Equal(t, "/high", cand.CommandID)
	assert.Equal(t, 1, s.Len())
}

func TestDuplicateEqualPriorityLaterWins(t *testing.T) {
	s := NewFromEntries([]types.OverlayEntry{
		{Phrase: "ship it", CommandID: "/first", Priority: 3},
		{Phrase: "ship it", CommandID: "/second", Priority: 3},
	})

	cand, ok := s.Lookup("ship it")
	require.True(t, ok)
	assert.Equal(t, "/second", cand.CommandID)
}

func TestInvalidEntriesSkipped(t *testing.T) {
	s := NewFromEntries([]types.OverlayEntry{
		{Phrase: "", CommandID: "/x"},
		{Phrase: "valid", CommandID: ""},
		{Phrase: "kept", CommandID: "/kept"},
	})
	assert.Equal(t, 1, s.Len())
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom_patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
patterns:
  - phrase: "ship it"
    command: /sc:git
    priority: 10
  - phrase: "check my work"
    command: /sc:analyze
`), 0644))

	s, err := NewFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	cand, ok := s.Lookup("check my work")
	require.True(t, ok)
	assert.Equal(t, "/sc:analyze", cand.CommandID)
}

func TestNewFromFileMissingIsEmpty(t *testing.T) {
	s, err := NewFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestNewFromFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("patterns: [not: valid: yaml"), 0644))

	_, err := NewFromFile(path)
	assert.Error(t, err)
}

func TestReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom_patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("patterns:\n  - phrase: one\n    command: /one\n"), 0644))

	s, err := NewFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, os.WriteFile(path, []byte("patterns:\n  - phrase: one\n    command: /one\n  - phrase: two\n    command: /two\n"), 0644))
	require.NoError(t, s.Reload())
	assert.Equal(t, 2, s.Len())

	_, ok := s.Lookup("two")
	assert.True(t, ok)
}
