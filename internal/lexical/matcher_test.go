package lexical

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slashsense/internal/types"
)

func specFixture() []types.CommandSpec {
	return []types.CommandSpec{
		{
			ID:             "/sc:git",
			TriggerPhrases: []string{"commit and push", "push my changes", "git workflow"},
		},
		{
			ID:              "/sc:analyze",
			TriggerPhrases:  []string{"analyze my code"},
			TriggerPatterns: []string{`\bcode (quality|review)\b`},
		},
		{
			ID:             "/sc:test",
			TriggerPhrases: []string{"run the tests"},
		},
	}
}

func mustMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := NewMatcher(specFixture())
	require.NoError(t, err)
	return m
}

func TestNewMatcherRejectsBadPattern(t *testing.T) {
	_, err := NewMatcher([]types.CommandSpec{
		{ID: "/broken", TriggerPatterns: []string{`[unclosed`}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/broken")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "commit and push", Normalize("  Commit   AND\tpush "))
	assert.Equal(t, "", Normalize("   "))
}

func TestMatchSingleHit(t *testing.T) {
	m := mustMatcher(t)

	cands := m.Match("please commit and push this for me")
	require.Len(t, cands, 1)
	assert.Equal(t, "/sc:git", cands[0].CommandID)
	assert.Equal(t, types.MethodKeyword, cands[0].Method)
	assert.Equal(t, "commit and push", cands[0].MatchedSpan)
	assert.InDelta(t, 0.85, cands[0].Confidence, 1e-9)
}

func TestMatchBonusPerExtraHit(t *testing.T) {
	m := mustMatcher(t)

	// Two distinct phrases of the same command.
	cands := m.Match("commit and push my changes")
	require.Len(t, cands, 1)
	assert.InDelta(t, 0.88, cands[0].Confidence, 1e-9)
}

func TestMatchConfidenceCap(t *testing.T) {
	m, err := NewMatcher([]types.CommandSpec{{
		ID:             "/many",
		TriggerPhrases: []string{"aa", "bb", "cc", "dd", "ee", "ff"},
	}})
	require.NoError(t, err)

	cands := m.Match("aa bb cc dd ee ff")
	require.Len(t, cands, 1)
	assert.InDelta(t, 0.97, cands[0].Confidence, 1e-9)
}

func TestMatchRepeatedPhraseCountsOnce(t *testing.T) {
	m := mustMatcher(t)

	cands := m.Match("run the tests run the tests run the tests")
	require.Len(t, cands, 1)
	assert.InDelta(t, 0.85, cands[0].Confidence, 1e-9)
}

func TestMatchTokenBoundaries(t *testing.T) {
	m, err := NewMatcher([]types.CommandSpec{{
		ID:             "/sc:test",
		TriggerPhrases: []string{"test"},
	}})
	require.NoError(t, err)

	// Phrase must match whole tokens, not substrings inside a word.
	assert.Empty(t, m.Match("latest protests attested"))
	assert.Len(t, m.Match("test this please"), 1)
}

func TestMatchPattern(t *testing.T) {
	m := mustMatcher(t)

	cands := m.Match("what do you think of the Code Quality here")
	require.Len(t, cands, 1)
	assert.Equal(t, "/sc:analyze", cands[0].CommandID)
	assert.Equal(t, "code quality", cands[0].MatchedSpan)
}

func TestMatchCaseInsensitive(t *testing.T) {
	m := mustMatcher(t)
	assert.Len(t, m.Match("COMMIT AND PUSH"), 1)
}

func TestMatchNoHit(t *testing.T) {
	m := mustMatcher(t)
	assert.Empty(t, m.Match("completely unrelated text"))
	assert.Empty(t, m.Match(""))
	assert.Empty(t, m.Match("   "))
}

func TestMatchOrderingTieBreaks(t *testing.T) {
	m, err := NewMatcher([]types.CommandSpec{
		{ID: "/b", TriggerPhrases: []string{"deploy now"}},
		{ID: "/a", TriggerPhrases: []string{"deploy now"}},
		{ID: "/c", TriggerPhrases: []string{"deploy now immediately"}},
	})
	require.NoError(t, err)

	cands := m.Match("deploy now immediately")
	require.Len(t, cands, 3)
	// Equal confidence: longer matched span first, then smaller id.
	assert.Equal(t, "/c", cands[0].CommandID)
	assert.Equal(t, "/a", cands[1].CommandID)
	assert.Equal(t, "/b", cands[2].CommandID)
}

func TestMatchDeterministic(t *testing.T) {
	m := mustMatcher(t)

	first := m.Match("commit and push my changes and analyze my code")
	for i := 0; i < 50; i++ {
		again := m.Match("commit and push my changes and analyze my code")
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].CommandID, again[j].CommandID)
			assert.True(t, math.Abs(first[j].Confidence-again[j].Confidence) < 1e-12)
		}
	}
}
