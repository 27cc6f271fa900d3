package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slashsense/internal/registry"
	"slashsense/internal/types"
)

func TestSkipPrompt(t *testing.T) {
	assert.True(t, skipPrompt(""))
	assert.True(t, skipPrompt("  "))
	assert.True(t, skipPrompt("ok"))
	assert.True(t, skipPrompt("/sc:git"))
	assert.True(t, skipPrompt("  /sc:git push"))
	assert.True(t, skipPrompt("# a heading"))

	assert.False(t, skipPrompt("commit and push my changes"))
}

func TestFormatSuggestion(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Load(registry.StaticSource{Specs: []types.CommandSpec{
		{ID: "/sc:git", DisplayAction: "run the git workflow", TriggerPhrases: []string{"x"}},
	}}))
	eng := &engine{registry: reg}

	msg := formatSuggestion(eng, types.DetectionDecision{
		Chosen: &types.MatchCandidate{
			CommandID:  "/sc:git",
			Confidence: 0.88,
			Method:     types.MethodKeyword,
			LatencyMs:  0.42,
		},
		Alternatives: []types.MatchCandidate{
			{CommandID: "/sc:test", Confidence: 0.71},
		},
	})

	assert.Contains(t, msg, "`/sc:git`")
	assert.Contains(t, msg, "run the git workflow")
	assert.Contains(t, msg, "88% keyword")
	assert.Contains(t, msg, "0.42ms")
	assert.Contains(t, msg, "/sc:test (71%)")
}

func TestFormatSuggestionUnknownCommand(t *testing.T) {
	eng := &engine{registry: registry.New()}

	msg := formatSuggestion(eng, types.DetectionDecision{
		Chosen: &types.MatchCandidate{CommandID: "/mystery", Confidence: 0.9, Method: types.MethodRouted},
	})
	assert.Contains(t, msg, "execute this command")
}
