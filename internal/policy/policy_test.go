package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"slashsense/internal/types"
)

func cand(conf float64) *types.MatchCandidate {
	return &types.MatchCandidate{CommandID: "/x", Confidence: conf, Method: types.MethodKeyword}
}

func TestDecide(t *testing.T) {
	th := types.DefaultThresholds()

	cases := []struct {
		name   string
		chosen *types.MatchCandidate
		want   types.Action
	}{
		{"nil candidate", nil, types.ActionNone},
		{"at auto threshold", cand(0.95), types.ActionAutoExecute},
		{"above auto threshold", cand(0.99), types.ActionAutoExecute},
		{"overlay confidence", cand(1.0), types.ActionAutoExecute},
		{"at ask threshold", cand(0.70), types.ActionAskUser},
		{"between thresholds", cand(0.85), types.ActionAskUser},
		{"just below ask", cand(0.6999), types.ActionSuggestOnly},
		{"low confidence", cand(0.10), types.ActionSuggestOnly},
		{"zero confidence", cand(0), types.ActionSuggestOnly},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.chosen, th))
		})
	}
}

func TestDecideCustomThresholds(t *testing.T) {
	th := types.ThresholdConfig{AutoExecuteMin: 0.80, AskUserMin: 0.50}

	assert.Equal(t, types.ActionAutoExecute, Decide(cand(0.85), th))
	assert.Equal(t, types.ActionAskUser, Decide(cand(0.60), th))
	assert.Equal(t, types.ActionSuggestOnly, Decide(cand(0.40), th))
}

func TestDecideEqualThresholds(t *testing.T) {
	// auto == ask is a legal configuration; auto wins at the boundary.
	th := types.ThresholdConfig{AutoExecuteMin: 0.80, AskUserMin: 0.80}
	assert.Equal(t, types.ActionAutoExecute, Decide(cand(0.80), th))
	assert.Equal(t, types.ActionSuggestOnly, Decide(cand(0.79), th))
}
