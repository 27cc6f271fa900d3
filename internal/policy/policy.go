// Package policy maps a chosen match candidate to the action the caller
// should take: execute, ask, suggest, or nothing. Pure functions over the
// threshold configuration; no I/O.
package policy

import (
	"slashsense/internal/types"
)

// Decide maps the chosen candidate's confidence onto an action:
//
//	conf >= auto_execute_min  -> auto_execute
//	conf >= ask_user_min      -> ask_user
//	otherwise                 -> suggest_only
//
// A nil candidate means the cascade produced nothing; the action is none.
// An overlay hit carries confidence 1.0 and therefore always auto-executes.
func Decide(chosen *types.MatchCandidate, thresholds types.ThresholdConfig) types.Action {
	if chosen == nil {
		return types.ActionNone
	}
	switch {
	case chosen.Confidence >= thresholds.AutoExecuteMin:
		return types.ActionAutoExecute
	case chosen.Confidence >= thresholds.AskUserMin:
		return types.ActionAskUser
	default:
		return types.ActionSuggestOnly
	}
}
