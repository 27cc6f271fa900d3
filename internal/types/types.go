// Package types holds the shared value types for slashsense intent detection.
// It is a leaf package: every other internal package may import it, and it
// imports nothing but the standard library.
package types

import (
	"fmt"
	"sort"
)

// =============================================================================
// MATCH METHOD
// =============================================================================

// Method identifies which matcher produced a candidate.
type Method string

const (
	MethodKeyword   Method = "keyword"   // Tier 1: lexical phrase/pattern match
	MethodEmbedding Method = "embedding" // Tier 2: static-embedding cosine match
	MethodRouted    Method = "routed"    // Tier 3: routed fallback classifier
	MethodCustom    Method = "custom"    // user overlay, bypasses all tiers
)

// Tier returns the cascade position for a method. Lower is earlier/cheaper.
// The overlay sits at 0 so custom matches always sort first on ties.
func (m Method) Tier() int {
	switch m {
	case MethodCustom:
		return 0
	case MethodKeyword:
		return 1
	case MethodEmbedding:
		return 2
	case MethodRouted:
		return 3
	default:
		return 4
	}
}

// =============================================================================
// POLICY ACTION
// =============================================================================

// Action is what the host should do with a detection result.
type Action string

const (
	ActionAutoExecute Action = "auto_execute" // run the command without asking
	ActionAskUser     Action = "ask_user"     // present chosen + alternatives for selection
	ActionSuggestOnly Action = "suggest_only" // display as a hint, never execute
	ActionNone        Action = "none"         // transparent passthrough
)

// =============================================================================
// COMMAND SPEC
// =============================================================================

// CommandSpec is the matching material for one invocable command.
// Built once per session from registry sources; immutable until reload.
type CommandSpec struct {
	// ID is the canonical command identifier, e.g. "/sc:analyze".
	ID string `yaml:"id" json:"id"`

	// DisplayAction is a short human phrase used in suggestions,
	// e.g. "analyze code". May be empty.
	DisplayAction string `yaml:"display_action" json:"display_action"`

	// TriggerPhrases are literal phrases matched by substring containment.
	TriggerPhrases []string `yaml:"trigger_phrases" json:"trigger_phrases"`

	// TriggerPatterns are regex sources compiled by the lexical matcher.
	TriggerPatterns []string `yaml:"trigger_patterns" json:"trigger_patterns"`

	// PrototypeUtterances are canonical example phrases embedded for
	// similarity matching. Order is preserved.
	PrototypeUtterances []string `yaml:"prototype_utterances" json:"prototype_utterances"`

	// SkillAlias is an optional skill invocation name, e.g. "ctx:worktree".
	SkillAlias string `yaml:"skill_alias,omitempty" json:"skill_alias,omitempty"`
}

// HasTriggerMaterial reports whether the spec carries anything a matcher
// can use. A registry rejects specs where this is false.
func (c CommandSpec) HasTriggerMaterial() bool {
	return len(c.TriggerPhrases) > 0 || len(c.TriggerPatterns) > 0 || len(c.PrototypeUtterances) > 0
}

// Clone returns a deep copy so registry consumers cannot mutate shared state.
func (c CommandSpec) Clone() CommandSpec {
	out := c
	out.TriggerPhrases = append([]string(nil), c.TriggerPhrases...)
	out.TriggerPatterns = append([]string(nil), c.TriggerPatterns...)
	out.PrototypeUtterances = append([]string(nil), c.PrototypeUtterances...)
	return out
}

// =============================================================================
// MATCH CANDIDATE
// =============================================================================

// MatchCandidate is one scored (command, method) result. Ephemeral, per call.
type MatchCandidate struct {
	CommandID   string  `json:"command_id"`
	Confidence  float64 `json:"confidence"` // always clamped to [0,1]
	Method      Method  `json:"method"`
	MatchedSpan string  `json:"matched_span,omitempty"` // phrase or prototype that hit
	LatencyMs   float64 `json:"latency_ms"`
}

// ClampConfidence forces a confidence value into [0,1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SortCandidates orders candidates by confidence desc, tier asc, command id
// asc. This is the canonical ordering for DetectionDecision.Alternatives.
func SortCandidates(cands []MatchCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Method.Tier() != b.Method.Tier() {
			return a.Method.Tier() < b.Method.Tier()
		}
		return a.CommandID < b.CommandID
	})
}

// =============================================================================
// DETECTION DECISION
// =============================================================================

// DetectionDecision is the single output of one detection call.
// Owned by the caller after return; never cached by the core.
type DetectionDecision struct {
	Chosen       *MatchCandidate  `json:"chosen,omitempty"`
	Alternatives []MatchCandidate `json:"alternatives"`
	Action       Action           `json:"action"`
	RawInput     string           `json:"raw_input"`
}

// =============================================================================
// OVERLAY ENTRY
// =============================================================================

// OverlayEntry is one user-owned exact phrase -> command override.
type OverlayEntry struct {
	Phrase    string `yaml:"phrase" json:"phrase"`
	CommandID string `yaml:"command" json:"command"`
	Priority  int    `yaml:"priority" json:"priority"`
}

// =============================================================================
// THRESHOLD CONFIG
// =============================================================================

// Cascade tier indices for TierEscalationMin.
const (
	TierLexical   = 1
	TierEmbedding = 2
	TierRouted    = 3
)

// Default policy thresholds. Illustrative values from the source material;
// everything is overridable through configuration.
const (
	DefaultAutoExecuteMin        = 0.95
	DefaultAskUserMin            = 0.70
	DefaultLexicalEscalationMin  = 0.85
	DefaultSemanticEscalationMin = 0.60
)

// ThresholdConfig maps candidate confidence to policy actions and controls
// when the cascade escalates past a tier.
type ThresholdConfig struct {
	// AutoExecuteMin: chosen.Confidence >= this -> auto_execute.
	AutoExecuteMin float64 `yaml:"auto_execute_min" json:"auto_execute_min"`

	// AskUserMin: chosen.Confidence >= this -> ask_user.
	AskUserMin float64 `yaml:"ask_user_min" json:"ask_user_min"`

	// TierEscalationMin[t]: tier t is escalated past iff its best
	// confidence is strictly below this value.
	TierEscalationMin map[int]float64 `yaml:"tier_escalation_min" json:"tier_escalation_min"`
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		AutoExecuteMin: DefaultAutoExecuteMin,
		AskUserMin:     DefaultAskUserMin,
		TierEscalationMin: map[int]float64{
			TierLexical:   DefaultLexicalEscalationMin,
			TierEmbedding: DefaultSemanticEscalationMin,
		},
	}
}

// Validate checks the invariants (AskUserMin <= AutoExecuteMin, all values in
// [0,1]). An invalid config is not an error condition for the caller: the
// defaults are substituted wholesale, and the returned error describes why.
func (t ThresholdConfig) Validate() (ThresholdConfig, error) {
	if t.AutoExecuteMin < 0 || t.AutoExecuteMin > 1 ||
		t.AskUserMin < 0 || t.AskUserMin > 1 {
		return DefaultThresholds(), fmt.Errorf("threshold out of [0,1]: auto_execute_min=%.2f ask_user_min=%.2f", t.AutoExecuteMin, t.AskUserMin)
	}
	if t.AskUserMin > t.AutoExecuteMin {
		return DefaultThresholds(), fmt.Errorf("ask_user_min %.2f > auto_execute_min %.2f", t.AskUserMin, t.AutoExecuteMin)
	}
	for tier, min := range t.TierEscalationMin {
		if min < 0 || min > 1 {
			return DefaultThresholds(), fmt.Errorf("tier %d escalation min %.2f out of [0,1]", tier, min)
		}
	}
	out := t
	if out.TierEscalationMin == nil {
		out.TierEscalationMin = DefaultThresholds().TierEscalationMin
	}
	return out, nil
}

// EscalationMin returns the escalation threshold for a tier, falling back to
// the default when the tier has no explicit entry.
func (t ThresholdConfig) EscalationMin(tier int) float64 {
	if v, ok := t.TierEscalationMin[tier]; ok {
		return v
	}
	switch tier {
	case TierLexical:
		return DefaultLexicalEscalationMin
	case TierEmbedding:
		return DefaultSemanticEscalationMin
	default:
		return 1.0 // unknown tiers never satisfy; cascade proceeds
	}
}
