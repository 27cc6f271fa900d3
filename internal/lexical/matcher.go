// Package lexical implements tier 1 of the detection cascade: near-zero-cost
// phrase and regex matching against the command registry.
//
// Trigger phrases match as contiguous token sequences on word boundaries
// (the same semantics as the \b-wrapped keyword patterns they replace), via
// a first-token index so a call touches only plausible phrases instead of
// scanning the whole registry. Regex patterns are compiled once at build.
package lexical

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"slashsense/internal/logging"
	"slashsense/internal/types"
)

// Scoring constants. A single hit lands at the base; every additional
// independent hit on the same command adds the bonus, up to the cap.
const (
	baseConfidence = 0.85
	perHitBonus    = 0.03
	confidenceCap  = 0.97
)

// Matcher is the compiled tier-1 matcher. Build once per registry load;
// safe for concurrent use afterwards (all state is read-only).
type Matcher struct {
	commands []*compiledCommand
	// phrase index: first token -> phrase refs across all commands
	index map[string][]phraseRef
}

type compiledCommand struct {
	id       string
	patterns []*regexp.Regexp
	sources  []string // pattern sources, parallel to patterns
}

type phraseRef struct {
	cmd    *compiledCommand
	tokens []string
	phrase string // normalized joined form, used as the matched span
}

// NewMatcher compiles the registry's trigger material. An invalid regex is a
// build-time failure, consistent with the registry's fatal-on-broken-material
// contract.
func NewMatcher(specs []types.CommandSpec) (*Matcher, error) {
	timer := logging.StartTimer(logging.CategoryLexical, "NewMatcher")
	defer timer.Stop()

	m := &Matcher{index: make(map[string][]phraseRef)}

	for _, spec := range specs {
		cc := &compiledCommand{id: spec.ID}

		for _, src := range spec.TriggerPatterns {
			re, err := regexp.Compile("(?i)" + src)
			if err != nil {
				return nil, fmt.Errorf("lexical: command %s: bad pattern %q: %w", spec.ID, src, err)
			}
			cc.patterns = append(cc.patterns, re)
			cc.sources = append(cc.sources, src)
		}

		for _, phrase := range spec.TriggerPhrases {
			tokens := tokenize(phrase)
			if len(tokens) == 0 {
				continue
			}
			ref := phraseRef{cmd: cc, tokens: tokens, phrase: strings.Join(tokens, " ")}
			m.index[tokens[0]] = append(m.index[tokens[0]], ref)
		}

		m.commands = append(m.commands, cc)
	}

	logging.LexicalDebug("compiled %d commands, %d indexed first tokens", len(m.commands), len(m.index))
	return m, nil
}

// Normalize lowercases and collapses whitespace. Exported because the
// overlay applies the same normalization for its exact-match lookup.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// Match returns zero or more keyword candidates for the input, ranked by
// confidence desc, then longer matched span, then lexicographically smaller
// command id. No match is an empty slice, never an error.
func (m *Matcher) Match(input string) []types.MatchCandidate {
	start := time.Now()

	tokens := tokenize(input)
	if len(tokens) == 0 {
		return nil
	}

	type hit struct {
		count    int
		bestSpan string
	}
	hits := make(map[*compiledCommand]*hit)

	record := func(cc *compiledCommand, span string) {
		h := hits[cc]
		if h == nil {
			h = &hit{}
			hits[cc] = h
		}
		h.count++
		if len(span) > len(h.bestSpan) || (len(span) == len(h.bestSpan) && span < h.bestSpan) {
			h.bestSpan = span
		}
	}

	// Phrase hits: walk token positions, consult the first-token index.
	// Each distinct phrase counts once per command even if repeated.
	seenPhrase := make(map[string]bool)
	for i, tok := range tokens {
		for _, ref := range m.index[tok] {
			if len(ref.tokens) > len(tokens)-i {
				continue
			}
			if !tokensMatchAt(tokens, i, ref.tokens) {
				continue
			}
			key := ref.cmd.id + "\x00" + ref.phrase
			if seenPhrase[key] {
				continue
			}
			seenPhrase[key] = true
			record(ref.cmd, ref.phrase)
		}
	}

	// Pattern hits. Patterns run against the normalized input; each pattern
	// counts as one independent match.
	normalized := strings.Join(tokens, " ")
	for _, cc := range m.commands {
		for _, re := range cc.patterns {
			if loc := re.FindStringIndex(normalized); loc != nil {
				record(cc, normalized[loc[0]:loc[1]])
			}
		}
	}

	if len(hits) == 0 {
		return nil
	}

	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	cands := make([]types.MatchCandidate, 0, len(hits))
	for cc, h := range hits {
		conf := baseConfidence + perHitBonus*float64(h.count-1)
		if conf > confidenceCap {
			conf = confidenceCap
		}
		cands = append(cands, types.MatchCandidate{
			CommandID:   cc.id,
			Confidence:  conf,
			Method:      types.MethodKeyword,
			MatchedSpan: h.bestSpan,
			LatencyMs:   latencyMs,
		})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if len(a.MatchedSpan) != len(b.MatchedSpan) {
			return len(a.MatchedSpan) > len(b.MatchedSpan)
		}
		return a.CommandID < b.CommandID
	})

	logging.LexicalDebug("input %q: %d commands hit, best=%s (%.2f)",
		normalized, len(cands), cands[0].CommandID, cands[0].Confidence)

	return cands
}

func tokensMatchAt(tokens []string, at int, phrase []string) bool {
	for k, pt := range phrase {
		if tokens[at+k] != pt {
			return false
		}
	}
	return true
}
