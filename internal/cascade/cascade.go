// Package cascade coordinates the tiered detection pipeline: overlay check,
// lexical match, embedding match, routed fallback, then the policy decision.
// Tiers run in fixed order, each at most once per call; a tier only runs when
// every cheaper tier failed to produce a confident enough result.
package cascade

import (
	"context"
	"time"

	"slashsense/internal/logging"
	"slashsense/internal/policy"
	"slashsense/internal/telemetry"
	"slashsense/internal/types"
)

// Lexical is the tier-1 capability. Pure in-memory matching: no context, no
// error, fast enough to run on every call.
type Lexical interface {
	Match(input string) []types.MatchCandidate
}

// Tier is the capability shared by the embedding and routed tiers. A tier
// reporting !Available() is skipped; a tier returning an error contributed
// nothing and the cascade proceeds as if it returned empty.
type Tier interface {
	Available() bool
	Match(ctx context.Context, input string) ([]types.MatchCandidate, error)
}

// Coordinator runs the full detection pipeline. Construct once per session;
// safe for concurrent Detect calls.
type Coordinator struct {
	overlay    OverlayLookup
	lexical    Lexical
	embedding  Tier
	routed     Tier
	thresholds types.ThresholdConfig
	emitter    telemetry.Emitter
}

// OverlayLookup is the custom pattern check that precedes every tier.
type OverlayLookup interface {
	Lookup(input string) (types.MatchCandidate, bool)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithOverlay installs the user overlay.
func WithOverlay(o OverlayLookup) Option {
	return func(c *Coordinator) { c.overlay = o }
}

// WithEmbedding installs the tier-2 matcher.
func WithEmbedding(t Tier) Option {
	return func(c *Coordinator) { c.embedding = t }
}

// WithRouted installs the tier-3 matcher.
func WithRouted(t Tier) Option {
	return func(c *Coordinator) { c.routed = t }
}

// WithEmitter installs the telemetry emitter.
func WithEmitter(e telemetry.Emitter) Option {
	return func(c *Coordinator) { c.emitter = e }
}

// New builds a coordinator. Only the lexical tier and thresholds are
// mandatory; everything else degrades to absent.
func New(lexical Lexical, thresholds types.ThresholdConfig, opts ...Option) *Coordinator {
	c := &Coordinator{
		lexical:    lexical,
		thresholds: thresholds,
		emitter:    telemetry.NopEmitter{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Detect classifies one utterance. The only error it ever returns is the
// caller's own context error; every tier failure degrades to a weaker or
// empty result instead.
func (c *Coordinator) Detect(ctx context.Context, input string) (types.DetectionDecision, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return types.DetectionDecision{}, err
	}

	// Overlay supremacy: an exact custom phrase bypasses every tier.
	if c.overlay != nil {
		if hit, ok := c.overlay.Lookup(input); ok {
			decision := types.DetectionDecision{
				Chosen:       &hit,
				Alternatives: []types.MatchCandidate{},
				Action:       types.ActionAutoExecute,
				RawInput:     input,
			}
			c.emit(decision, map[int]float64{}, time.Since(start))
			return decision, nil
		}
	}

	pool := make(map[string]types.MatchCandidate)
	tierLatencies := make(map[int]float64)

	// Tier 1: lexical. Always runs.
	t1Start := time.Now()
	lexCands := c.lexical.Match(input)
	tierLatencies[types.TierLexical] = msSince(t1Start)
	mergePool(pool, lexCands)

	if c.settled(lexCands, types.TierLexical) {
		return c.finalize(input, pool, tierLatencies, start), nil
	}

	// Tier 2: embedding. Cancellation is honored at tier boundaries only;
	// a running tier is bounded by its own internal timeout.
	if err := ctx.Err(); err != nil {
		return types.DetectionDecision{}, err
	}
	if c.embedding != nil && c.embedding.Available() {
		t2Start := time.Now()
		cands, err := c.embedding.Match(ctx, input)
		tierLatencies[types.TierEmbedding] = msSince(t2Start)
		if err != nil {
			logging.CascadeDebug("embedding tier contributed nothing: %v", err)
		}
		mergePool(pool, cands)

		if c.settled(cands, types.TierEmbedding) {
			return c.finalize(input, pool, tierLatencies, start), nil
		}
	}

	// Tier 3: routed fallback. Last resort, never escalated past.
	if err := ctx.Err(); err != nil {
		return types.DetectionDecision{}, err
	}
	if c.routed != nil && c.routed.Available() {
		t3Start := time.Now()
		cands, err := c.routed.Match(ctx, input)
		tierLatencies[types.TierRouted] = msSince(t3Start)
		if err != nil {
			logging.CascadeDebug("routed tier contributed nothing: %v", err)
		}
		mergePool(pool, cands)
	}

	return c.finalize(input, pool, tierLatencies, start), nil
}

// settled reports whether the cascade stops after the given tier. The check
// runs over the tier's own results, not the merged pool: a tier is escalated
// past exactly when its own best confidence is strictly below that tier's
// escalation threshold, even if an earlier weak result still leads the pool.
func (c *Coordinator) settled(tierCands []types.MatchCandidate, tier int) bool {
	best := 0.0
	for _, cand := range tierCands {
		if cand.Confidence > best {
			best = cand.Confidence
		}
	}
	return best >= c.thresholds.EscalationMin(tier)
}

// mergePool folds tier results into the per-command candidate pool. A later
// tier replaces an entry only with strictly higher confidence; on a tie the
// earlier, cheaper tier's candidate stands.
func mergePool(pool map[string]types.MatchCandidate, cands []types.MatchCandidate) {
	for _, cand := range cands {
		prev, ok := pool[cand.CommandID]
		if !ok || cand.Confidence > prev.Confidence {
			pool[cand.CommandID] = cand
		}
	}
}

// finalize ranks the pool, applies the policy, and emits telemetry.
func (c *Coordinator) finalize(input string, pool map[string]types.MatchCandidate, tierLatencies map[int]float64, start time.Time) types.DetectionDecision {
	ranked := make([]types.MatchCandidate, 0, len(pool))
	for _, cand := range pool {
		ranked = append(ranked, cand)
	}
	types.SortCandidates(ranked)

	decision := types.DetectionDecision{RawInput: input, Alternatives: []types.MatchCandidate{}}
	if len(ranked) > 0 {
		// Among candidates tied with the leader on confidence and tier, a
		// longer matched span wins the chosen slot. The canonical sort already
		// settles remaining ties by command id.
		chosenIdx := 0
		for i := 1; i < len(ranked); i++ {
			lead, cand := ranked[chosenIdx], ranked[i]
			if cand.Confidence != lead.Confidence || cand.Method.Tier() != lead.Method.Tier() {
				break
			}
			if len(cand.MatchedSpan) > len(lead.MatchedSpan) {
				chosenIdx = i
			}
		}
		chosen := ranked[chosenIdx]
		decision.Chosen = &chosen
		// Everything else in the pool stays visible; how many of these the
		// host presents is its concern, not the core's.
		decision.Alternatives = append(decision.Alternatives, ranked[:chosenIdx]...)
		decision.Alternatives = append(decision.Alternatives, ranked[chosenIdx+1:]...)
	}
	decision.Action = policy.Decide(decision.Chosen, c.thresholds)

	if decision.Chosen != nil {
		logging.CascadeDebug("chose %s (%.3f via %s) -> %s",
			decision.Chosen.CommandID, decision.Chosen.Confidence, decision.Chosen.Method, decision.Action)
	}

	c.emit(decision, tierLatencies, time.Since(start))
	return decision
}

// emit records the outcome. Emitters swallow their own failures and are
// cheap by contract, so this can never fail or meaningfully delay a
// detection.
func (c *Coordinator) emit(decision types.DetectionDecision, tierLatencies map[int]float64, total time.Duration) {
	if c.emitter == nil {
		return
	}
	c.emitter.Emit(telemetry.NewEvent(decision, tierLatencies, total))
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
