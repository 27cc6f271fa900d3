// Package routed implements tier 3 of the detection cascade: the
// highest-cost fallback that hands the utterance plus the command catalog to
// an external classifier and gets back a ranked candidate list.
//
// Everything that can go wrong here (timeout, transport failure, malformed
// output) collapses to "no result". The tier never surfaces an error to the
// cascade beyond the unavailable marker.
package routed

import (
	"context"
	"errors"
	"time"

	"slashsense/internal/logging"
	"slashsense/internal/types"
)

// ErrUnavailable is returned when no router is configured or the tier is
// disabled. The cascade treats it as an empty result.
var ErrUnavailable = errors.New("routed tier unavailable")

// DefaultTimeout is the hard bound on one routed request.
const DefaultTimeout = 150 * time.Millisecond

// scoreCap keeps a routed guess below the auto-execute default; the routed
// tier ranks, it does not get to execute on its own.
const scoreCap = 0.90

// Listing is the catalog entry shown to the classifier for one command.
type Listing struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Scored is one ranked candidate returned by a router backend.
type Scored struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Router is the backend capability: classify an utterance against a catalog.
// Implementations may be remote; they must respect ctx cancellation.
type Router interface {
	Name() string
	Route(ctx context.Context, input string, catalog []Listing) ([]Scored, error)
}

// =============================================================================
// MATCHER
// =============================================================================

// Matcher wraps a Router with the tier contract: hard timeout, score
// clamping, unknown-id filtering, and failure absorption.
type Matcher struct {
	router  Router
	catalog []Listing
	known   map[string]bool
	timeout time.Duration
	topK    int
}

// NewMatcher builds the tier-3 matcher over the registry's command list.
// A nil router produces a permanently unavailable matcher.
func NewMatcher(router Router, specs []types.CommandSpec, timeout time.Duration, topK int) *Matcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if topK <= 0 {
		topK = 3
	}

	catalog := make([]Listing, 0, len(specs))
	known := make(map[string]bool, len(specs))
	for _, spec := range specs {
		catalog = append(catalog, Listing{ID: spec.ID, Description: spec.DisplayAction})
		known[spec.ID] = true
	}

	return &Matcher{
		router:  router,
		catalog: catalog,
		known:   known,
		timeout: timeout,
		topK:    topK,
	}
}

// Available reports whether a backend is configured.
func (m *Matcher) Available() bool {
	return m != nil && m.router != nil
}

// Match runs one bounded routed classification. Timeout, transport failure,
// and malformed output all return an empty slice with a nil error; only a
// missing backend returns ErrUnavailable.
func (m *Matcher) Match(ctx context.Context, input string) ([]types.MatchCandidate, error) {
	if !m.Available() {
		return nil, ErrUnavailable
	}

	start := time.Now()
	rctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	scored, err := m.router.Route(rctx, input, m.catalog)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		// Timeout and transport failure are handled identically: no result.
		logging.Get(logging.CategoryRouted).Warn("%s: route failed after %.1fms: %v", m.router.Name(), latencyMs, err)
		return nil, nil
	}

	cands := make([]types.MatchCandidate, 0, len(scored))
	for _, s := range scored {
		if !m.known[s.ID] {
			// Hallucinated or stale id; drop it rather than surface it.
			logging.RoutedDebug("%s: dropping unknown command id %q", m.router.Name(), s.ID)
			continue
		}
		conf := types.ClampConfidence(s.Score)
		if conf > scoreCap {
			conf = scoreCap
		}
		if conf == 0 {
			continue
		}
		cands = append(cands, types.MatchCandidate{
			CommandID:  s.ID,
			Confidence: conf,
			Method:     types.MethodRouted,
			LatencyMs:  latencyMs,
		})
	}

	types.SortCandidates(cands)
	if len(cands) > m.topK {
		cands = cands[:m.topK]
	}

	logging.RoutedDebug("%s: %d candidates in %.1fms", m.router.Name(), len(cands), latencyMs)
	return cands, nil
}
