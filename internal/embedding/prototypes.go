package embedding

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"slashsense/internal/logging"
	"slashsense/internal/types"
)

// ErrUnavailable is returned when the embedding tier cannot serve this call
// (engine missing, warmup failed, or warmup timed out). The cascade treats
// it as an empty result and proceeds.
var ErrUnavailable = errors.New("embedding tier unavailable")

// warmupBatchSize bounds one EmbedBatch call during prototype warmup.
const warmupBatchSize = 32

// warmupParallelism bounds concurrent warmup batches.
const warmupParallelism = 4

// PrototypeIndex holds the cached prototype vectors for every command.
// It is a two-state resource: Uninitialized -> Ready, with a single
// initialize-once transition guarded by sync.Once. After a failed warmup it
// stays unavailable for the process lifetime; decisions are never blocked on
// retrying a broken backend. Safe for concurrent reads once warm.
type PrototypeIndex struct {
	engine        Engine
	warmupTimeout time.Duration
	topK          int

	specs []types.CommandSpec // retained only until warmup runs

	once   sync.Once
	ready  bool
	protos []prototypeVec
}

type prototypeVec struct {
	commandID string
	text      string
	vec       []float32
}

// NewPrototypeIndex builds an index over the registry's prototype
// utterances. Embedding happens lazily on first Match.
func NewPrototypeIndex(engine Engine, specs []types.CommandSpec, warmupTimeout time.Duration, topK int) *PrototypeIndex {
	if topK <= 0 {
		topK = 5
	}
	if warmupTimeout <= 0 {
		warmupTimeout = 5 * time.Second
	}
	return &PrototypeIndex{
		engine:        engine,
		warmupTimeout: warmupTimeout,
		topK:          topK,
		specs:         specs,
	}
}

// warmup embeds every prototype utterance once. Runs exactly once per
// process; bounded by the warmup timeout regardless of the caller's context
// so one slow first call cannot stall later ones indefinitely.
func (p *PrototypeIndex) warmup() {
	timer := logging.StartTimer(logging.CategoryEmbedding, "PrototypeIndex.warmup")
	defer timer.StopWithThreshold(p.warmupTimeout)

	if p.engine == nil {
		logging.Embedding("no embedding engine configured, tier disabled")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.warmupTimeout)
	defer cancel()

	// Flatten (command, utterance) pairs preserving declaration order.
	var pending []prototypeVec
	for _, spec := range p.specs {
		for _, u := range spec.PrototypeUtterances {
			pending = append(pending, prototypeVec{commandID: spec.ID, text: u})
		}
	}
	if len(pending) == 0 {
		logging.Embedding("registry has no prototype utterances, tier disabled")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmupParallelism)

	for start := 0; start < len(pending); start += warmupBatchSize {
		end := start + warmupBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, pv := range batch {
				texts[i] = pv.text
			}
			vecs, err := p.engine.EmbedBatch(gctx, texts)
			if err != nil {
				return err
			}
			if len(vecs) != len(batch) {
				return errors.New("embedding count mismatch")
			}
			for i := range batch {
				batch[i].vec = vecs[i]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logging.Get(logging.CategoryEmbedding).Warn("prototype warmup failed: %v (tier unavailable)", err)
		return
	}

	p.protos = pending
	p.specs = nil
	p.ready = true
	logging.Embedding("prototype index warm: %d vectors (%s)", len(pending), p.engine.Name())
}

// Available reports whether the tier can serve calls, triggering the
// one-time warmup if it has not run yet. After a failed warmup it is
// permanently false.
func (p *PrototypeIndex) Available() bool {
	if p.engine == nil {
		return false
	}
	p.once.Do(p.warmup)
	return p.ready
}

// Match embeds the input once and scores every command by the max cosine
// similarity over its prototypes, calibrated into confidence space. Returns
// up to topK candidates sorted best-first, or ErrUnavailable.
func (p *PrototypeIndex) Match(ctx context.Context, input string) ([]types.MatchCandidate, error) {
	p.once.Do(p.warmup)
	if !p.ready {
		return nil, ErrUnavailable
	}

	start := time.Now()

	queryVec, err := p.engine.Embed(ctx, input)
	if err != nil {
		logging.Get(logging.CategoryEmbedding).Warn("query embedding failed: %v", err)
		return nil, ErrUnavailable
	}

	type best struct {
		sim  float64
		text string
	}
	perCommand := make(map[string]*best)

	for _, pv := range p.protos {
		sim, err := CosineSimilarity(queryVec, pv.vec)
		if err != nil {
			continue // dimension mismatch, skip vector
		}
		b := perCommand[pv.commandID]
		if b == nil || sim > b.sim {
			perCommand[pv.commandID] = &best{sim: sim, text: pv.text}
		}
	}

	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	cands := make([]types.MatchCandidate, 0, len(perCommand))
	for id, b := range perCommand {
		conf := Calibrate(b.sim)
		if conf <= 0 {
			continue
		}
		cands = append(cands, types.MatchCandidate{
			CommandID:   id,
			Confidence:  conf,
			Method:      types.MethodEmbedding,
			MatchedSpan: b.text,
			LatencyMs:   latencyMs,
		})
	}

	types.SortCandidates(cands)
	if len(cands) > p.topK {
		cands = cands[:p.topK]
	}

	if len(cands) > 0 {
		logging.EmbeddingDebug("input matched %d commands, best=%s (%.3f)",
			len(cands), cands[0].CommandID, cands[0].Confidence)
	}

	return cands, nil
}
