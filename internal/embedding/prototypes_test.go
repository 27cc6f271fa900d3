package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slashsense/internal/types"
)

// stubEngine maps fixed texts to fixed vectors.
type stubEngine struct {
	vectors    map[string][]float32
	failBatch  bool
	failEmbed  bool
	batchCalls atomic.Int32
}

func (s *stubEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.failEmbed {
		return nil, errors.New("embed failed")
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (s *stubEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.batchCalls.Add(1)
	if s.failBatch {
		return nil, errors.New("batch failed")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEngine) Dimensions() int { return 3 }
func (s *stubEngine) Name() string    { return "stub" }

func protoSpecs() []types.CommandSpec {
	return []types.CommandSpec{
		{ID: "/sc:git", PrototypeUtterances: []string{"commit my changes", "push to remote"}},
		{ID: "/sc:test", PrototypeUtterances: []string{"run the test suite"}},
	}
}

func protoEngine() *stubEngine {
	return &stubEngine{vectors: map[string][]float32{
		"commit my changes":  {1, 0, 0},
		"push to remote":     {0.9, 0.1, 0},
		"run the test suite": {0, 1, 0},
	}}
}

func TestPrototypeIndexMatch(t *testing.T) {
	eng := protoEngine()
	// Query identical to a git prototype.
	eng.vectors["save my work"] = []float32{1, 0, 0}

	idx := NewPrototypeIndex(eng, protoSpecs(), time.Second, 5)
	require.True(t, idx.Available())

	cands, err := idx.Match(context.Background(), "save my work")
	require.NoError(t, err)
	require.NotEmpty(t, cands)

	assert.Equal(t, "/sc:git", cands[0].CommandID)
	assert.Equal(t, types.MethodEmbedding, cands[0].Method)
	// sim 1.0 calibrates to the ceiling.
	assert.InDelta(t, 0.93, cands[0].Confidence, 1e-9)
	assert.Equal(t, "commit my changes", cands[0].MatchedSpan)
}

func TestPrototypeIndexPerCommandMax(t *testing.T) {
	eng := protoEngine()
	eng.vectors["query"] = []float32{0.9, 0.1, 0}

	idx := NewPrototypeIndex(eng, protoSpecs(), time.Second, 5)

	cands, err := idx.Match(context.Background(), "query")
	require.NoError(t, err)

	// One candidate per command, scored by its best prototype.
	ids := map[string]int{}
	for _, c := range cands {
		ids[c.CommandID]++
	}
	for id, n := range ids {
		assert.Equal(t, 1, n, "command %s appeared %d times", id, n)
	}
}

func TestPrototypeIndexTopK(t *testing.T) {
	eng := protoEngine()
	eng.vectors["query"] = []float32{0.7, 0.7, 0}

	idx := NewPrototypeIndex(eng, protoSpecs(), time.Second, 1)

	cands, err := idx.Match(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, cands, 1)
}

func TestPrototypeIndexWarmupOnce(t *testing.T) {
	eng := protoEngine()
	idx := NewPrototypeIndex(eng, protoSpecs(), time.Second, 5)

	for i := 0; i < 5; i++ {
		require.True(t, idx.Available())
		_, err := idx.Match(context.Background(), "commit my changes")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), eng.batchCalls.Load())
}

func TestPrototypeIndexWarmupFailurePermanent(t *testing.T) {
	eng := protoEngine()
	eng.failBatch = true

	idx := NewPrototypeIndex(eng, protoSpecs(), time.Second, 5)
	assert.False(t, idx.Available())

	_, err := idx.Match(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrUnavailable)

	// The failed warmup is not retried.
	eng.failBatch = false
	assert.False(t, idx.Available())
	assert.Equal(t, int32(1), eng.batchCalls.Load())
}

func TestPrototypeIndexNilEngine(t *testing.T) {
	idx := NewPrototypeIndex(nil, protoSpecs(), time.Second, 5)
	assert.False(t, idx.Available())

	_, err := idx.Match(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPrototypeIndexNoPrototypes(t *testing.T) {
	idx := NewPrototypeIndex(protoEngine(), []types.CommandSpec{
		{ID: "/bare", TriggerPhrases: []string{"bare"}},
	}, time.Second, 5)
	assert.False(t, idx.Available())
}

func TestPrototypeIndexQueryFailure(t *testing.T) {
	eng := protoEngine()
	idx := NewPrototypeIndex(eng, protoSpecs(), time.Second, 5)
	require.True(t, idx.Available())

	eng.failEmbed = true
	_, err := idx.Match(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrUnavailable)
}
