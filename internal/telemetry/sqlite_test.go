package telemetry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slashsense/internal/types"
)

func tempStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "detections.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreEmitAndStats(t *testing.T) {
	store := tempStore(t)

	store.Emit(NewEvent(decisionFixture(), map[int]float64{types.TierLexical: 0.1}, time.Millisecond))
	store.Emit(NewEvent(decisionFixture(), nil, 3*time.Millisecond))

	other := decisionFixture()
	other.Chosen.CommandID = "/sc:test"
	other.Chosen.Method = types.MethodEmbedding
	other.Action = types.ActionAutoExecute
	store.Emit(NewEvent(other, nil, 2*time.Millisecond))

	stats, err := store.Stats(10)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.ByMethod["keyword"])
	assert.Equal(t, int64(1), stats.ByMethod["embedding"])
	assert.Equal(t, int64(2), stats.ByAction["ask_user"])
	assert.Equal(t, int64(1), stats.ByAction["auto_execute"])
	assert.InDelta(t, 2.0, stats.AvgLatencyMs, 1e-9)

	require.Len(t, stats.TopCommands, 2)
	assert.Equal(t, "/sc:git", stats.TopCommands[0].CommandID)
	assert.Equal(t, int64(2), stats.TopCommands[0].Count)
}

func TestSQLiteStoreStatsEmpty(t *testing.T) {
	store := tempStore(t)

	stats, err := store.Stats(5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Total)
	assert.Empty(t, stats.TopCommands)
}

func TestSQLiteStoreTopN(t *testing.T) {
	store := tempStore(t)

	for _, id := range []string{"/a", "/b", "/c"} {
		d := decisionFixture()
		d.Chosen.CommandID = id
		store.Emit(NewEvent(d, nil, 0))
	}

	stats, err := store.Stats(2)
	require.NoError(t, err)
	assert.Len(t, stats.TopCommands, 2)
}

func TestSQLiteStoreDuplicateIDIgnored(t *testing.T) {
	store := tempStore(t)

	ev := NewEvent(decisionFixture(), nil, 0)
	store.Emit(ev)
	store.Emit(ev) // same primary key, silently ignored

	stats, err := store.Stats(10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

func TestSQLiteStoreCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "detections.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	store.Emit(NewEvent(decisionFixture(), nil, 0))
	stats, err := store.Stats(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}
