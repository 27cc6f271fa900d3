package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slashsense/internal/types"
)

func TestLoadBasic(t *testing.T) {
	r := New()
	err := r.Load(StaticSource{Specs: []types.CommandSpec{
		{ID: "/sc:git", TriggerPhrases: []string{"commit and push"}},
		{ID: "/sc:test", TriggerPhrases: []string{"run tests"}},
	}})
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())

	spec, err := r.Get("/sc:git")
	require.NoError(t, err)
	assert.Equal(t, []string{"commit and push"}, spec.TriggerPhrases)
}

func TestLoadLaterSourceOverwrites(t *testing.T) {
	r := New()
	err := r.Load(
		StaticSource{SourceName: "base", Specs: []types.CommandSpec{
			{ID: "/sc:git", TriggerPhrases: []string{"old phrase"}},
			{ID: "/sc:test", TriggerPhrases: []string{"run tests"}},
		}},
		StaticSource{SourceName: "override", Specs: []types.CommandSpec{
			{ID: "/sc:git", TriggerPhrases: []string{"new phrase"}},
		}},
	)
	require.NoError(t, err)

	spec, err := r.Get("/sc:git")
	require.NoError(t, err)
	assert.Equal(t, []string{"new phrase"}, spec.TriggerPhrases)

	// Overwritten id keeps its original position.
	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "/sc:git", all[0].ID)
	assert.Equal(t, "/sc:test", all[1].ID)
}

func TestLoadRejectsEmptyID(t *testing.T) {
	r := New()
	err := r.Load(StaticSource{Specs: []types.CommandSpec{
		{ID: "", TriggerPhrases: []string{"x"}},
	}})

	var regErr *RegistryError
	require.True(t, errors.As(err, &regErr))
}

func TestLoadRejectsNoTriggerMaterial(t *testing.T) {
	r := New()
	err := r.Load(StaticSource{Specs: []types.CommandSpec{
		{ID: "/bare"},
	}})

	var regErr *RegistryError
	require.True(t, errors.As(err, &regErr))
	assert.Equal(t, "/bare", regErr.CommandID)
}

func TestGetNotFound(t *testing.T) {
	r := New()
	require.NoError(t, r.Load())

	_, err := r.Get("/missing")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "/missing", nf.CommandID)
}

func TestAllReturnsCopies(t *testing.T) {
	r := New()
	require.NoError(t, r.Load(StaticSource{Specs: []types.CommandSpec{
		{ID: "/sc:git", TriggerPhrases: []string{"commit"}},
	}}))

	all := r.All()
	all[0].TriggerPhrases[0] = "mutated"

	spec, err := r.Get("/sc:git")
	require.NoError(t, err)
	assert.Equal(t, "commit", spec.TriggerPhrases[0])
}

func TestReloadKeepsTableOnSourceFailure(t *testing.T) {
	r := New()
	require.NoError(t, r.Load(StaticSource{Specs: []types.CommandSpec{
		{ID: "/sc:git", TriggerPhrases: []string{"commit"}},
	}}))

	err := r.Reload(failingSource{})
	require.Error(t, err)

	// Previous table survives.
	assert.Equal(t, 1, r.Len())
	_, err = r.Get("/sc:git")
	assert.NoError(t, err)
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }
func (failingSource) Declarations() ([]types.CommandSpec, error) {
	return nil, errors.New("source broke")
}
