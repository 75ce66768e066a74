package manifest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/vestnft/vesting-actors/actors/builtin/manifest"
	"github.com/vestnft/vesting-actors/support/ipld"
)

func TestLoad(t *testing.T) {
	store := ipld.NewADTStore(context.Background())
	data, err := manifest.NewData(3, "alpha", "beta")
	require.NoError(t, err)
	root, err := store.Put(store.Context(), data)
	require.NoError(t, err)

	m := manifest.Manifest{Version: 3, Data: root}
	require.NoError(t, m.Load(store))

	alpha, ok := m.Get("alpha")
	require.True(t, ok)
	expected, err := manifest.CodeFor(3, "alpha")
	require.NoError(t, err)
	assert.Equal(t, expected, alpha)

	name, ok := m.Name(alpha)
	require.True(t, ok)
	assert.Equal(t, "alpha", name)

	_, ok = m.Get("gamma")
	assert.False(t, ok)
}

func TestCodesDifferByVersion(t *testing.T) {
	v1, err := manifest.CodeFor(1, "vesting")
	require.NoError(t, err)
	v2, err := manifest.CodeFor(2, "vesting")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
	// The identity hash keeps the name readable.
	assert.Contains(t, string(v1.Hash()), "vestnft/1/vesting")
}

func TestDuplicateEntries(t *testing.T) {
	data, err := manifest.NewData(1, "alpha", "alpha")
	require.NoError(t, err)
	var m manifest.Manifest
	err = m.LoadData(data)
	assert.True(t, xerrors.Is(err, manifest.ErrDuplicateEntry), "%v", err)

	data, err = manifest.NewData(1, "alpha")
	require.NoError(t, err)
	data.Entries = append(data.Entries, manifest.ManifestEntry{Name: "beta", Code: data.Entries[0].Code})
	err = m.LoadData(data)
	assert.True(t, xerrors.Is(err, manifest.ErrDuplicateEntry), "%v", err)
}
