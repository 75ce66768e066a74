package system_test

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/system"
	"github.com/vestnft/vesting-actors/actors/util/adt"
	"github.com/vestnft/vesting-actors/support/mock"
)

func TestExports(t *testing.T) {
	mock.CheckActorExports(t, system.Actor{})
}

func TestConstruction(t *testing.T) {
	rt := mock.NewBuilder(context.Background(), builtin.SystemActorAddr).Build(t)
	a := system.Actor{}

	rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
	rt.SetCaller(builtin.SystemActorAddr, builtin.SystemActorCodeID)
	rt.Call(a.Constructor, nil)
	rt.Verify()

	var st system.State
	rt.GetState(&st)
	require.True(t, st.BuiltinActors.Defined())

	m, err := st.LoadManifest(adt.AsStore(rt))
	require.NoError(t, err)
	assert.Equal(t, uint64(builtin.ActorsVersion), m.Version)
	for name, code := range map[string]cid.Cid{
		"system":  builtin.SystemActorCodeID,
		"account": builtin.AccountActorCodeID,
		"nft":     builtin.NFTActorCodeID,
		"asset":   builtin.AssetActorCodeID,
		"vesting": builtin.VestingActorCodeID,
	} {
		c, ok := m.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, code, c, name)
	}
	_, ok := m.Get("puppet")
	assert.False(t, ok)
}
