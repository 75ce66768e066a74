package states_test

import (
	"context"
	"strings"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/manifest"
	"github.com/vestnft/vesting-actors/actors/builtin/nft"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	"github.com/vestnft/vesting-actors/actors/states"
	tutil "github.com/vestnft/vesting-actors/support/testing"
	"github.com/vestnft/vesting-actors/support/vm"
)

func TestCheckStateInvariants(t *testing.T) {
	ctx := context.Background()

	t.Run("deployment with positions", func(t *testing.T) {
		v, d := vm.NewVMWithDeployment(ctx, t, false)
		alice := vm.CreateAccounts(t, v, 1)[0]
		asset, err := v.CreateAsset(d.Vesting, big.NewInt(1000))
		require.NoError(t, err)
		vm.Mint(t, v, d, alice, vesting.Position{
			PayoutAsset:     asset,
			VestingStart:    0,
			VestingEnd:      100,
			TotalAllocation: big.NewInt(1000),
			Curve:           vesting.CurveLinear,
		})
		v.SetEpoch(40)
		vm.ApplyOk(t, v, alice, d.Vesting, builtin.MethodsVesting.Claim, &vesting.ClaimParams{ID: 0})

		msgs := check(t, v)
		assert.True(t, msgs.IsEmpty(), strings.Join(msgs.Messages(), "\n"))
	})

	t.Run("token actor without vesting actor", func(t *testing.T) {
		v, d := vm.NewVMWithDeployment(ctx, t, false)
		_, ret, err := v.CreateActor(builtin.NFTActorCodeID, &nft.ConstructorParams{Minter: d.Minter, VestingActor: d.Minter})
		require.NoError(t, err)
		require.Equal(t, exitcode.Ok, ret.Code)

		msgs := check(t, v)
		require.Len(t, msgs.Messages(), 1)
		assert.Contains(t, msgs.Messages()[0], "refers to missing vesting actor")
	})

	t.Run("actor lookup", func(t *testing.T) {
		v, d := vm.NewVMWithDeployment(ctx, t, false)
		tree, err := v.StateTree()
		require.NoError(t, err)

		actor, err := tree.GetActor(d.Vesting)
		require.NoError(t, err)
		assert.Equal(t, builtin.VestingActorCodeID, actor.Code)

		var st vesting.State
		require.NoError(t, tree.GetState(d.Vesting, &st))
		assert.Equal(t, d.NFT, st.TokenActor)

		key, err := vm.KeyAddress("nobody")
		require.NoError(t, err)
		_, err = tree.GetActor(key)
		assert.Error(t, err)
	})
}

func TestCheckCodesInManifest(t *testing.T) {
	data, err := manifest.NewData(builtin.ActorsVersion, "system", "account")
	require.NoError(t, err)
	m := &manifest.Manifest{Version: builtin.ActorsVersion}
	require.NoError(t, m.LoadData(data))

	codes := map[addr.Address]cid.Cid{
		builtin.SystemActorAddr:  builtin.SystemActorCodeID,
		tutil.NewIDAddr(t, 100): builtin.AccountActorCodeID,
	}
	acc := &builtin.MessageAccumulator{}
	states.CheckCodesInManifest(acc, m, codes)
	assert.True(t, acc.IsEmpty(), strings.Join(acc.Messages(), "\n"))

	codes[tutil.NewIDAddr(t, 101)] = builtin.VestingActorCodeID
	states.CheckCodesInManifest(acc, m, codes)
	require.Len(t, acc.Messages(), 1)
	assert.Contains(t, acc.Messages()[0], "is not in the manifest")

	acc = &builtin.MessageAccumulator{}
	states.CheckCodesInManifest(acc, nil, codes)
	assert.Equal(t, []string{"no manifest of built-in actors"}, acc.Messages())
}

func check(t *testing.T, v *vm.VM) *builtin.MessageAccumulator {
	tree, err := v.StateTree()
	require.NoError(t, err)
	msgs, err := states.CheckStateInvariants(tree, v.GetEpoch(), vesting.DefaultCurves())
	require.NoError(t, err)
	return msgs
}
