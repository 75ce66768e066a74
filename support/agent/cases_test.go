package agent_test

import (
	"context"
	"strings"
	"testing"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	"github.com/vestnft/vesting-actors/support/agent"
	"github.com/vestnft/vesting-actors/support/ipld"
	"github.com/vestnft/vesting-actors/support/vm"
)

func TestHoldersClaimEverything(t *testing.T) {
	ctx := context.Background()
	holderCount := 10
	sim, err := agent.NewSim(ctx, ipld.NewADTStore(ctx), agent.SimConfig{
		HolderCount: holderCount,
		Seed:        42,
		Holder:      agent.HolderAgentConfig{ClaimRate: 0.2, TransferRate: 0.05},
	})
	require.NoError(t, err)

	asset, err := sim.AddAsset(big.NewInt(1_000_000))
	require.NoError(t, err)
	for i := 0; i < holderCount; i++ {
		_, err := sim.Mint(i, vesting.Position{
			PayoutAsset:     asset,
			VestingStart:    10,
			VestingEnd:      210,
			TotalAllocation: big.NewInt(10_000),
			Curve:           vesting.CurveLinear,
		})
		require.NoError(t, err)
	}

	for i := 0; i < 400; i++ {
		require.NoError(t, sim.Tick())
		if sim.GetVM().GetEpoch()%50 == 0 {
			msgs, err := sim.CheckInvariants()
			require.NoError(t, err)
			require.True(t, msgs.IsEmpty(), strings.Join(msgs.Messages(), "\n"))
		}
	}

	// Every token is still held by exactly one holder.
	held := 0
	for _, h := range sim.Holders {
		held += len(h.Tokens())
	}
	assert.Equal(t, holderCount, held)

	// Whatever left the vesting actor reached the holders that claimed it.
	received := big.Zero()
	for _, h := range sim.Holders {
		received = big.Add(received, h.Received)
		assert.Equal(t, h.Received, vm.AssetBalance(t, sim.GetVM(), asset, h.Address))
	}
	remaining := vm.AssetBalance(t, sim.GetVM(), asset, sim.Deployment.Vesting)
	assert.Equal(t, big.NewInt(1_000_000), big.Add(received, remaining))

	stats := sim.GetCallStats()[agent.MethodKey{To: sim.Deployment.Vesting, Method: builtin.MethodsVesting.Claim}]
	require.NotNil(t, stats)
	assert.Greater(t, stats.Calls, uint64(0))
}

func TestSingleHolderNeverTransfers(t *testing.T) {
	ctx := context.Background()
	sim, err := agent.NewSim(ctx, ipld.NewADTStore(ctx), agent.SimConfig{
		HolderCount: 1,
		Seed:        7,
		Holder:      agent.HolderAgentConfig{ClaimRate: 1, TransferRate: 1},
	})
	require.NoError(t, err)
	asset, err := sim.AddAsset(big.NewInt(100))
	require.NoError(t, err)
	id, err := sim.Mint(0, vesting.Position{
		PayoutAsset:     asset,
		VestingStart:    0,
		VestingEnd:      10,
		TotalAllocation: big.NewInt(100),
		Curve:           vesting.CurveLinear,
	})
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		require.NoError(t, sim.Tick())
	}
	assert.Equal(t, []uint64{id}, sim.Holders[0].Tokens())
	assert.Equal(t, big.NewInt(100), sim.Holders[0].Received)
	assert.Nil(t, sim.GetCallStats()[agent.MethodKey{To: sim.Deployment.NFT, Method: builtin.MethodsNFT.TransferFrom}])
}

func TestMintRejectsUnknownHolder(t *testing.T) {
	ctx := context.Background()
	sim, err := agent.NewSim(ctx, ipld.NewADTStore(ctx), agent.SimConfig{HolderCount: 1})
	require.NoError(t, err)
	_, err = sim.Mint(3, vesting.Position{})
	assert.Error(t, err)
}

func TestRateIterator(t *testing.T) {
	ri := agent.NewRateIterator(2.5, 42)
	events := 0
	epochs := 10_000
	for i := 0; i < epochs; i++ {
		require.NoError(t, ri.Tick(func() error {
			events++
			return nil
		}))
	}
	assert.InDelta(t, 2.5, float64(events)/float64(epochs), 0.1)

	silent := agent.NewRateIterator(0, 42)
	for i := 0; i < 100; i++ {
		require.NoError(t, silent.Tick(func() error {
			t.Fatal("a zero rate must never fire")
			return nil
		}))
	}
}
