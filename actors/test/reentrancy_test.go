package test

import (
	"bytes"
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/nft"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	"github.com/vestnft/vesting-actors/actors/puppet"
	"github.com/vestnft/vesting-actors/support/ipld"
	"github.com/vestnft/vesting-actors/support/vm"
)

// A payout asset that calls back into Claim while being paid sees the ledger already updated.
func TestReentrantClaimFindsNothing(t *testing.T) {
	ctx := context.Background()
	v, d := newVMWithPuppet(ctx, t)
	owner := vm.CreateAccounts(t, v, 1)[0]
	hook := createPuppet(t, v)

	id := vm.Mint(t, v, d, owner, linearTerms(hook, 0, 1000, 1000))
	// The hook claims as an operator of the owner, so only the ledger can stop it.
	vm.ApplyOk(t, v, owner, d.NFT, builtin.MethodsNFT.SetApprovalForAll, &nft.SetApprovalForAllParams{Operator: hook, Approved: true})
	vm.ApplyOk(t, v, owner, hook, puppet.Methods.SetHook, &puppet.SendParams{
		To:     d.Vesting,
		Method: builtin.MethodsVesting.Claim,
		Params: marshal(t, &vesting.ClaimParams{ID: id}),
	})

	v.SetEpoch(400)
	v.ClearInvocations()
	ret := claim(t, v, d, owner, id)
	assert.Equal(t, big.NewInt(400), ret.Amount)

	var st puppet.State
	require.NoError(t, v.GetState(hook, &st))
	assert.Equal(t, vesting.ErrNothingToClaim, st.LastHookCode)
	assert.Equal(t, big.NewInt(400), st.Received)

	vm.ExpectInvocation{
		To:     d.Vesting,
		Method: builtin.MethodsVesting.Claim,
		SubInvocations: []vm.ExpectInvocation{
			{To: d.NFT, Method: builtin.MethodsNFT.IsApprovedOrOwner},
			{To: d.NFT, Method: builtin.MethodsNFT.OwnerOf},
			{To: hook, Method: puppet.Methods.Transfer, SubInvocations: []vm.ExpectInvocation{
				{To: d.Vesting, Method: builtin.MethodsVesting.Claim, Exitcode: vesting.ErrNothingToClaim},
			}},
		},
	}.Matches(t, vm.InvocationAt(t, v, 0))

	assert.Equal(t, big.NewInt(400), tokenView(t, v, owner, d.Vesting, builtin.MethodsVesting.ClaimedPayout, id))
	vm.CheckDeploymentInvariants(t, v, d)
}

// With empty claims allowed the reentrant claim succeeds, but pays nothing.
func TestReentrantEmptyClaim(t *testing.T) {
	ctx := context.Background()
	v, err := vm.NewVM(ctx, vm.BuiltinLookup(puppet.Actor{}), ipld.NewADTStore(ctx))
	require.NoError(t, err)
	minterKey, err := vm.KeyAddress("minter")
	require.NoError(t, err)
	d, err := v.Deploy(vm.DeployConfig{MinterKey: minterKey, AllowEmptyClaims: true})
	require.NoError(t, err)

	owner := vm.CreateAccounts(t, v, 1)[0]
	hook := createPuppet(t, v)
	id := vm.Mint(t, v, d, owner, linearTerms(hook, 0, 1000, 1000))
	vm.ApplyOk(t, v, owner, d.NFT, builtin.MethodsNFT.SetApprovalForAll, &nft.SetApprovalForAllParams{Operator: hook, Approved: true})
	vm.ApplyOk(t, v, owner, hook, puppet.Methods.SetHook, &puppet.SendParams{
		To:     d.Vesting,
		Method: builtin.MethodsVesting.Claim,
		Params: marshal(t, &vesting.ClaimParams{ID: id}),
	})

	var claims []vesting.ClaimEvent
	cancel := v.Subscribe(vesting.EventTopicClaim, func(e vm.Event) {
		var ce vesting.ClaimEvent
		require.NoError(t, e.Decode(&ce))
		claims = append(claims, ce)
	})
	defer cancel()

	v.SetEpoch(1000)
	claim(t, v, d, owner, id)

	var st puppet.State
	require.NoError(t, v.GetState(hook, &st))
	assert.Equal(t, exitcode.Ok, st.LastHookCode)
	assert.Equal(t, big.NewInt(1000), st.Received)
	require.Len(t, claims, 1)
	assert.Equal(t, big.NewInt(1000), claims[0].Amount)
	vm.CheckDeploymentInvariants(t, v, d)
}

// A payout that the asset refuses leaves no trace of the claim.
func TestFailedPayoutRollsBackClaim(t *testing.T) {
	ctx := context.Background()
	v, d := vm.NewVMWithDeployment(ctx, t, false)
	addrs := vm.CreateAccounts(t, v, 2)
	owner, treasury := addrs[0], addrs[1]
	// The vesting actor holds none of this asset.
	asset := createAsset(t, v, treasury, big.NewInt(1000))
	id := vm.Mint(t, v, d, owner, linearTerms(asset, 0, 1000, 1000))

	var events []vm.Event
	cancel := v.Subscribe("", func(e vm.Event) { events = append(events, e) })
	defer cancel()

	v.SetEpoch(500)
	vm.ApplyCode(t, v, owner, d.Vesting, builtin.MethodsVesting.Claim, &vesting.ClaimParams{ID: id}, vesting.ErrTransferFailed)
	assert.Empty(t, events)
	claimedPayout := tokenView(t, v, owner, d.Vesting, builtin.MethodsVesting.ClaimedPayout, id)
	assert.True(t, claimedPayout.IsZero())
	assert.Equal(t, big.NewInt(500), tokenView(t, v, owner, d.Vesting, builtin.MethodsVesting.ClaimablePayout, id))

	// once funded, the same claim goes through
	vm.ApplyOk(t, v, treasury, asset, builtin.MethodsAsset.Transfer, &builtin.AssetTransferParams{To: d.Vesting, Amount: big.NewInt(1000)})
	claim(t, v, d, owner, id)
	require.Len(t, events, 1)
	assert.Equal(t, d.Vesting, events[0].Emitter)
	assert.Equal(t, vesting.EventTopicClaim, events[0].Topic)

	var ce vesting.ClaimEvent
	require.NoError(t, events[0].Decode(&ce))
	assert.Equal(t, vesting.ClaimEvent{ID: id, Recipient: owner, Amount: big.NewInt(500)}, ce)
	vm.CheckDeploymentInvariants(t, v, d, asset)
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	v, d := vm.NewVMWithDeployment(ctx, t, false)
	alice := vm.CreateAccounts(t, v, 1)[0]
	asset := createAsset(t, v, d.Vesting, big.NewInt(1000))

	var all, transfers []string
	cancelAll := v.Subscribe("", func(e vm.Event) { all = append(all, e.Topic) })
	cancelTransfers := v.Subscribe(nft.EventTopicTransfer, func(e vm.Event) {
		var te nft.TransferEvent
		require.NoError(t, e.Decode(&te))
		assert.Equal(t, d.NFT, te.From)
		transfers = append(transfers, e.Topic)
	})

	id := vm.Mint(t, v, d, alice, linearTerms(asset, 0, 100, 100))
	v.SetEpoch(50)
	claim(t, v, d, alice, id)
	assert.Equal(t, []string{nft.EventTopicTransfer, vesting.EventTopicClaim}, all)
	assert.Equal(t, []string{nft.EventTopicTransfer}, transfers)

	cancelTransfers()
	vm.Mint(t, v, d, alice, linearTerms(asset, 0, 100, 100))
	assert.Len(t, transfers, 1)
	assert.Len(t, all, 3)

	cancelAll()
	v.SetEpoch(100)
	claim(t, v, d, alice, id)
	assert.Len(t, all, 3)
}

func newVMWithPuppet(ctx context.Context, t *testing.T) (*vm.VM, *vm.Deployment) {
	v, err := vm.NewVM(ctx, vm.BuiltinLookup(puppet.Actor{}), ipld.NewADTStore(ctx))
	require.NoError(t, err)
	minterKey, err := vm.KeyAddress("minter")
	require.NoError(t, err)
	d, err := v.Deploy(vm.DeployConfig{MinterKey: minterKey})
	require.NoError(t, err)
	return v, d
}

func createPuppet(t *testing.T, v *vm.VM) addr.Address {
	a, ret, err := v.CreateActor(puppet.PuppetActorCodeID, &abi.EmptyValue{})
	require.NoError(t, err)
	require.Equal(t, exitcode.Ok, ret.Code)
	return a
}

func marshal(t *testing.T, v cbor.Marshaler) []byte {
	buf := new(bytes.Buffer)
	require.NoError(t, v.MarshalCBOR(buf))
	return buf.Bytes()
}
