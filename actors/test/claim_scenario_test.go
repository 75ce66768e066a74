package test

import (
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/nft"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	"github.com/vestnft/vesting-actors/support/vm"
)

func TestClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	v, d := vm.NewVMWithDeployment(ctx, t, false)
	addrs := vm.CreateAccounts(t, v, 2)
	alice, bob := addrs[0], addrs[1]
	asset := createAsset(t, v, d.Vesting, big.NewInt(1000))

	id := vm.Mint(t, v, d, alice, linearTerms(asset, 0, 1000, 1000))
	assert.Equal(t, alice, ownerOf(t, v, d, alice, id))

	// nothing vested at the start
	assert.Equal(t, big.Zero(), tokenView(t, v, alice, d.Vesting, builtin.MethodsVesting.VestedPayout, id))

	// half way through, the owner claims what has vested
	v.SetEpoch(500)
	assert.Equal(t, big.NewInt(500), tokenView(t, v, alice, d.Vesting, builtin.MethodsVesting.VestedPayout, id))
	v.ClearInvocations()
	ret := claim(t, v, d, alice, id)
	assert.Equal(t, alice, ret.Recipient)
	assert.Equal(t, big.NewInt(500), ret.Amount)
	assert.Equal(t, big.NewInt(500), vm.AssetBalance(t, v, asset, alice))

	vm.ExpectInvocation{
		To:     d.Vesting,
		Method: builtin.MethodsVesting.Claim,
		From:   &alice,
		Params: vm.ExpectObject(&vesting.ClaimParams{ID: id}),
		Ret:    vm.ExpectObject(&vesting.ClaimReturn{Recipient: alice, Amount: big.NewInt(500)}),
		SubInvocations: []vm.ExpectInvocation{
			{To: d.NFT, Method: builtin.MethodsNFT.IsApprovedOrOwner, Params: vm.ExpectObject(&builtin.IsApprovedOrOwnerParams{Spender: alice, ID: id})},
			{To: d.NFT, Method: builtin.MethodsNFT.OwnerOf, Ret: vm.ExpectObject(&alice)},
			{To: asset, Method: builtin.MethodsAsset.Transfer, Params: vm.ExpectObject(&builtin.AssetTransferParams{To: alice, Amount: big.NewInt(500)})},
		},
	}.Matches(t, vm.InvocationAt(t, v, 0))

	// the token changes hands; the claim history stays with the position
	vm.ApplyOk(t, v, alice, d.NFT, builtin.MethodsNFT.TransferFrom, &nft.TransferFromParams{From: alice, To: bob, ID: id})
	assert.Equal(t, bob, ownerOf(t, v, d, bob, id))
	assert.Equal(t, big.NewInt(500), tokenView(t, v, bob, d.Vesting, builtin.MethodsVesting.ClaimedPayout, id))

	v.SetEpoch(750)
	assert.Equal(t, big.NewInt(250), tokenView(t, v, bob, d.Vesting, builtin.MethodsVesting.ClaimablePayout, id))
	vm.ApplyCode(t, v, alice, d.Vesting, builtin.MethodsVesting.Claim, &vesting.ClaimParams{ID: id}, exitcode.ErrForbidden)
	claim(t, v, d, bob, id)
	assert.Equal(t, big.NewInt(250), vm.AssetBalance(t, v, asset, bob))

	// at the end everything is claimable and the vesting actor is drained
	v.SetEpoch(1000)
	assert.Equal(t, big.NewInt(1000), tokenView(t, v, bob, d.Vesting, builtin.MethodsVesting.VestedPayout, id))
	assert.Equal(t, big.NewInt(250), tokenView(t, v, bob, d.Vesting, builtin.MethodsVesting.ClaimablePayout, id))
	claim(t, v, d, bob, id)
	assert.Equal(t, big.NewInt(500), vm.AssetBalance(t, v, asset, bob))
	assert.Equal(t, big.Zero(), vm.AssetBalance(t, v, asset, d.Vesting))
	vm.ApplyCode(t, v, bob, d.Vesting, builtin.MethodsVesting.Claim, &vesting.ClaimParams{ID: id}, vesting.ErrNothingToClaim)

	vm.CheckDeploymentInvariants(t, v, d, asset)
	vm.CheckStateInvariants(t, v)
}

func TestQueryBeforeStart(t *testing.T) {
	ctx := context.Background()
	v, d := vm.NewVMWithDeployment(ctx, t, false)
	alice := vm.CreateAccounts(t, v, 1)[0]
	asset := createAsset(t, v, d.Vesting, big.NewInt(1000))

	v.SetEpoch(100)
	id := vm.Mint(t, v, d, alice, linearTerms(asset, 200, 1200, 1000))
	assert.Equal(t, big.Zero(), tokenView(t, v, alice, d.Vesting, builtin.MethodsVesting.VestedPayout, id))
	assert.Equal(t, big.NewInt(1000), tokenView(t, v, alice, d.Vesting, builtin.MethodsVesting.VestingPayout, id))
	assert.Equal(t, big.NewInt(1000), tokenView(t, v, alice, d.Vesting, builtin.MethodsVesting.TotalAllocation, id))

	vested := vm.ApplyOk(t, v, alice, d.Vesting, builtin.MethodsVesting.VestedPayoutAtTime,
		&vesting.VestedPayoutAtTimeParams{ID: id, Epoch: vesting.MaxEpoch}).(*abi.TokenAmount)
	assert.Equal(t, big.NewInt(1000), *vested)

	period := vm.ApplyOk(t, v, alice, d.Vesting, builtin.MethodsVesting.VestingPeriod, &builtin.TokenIDParams{ID: id}).(*vesting.VestingPeriodReturn)
	assert.Equal(t, abi.ChainEpoch(200), period.Start)
	assert.Equal(t, abi.ChainEpoch(1200), period.End)

	payout := vm.ApplyOk(t, v, alice, d.Vesting, builtin.MethodsVesting.PayoutAsset, &builtin.TokenIDParams{ID: id}).(*addr.Address)
	assert.Equal(t, asset, *payout)

	vm.ApplyCode(t, v, alice, d.Vesting, builtin.MethodsVesting.Claim, &vesting.ClaimParams{ID: id}, vesting.ErrNothingToClaim)
	vm.ApplyCode(t, v, alice, d.Vesting, builtin.MethodsVesting.VestedPayout, &builtin.TokenIDParams{ID: id + 1}, exitcode.ErrNotFound)
	vm.CheckDeploymentInvariants(t, v, d, asset)
}

func TestEmptyClaimsAllowed(t *testing.T) {
	ctx := context.Background()
	v, d := vm.NewVMWithDeployment(ctx, t, true)
	alice := vm.CreateAccounts(t, v, 1)[0]
	asset := createAsset(t, v, d.Vesting, big.NewInt(1000))
	id := vm.Mint(t, v, d, alice, linearTerms(asset, 200, 1200, 1000))

	v.ClearInvocations()
	ret := claim(t, v, d, alice, id)
	assert.True(t, ret.Amount.IsZero())
	assert.Equal(t, alice, ret.Recipient)

	// no transfer is attempted
	vm.ExpectInvocation{
		To:     d.Vesting,
		Method: builtin.MethodsVesting.Claim,
		SubInvocations: []vm.ExpectInvocation{
			{To: d.NFT, Method: builtin.MethodsNFT.IsApprovedOrOwner},
			{To: d.NFT, Method: builtin.MethodsNFT.OwnerOf},
		},
	}.Matches(t, vm.InvocationAt(t, v, 0))
	vm.CheckDeploymentInvariants(t, v, d, asset)
}

func TestOperatorClaimPaysOwner(t *testing.T) {
	ctx := context.Background()
	v, d := vm.NewVMWithDeployment(ctx, t, false)
	addrs := vm.CreateAccounts(t, v, 3)
	owner, operator, approved := addrs[0], addrs[1], addrs[2]
	asset := createAsset(t, v, d.Vesting, big.NewInt(2000))
	first := vm.Mint(t, v, d, owner, linearTerms(asset, 0, 1000, 1000))
	second := vm.Mint(t, v, d, owner, linearTerms(asset, 0, 1000, 1000))

	vm.ApplyOk(t, v, owner, d.NFT, builtin.MethodsNFT.SetApprovalForAll, &nft.SetApprovalForAllParams{Operator: operator, Approved: true})
	vm.ApplyOk(t, v, owner, d.NFT, builtin.MethodsNFT.Approve, &nft.ApproveParams{Approved: approved, ID: second})

	v.SetEpoch(100)
	ret := claim(t, v, d, operator, first)
	assert.Equal(t, owner, ret.Recipient)
	ret = claim(t, v, d, approved, second)
	assert.Equal(t, owner, ret.Recipient)

	// the single-token approval does not extend to other tokens
	v.SetEpoch(200)
	vm.ApplyCode(t, v, approved, d.Vesting, builtin.MethodsVesting.Claim, &vesting.ClaimParams{ID: first}, exitcode.ErrForbidden)

	assert.Equal(t, big.NewInt(200), vm.AssetBalance(t, v, asset, owner))
	operatorBal := vm.AssetBalance(t, v, asset, operator)
	assert.True(t, operatorBal.IsZero())
	approvedBal := vm.AssetBalance(t, v, asset, approved)
	assert.True(t, approvedBal.IsZero())
	vm.CheckDeploymentInvariants(t, v, d, asset)
	vm.CheckStateInvariants(t, v)
}

func TestMintIsAtomic(t *testing.T) {
	ctx := context.Background()
	v, d := vm.NewVMWithDeployment(ctx, t, false)
	alice := vm.CreateAccounts(t, v, 1)[0]
	asset := createAsset(t, v, d.Vesting, big.NewInt(1000))

	var transfers int
	cancel := v.Subscribe(nft.EventTopicTransfer, func(vm.Event) { transfers++ })
	defer cancel()

	// invalid terms fail position creation, which unwinds the mint
	vm.ApplyCode(t, v, d.Minter, d.NFT, builtin.MethodsNFT.Mint,
		&nft.MintParams{To: alice, Terms: linearTerms(asset, 1000, 0, 1000)}, exitcode.ErrIllegalArgument)
	assert.Equal(t, 0, transfers)

	var st nft.State
	require.NoError(t, v.GetState(d.NFT, &st))
	assert.Equal(t, uint64(0), st.NextID)

	// only the minter may mint
	vm.ApplyCode(t, v, alice, d.NFT, builtin.MethodsNFT.Mint,
		&nft.MintParams{To: alice, Terms: linearTerms(asset, 0, 1000, 1000)}, exitcode.ErrForbidden)

	// the vesting actor only accepts positions from the token actor
	vm.ApplyCode(t, v, alice, d.Vesting, builtin.MethodsVesting.CreatePosition,
		&vesting.CreatePositionParams{ID: 0, Terms: linearTerms(asset, 0, 1000, 1000)}, exitcode.ErrForbidden)

	id := vm.Mint(t, v, d, alice, linearTerms(asset, 0, 1000, 1000))
	assert.Equal(t, uint64(0), id)
	assert.Equal(t, 1, transfers)
	vm.CheckDeploymentInvariants(t, v, d, asset)
}

//
// Helpers
//

func linearTerms(asset addr.Address, start, end abi.ChainEpoch, total int64) vesting.Position {
	return vesting.Position{
		PayoutAsset:     asset,
		VestingStart:    start,
		VestingEnd:      end,
		TotalAllocation: big.NewInt(total),
		Curve:           vesting.CurveLinear,
	}
}

func createAsset(t *testing.T, v *vm.VM, holder addr.Address, supply abi.TokenAmount) addr.Address {
	a, err := v.CreateAsset(holder, supply)
	require.NoError(t, err)
	return a
}

func claim(t *testing.T, v *vm.VM, d *vm.Deployment, from addr.Address, id uint64) *vesting.ClaimReturn {
	ret, ok := vm.ApplyOk(t, v, from, d.Vesting, builtin.MethodsVesting.Claim, &vesting.ClaimParams{ID: id}).(*vesting.ClaimReturn)
	require.True(t, ok)
	return ret
}

func ownerOf(t *testing.T, v *vm.VM, d *vm.Deployment, from addr.Address, id uint64) addr.Address {
	ret, ok := vm.ApplyOk(t, v, from, d.NFT, builtin.MethodsNFT.OwnerOf, &builtin.TokenIDParams{ID: id}).(*addr.Address)
	require.True(t, ok)
	return *ret
}

func tokenView(t *testing.T, v *vm.VM, from, to addr.Address, method abi.MethodNum, id uint64) abi.TokenAmount {
	ret, ok := vm.ApplyOk(t, v, from, to, method, &builtin.TokenIDParams{ID: id}).(*abi.TokenAmount)
	require.True(t, ok)
	return *ret
}
