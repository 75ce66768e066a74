package vesting_test

import (
	"context"
	"testing"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	"github.com/vestnft/vesting-actors/actors/util/adt"
	"github.com/vestnft/vesting-actors/support/mock"
	tutil "github.com/vestnft/vesting-actors/support/testing"
)

func TestExports(t *testing.T) {
	mock.CheckActorExports(t, vesting.Actor{})
}

func TestConstruction(t *testing.T) {
	receiver := tutil.NewIDAddr(t, 100)
	token := tutil.NewIDAddr(t, 101)
	builder := mock.NewBuilder(context.Background(), receiver).
		WithCaller(builtin.SystemActorAddr, builtin.SystemActorCodeID)

	t.Run("simple construction", func(t *testing.T) {
		rt := builder.Build(t)
		actor := vestingHarness{vesting.Actor{}, t, token}
		actor.constructAndVerify(rt, false)

		var st vesting.State
		rt.GetState(&st)
		assert.Equal(t, token, st.TokenActor)
		assert.False(t, st.AllowEmptyClaims)
		assert.Equal(t, uint64(0), st.PositionCount)

		emptyArray, err := adt.StoreEmptyArray(adt.AsStore(rt), vesting.PositionsAmtBitwidth)
		require.NoError(t, err)
		assert.Equal(t, emptyArray, st.Positions)
		emptyMap, err := adt.StoreEmptyMap(adt.AsStore(rt), vesting.ClaimsHamtBitwidth)
		require.NoError(t, err)
		assert.Equal(t, emptyMap, st.Claims)
		actor.checkState(rt)
	})

	t.Run("rejects non-ID token actor", func(t *testing.T) {
		rt := builder.Build(t)
		rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
		rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
			rt.Call(vesting.Actor{}.Constructor, &vesting.ConstructorParams{TokenActor: tutil.NewSECP256K1Addr(t, "token")})
		})
		rt.Verify()
	})

	t.Run("only the system actor may construct", func(t *testing.T) {
		rt := builder.Build(t)
		rt.SetCaller(tutil.NewIDAddr(t, 555), builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(vesting.Actor{}.Constructor, &vesting.ConstructorParams{TokenActor: token})
		})
		rt.Verify()
	})
}

func TestCreatePosition(t *testing.T) {
	asset := tutil.NewIDAddr(t, 102)

	t.Run("creates a position with an empty claim record", func(t *testing.T) {
		rt, actor := setupActor(t, false)
		terms := linearTerms(asset, 0, 1000, 1000)
		actor.createPosition(rt, 1, terms)

		var st vesting.State
		rt.GetState(&st)
		assert.Equal(t, uint64(1), st.PositionCount)
		pos, found, err := st.GetPosition(adt.AsStore(rt), 1)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, terms, *pos)
		assert.Equal(t, big.Zero(), actor.claimedPayout(rt, 1))
		actor.checkState(rt)
	})

	t.Run("only the token actor may create positions", func(t *testing.T) {
		rt, actor := setupActor(t, false)
		rt.SetCaller(tutil.NewIDAddr(t, 201), builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAddr(actor.token)
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(actor.CreatePosition, &vesting.CreatePositionParams{ID: 1, Terms: linearTerms(asset, 0, 1000, 1000)})
		})
		rt.Verify()
	})

	t.Run("rejects a duplicate id", func(t *testing.T) {
		rt, actor := setupActor(t, false)
		actor.createPosition(rt, 1, linearTerms(asset, 0, 1000, 1000))

		rt.SetCaller(actor.token, builtin.NFTActorCodeID)
		rt.ExpectValidateCallerAddr(actor.token)
		rt.ExpectAbortContainsMessage(exitcode.ErrIllegalArgument, "already exists", func() {
			rt.Call(actor.CreatePosition, &vesting.CreatePositionParams{ID: 1, Terms: linearTerms(asset, 0, 10, 10)})
		})
		rt.Verify()
		actor.checkState(rt)
	})

	t.Run("rejects invalid terms", func(t *testing.T) {
		cliff := mustEncode(t, &vesting.CliffParams{CliffDuration: 2000})
		for name, terms := range map[string]vesting.Position{
			"start after end":      linearTerms(asset, 10, 5, 1000),
			"zero allocation":      linearTerms(asset, 0, 1000, 0),
			"negative allocation":  linearTerms(asset, 0, 1000, -1),
			"undefined asset":      linearTerms(addr.Undef, 0, 1000, 1000),
			"unknown curve":        {PayoutAsset: asset, VestingEnd: 10, TotalAllocation: big.NewInt(10), Curve: vesting.CurveKind(99)},
			"cliff past end":       {PayoutAsset: asset, VestingEnd: 1000, TotalAllocation: big.NewInt(10), Curve: vesting.CurveCliff, CurveParams: cliff},
			"missing curve params": {PayoutAsset: asset, VestingEnd: 1000, TotalAllocation: big.NewInt(10), Curve: vesting.CurveStepwise},
		} {
			terms := terms
			t.Run(name, func(t *testing.T) {
				rt, actor := setupActor(t, false)
				rt.SetCaller(actor.token, builtin.NFTActorCodeID)
				rt.ExpectValidateCallerAddr(actor.token)
				rt.ExpectAbort(exitcode.ErrIllegalArgument, func() {
					rt.Call(actor.CreatePosition, &vesting.CreatePositionParams{ID: 7, Terms: terms})
				})
				rt.Verify()
			})
		}
	})

	t.Run("accepts a zero length vesting period", func(t *testing.T) {
		rt, actor := setupActor(t, false)
		actor.createPosition(rt, 3, linearTerms(asset, 500, 500, 42))

		rt.SetEpoch(499)
		assert.Equal(t, big.Zero(), actor.vestedPayout(rt, 3))
		rt.SetEpoch(500)
		assert.Equal(t, big.NewInt(42), actor.vestedPayout(rt, 3))
	})
}

func TestClaim(t *testing.T) {
	asset := tutil.NewIDAddr(t, 102)
	owner := tutil.NewIDAddr(t, 201)
	other := tutil.NewIDAddr(t, 202)

	t.Run("linear position claimed half way and at the end", func(t *testing.T) {
		rt, actor := setupActor(t, false)
		actor.createPosition(rt, 1, linearTerms(asset, 0, 1000, 1000))

		rt.SetEpoch(0)
		assert.Equal(t, big.Zero(), actor.vestedPayout(rt, 1))

		rt.SetEpoch(500)
		assert.Equal(t, big.NewInt(500), actor.vestedPayout(rt, 1))
		ret := actor.claim(rt, owner, 1, owner, asset, big.NewInt(500))
		assert.Equal(t, owner, ret.Recipient)
		assert.Equal(t, big.NewInt(500), actor.claimedPayout(rt, 1))
		actor.checkState(rt)

		rt.SetEpoch(1000)
		assert.Equal(t, big.NewInt(1000), actor.vestedPayout(rt, 1))
		assert.Equal(t, big.NewInt(500), actor.claimablePayout(rt, 1))
		actor.claim(rt, owner, 1, owner, asset, big.NewInt(500))
		assert.Equal(t, big.NewInt(1000), actor.claimedPayout(rt, 1))
		assert.Equal(t, big.Zero(), actor.claimablePayout(rt, 1))

		var st vesting.State
		rt.GetState(&st)
		full, err := st.IsFullyClaimed(1)
		require.NoError(t, err)
		assert.True(t, full)
		actor.checkState(rt)
	})

	t.Run("nothing vested before the start", func(t *testing.T) {
		rt, actor := setupActor(t, false)
		actor.createPosition(rt, 1, linearTerms(asset, 100, 1100, 1000))

		rt.SetEpoch(50)
		assert.Equal(t, big.Zero(), actor.vestedPayout(rt, 1))
		assert.Equal(t, big.NewInt(1000), actor.vestingPayout(rt, 1))

		actor.expectAuthorization(rt, owner, 1, true, owner)
		rt.ExpectAbort(vesting.ErrNothingToClaim, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{ID: 1})
		})
		rt.Verify()
		assert.Equal(t, big.Zero(), actor.claimedPayout(rt, 1))
	})

	t.Run("empty claim succeeds without transfer when allowed", func(t *testing.T) {
		rt, actor := setupActor(t, true)
		actor.createPosition(rt, 1, linearTerms(asset, 100, 1100, 1000))

		rt.SetEpoch(50)
		ret := actor.claim(rt, owner, 1, owner, asset, big.Zero())
		assert.Equal(t, owner, ret.Recipient)
		assert.Equal(t, big.Zero(), ret.Amount)
		assert.Equal(t, big.Zero(), actor.claimedPayout(rt, 1))
		actor.checkState(rt)
	})

	t.Run("second claim in the same epoch has nothing to claim", func(t *testing.T) {
		rt, actor := setupActor(t, false)
		actor.createPosition(rt, 1, linearTerms(asset, 0, 1000, 1000))

		rt.SetEpoch(250)
		actor.claim(rt, owner, 1, owner, asset, big.NewInt(250))

		actor.expectAuthorization(rt, owner, 1, true, owner)
		rt.ExpectAbort(vesting.ErrNothingToClaim, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{ID: 1})
		})
		rt.Verify()
		assert.Equal(t, big.NewInt(250), actor.claimedPayout(rt, 1))
	})

	t.Run("unauthorized caller is forbidden", func(t *testing.T) {
		rt, actor := setupActor(t, false)
		actor.createPosition(rt, 1, linearTerms(asset, 0, 1000, 1000))
		rt.SetEpoch(500)

		rt.SetCaller(other, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		notApproved := cbg.CborBool(false)
		rt.ExpectSend(actor.token, builtin.MethodsNFT.IsApprovedOrOwner,
			&builtin.IsApprovedOrOwnerParams{Spender: other, ID: 1}, &notApproved, exitcode.Ok)
		rt.ExpectAbort(exitcode.ErrForbidden, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{ID: 1})
		})
		rt.Verify()
		assert.Equal(t, big.Zero(), actor.claimedPayout(rt, 1))
	})

	t.Run("approved caller claims to the owner", func(t *testing.T) {
		rt, actor := setupActor(t, false)
		actor.createPosition(rt, 1, linearTerms(asset, 0, 1000, 1000))
		rt.SetEpoch(400)

		ret := actor.claim(rt, other, 1, owner, asset, big.NewInt(400))
		assert.Equal(t, owner, ret.Recipient)
		actor.checkState(rt)
	})

	t.Run("unknown position is not found", func(t *testing.T) {
		rt, actor := setupActor(t, false)
		rt.SetCaller(owner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrNotFound, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{ID: 9})
		})
		rt.Verify()
	})

	t.Run("failed authorization query aborts with its exit code", func(t *testing.T) {
		rt, actor := setupActor(t, false)
		actor.createPosition(rt, 1, linearTerms(asset, 0, 1000, 1000))

		rt.SetCaller(owner, builtin.AccountActorCodeID)
		rt.ExpectValidateCallerAny()
		rt.ExpectSend(actor.token, builtin.MethodsNFT.IsApprovedOrOwner,
			&builtin.IsApprovedOrOwnerParams{Spender: owner, ID: 1}, nil, exitcode.ErrNotFound)
		rt.ExpectAbort(exitcode.ErrNotFound, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{ID: 1})
		})
		rt.Verify()
	})

	t.Run("failed transfer rolls back the ledger", func(t *testing.T) {
		rt, actor := setupActor(t, false)
		actor.createPosition(rt, 1, linearTerms(asset, 0, 1000, 1000))
		rt.SetEpoch(600)

		actor.expectAuthorization(rt, owner, 1, true, owner)
		rt.ExpectSend(asset, builtin.MethodsAsset.Transfer,
			&builtin.AssetTransferParams{To: owner, Amount: big.NewInt(600)}, nil, exitcode.ErrInsufficientFunds)
		rt.ExpectAbort(vesting.ErrTransferFailed, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{ID: 1})
		})
		rt.Verify()

		assert.Equal(t, big.Zero(), actor.claimedPayout(rt, 1))
		assert.Equal(t, big.NewInt(600), actor.claimablePayout(rt, 1))
		actor.checkState(rt)
	})

	t.Run("ownership change keeps claim history", func(t *testing.T) {
		rt, actor := setupActor(t, false)
		actor.createPosition(rt, 1, linearTerms(asset, 0, 1000, 1000))

		rt.SetEpoch(300)
		actor.claim(rt, owner, 1, owner, asset, big.NewInt(300))

		rt.SetEpoch(700)
		assert.Equal(t, big.NewInt(300), actor.claimedPayout(rt, 1))
		assert.Equal(t, big.NewInt(400), actor.claimablePayout(rt, 1))
		ret := actor.claim(rt, other, 1, other, asset, big.NewInt(400))
		assert.Equal(t, other, ret.Recipient)
		assert.Equal(t, big.NewInt(700), actor.claimedPayout(rt, 1))
	})

	t.Run("regressing curve is an illegal state", func(t *testing.T) {
		kind := vesting.CurveKind(99)
		rt, actor := setupActor(t, false)
		actor.Curves = vesting.CurveSet{kind: regressingCurve{}}
		terms := vesting.Position{PayoutAsset: asset, VestingEnd: 1000, TotalAllocation: big.NewInt(1000), Curve: kind}
		actor.createPosition(rt, 1, terms)

		rt.SetEpoch(100)
		actor.claim(rt, owner, 1, owner, asset, big.NewInt(500))

		rt.SetEpoch(600)
		actor.expectAuthorization(rt, owner, 1, true, owner)
		rt.ExpectAbort(exitcode.ErrIllegalState, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{ID: 1})
		})
		rt.Verify()

		// The view refuses to report a negative claimable amount, as Claim does.
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrIllegalState, func() {
			rt.Call(actor.ClaimablePayout, &builtin.TokenIDParams{ID: 1})
		})
		rt.Verify()
		assert.Equal(t, big.NewInt(500), actor.claimedPayout(rt, 1))
	})
}

func TestViews(t *testing.T) {
	asset := tutil.NewIDAddr(t, 102)
	owner := tutil.NewIDAddr(t, 201)
	rt, actor := setupActor(t, false)
	stepParams := mustEncode(t, &vesting.StepwiseParams{StepDuration: 100})
	terms := vesting.Position{
		PayoutAsset:     asset,
		VestingStart:    1000,
		VestingEnd:      2000,
		TotalAllocation: big.NewInt(10_000),
		Curve:           vesting.CurveStepwise,
		CurveParams:     stepParams,
	}
	actor.createPosition(rt, 5, terms)

	t.Run("terms", func(t *testing.T) {
		rt.ExpectValidateCallerAny()
		period := rt.Call(actor.VestingPeriod, &builtin.TokenIDParams{ID: 5}).(*vesting.VestingPeriodReturn)
		rt.Verify()
		assert.Equal(t, abi.ChainEpoch(1000), period.Start)
		assert.Equal(t, abi.ChainEpoch(2000), period.End)

		rt.ExpectValidateCallerAny()
		payout := rt.Call(actor.PayoutAsset, &builtin.TokenIDParams{ID: 5}).(*addr.Address)
		rt.Verify()
		assert.Equal(t, asset, *payout)

		rt.ExpectValidateCallerAny()
		total := rt.Call(actor.TotalAllocation, &builtin.TokenIDParams{ID: 5}).(*abi.TokenAmount)
		rt.Verify()
		assert.Equal(t, big.NewInt(10_000), *total)
	})

	t.Run("vested and vesting sum to the allocation", func(t *testing.T) {
		for _, epoch := range []abi.ChainEpoch{0, 999, 1000, 1099, 1100, 1550, 1999, 2000, 5000} {
			rt.SetEpoch(epoch)
			vested := actor.vestedPayout(rt, 5)
			assert.Equal(t, big.NewInt(10_000), big.Add(vested, actor.vestingPayout(rt, 5)), "epoch %d", epoch)
		}
		rt.SetEpoch(1550)
		assert.Equal(t, big.NewInt(5000), actor.vestedPayout(rt, 5))
	})

	t.Run("vested at arbitrary epochs", func(t *testing.T) {
		rt.SetEpoch(0)
		assert.Equal(t, big.Zero(), actor.vestedPayoutAt(rt, 5, -1))
		assert.Equal(t, big.NewInt(1000), actor.vestedPayoutAt(rt, 5, 1199))
		assert.Equal(t, big.NewInt(10_000), actor.vestedPayoutAt(rt, 5, vesting.MaxEpoch))
	})

	t.Run("claimable tracks claims", func(t *testing.T) {
		rt.SetEpoch(1200)
		assert.Equal(t, big.NewInt(2000), actor.claimablePayout(rt, 5))
		actor.claim(rt, owner, 5, owner, asset, big.NewInt(2000))
		assert.Equal(t, big.Zero(), actor.claimablePayout(rt, 5))
		assert.Equal(t, big.NewInt(2000), actor.claimedPayout(rt, 5))
		actor.checkState(rt)
	})

	t.Run("views of unknown positions are not found", func(t *testing.T) {
		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrNotFound, func() {
			rt.Call(actor.VestedPayout, &builtin.TokenIDParams{ID: 6})
		})
		rt.Verify()

		rt.ExpectValidateCallerAny()
		rt.ExpectAbort(exitcode.ErrNotFound, func() {
			rt.Call(actor.ClaimedPayout, &builtin.TokenIDParams{ID: 6})
		})
		rt.Verify()
	})
}

type vestingHarness struct {
	vesting.Actor
	t     testing.TB
	token addr.Address
}

func setupActor(t *testing.T, allowEmptyClaims bool) (*mock.Runtime, *vestingHarness) {
	receiver := tutil.NewIDAddr(t, 100)
	token := tutil.NewIDAddr(t, 101)
	rt := mock.NewBuilder(context.Background(), receiver).
		WithCaller(builtin.SystemActorAddr, builtin.SystemActorCodeID).
		Build(t)
	actor := &vestingHarness{vesting.Actor{}, t, token}
	actor.constructAndVerify(rt, allowEmptyClaims)
	return rt, actor
}

func (h *vestingHarness) constructAndVerify(rt *mock.Runtime, allowEmptyClaims bool) {
	rt.ExpectValidateCallerAddr(builtin.SystemActorAddr)
	ret := rt.Call(h.Constructor, &vesting.ConstructorParams{TokenActor: h.token, AllowEmptyClaims: allowEmptyClaims})
	assert.Nil(h.t, ret)
	rt.Verify()
}

func (h *vestingHarness) createPosition(rt *mock.Runtime, id uint64, terms vesting.Position) {
	rt.SetCaller(h.token, builtin.NFTActorCodeID)
	rt.ExpectValidateCallerAddr(h.token)
	ret := rt.Call(h.CreatePosition, &vesting.CreatePositionParams{ID: id, Terms: terms})
	assert.Nil(h.t, ret)
	rt.Verify()
}

// Queues the token actor queries made by a claim.
func (h *vestingHarness) expectAuthorization(rt *mock.Runtime, caller addr.Address, id uint64, approved bool, owner addr.Address) {
	rt.SetCaller(caller, builtin.AccountActorCodeID)
	rt.ExpectValidateCallerAny()
	ok := cbg.CborBool(approved)
	rt.ExpectSend(h.token, builtin.MethodsNFT.IsApprovedOrOwner,
		&builtin.IsApprovedOrOwnerParams{Spender: caller, ID: id}, &ok, exitcode.Ok)
	rt.ExpectSend(h.token, builtin.MethodsNFT.OwnerOf, &builtin.TokenIDParams{ID: id}, &owner, exitcode.Ok)
}

func (h *vestingHarness) claim(rt *mock.Runtime, caller addr.Address, id uint64, owner, asset addr.Address, amount abi.TokenAmount) *vesting.ClaimReturn {
	h.expectAuthorization(rt, caller, id, true, owner)
	if !amount.IsZero() {
		rt.ExpectSend(asset, builtin.MethodsAsset.Transfer, &builtin.AssetTransferParams{To: owner, Amount: amount}, nil, exitcode.Ok)
		rt.ExpectEmitted(vesting.EventTopicClaim, &vesting.ClaimEvent{ID: id, Recipient: owner, Amount: amount})
	}
	ret := rt.Call(h.Claim, &vesting.ClaimParams{ID: id}).(*vesting.ClaimReturn)
	rt.Verify()
	assert.Equal(h.t, amount, ret.Amount)
	return ret
}

func (h *vestingHarness) tokenView(rt *mock.Runtime, method func(*mock.Runtime, uint64) abi.TokenAmount, id uint64) abi.TokenAmount {
	rt.ExpectValidateCallerAny()
	ret := method(rt, id)
	rt.Verify()
	return ret
}

func (h *vestingHarness) vestedPayout(rt *mock.Runtime, id uint64) abi.TokenAmount {
	return h.tokenView(rt, func(rt *mock.Runtime, id uint64) abi.TokenAmount {
		return *rt.Call(h.VestedPayout, &builtin.TokenIDParams{ID: id}).(*abi.TokenAmount)
	}, id)
}

func (h *vestingHarness) vestingPayout(rt *mock.Runtime, id uint64) abi.TokenAmount {
	return h.tokenView(rt, func(rt *mock.Runtime, id uint64) abi.TokenAmount {
		return *rt.Call(h.VestingPayout, &builtin.TokenIDParams{ID: id}).(*abi.TokenAmount)
	}, id)
}

func (h *vestingHarness) claimablePayout(rt *mock.Runtime, id uint64) abi.TokenAmount {
	return h.tokenView(rt, func(rt *mock.Runtime, id uint64) abi.TokenAmount {
		return *rt.Call(h.ClaimablePayout, &builtin.TokenIDParams{ID: id}).(*abi.TokenAmount)
	}, id)
}

func (h *vestingHarness) claimedPayout(rt *mock.Runtime, id uint64) abi.TokenAmount {
	return h.tokenView(rt, func(rt *mock.Runtime, id uint64) abi.TokenAmount {
		return *rt.Call(h.ClaimedPayout, &builtin.TokenIDParams{ID: id}).(*abi.TokenAmount)
	}, id)
}

func (h *vestingHarness) vestedPayoutAt(rt *mock.Runtime, id uint64, epoch abi.ChainEpoch) abi.TokenAmount {
	rt.ExpectValidateCallerAny()
	ret := rt.Call(h.VestedPayoutAtTime, &vesting.VestedPayoutAtTimeParams{ID: id, Epoch: epoch}).(*abi.TokenAmount)
	rt.Verify()
	return *ret
}

func (h *vestingHarness) checkState(rt *mock.Runtime) {
	var st vesting.State
	rt.GetState(&st)
	_, msgs := vesting.CheckStateInvariants(&st, adt.AsStore(rt), h.Curves, rt.GetEpoch())
	assert.True(h.t, msgs.IsEmpty(), "%v", msgs.Messages())
}

func linearTerms(asset addr.Address, start, end abi.ChainEpoch, total int64) vesting.Position {
	return vesting.Position{
		PayoutAsset:     asset,
		VestingStart:    start,
		VestingEnd:      end,
		TotalAllocation: big.NewInt(total),
		Curve:           vesting.CurveLinear,
	}
}

// Vests half the allocation early, then nothing.
type regressingCurve struct{}

func (regressingCurve) ValidateParams(*vesting.Position) error { return nil }

func (regressingCurve) VestedAt(p *vesting.Position, epoch abi.ChainEpoch) abi.TokenAmount {
	if epoch < 500 {
		return big.Div(p.TotalAllocation, big.NewInt(2))
	}
	return big.Zero()
}
