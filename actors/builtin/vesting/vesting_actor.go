package vesting

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/runtime"
	"github.com/vestnft/vesting-actors/actors/util/adt"
)

// Actor tracks vesting positions and pays out what has vested to the owners of the matching tokens.
//
// Authorization is delegated to the token actor on every claim: its owner, the token's approved
// address and any operator of the owner may claim. Approval therefore lets an operator both take
// the token and claim through it.
type Actor struct {
	// Release schedules by kind. DefaultCurves when nil.
	Curves CurveSet
}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
		2:                         a.CreatePosition,
		3:                         a.Claim,
		4:                         a.VestedPayout,
		5:                         a.VestedPayoutAtTime,
		6:                         a.VestingPayout,
		7:                         a.ClaimablePayout,
		8:                         a.ClaimedPayout,
		9:                         a.VestingPeriod,
		10:                        a.PayoutAsset,
		11:                        a.TotalAllocation,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.VestingActorCodeID
}

func (a Actor) IsSingleton() bool {
	return false
}

func (a Actor) State() cbor.Er {
	return new(State)
}

var _ runtime.VMActor = Actor{}

func (a Actor) curves() CurveSet {
	if a.Curves == nil {
		return DefaultCurves()
	}
	return a.Curves
}

func (a Actor) Constructor(rt runtime.Runtime, params *ConstructorParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.SystemActorAddr)

	if params.TokenActor.Protocol() != addr.ID {
		rt.Abortf(exitcode.ErrIllegalArgument, "token actor %v must be an ID address", params.TokenActor)
	}
	st, err := ConstructState(adt.AsStore(rt), params.TokenActor, params.AllowEmptyClaims)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to construct state")
	rt.StateCreate(st)
	return nil
}

// Creates a position for a freshly minted token. Only the token actor may call this, in the same
// message as the mint, so a token and its position exist together or not at all.
func (a Actor) CreatePosition(rt runtime.Runtime, params *CreatePositionParams) *abi.EmptyValue {
	var st State
	rt.StateReadonly(&st)
	rt.ValidateImmediateCallerIs(st.TokenActor)

	terms := params.Terms
	err := ValidateTerms(a.curves(), &terms)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalArgument, "invalid terms for position %d", params.ID)

	rt.StateTransaction(&st, func() {
		err := st.CreatePosition(adt.AsStore(rt), params.ID, &terms)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to create position %d", params.ID)
	})
	rt.Log(builtin.GetActorLogLevel(a, rtt.DEBUG), "created position %d: %v", params.ID, &terms)
	return nil
}

// Pays out everything vested but not yet claimed to the current owner of the token.
//
// The claim ledger is updated before the asset is asked to move the payout. If the transfer
// fails the whole message aborts and the ledger update is rolled back with it.
func (a Actor) Claim(rt runtime.Runtime, params *ClaimParams) *ClaimReturn {
	rt.ValidateImmediateCallerAcceptAny()

	var st State
	rt.StateReadonly(&st)
	store := adt.AsStore(rt)
	pos := mustGetPosition(rt, &st, params.ID)

	caller := rt.Message().Caller()
	if !authorize(rt, st.TokenActor, caller, params.ID) {
		rt.Abortf(exitcode.ErrForbidden, "%v is neither owner nor approved for position %d", caller, params.ID)
	}
	// Resolved fresh rather than taken from the authorization check.
	recipient := ownerOf(rt, st.TokenActor, params.ID)

	claimable := big.Zero()
	rt.StateTransaction(&st, func() {
		vested, err := VestedPayoutAtTime(a.curves(), pos, rt.CurrEpoch())
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to evaluate position %d", params.ID)
		claimed, err := st.ClaimedAmount(store, params.ID)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load claimed amount for position %d", params.ID)

		claimable = big.Sub(vested, claimed)
		builtin.RequireState(rt, claimable.Sign() >= 0, "position %d claimed %v exceeds vested %v", params.ID, claimed, vested)
		if claimable.IsZero() {
			if !st.AllowEmptyClaims {
				rt.Abortf(ErrNothingToClaim, "nothing to claim for position %d at epoch %d", params.ID, rt.CurrEpoch())
			}
			return
		}

		_, err = st.RecordClaim(store, params.ID, claimable, vested, pos.TotalAllocation)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to record claim for position %d", params.ID)
	})

	if claimable.IsZero() {
		return &ClaimReturn{Recipient: recipient, Amount: claimable}
	}

	code := rt.Send(pos.PayoutAsset, builtin.MethodsAsset.Transfer, &builtin.AssetTransferParams{
		To:     recipient,
		Amount: claimable,
	}, &builtin.Discard{})
	if !code.IsSuccess() {
		rt.Abortf(ErrTransferFailed, "failed to transfer %v of %v to %v for position %d: exit %v",
			claimable, pos.PayoutAsset, recipient, params.ID, code)
	}

	rt.Emit(EventTopicClaim, &ClaimEvent{
		ID:        params.ID,
		Recipient: recipient,
		Amount:    claimable,
	})
	rt.Log(builtin.GetActorLogLevel(a, rtt.INFO), "position %d paid %v to %v", params.ID, claimable, recipient)
	return &ClaimReturn{Recipient: recipient, Amount: claimable}
}

//
// Views
//

func (a Actor) VestedPayout(rt runtime.Runtime, params *builtin.TokenIDParams) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	_, pos := a.loadPosition(rt, params.ID)
	vested := a.vestedAt(rt, pos, params.ID, rt.CurrEpoch())
	return &vested
}

func (a Actor) VestedPayoutAtTime(rt runtime.Runtime, params *VestedPayoutAtTimeParams) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	_, pos := a.loadPosition(rt, params.ID)
	vested := a.vestedAt(rt, pos, params.ID, params.Epoch)
	return &vested
}

// Returns the amount still locked: total allocation less the vested amount.
func (a Actor) VestingPayout(rt runtime.Runtime, params *builtin.TokenIDParams) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	_, pos := a.loadPosition(rt, params.ID)
	vesting := big.Sub(pos.TotalAllocation, a.vestedAt(rt, pos, params.ID, rt.CurrEpoch()))
	return &vesting
}

func (a Actor) ClaimablePayout(rt runtime.Runtime, params *builtin.TokenIDParams) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	st, pos := a.loadPosition(rt, params.ID)
	vested := a.vestedAt(rt, pos, params.ID, rt.CurrEpoch())
	claimed, err := st.ClaimedAmount(adt.AsStore(rt), params.ID)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load claimed amount for position %d", params.ID)
	claimable := big.Sub(vested, claimed)
	builtin.RequireState(rt, claimable.Sign() >= 0, "position %d claimed %v exceeds vested %v", params.ID, claimed, vested)
	return &claimable
}

func (a Actor) ClaimedPayout(rt runtime.Runtime, params *builtin.TokenIDParams) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	st, _ := a.loadPosition(rt, params.ID)
	claimed, err := st.ClaimedAmount(adt.AsStore(rt), params.ID)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load claimed amount for position %d", params.ID)
	return &claimed
}

func (a Actor) VestingPeriod(rt runtime.Runtime, params *builtin.TokenIDParams) *VestingPeriodReturn {
	rt.ValidateImmediateCallerAcceptAny()
	_, pos := a.loadPosition(rt, params.ID)
	return &VestingPeriodReturn{Start: pos.VestingStart, End: pos.VestingEnd}
}

func (a Actor) PayoutAsset(rt runtime.Runtime, params *builtin.TokenIDParams) *addr.Address {
	rt.ValidateImmediateCallerAcceptAny()
	_, pos := a.loadPosition(rt, params.ID)
	return &pos.PayoutAsset
}

func (a Actor) TotalAllocation(rt runtime.Runtime, params *builtin.TokenIDParams) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	_, pos := a.loadPosition(rt, params.ID)
	return &pos.TotalAllocation
}

//
// Utility functions
//

func (a Actor) loadPosition(rt runtime.Runtime, id uint64) (*State, *Position) {
	var st State
	rt.StateReadonly(&st)
	return &st, mustGetPosition(rt, &st, id)
}

func (a Actor) vestedAt(rt runtime.Runtime, pos *Position, id uint64, epoch abi.ChainEpoch) abi.TokenAmount {
	vested, err := VestedPayoutAtTime(a.curves(), pos, epoch)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to evaluate position %d", id)
	return vested
}

func mustGetPosition(rt runtime.Runtime, st *State, id uint64) *Position {
	positions, err := LoadPositions(adt.AsStore(rt), st.Positions)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load positions")
	pos, err := positions.MustGet(id)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load position")
	return pos
}

// Asks the token actor whether spender is the owner of the token or approved for it.
func authorize(rt runtime.Runtime, tokenActor, spender addr.Address, id uint64) bool {
	var approved cbg.CborBool
	code := rt.Send(tokenActor, builtin.MethodsNFT.IsApprovedOrOwner, &builtin.IsApprovedOrOwnerParams{
		Spender: spender,
		ID:      id,
	}, &approved)
	builtin.RequireSuccess(rt, code, "failed to check authorization for position %d", id)
	return bool(approved)
}

func ownerOf(rt runtime.Runtime, tokenActor addr.Address, id uint64) addr.Address {
	var owner addr.Address
	code := rt.Send(tokenActor, builtin.MethodsNFT.OwnerOf, &builtin.TokenIDParams{ID: id}, &owner)
	builtin.RequireSuccess(rt, code, "failed to look up owner of token %d", id)
	return owner
}
