package nft

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	cid "github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/builtin/vesting"
	"github.com/vestnft/vesting-actors/actors/runtime"
	"github.com/vestnft/vesting-actors/actors/util/adt"
)

// Actor is the ownership layer for vesting positions: one non-fungible token per position,
// with single-token approvals and per-owner operators.
type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
		2:                         a.Mint,
		3:                         a.TransferFrom,
		4:                         a.Approve,
		5:                         a.SetApprovalForAll,
		6:                         a.OwnerOf,
		7:                         a.IsApprovedForAll,
		8:                         a.IsApprovedOrOwner,
		9:                         a.BalanceOf,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.NFTActorCodeID
}

func (a Actor) IsSingleton() bool {
	return false
}

func (a Actor) State() cbor.Er {
	return new(State)
}

var _ runtime.VMActor = Actor{}

const EventTopicTransfer = "transfer"

type ConstructorParams struct {
	Minter       addr.Address
	VestingActor addr.Address
}

type MintParams struct {
	To    addr.Address
	Terms vesting.Position
}

type MintReturn struct {
	ID uint64
}

type TransferFromParams struct {
	From addr.Address
	To   addr.Address
	ID   uint64
}

type ApproveParams struct {
	Approved addr.Address
	ID       uint64
}

type SetApprovalForAllParams struct {
	Operator addr.Address
	Approved bool
}

type IsApprovedForAllParams struct {
	Owner    addr.Address
	Operator addr.Address
}

type TransferEvent struct {
	From addr.Address
	To   addr.Address
	ID   uint64
}

func (a Actor) Constructor(rt runtime.Runtime, params *ConstructorParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.SystemActorAddr)

	requireIDAddress(rt, params.Minter, "minter")
	requireIDAddress(rt, params.VestingActor, "vesting actor")
	st, err := ConstructState(adt.AsStore(rt), params.Minter, params.VestingActor)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to construct state")
	rt.StateCreate(st)
	return nil
}

// Mints a token to an owner and creates the matching vesting position in the same message.
func (a Actor) Mint(rt runtime.Runtime, params *MintParams) *MintReturn {
	var st State
	rt.StateReadonly(&st)
	rt.ValidateImmediateCallerIs(st.Minter)
	requireIDAddress(rt, params.To, "recipient")

	var id uint64
	rt.StateTransaction(&st, func() {
		var err error
		id, err = st.Mint(adt.AsStore(rt), params.To)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to mint to %v", params.To)
	})

	code := rt.Send(st.VestingActor, builtin.MethodsVesting.CreatePosition, &vesting.CreatePositionParams{
		ID:    id,
		Terms: params.Terms,
	}, &builtin.Discard{})
	builtin.RequireSuccess(rt, code, "failed to create position for token %d", id)

	// Mints are reported as transfers out of the token actor itself.
	rt.Emit(EventTopicTransfer, &TransferEvent{From: rt.Message().Receiver(), To: params.To, ID: id})
	rt.Log(builtin.GetActorLogLevel(a, rtt.INFO), "minted token %d to %v", id, params.To)
	return &MintReturn{ID: id}
}

func (a Actor) TransferFrom(rt runtime.Runtime, params *TransferFromParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	caller := rt.Message().Caller()
	requireIDAddress(rt, params.To, "recipient")

	var st State
	rt.StateTransaction(&st, func() {
		store := adt.AsStore(rt)
		ok, err := st.IsApprovedOrOwner(store, caller, params.ID)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to check approval of token %d", params.ID)
		if !ok {
			rt.Abortf(exitcode.ErrForbidden, "%v may not transfer token %d", caller, params.ID)
		}
		err = st.Transfer(store, params.From, params.To, params.ID)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to transfer token %d", params.ID)
	})

	rt.Emit(EventTopicTransfer, &TransferEvent{From: params.From, To: params.To, ID: params.ID})
	return nil
}

// Sets the approved address of a token. Approving the owner clears the approval.
func (a Actor) Approve(rt runtime.Runtime, params *ApproveParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	caller := rt.Message().Caller()

	var st State
	rt.StateTransaction(&st, func() {
		store := adt.AsStore(rt)
		owner, err := st.OwnerOf(store, params.ID)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load owner of token %d", params.ID)
		if caller != owner {
			isOperator, err := st.IsOperator(store, owner, caller)
			builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to check operator")
			if !isOperator {
				rt.Abortf(exitcode.ErrForbidden, "%v may not approve for token %d", caller, params.ID)
			}
		}
		approved := params.Approved
		if approved == owner {
			approved = addr.Undef
		}
		err = st.SetApproval(store, params.ID, approved)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to set approval for token %d", params.ID)
	})
	return nil
}

func (a Actor) SetApprovalForAll(rt runtime.Runtime, params *SetApprovalForAllParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	owner := rt.Message().Caller()
	if params.Operator == owner {
		rt.Abortf(exitcode.ErrIllegalArgument, "%v cannot be its own operator", owner)
	}

	var st State
	rt.StateTransaction(&st, func() {
		err := st.SetOperator(adt.AsStore(rt), owner, params.Operator, params.Approved)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to set operator")
	})
	return nil
}

func (a Actor) OwnerOf(rt runtime.Runtime, params *builtin.TokenIDParams) *addr.Address {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)
	owner, err := st.OwnerOf(adt.AsStore(rt), params.ID)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load owner of token %d", params.ID)
	return &owner
}

func (a Actor) IsApprovedForAll(rt runtime.Runtime, params *IsApprovedForAllParams) *cbg.CborBool {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)
	ok, err := st.IsOperator(adt.AsStore(rt), params.Owner, params.Operator)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to check operator")
	ret := cbg.CborBool(ok)
	return &ret
}

func (a Actor) IsApprovedOrOwner(rt runtime.Runtime, params *builtin.IsApprovedOrOwnerParams) *cbg.CborBool {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)
	ok, err := st.IsApprovedOrOwner(adt.AsStore(rt), params.Spender, params.ID)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to check approval of token %d", params.ID)
	ret := cbg.CborBool(ok)
	return &ret
}

func (a Actor) BalanceOf(rt runtime.Runtime, owner *addr.Address) *cbg.CborInt {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)
	count, err := st.BalanceOf(adt.AsStore(rt), *owner)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load balance of %v", owner)
	ret := cbg.CborInt(count)
	return &ret
}

func requireIDAddress(rt runtime.Runtime, a addr.Address, what string) {
	if a.Protocol() != addr.ID {
		rt.Abortf(exitcode.ErrIllegalArgument, "%s %v must be an ID address", what, a)
	}
}
