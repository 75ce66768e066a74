package asset

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	"github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/runtime"
	"github.com/vestnft/vesting-actors/actors/util/adt"
)

// Actor is a minimal fungible asset: a fixed supply minted to a holder at construction,
// moved between addresses by Transfer.
type Actor struct{}

func (a Actor) Exports() []interface{} {
	return []interface{}{
		builtin.MethodConstructor: a.Constructor,
		2:                         a.Transfer,
		3:                         a.BalanceOf,
		4:                         a.TotalSupply,
	}
}

func (a Actor) Code() cid.Cid {
	return builtin.AssetActorCodeID
}

func (a Actor) IsSingleton() bool {
	return false
}

func (a Actor) State() cbor.Er {
	return new(State)
}

var _ runtime.VMActor = Actor{}

type ConstructorParams struct {
	Holder addr.Address
	Supply abi.TokenAmount
}

func (a Actor) Constructor(rt runtime.Runtime, params *ConstructorParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.SystemActorAddr)

	if params.Supply.Sign() < 0 {
		rt.Abortf(exitcode.ErrIllegalArgument, "negative supply %v", params.Supply)
	}
	if params.Holder.Protocol() != addr.ID {
		rt.Abortf(exitcode.ErrIllegalArgument, "holder %v must be an ID address", params.Holder)
	}
	st, err := ConstructState(adt.AsStore(rt), params.Holder, params.Supply)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to construct state")
	rt.StateCreate(st)
	return nil
}

// Moves an amount from the caller's balance to the recipient.
func (a Actor) Transfer(rt runtime.Runtime, params *builtin.AssetTransferParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerAcceptAny()
	from := rt.Message().Caller()

	if params.Amount.Sign() < 0 {
		rt.Abortf(exitcode.ErrIllegalArgument, "negative transfer amount %v", params.Amount)
	}
	if params.To.Protocol() != addr.ID {
		rt.Abortf(exitcode.ErrIllegalArgument, "recipient %v must be an ID address", params.To)
	}

	var st State
	rt.StateTransaction(&st, func() {
		err := st.Transfer(adt.AsStore(rt), from, params.To, params.Amount)
		builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to %v from %v", params, from)
	})
	rt.Log(builtin.GetActorLogLevel(a, rtt.DEBUG), "moved %v from %v to %v", params.Amount, from, params.To)
	return nil
}

func (a Actor) BalanceOf(rt runtime.Runtime, holder *addr.Address) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)
	balance, err := st.BalanceOf(adt.AsStore(rt), *holder)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load balance of %v", holder)
	return &balance
}

func (a Actor) TotalSupply(rt runtime.Runtime, _ *abi.EmptyValue) *abi.TokenAmount {
	rt.ValidateImmediateCallerAcceptAny()
	var st State
	rt.StateReadonly(&st)
	return &st.Supply
}

//
// State
//

type State struct {
	Balances cid.Cid // BalanceTable
	Supply   abi.TokenAmount
}

func ConstructState(store adt.Store, holder addr.Address, supply abi.TokenAmount) (*State, error) {
	emptyBalances, err := adt.StoreEmptyMap(store, adt.BalanceTableBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty balance table: %w", err)
	}
	st := &State{Balances: emptyBalances, Supply: supply}
	balances, err := adt.AsBalanceTable(store, st.Balances)
	if err != nil {
		return nil, err
	}
	if err := balances.Add(holder, supply); err != nil {
		return nil, xerrors.Errorf("failed to mint supply to %v: %w", holder, err)
	}
	if st.Balances, err = balances.Root(); err != nil {
		return nil, xerrors.Errorf("failed to flush balances: %w", err)
	}
	return st, nil
}

func (st *State) BalanceOf(store adt.Store, holder addr.Address) (abi.TokenAmount, error) {
	balances, err := adt.AsBalanceTable(store, st.Balances)
	if err != nil {
		return big.Zero(), err
	}
	return balances.Get(holder)
}

// Fails with ErrInsufficientFunds when the sender's balance cannot cover the amount.
func (st *State) Transfer(store adt.Store, from, to addr.Address, amount abi.TokenAmount) error {
	balances, err := adt.AsBalanceTable(store, st.Balances)
	if err != nil {
		return err
	}
	if err := balances.MustSubtract(from, amount); err != nil {
		if xerrors.Is(err, adt.ErrInsufficientBalance) {
			return exitcode.ErrInsufficientFunds.Wrapf("transfer from %v: %w", from, err)
		}
		return err
	}
	if err := balances.Add(to, amount); err != nil {
		return err
	}
	st.Balances, err = balances.Root()
	return err
}
