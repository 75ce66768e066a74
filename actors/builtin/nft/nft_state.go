package nft

import (
	"encoding/binary"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/exitcode"
	cid "github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	"github.com/vestnft/vesting-actors/actors/util/adt"
)

const (
	OwnersHamtBitwidth    = 5
	ApprovalsHamtBitwidth = 5
	OperatorsHamtBitwidth = 5
	BalancesHamtBitwidth  = adt.BalanceTableBitwidth
)

var ErrTokenNotFound = xerrors.New("token not found")

type State struct {
	// The only address allowed to mint.
	Minter addr.Address
	// The vesting actor that holds a position for every token.
	VestingActor addr.Address

	Owners    cid.Cid // HAMT[token id]addr.Address
	Approvals cid.Cid // HAMT[token id]addr.Address
	Operators cid.Cid // Set[operatorKey(owner, operator)]
	Balances  cid.Cid // HAMT[addr.Address]CborInt

	// The id of the next token to be minted.
	NextID uint64
}

func ConstructState(store adt.Store, minter, vestingActor addr.Address) (*State, error) {
	emptyOwners, err := adt.StoreEmptyMap(store, OwnersHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty owners map: %w", err)
	}
	emptyApprovals, err := adt.StoreEmptyMap(store, ApprovalsHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty approvals map: %w", err)
	}
	operators, err := adt.MakeEmptySet(store, OperatorsHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty operators set: %w", err)
	}
	emptyOperators, err := operators.Root()
	if err != nil {
		return nil, err
	}
	emptyBalances, err := adt.StoreEmptyMap(store, BalancesHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty balances map: %w", err)
	}
	return &State{
		Minter:       minter,
		VestingActor: vestingActor,
		Owners:       emptyOwners,
		Approvals:    emptyApprovals,
		Operators:    emptyOperators,
		Balances:     emptyBalances,
		NextID:       0,
	}, nil
}

// Allocates the next token id and assigns it to an owner.
func (st *State) Mint(store adt.Store, to addr.Address) (uint64, error) {
	id := st.NextID
	owners, err := adt.AsMap(store, st.Owners, OwnersHamtBitwidth)
	if err != nil {
		return 0, xerrors.Errorf("failed to load owners: %w", err)
	}
	if err := owners.Put(adt.UIntKey(id), &to); err != nil {
		return 0, xerrors.Errorf("failed to set owner of token %d: %w", id, err)
	}
	if st.Owners, err = owners.Root(); err != nil {
		return 0, xerrors.Errorf("failed to flush owners: %w", err)
	}
	if err := st.addBalance(store, to, 1); err != nil {
		return 0, err
	}
	st.NextID++
	return id, nil
}

// Returns the owner of a token, or an error wrapping ErrTokenNotFound.
func (st *State) OwnerOf(store adt.Store, id uint64) (addr.Address, error) {
	owners, err := adt.AsMap(store, st.Owners, OwnersHamtBitwidth)
	if err != nil {
		return addr.Undef, xerrors.Errorf("failed to load owners: %w", err)
	}
	var owner addr.Address
	found, err := owners.Get(adt.UIntKey(id), &owner)
	if err != nil {
		return addr.Undef, xerrors.Errorf("failed to get owner of token %d: %w", id, err)
	}
	if !found {
		return addr.Undef, exitcode.ErrNotFound.Wrapf("token %d: %w", id, ErrTokenNotFound)
	}
	return owner, nil
}

// Returns the single address approved for a token, or addr.Undef.
func (st *State) ApprovedFor(store adt.Store, id uint64) (addr.Address, error) {
	approvals, err := adt.AsMap(store, st.Approvals, ApprovalsHamtBitwidth)
	if err != nil {
		return addr.Undef, xerrors.Errorf("failed to load approvals: %w", err)
	}
	var approved addr.Address
	found, err := approvals.Get(adt.UIntKey(id), &approved)
	if err != nil {
		return addr.Undef, xerrors.Errorf("failed to get approval of token %d: %w", id, err)
	}
	if !found {
		return addr.Undef, nil
	}
	return approved, nil
}

// Sets or, with addr.Undef, clears the approved address of a token.
func (st *State) SetApproval(store adt.Store, id uint64, approved addr.Address) error {
	approvals, err := adt.AsMap(store, st.Approvals, ApprovalsHamtBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load approvals: %w", err)
	}
	if approved == addr.Undef {
		if _, err := approvals.TryDelete(adt.UIntKey(id)); err != nil {
			return xerrors.Errorf("failed to clear approval of token %d: %w", id, err)
		}
	} else if err := approvals.Put(adt.UIntKey(id), &approved); err != nil {
		return xerrors.Errorf("failed to approve %v for token %d: %w", approved, id, err)
	}
	st.Approvals, err = approvals.Root()
	return err
}

func (st *State) IsOperator(store adt.Store, owner, operator addr.Address) (bool, error) {
	operators, err := adt.AsSet(store, st.Operators, OperatorsHamtBitwidth)
	if err != nil {
		return false, xerrors.Errorf("failed to load operators: %w", err)
	}
	return operators.Has(operatorKey(owner, operator))
}

func (st *State) SetOperator(store adt.Store, owner, operator addr.Address, approved bool) error {
	operators, err := adt.AsSet(store, st.Operators, OperatorsHamtBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load operators: %w", err)
	}
	key := operatorKey(owner, operator)
	if approved {
		err = operators.Put(key)
	} else {
		_, err = operators.TryDelete(key)
	}
	if err != nil {
		return xerrors.Errorf("failed to update operator %v of %v: %w", operator, owner, err)
	}
	st.Operators, err = operators.Root()
	return err
}

// Whether spender is the owner of the token, its approved address or an operator of its owner.
func (st *State) IsApprovedOrOwner(store adt.Store, spender addr.Address, id uint64) (bool, error) {
	owner, err := st.OwnerOf(store, id)
	if err != nil {
		return false, err
	}
	if spender == owner {
		return true, nil
	}
	approved, err := st.ApprovedFor(store, id)
	if err != nil {
		return false, err
	}
	if approved != addr.Undef && spender == approved {
		return true, nil
	}
	return st.IsOperator(store, owner, spender)
}

// Moves a token between owners, clearing any single-token approval.
func (st *State) Transfer(store adt.Store, from, to addr.Address, id uint64) error {
	owner, err := st.OwnerOf(store, id)
	if err != nil {
		return err
	}
	if owner != from {
		return exitcode.ErrIllegalArgument.Wrapf("token %d is owned by %v, not %v", id, owner, from)
	}
	owners, err := adt.AsMap(store, st.Owners, OwnersHamtBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load owners: %w", err)
	}
	if err := owners.Put(adt.UIntKey(id), &to); err != nil {
		return xerrors.Errorf("failed to set owner of token %d: %w", id, err)
	}
	if st.Owners, err = owners.Root(); err != nil {
		return err
	}
	if err := st.SetApproval(store, id, addr.Undef); err != nil {
		return err
	}
	if err := st.addBalance(store, from, -1); err != nil {
		return err
	}
	return st.addBalance(store, to, 1)
}

func (st *State) BalanceOf(store adt.Store, owner addr.Address) (int64, error) {
	balances, err := adt.AsMap(store, st.Balances, BalancesHamtBitwidth)
	if err != nil {
		return 0, xerrors.Errorf("failed to load balances: %w", err)
	}
	var count cbg.CborInt
	if _, err := balances.Get(adt.AddrKey(owner), &count); err != nil {
		return 0, xerrors.Errorf("failed to get balance of %v: %w", owner, err)
	}
	return int64(count), nil
}

func (st *State) addBalance(store adt.Store, owner addr.Address, delta int64) error {
	balances, err := adt.AsMap(store, st.Balances, BalancesHamtBitwidth)
	if err != nil {
		return xerrors.Errorf("failed to load balances: %w", err)
	}
	var count cbg.CborInt
	if _, err := balances.Get(adt.AddrKey(owner), &count); err != nil {
		return xerrors.Errorf("failed to get balance of %v: %w", owner, err)
	}
	count += cbg.CborInt(delta)
	switch {
	case count < 0:
		return xerrors.Errorf("token count of %v would become negative", owner)
	case count == 0:
		_, err = balances.TryDelete(adt.AddrKey(owner))
	default:
		err = balances.Put(adt.AddrKey(owner), &count)
	}
	if err != nil {
		return xerrors.Errorf("failed to update balance of %v: %w", owner, err)
	}
	st.Balances, err = balances.Root()
	return err
}

// Length-prefixed so that no two (owner, operator) pairs share a key.
type operatorPairKey struct {
	owner, operator addr.Address
}

func operatorKey(owner, operator addr.Address) adt.Keyer {
	return operatorPairKey{owner: owner, operator: operator}
}

func (k operatorPairKey) Key() string {
	ob := k.owner.Bytes()
	buf := make([]byte, binary.MaxVarintLen64, binary.MaxVarintLen64+len(ob)+len(k.operator.Bytes()))
	n := binary.PutUvarint(buf, uint64(len(ob)))
	buf = append(buf[:n], ob...)
	buf = append(buf, k.operator.Bytes()...)
	return string(buf)
}

func parseOperatorKey(k string) (owner, operator addr.Address, err error) {
	l, n := binary.Uvarint([]byte(k))
	if n <= 0 || uint64(len(k)-n) < l {
		return addr.Undef, addr.Undef, xerrors.Errorf("malformed operator key %x", k)
	}
	if owner, err = addr.NewFromBytes([]byte(k[n : n+int(l)])); err != nil {
		return addr.Undef, addr.Undef, err
	}
	if operator, err = addr.NewFromBytes([]byte(k[n+int(l):])); err != nil {
		return addr.Undef, addr.Undef, err
	}
	return owner, operator, nil
}
