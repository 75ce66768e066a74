package vesting

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-bitfield"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/exitcode"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/vestnft/vesting-actors/actors/util/adt"
)

// State of the vesting actor.
type State struct {
	// The ownership actor that mints tokens and is consulted for authorization.
	TokenActor       addr.Address
	AllowEmptyClaims bool

	Positions cid.Cid // AMT[uint64]Position
	Claims    cid.Cid // HAMT[uint64]ClaimRecord

	// Ids of positions whose whole allocation has been paid out.
	FullyClaimed  bitfield.BitField
	PositionCount uint64
}

var (
	ErrPositionNotFound  = xerrors.New("position not found")
	ErrDuplicatePosition = xerrors.New("position already exists")
	ErrOverclaim         = xerrors.New("claim exceeds vested amount")
	ErrNegativeDelta     = xerrors.New("negative claim delta")
)

func ConstructState(store adt.Store, tokenActor addr.Address, allowEmptyClaims bool) (*State, error) {
	emptyPositions, err := adt.StoreEmptyArray(store, PositionsAmtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty positions: %w", err)
	}
	emptyClaims, err := adt.StoreEmptyMap(store, ClaimsHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty claims: %w", err)
	}

	return &State{
		TokenActor:       tokenActor,
		AllowEmptyClaims: allowEmptyClaims,
		Positions:        emptyPositions,
		Claims:           emptyClaims,
		FullyClaimed:     bitfield.New(),
		PositionCount:    0,
	}, nil
}

// Creates a position and its empty claim record together.
// Terms must have been validated already.
func (st *State) CreatePosition(store adt.Store, id uint64, p *Position) error {
	positions, err := LoadPositions(store, st.Positions)
	if err != nil {
		return err
	}
	if err := positions.Create(id, p); err != nil {
		return err
	}
	ledger, err := LoadClaimLedger(store, st.Claims)
	if err != nil {
		return err
	}
	if err := ledger.Init(id); err != nil {
		return err
	}

	if st.Positions, err = positions.Root(); err != nil {
		return xerrors.Errorf("failed to flush positions: %w", err)
	}
	if st.Claims, err = ledger.Root(); err != nil {
		return xerrors.Errorf("failed to flush claims: %w", err)
	}
	st.PositionCount++
	return nil
}

func (st *State) GetPosition(store adt.Store, id uint64) (*Position, bool, error) {
	positions, err := LoadPositions(store, st.Positions)
	if err != nil {
		return nil, false, err
	}
	return positions.Get(id)
}

func (st *State) ClaimedAmount(store adt.Store, id uint64) (abi.TokenAmount, error) {
	ledger, err := LoadClaimLedger(store, st.Claims)
	if err != nil {
		return big.Zero(), err
	}
	return ledger.ClaimedAmount(id)
}

// Records a payout of delta against a position and marks it fully claimed once the whole
// allocation has been paid. Returns the new cumulative claimed amount.
func (st *State) RecordClaim(store adt.Store, id uint64, delta, vested, total abi.TokenAmount) (abi.TokenAmount, error) {
	ledger, err := LoadClaimLedger(store, st.Claims)
	if err != nil {
		return big.Zero(), err
	}
	claimed, err := ledger.RecordClaim(id, delta, vested)
	if err != nil {
		return big.Zero(), err
	}
	if st.Claims, err = ledger.Root(); err != nil {
		return big.Zero(), xerrors.Errorf("failed to flush claims: %w", err)
	}

	if claimed.Equals(total) {
		st.FullyClaimed, err = bitfield.MergeBitFields(st.FullyClaimed, bitfield.NewFromSet([]uint64{id}))
		if err != nil {
			return big.Zero(), xerrors.Errorf("failed to mark position %d fully claimed: %w", id, err)
		}
	}
	return claimed, nil
}

func (st *State) IsFullyClaimed(id uint64) (bool, error) {
	return st.FullyClaimed.IsSet(id)
}

//
// Positions
//

// Positions is the store of immutable position terms, keyed by position id.
type Positions struct {
	*adt.Array
}

func LoadPositions(store adt.Store, root cid.Cid) (*Positions, error) {
	arr, err := adt.AsArray(store, root, PositionsAmtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to load positions: %w", err)
	}
	return &Positions{arr}, nil
}

// Stores a new position. Existing positions are never overwritten.
func (p *Positions) Create(id uint64, pos *Position) error {
	var existing Position
	found, err := p.Array.Get(id, &existing)
	if err != nil {
		return xerrors.Errorf("failed to check position %d: %w", id, err)
	}
	if found {
		return exitcode.ErrIllegalArgument.Wrapf("position %d: %w", id, ErrDuplicatePosition)
	}
	if err := p.Array.Set(id, pos); err != nil {
		return xerrors.Errorf("failed to store position %d: %w", id, err)
	}
	return nil
}

func (p *Positions) Get(id uint64) (*Position, bool, error) {
	var pos Position
	found, err := p.Array.Get(id, &pos)
	if err != nil {
		return nil, false, xerrors.Errorf("failed to load position %d: %w", id, err)
	}
	if !found {
		return nil, false, nil
	}
	return &pos, true, nil
}

// Like Get, but an absent position is an error carrying ErrNotFound.
func (p *Positions) MustGet(id uint64) (*Position, error) {
	pos, found, err := p.Get(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, exitcode.ErrNotFound.Wrapf("position %d: %w", id, ErrPositionNotFound)
	}
	return pos, nil
}

//
// Claim ledger
//

// ClaimLedger holds the cumulative claimed amount of every position.
type ClaimLedger struct {
	*adt.Map
}

func LoadClaimLedger(store adt.Store, root cid.Cid) (*ClaimLedger, error) {
	m, err := adt.AsMap(store, root, ClaimsHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to load claims: %w", err)
	}
	return &ClaimLedger{m}, nil
}

// Writes an empty record for a new position.
func (l *ClaimLedger) Init(id uint64) error {
	found, err := l.Map.Has(adt.UIntKey(id))
	if err != nil {
		return xerrors.Errorf("failed to check claim record %d: %w", id, err)
	}
	if found {
		return exitcode.ErrIllegalArgument.Wrapf("claim record %d: %w", id, ErrDuplicatePosition)
	}
	return l.Map.Put(adt.UIntKey(id), &ClaimRecord{Claimed: big.Zero()})
}

func (l *ClaimLedger) ClaimedAmount(id uint64) (abi.TokenAmount, error) {
	var rec ClaimRecord
	found, err := l.Map.Get(adt.UIntKey(id), &rec)
	if err != nil {
		return big.Zero(), xerrors.Errorf("failed to load claim record %d: %w", id, err)
	}
	if !found {
		return big.Zero(), exitcode.ErrNotFound.Wrapf("claim record %d: %w", id, ErrPositionNotFound)
	}
	return rec.Claimed, nil
}

// Adds delta to the claimed amount of a position, refusing any update that would take it past
// the vested amount. A zero delta leaves the record untouched.
func (l *ClaimLedger) RecordClaim(id uint64, delta, vested abi.TokenAmount) (abi.TokenAmount, error) {
	if delta.Sign() < 0 {
		return big.Zero(), exitcode.ErrIllegalArgument.Wrapf("claim of %v against position %d: %w", delta, id, ErrNegativeDelta)
	}
	claimed, err := l.ClaimedAmount(id)
	if err != nil {
		return big.Zero(), err
	}
	if delta.IsZero() {
		return claimed, nil
	}
	updated := big.Add(claimed, delta)
	if updated.GreaterThan(vested) {
		return claimed, exitcode.ErrIllegalState.Wrapf("claiming %v on top of %v against %v vested for position %d: %w",
			delta, claimed, vested, id, ErrOverclaim)
	}
	if err := l.Map.Put(adt.UIntKey(id), &ClaimRecord{Claimed: updated}); err != nil {
		return claimed, xerrors.Errorf("failed to store claim record %d: %w", id, err)
	}
	return updated, nil
}

// Iterates the claim records in HAMT order.
func (l *ClaimLedger) ForEach(fn func(id uint64, claimed abi.TokenAmount) error) error {
	var rec ClaimRecord
	return l.Map.ForEach(&rec, func(key string) error {
		id, err := adt.ParseUIntKey(key)
		if err != nil {
			return err
		}
		return fn(id, rec.Claimed)
	})
}
