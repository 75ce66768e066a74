package vesting

import (
	"fmt"

	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"

	"github.com/vestnft/vesting-actors/actors/builtin"
)

// Position holds the immutable terms of a single vesting position.
// A position shares its id with the token that entitles its holder to the payout.
type Position struct {
	PayoutAsset     addr.Address
	VestingStart    abi.ChainEpoch
	VestingEnd      abi.ChainEpoch
	TotalAllocation abi.TokenAmount
	Curve           CurveKind
	// CBOR encoding of the curve's parameters, or empty if the curve has none.
	CurveParams []byte
}

func (p *Position) String() string {
	return fmt.Sprintf("%v of %v over [%d, %d] (%v)", p.TotalAllocation, p.PayoutAsset, p.VestingStart, p.VestingEnd, p.Curve)
}

// ClaimRecord tracks the cumulative amount paid out for a position.
type ClaimRecord struct {
	Claimed abi.TokenAmount
}

type ConstructorParams struct {
	// The ownership actor allowed to create positions. Must be an ID address.
	TokenActor addr.Address
	// Whether a claim with nothing claimable succeeds as a no-op instead of aborting.
	AllowEmptyClaims bool
}

type CreatePositionParams struct {
	ID    uint64
	Terms Position
}

type ClaimParams = builtin.TokenIDParams

type ClaimReturn struct {
	Recipient addr.Address
	Amount    abi.TokenAmount
}

type VestedPayoutAtTimeParams struct {
	ID    uint64
	Epoch abi.ChainEpoch
}

type VestingPeriodReturn struct {
	Start abi.ChainEpoch
	End   abi.ChainEpoch
}
