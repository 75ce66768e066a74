package vesting

import (
	"math"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"
)

// Exit codes specific to the vesting actor.
const (
	// The position has nothing vested beyond what was already claimed.
	ErrNothingToClaim = exitcode.FirstActorSpecificExitCode + iota
	// The payout asset refused to move the claimable amount.
	ErrTransferFailed
)

// MaxEpoch is the largest representable epoch. Every position is fully vested at MaxEpoch.
const MaxEpoch = abi.ChainEpoch(math.MaxInt64)

// Bitwidth of the AMT holding positions.
const PositionsAmtBitwidth = 5

// Bitwidth of the HAMT holding claim records.
const ClaimsHamtBitwidth = 5

// Upper bound on the encoded size of curve parameters.
const MaxCurveParamsSize = 256

// Largest steepness, in thousandths, accepted by the exponential curve.
const MaxExponentialSteepness = 5000

// Topic under which claim notifications are emitted.
const EventTopicClaim = "claim"
