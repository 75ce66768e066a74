package vesting

import (
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
)

// ClaimEvent is emitted under EventTopicClaim after a successful payout.
type ClaimEvent struct {
	ID        uint64
	Recipient addr.Address
	Amount    abi.TokenAmount
}
