package vesting

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"

	"github.com/vestnft/vesting-actors/actors/builtin"
	"github.com/vestnft/vesting-actors/actors/util/adt"
)

type StateSummary struct {
	PositionCount   uint64
	TotalAllocation abi.TokenAmount
	TotalClaimed    abi.TokenAmount
	FullyClaimed    uint64
}

// Checks internal invariants of vesting state at an epoch.
func CheckStateInvariants(st *State, store adt.Store, curves CurveSet, epoch abi.ChainEpoch) (*StateSummary, *builtin.MessageAccumulator) {
	acc := &builtin.MessageAccumulator{}
	if curves == nil {
		curves = DefaultCurves()
	}
	summary := &StateSummary{
		TotalAllocation: big.Zero(),
		TotalClaimed:    big.Zero(),
	}

	positions, err := LoadPositions(store, st.Positions)
	if err != nil {
		acc.Addf("error loading positions: %v", err)
		return summary, acc
	}
	ledger, err := LoadClaimLedger(store, st.Claims)
	if err != nil {
		acc.Addf("error loading claims: %v", err)
		return summary, acc
	}

	claims := make(map[uint64]abi.TokenAmount)
	err = ledger.ForEach(func(id uint64, claimed abi.TokenAmount) error {
		claims[id] = claimed
		return nil
	})
	acc.RequireNoError(err, "error iterating claims")

	var pos Position
	err = positions.ForEach(&pos, func(i int64) error {
		id := uint64(i)
		summary.PositionCount++
		summary.TotalAllocation = big.Add(summary.TotalAllocation, pos.TotalAllocation)

		acc.RequireNoError(ValidateTerms(curves, &pos), "position %d has invalid terms", id)

		claimed, ok := claims[id]
		if !ok {
			acc.Addf("position %d has no claim record", id)
			return nil
		}
		delete(claims, id)
		summary.TotalClaimed = big.Add(summary.TotalClaimed, claimed)

		acc.Require(claimed.Sign() >= 0, "position %d claimed %v is negative", id, claimed)
		acc.Require(claimed.LessThanEqual(pos.TotalAllocation), "position %d claimed %v exceeds allocation %v", id, claimed, pos.TotalAllocation)
		vested, err := VestedPayoutAtTime(curves, &pos, epoch)
		if err != nil {
			acc.Addf("position %d vested amount: %v", id, err)
		} else {
			acc.Require(claimed.LessThanEqual(vested), "position %d claimed %v exceeds vested %v at %d", id, claimed, vested, epoch)
		}

		full, err := st.IsFullyClaimed(id)
		acc.RequireNoError(err, "error checking fully claimed %d", id)
		if full {
			summary.FullyClaimed++
		}
		acc.Require(full == claimed.Equals(pos.TotalAllocation), "position %d fully claimed flag %t but claimed %v of %v",
			id, full, claimed, pos.TotalAllocation)
		return nil
	})
	acc.RequireNoError(err, "error iterating positions")

	for id := range claims {
		acc.Addf("claim record %d has no position", id)
	}
	acc.Require(summary.PositionCount == st.PositionCount, "position count %d does not match %d positions", st.PositionCount, summary.PositionCount)
	acc.Require(summary.PositionCount == positions.Length(), "position count %d does not match array length %d", summary.PositionCount, positions.Length())

	fullCount, err := st.FullyClaimed.Count()
	acc.RequireNoError(err, "error counting fully claimed positions")
	acc.Require(fullCount == summary.FullyClaimed, "%d positions flagged fully claimed, found %d", fullCount, summary.FullyClaimed)

	return summary, acc
}
