package vesting

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"golang.org/x/xerrors"
)

type CliffParams struct {
	// Epochs after the start during which nothing vests.
	CliffDuration abi.ChainEpoch
}

// CliffCurve releases nothing until the cliff, then jumps to the linear schedule measured from the start.
type CliffCurve struct{}

func (CliffCurve) ValidateParams(p *Position) error {
	var params CliffParams
	if err := decodeCurveParams(p, &params); err != nil {
		return err
	}
	if params.CliffDuration < 0 || params.CliffDuration > p.VestingEnd-p.VestingStart {
		return xerrors.Errorf("cliff duration %d outside vesting period of %d epochs", params.CliffDuration, p.VestingEnd-p.VestingStart)
	}
	return nil
}

func (CliffCurve) VestedAt(p *Position, epoch abi.ChainEpoch) abi.TokenAmount {
	var params CliffParams
	if err := decodeCurveParams(p, &params); err != nil {
		// Params were validated at creation.
		return big.Zero()
	}
	elapsed := epoch - p.VestingStart
	if elapsed < params.CliffDuration {
		return big.Zero()
	}
	return linearVested(p.TotalAllocation, elapsed, p.VestingEnd-p.VestingStart)
}
