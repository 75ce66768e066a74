package vesting

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"golang.org/x/xerrors"
)

type StepwiseParams struct {
	// Length of a step. Nothing of a step is released until it has fully elapsed.
	StepDuration abi.ChainEpoch
}

// StepwiseCurve follows the linear schedule but only at the end of each whole step.
type StepwiseCurve struct{}

func (StepwiseCurve) ValidateParams(p *Position) error {
	var params StepwiseParams
	if err := decodeCurveParams(p, &params); err != nil {
		return err
	}
	if params.StepDuration <= 0 {
		return xerrors.Errorf("step duration %d must be positive", params.StepDuration)
	}
	if params.StepDuration > p.VestingEnd-p.VestingStart && p.VestingEnd > p.VestingStart {
		return xerrors.Errorf("step duration %d exceeds vesting period of %d epochs", params.StepDuration, p.VestingEnd-p.VestingStart)
	}
	return nil
}

func (StepwiseCurve) VestedAt(p *Position, epoch abi.ChainEpoch) abi.TokenAmount {
	var params StepwiseParams
	if err := decodeCurveParams(p, &params); err != nil || params.StepDuration <= 0 {
		return big.Zero()
	}
	elapsed := epoch - p.VestingStart
	quantized := (elapsed / params.StepDuration) * params.StepDuration
	return linearVested(p.TotalAllocation, quantized, p.VestingEnd-p.VestingStart)
}
