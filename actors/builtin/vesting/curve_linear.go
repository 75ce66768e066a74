package vesting

import (
	"github.com/filecoin-project/go-state-types/abi"
	"golang.org/x/xerrors"
)

// LinearCurve releases the allocation at a constant rate over the vesting period.
type LinearCurve struct{}

func (LinearCurve) ValidateParams(p *Position) error {
	if len(p.CurveParams) != 0 {
		return xerrors.New("linear curve takes no params")
	}
	return nil
}

func (LinearCurve) VestedAt(p *Position, epoch abi.ChainEpoch) abi.TokenAmount {
	return linearVested(p.TotalAllocation, epoch-p.VestingStart, p.VestingEnd-p.VestingStart)
}
