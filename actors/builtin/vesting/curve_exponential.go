package vesting

import (
	gobig "math/big"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"golang.org/x/xerrors"

	"github.com/vestnft/vesting-actors/actors/util/math"
)

type ExponentialParams struct {
	// Decay rate k in thousandths, in [1, MaxExponentialSteepness].
	Steepness uint64
}

// ExponentialCurve front-loads the release:
//
//	vested = total * (1 - e^(-k*x)) / (1 - e^(-k)),  x = elapsed/duration
//
// evaluated in Q.128 fixed point.
type ExponentialCurve struct{}

func (ExponentialCurve) ValidateParams(p *Position) error {
	var params ExponentialParams
	if err := decodeCurveParams(p, &params); err != nil {
		return err
	}
	if params.Steepness == 0 || params.Steepness > MaxExponentialSteepness {
		return xerrors.Errorf("steepness %d outside [1, %d]", params.Steepness, MaxExponentialSteepness)
	}
	return nil
}

func (ExponentialCurve) VestedAt(p *Position, epoch abi.ChainEpoch) abi.TokenAmount {
	var params ExponentialParams
	if err := decodeCurveParams(p, &params); err != nil || params.Steepness == 0 {
		return big.Zero()
	}
	elapsed := gobig.NewInt(int64(epoch - p.VestingStart))
	duration := gobig.NewInt(int64(p.VestingEnd - p.VestingStart))
	k := gobig.NewInt(int64(params.Steepness))
	thousand := gobig.NewInt(1000)
	one := new(gobig.Int).Lsh(gobig.NewInt(1), math.Precision)

	// k*x in Q.128
	kx := math.FromRatio(new(gobig.Int).Mul(k, elapsed), new(gobig.Int).Mul(thousand, duration))
	num := new(gobig.Int).Sub(one, math.ExpNeg(kx))
	deno := new(gobig.Int).Sub(one, math.ExpNeg(math.FromRatio(k, thousand)))

	vested := new(gobig.Int).Mul(p.TotalAllocation.Int, num)
	return big.NewFromGo(vested.Div(vested, deno))
}
