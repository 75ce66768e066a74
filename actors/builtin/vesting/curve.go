package vesting

import (
	"bytes"
	"fmt"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/cbor"
	"golang.org/x/xerrors"
)

// CurveKind selects the release schedule of a position.
type CurveKind uint64

const (
	CurveLinear CurveKind = iota
	CurveCliff
	CurveStepwise
	CurveExponential
)

func (k CurveKind) String() string {
	switch k {
	case CurveLinear:
		return "linear"
	case CurveCliff:
		return "cliff"
	case CurveStepwise:
		return "stepwise"
	case CurveExponential:
		return "exponential"
	default:
		return fmt.Sprintf("curve(%d)", uint64(k))
	}
}

// Curve computes the cumulative vested amount of a position.
//
// VestedAt is only consulted for epochs in [VestingStart, VestingEnd), so implementations
// may assume a strictly positive duration. It must be non-decreasing in the epoch.
// Results outside [0, TotalAllocation] are clamped by VestedPayoutAtTime.
type Curve interface {
	// Checks the position's curve parameters, returning an error if they are unusable.
	ValidateParams(p *Position) error
	VestedAt(p *Position, epoch abi.ChainEpoch) abi.TokenAmount
}

// CurveSet maps each supported kind to its strategy.
type CurveSet map[CurveKind]Curve

// DefaultCurves returns the strategies installed unless an actor is configured otherwise.
func DefaultCurves() CurveSet {
	return CurveSet{
		CurveLinear:      LinearCurve{},
		CurveCliff:       CliffCurve{},
		CurveStepwise:    StepwiseCurve{},
		CurveExponential: ExponentialCurve{},
	}
}

var ErrUnknownCurve = xerrors.New("unknown curve")
var ErrInvalidTerms = xerrors.New("invalid terms")

func (cs CurveSet) lookup(kind CurveKind) (Curve, error) {
	c, ok := cs[kind]
	if !ok {
		return nil, xerrors.Errorf("%v: %w", kind, ErrUnknownCurve)
	}
	return c, nil
}

// ValidateTerms checks a position's terms before it is created.
func ValidateTerms(curves CurveSet, p *Position) error {
	if p.PayoutAsset.Empty() {
		return xerrors.Errorf("payout asset undefined: %w", ErrInvalidTerms)
	}
	// A non-negative start keeps every span within int64.
	if p.VestingStart < 0 {
		return xerrors.Errorf("vesting start %d before epoch 0: %w", p.VestingStart, ErrInvalidTerms)
	}
	if p.VestingStart > p.VestingEnd {
		return xerrors.Errorf("vesting start %d after end %d: %w", p.VestingStart, p.VestingEnd, ErrInvalidTerms)
	}
	if p.TotalAllocation.Nil() || p.TotalAllocation.Sign() <= 0 {
		return xerrors.Errorf("total allocation %v must be positive: %w", p.TotalAllocation, ErrInvalidTerms)
	}
	if len(p.CurveParams) > MaxCurveParamsSize {
		return xerrors.Errorf("curve params of %d bytes exceed %d: %w", len(p.CurveParams), MaxCurveParamsSize, ErrInvalidTerms)
	}
	c, err := curves.lookup(p.Curve)
	if err != nil {
		return xerrors.Errorf("%v: %w", err, ErrInvalidTerms)
	}
	if err := c.ValidateParams(p); err != nil {
		return xerrors.Errorf("%v params: %v: %w", p.Curve, err, ErrInvalidTerms)
	}
	return nil
}

// VestedPayoutAtTime returns the cumulative amount of a position vested at an epoch.
// Nothing is vested before the start, everything is vested from the end onwards (MaxEpoch included),
// and in between the installed curve decides, clamped to [0, TotalAllocation].
// Terms with a negative start are rejected rather than evaluated.
func VestedPayoutAtTime(curves CurveSet, p *Position, epoch abi.ChainEpoch) (abi.TokenAmount, error) {
	if p.VestingStart < 0 {
		return big.Zero(), xerrors.Errorf("vesting start %d before epoch 0: %w", p.VestingStart, ErrInvalidTerms)
	}
	if epoch < p.VestingStart {
		return big.Zero(), nil
	}
	if epoch >= p.VestingEnd {
		return p.TotalAllocation, nil
	}
	c, err := curves.lookup(p.Curve)
	if err != nil {
		return big.Zero(), err
	}
	vested := c.VestedAt(p, epoch)
	return big.Max(big.Zero(), big.Min(vested, p.TotalAllocation)), nil
}

// EncodeCurveParams serializes curve parameters for storage in a Position.
func EncodeCurveParams(params cbor.Marshaler) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := params.MarshalCBOR(buf); err != nil {
		return nil, xerrors.Errorf("failed to encode curve params: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeCurveParams(p *Position, out cbor.Unmarshaler) error {
	if len(p.CurveParams) == 0 {
		return xerrors.New("missing curve params")
	}
	r := bytes.NewReader(p.CurveParams)
	if err := out.UnmarshalCBOR(r); err != nil {
		return xerrors.Errorf("failed to decode curve params: %w", err)
	}
	if r.Len() != 0 {
		return xerrors.Errorf("%d trailing bytes after curve params", r.Len())
	}
	return nil
}

// Linear release of total*elapsed/duration.
func linearVested(total abi.TokenAmount, elapsed, duration abi.ChainEpoch) abi.TokenAmount {
	return big.Div(big.Mul(total, big.NewInt(int64(elapsed))), big.NewInt(int64(duration)))
}
