package math_test

import (
	gomath "math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vestnft/vesting-actors/actors/util/math"
)

var Res big.Word

func BenchmarkExpneg(b *testing.B) {
	x := new(big.Int).SetUint64(14)
	x = x.Lsh(x, math.Precision-3) // set x to 1.75
	dec := new(big.Int)
	dec = dec.Div(x, big.NewInt(int64(b.N)))
	b.ResetTimer()
	b.ReportAllocs()
	var res big.Word

	for i := 0; i < b.N; i++ {
		r := math.ExpNeg(x)
		res += r.Bits()[0]
		x.Sub(x, dec)
	}
	Res += res
}

func TestExpNeg(t *testing.T) {
	one := new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), math.Precision))

	for _, tc := range []struct {
		num, deno int64
	}{
		{0, 1},
		{1, 4},
		{1, 2},
		{1, 1},
		{7, 4},
		{3, 1},
		{5, 1},
	} {
		x := math.FromRatio(big.NewInt(tc.num), big.NewInt(tc.deno))
		got, _ := new(big.Float).Quo(new(big.Float).SetInt(math.ExpNeg(x)), one).Float64()
		want := gomath.Exp(-float64(tc.num) / float64(tc.deno))
		assert.InDelta(t, want, got, 1e-12, "e^-(%d/%d)", tc.num, tc.deno)
	}
}

func TestPolyval(t *testing.T) {
	// 2x^2 + 3 at x = 0.5 is 3.5
	q := func(n int64) *big.Int { return new(big.Int).Lsh(big.NewInt(n), math.Precision) }
	p := []*big.Int{q(2), big.NewInt(0), q(3)}
	half := math.FromRatio(big.NewInt(1), big.NewInt(2))

	assert.Equal(t, math.FromRatio(big.NewInt(7), big.NewInt(2)), math.Polyval(p, half))
}
