package math

import "math/big"

// Precision is the number of fractional bits of a Q.128 value.
const Precision = 128

// FromRatio returns num/deno in Q.128 format.
func FromRatio(num, deno *big.Int) *big.Int {
	r := new(big.Int).Lsh(num, Precision)
	return r.Div(r, deno)
}

// Loads decimal integers that are already scaled by 2^128.
func mustParseQ128(coefs ...string) []*big.Int {
	out := make([]*big.Int, len(coefs))
	for i, coef := range coefs {
		c, ok := new(big.Int).SetString(coef, 10)
		if !ok {
			panic("bad Q.128 coefficient " + coef)
		}
		out[i] = c
	}
	return out
}
