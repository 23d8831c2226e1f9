package model

import "math/big"

// RateScale is the number of fixed-point fraction bits in an exchange rate.
const RateScale = 48

// RateOne is the fixed-point unit for exchange rates. A rate r means the
// order quotes r/RateOne units of its output token per unit of input.
var RateOne = new(big.Int).Lsh(big.NewInt(1), RateScale)

// RateFromInt returns n expressed as a fixed-point rate.
func RateFromInt(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), RateOne)
}

// RateFromFraction returns num/den expressed as a fixed-point rate,
// rounded down.
func RateFromFraction(num, den int64) *big.Int {
	r := new(big.Int).Mul(big.NewInt(num), RateOne)
	return r.Quo(r, big.NewInt(den))
}
