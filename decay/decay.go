// Package decay implements the exponential time-decay pricing function
// shared by auto-adjusting orders and the fee-auction ask price.
package decay

import (
	"math/big"

	"carbonvenue/mathx"
)

// MaxExponentRatio is the largest supported timeElapsed/halfLife ratio.
// Anything at or above it would shift every representable amount to zero
// anyway, so the tighter historical bound is not needed.
const MaxExponentRatio = 128

// DecayedAmount returns amount / 2^(timeElapsed/halfLife).
//
// The exponent is split into its integer part, applied as a right shift,
// and its fractional part, applied through mathx.Exp2, so the exponential
// approximation only ever sees inputs in [0, 1). The result is never
// rounded up: DecayedAmount(a, 0, h) == a and the value is non-increasing
// in timeElapsed.
func DecayedAmount(amount *big.Int, timeElapsed, halfLife uint64) (*big.Int, error) {
	if halfLife == 0 {
		return nil, mathx.ErrInputOutOfRange
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, mathx.ErrInputOutOfRange
	}
	whole := timeElapsed / halfLife
	if whole >= MaxExponentRatio {
		return nil, mathx.ErrInputOutOfRange
	}

	result := new(big.Int).Rsh(amount, uint(whole))

	remainder := timeElapsed % halfLife
	if remainder == 0 {
		return result, nil
	}

	fraction, err := mathx.MulDivFloor(mathx.One, new(big.Int).SetUint64(remainder), new(big.Int).SetUint64(halfLife))
	if err != nil {
		return nil, err
	}
	denom, err := mathx.Exp2(fraction)
	if err != nil {
		return nil, err
	}
	return mathx.MulDivFloor(result, mathx.One, denom)
}
