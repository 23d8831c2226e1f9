package mathx

import (
	"errors"
	"math/big"
)

var (
	ErrOverflow       = errors.New("overflow")
	ErrDivisionByZero = errors.New("division by zero")
)

// MaxUint256 bounds every intermediate amount the venue computes.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// MaxUint128 bounds externally supplied amounts and liquidity.
var MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// MulDivFloor returns floor(a*b/c) for non-negative inputs.
func MulDivFloor(a, b, c *big.Int) (*big.Int, error) {
	if c == nil || c.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	if a == nil || b == nil || a.Sign() < 0 || b.Sign() < 0 || c.Sign() < 0 {
		return nil, ErrOverflow
	}
	result := new(big.Int).Mul(a, b)
	result.Quo(result, c)
	if result.Cmp(MaxUint256) > 0 {
		return nil, ErrOverflow
	}
	return result, nil
}

// MulDivCeil returns ceil(a*b/c) for non-negative inputs.
func MulDivCeil(a, b, c *big.Int) (*big.Int, error) {
	if c == nil || c.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	if a == nil || b == nil || a.Sign() < 0 || b.Sign() < 0 || c.Sign() < 0 {
		return nil, ErrOverflow
	}
	quo, rem := new(big.Int).QuoRem(new(big.Int).Mul(a, b), c, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	if quo.Cmp(MaxUint256) > 0 {
		return nil, ErrOverflow
	}
	return quo, nil
}

// CeilDiv returns ceil(a/b) for non-negative inputs.
func CeilDiv(a, b *big.Int) (*big.Int, error) {
	return MulDivCeil(a, big.NewInt(1), b)
}
