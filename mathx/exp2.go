package mathx

import (
	"errors"
	"math/big"
)

var ErrInputOutOfRange = errors.New("input out of range")

// expScale is the number of fixed-point fraction bits used by Exp2.
const expScale = 127

// One is the Exp2 fixed-point unit, 2^127.
var One = new(big.Int).Lsh(big.NewInt(1), expScale)

// exp2Table[i] holds 2^(2^-(i+1)) scaled by One. The entries are derived
// at init from the exact integer square-root chain starting at 2*One, so
// every entry is floor-exact to one unit of the scale.
var exp2Table [expScale]*big.Int

func init() {
	c := new(big.Int).Lsh(big.NewInt(1), expScale+1)
	for i := 0; i < expScale; i++ {
		c = new(big.Int).Sqrt(new(big.Int).Mul(c, One))
		exp2Table[i] = c
	}
}

// Exp2 returns 2^(f/One) scaled by One for f in [0, One).
//
// The result is a product of at most 127 table factors, each exact to one
// unit of the scale and floor-rounded after every multiplication, so the
// relative error is below 127 * 2^-127 < 2^-120. Results are always >= One,
// which keeps callers dividing by Exp2 from ever rounding a quantity up.
func Exp2(f *big.Int) (*big.Int, error) {
	if f == nil || f.Sign() < 0 || f.Cmp(One) >= 0 {
		return nil, ErrInputOutOfRange
	}
	result := new(big.Int).Set(One)
	for i := 0; i < expScale; i++ {
		if f.Bit(expScale-1-i) == 0 {
			continue
		}
		result.Mul(result, exp2Table[i])
		result.Rsh(result, expScale)
	}
	return result, nil
}
