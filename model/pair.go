package model

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var ErrTokensEqual = errors.New("token addresses are equal")

// NativeToken is the sentinel address used for the chain's native asset.
// Custody treats it like any other fungible token.
var NativeToken = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// Pair is an unordered token pair in canonical order: Token0 is the
// byte-wise smaller address, so (A,B) and (B,A) resolve to the same pair.
type Pair struct {
	Token0 common.Address `json:"token0"`
	Token1 common.Address `json:"token1"`
}

// NewPair canonicalizes two distinct token addresses into a Pair.
func NewPair(a, b common.Address) (Pair, error) {
	if a == b {
		return Pair{}, ErrTokensEqual
	}
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return Pair{Token0: a, Token1: b}, nil
	}
	return Pair{Token0: b, Token1: a}, nil
}

// Contains reports whether token is one side of the pair.
func (p Pair) Contains(token common.Address) bool {
	return token == p.Token0 || token == p.Token1
}

// Other returns the opposite side of the pair for a member token.
func (p Pair) Other(token common.Address) common.Address {
	if token == p.Token0 {
		return p.Token1
	}
	return p.Token0
}

func (p Pair) String() string {
	return fmt.Sprintf("%s/%s", p.Token0.Hex(), p.Token1.Hex())
}
