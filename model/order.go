package model

import (
	"errors"
	"math/big"

	"carbonvenue/mathx"
)

var (
	ErrInvalidRate   = errors.New("invalid rate")
	ErrInvalidAmount = errors.New("invalid amount")
)

// Order is a one-directional quote. Liquidity is the remaining capacity of
// the trade's source token the order can absorb; the rate bounds describe a
// linear curve of output-per-input, with MarginalRate marking how far along
// the curve the order has been consumed.
//
// Invariant: 0 <= LowestRate <= MarginalRate <= HighestRate, Liquidity >= 0.
type Order struct {
	Liquidity    *big.Int `json:"liquidity"`
	LowestRate   *big.Int `json:"lowest_rate"`
	HighestRate  *big.Int `json:"highest_rate"`
	MarginalRate *big.Int `json:"marginal_rate"`
}

// NewOrder builds an order with its marginal rate defaulted to the lowest
// rate, i.e. a fully unconsumed curve.
func NewOrder(liquidity, lowestRate, highestRate *big.Int) *Order {
	return &Order{
		Liquidity:    new(big.Int).Set(liquidity),
		LowestRate:   new(big.Int).Set(lowestRate),
		HighestRate:  new(big.Int).Set(highestRate),
		MarginalRate: new(big.Int).Set(lowestRate),
	}
}

// Validate checks the order invariant and the 128-bit amount bound.
func (o *Order) Validate() error {
	if o == nil || o.Liquidity == nil || o.LowestRate == nil || o.HighestRate == nil || o.MarginalRate == nil {
		return ErrInvalidAmount
	}
	if o.Liquidity.Sign() < 0 || o.Liquidity.Cmp(mathx.MaxUint128) > 0 {
		return ErrInvalidAmount
	}
	if o.LowestRate.Sign() < 0 || o.HighestRate.Cmp(mathx.MaxUint128) > 0 {
		return ErrInvalidRate
	}
	if o.LowestRate.Cmp(o.MarginalRate) > 0 || o.MarginalRate.Cmp(o.HighestRate) > 0 {
		return ErrInvalidRate
	}
	return nil
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	return &Order{
		Liquidity:    new(big.Int).Set(o.Liquidity),
		LowestRate:   new(big.Int).Set(o.LowestRate),
		HighestRate:  new(big.Int).Set(o.HighestRate),
		MarginalRate: new(big.Int).Set(o.MarginalRate),
	}
}

// Equal reports whether two orders hold identical values.
func (o *Order) Equal(other *Order) bool {
	if o == nil || other == nil {
		return o == other
	}
	return o.Liquidity.Cmp(other.Liquidity) == 0 &&
		o.LowestRate.Cmp(other.LowestRate) == 0 &&
		o.HighestRate.Cmp(other.HighestRate) == 0 &&
		o.MarginalRate.Cmp(other.MarginalRate) == 0
}

// RemapMarginalRate maps an order's fractional curve progress under its old
// rate bounds onto a new [lowestRate, highestRate] interval. A degenerate
// old interval carries zero progress.
func RemapMarginalRate(old *Order, lowestRate, highestRate *big.Int) (*big.Int, error) {
	span := new(big.Int).Sub(old.HighestRate, old.LowestRate)
	if span.Sign() == 0 {
		return new(big.Int).Set(lowestRate), nil
	}
	progress := new(big.Int).Sub(old.MarginalRate, old.LowestRate)
	newSpan := new(big.Int).Sub(highestRate, lowestRate)
	scaled, err := mathx.MulDivFloor(newSpan, progress, span)
	if err != nil {
		return nil, err
	}
	return scaled.Add(scaled, lowestRate), nil
}
