package model

import (
	"github.com/ethereum/go-ethereum/common"
)

// Order indices within a strategy, by trade direction.
const (
	OrderZeroToOne = 0 // accepts Token0, pays out Token1
	OrderOneToZero = 1 // accepts Token1, pays out Token0
)

// Strategy is a liquidity position: two orders, one per direction, over a
// single pair. Version advances on every mutation and is the optimistic
// concurrency token callers check updates against.
type Strategy struct {
	ID      uint64         `json:"id"`
	Owner   common.Address `json:"owner"`
	Pair    Pair           `json:"pair"`
	Orders  [2]*Order      `json:"orders"`
	Version uint64         `json:"version"`
}

// Clone returns a deep copy of the strategy.
func (s *Strategy) Clone() *Strategy {
	if s == nil {
		return nil
	}
	return &Strategy{
		ID:      s.ID,
		Owner:   s.Owner,
		Pair:    s.Pair,
		Orders:  [2]*Order{s.Orders[0].Clone(), s.Orders[1].Clone()},
		Version: s.Version,
	}
}

// OrderIndex returns the index of the order that accepts source and pays
// out the opposite token, and whether source is part of the pair at all.
func (s *Strategy) OrderIndex(source common.Address) (int, bool) {
	switch source {
	case s.Pair.Token0:
		return OrderZeroToOne, true
	case s.Pair.Token1:
		return OrderOneToZero, true
	default:
		return 0, false
	}
}

// InputToken returns the token an order at the given index accepts.
func (s *Strategy) InputToken(orderIndex int) common.Address {
	if orderIndex == OrderZeroToOne {
		return s.Pair.Token0
	}
	return s.Pair.Token1
}

// OutputToken returns the token an order at the given index pays out.
func (s *Strategy) OutputToken(orderIndex int) common.Address {
	if orderIndex == OrderZeroToOne {
		return s.Pair.Token1
	}
	return s.Pair.Token0
}
