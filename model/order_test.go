package model

import (
	"math/big"
	"testing"
)

func TestOrderValidate(t *testing.T) {
	order := NewOrder(big.NewInt(1000), RateFromInt(1), RateFromInt(2))
	if err := order.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.MarginalRate.Cmp(order.LowestRate) != 0 {
		t.Fatalf("marginal rate not defaulted to lowest: %s", order.MarginalRate)
	}
}

func TestOrderValidateInvalidBounds(t *testing.T) {
	order := NewOrder(big.NewInt(1000), RateFromInt(2), RateFromInt(1))
	if err := order.Validate(); err != ErrInvalidRate {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}

	order = NewOrder(big.NewInt(1000), RateFromInt(1), RateFromInt(2))
	order.MarginalRate = RateFromInt(3)
	if err := order.Validate(); err != ErrInvalidRate {
		t.Fatalf("expected ErrInvalidRate for marginal above highest, got %v", err)
	}
}

func TestOrderValidateNegativeLiquidity(t *testing.T) {
	order := NewOrder(big.NewInt(-1), RateFromInt(1), RateFromInt(2))
	if err := order.Validate(); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestOrderCloneIndependent(t *testing.T) {
	order := NewOrder(big.NewInt(500), RateFromInt(1), RateFromInt(2))
	clone := order.Clone()
	clone.Liquidity.SetInt64(0)
	if order.Liquidity.Int64() != 500 {
		t.Fatalf("clone aliases the original")
	}
	if !order.Equal(order.Clone()) {
		t.Fatalf("clone not equal to original")
	}
}

func TestRemapMarginalRatePreservesProgress(t *testing.T) {
	// Half way through [1, 3] maps to half way through [10, 20].
	order := NewOrder(big.NewInt(100), RateFromInt(1), RateFromInt(3))
	order.MarginalRate = RateFromInt(2)

	got, err := RemapMarginalRate(order, RateFromInt(10), RateFromInt(20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(RateFromInt(15)) != 0 {
		t.Fatalf("remap = %s, want %s", got, RateFromInt(15))
	}
}

func TestRemapMarginalRateDegenerateOldInterval(t *testing.T) {
	order := NewOrder(big.NewInt(100), RateFromInt(2), RateFromInt(2))
	got, err := RemapMarginalRate(order, RateFromInt(5), RateFromInt(9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(RateFromInt(5)) != 0 {
		t.Fatalf("remap = %s, want %s", got, RateFromInt(5))
	}
}

func TestRemapMarginalRateUnconsumed(t *testing.T) {
	order := NewOrder(big.NewInt(100), RateFromInt(1), RateFromInt(2))
	got, err := RemapMarginalRate(order, RateFromInt(4), RateFromInt(8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(RateFromInt(4)) != 0 {
		t.Fatalf("remap = %s, want %s", got, RateFromInt(4))
	}
}
