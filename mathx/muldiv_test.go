package mathx

import (
	"math/big"
	"testing"
)

func TestMulDivFloor(t *testing.T) {
	cases := []struct {
		a, b, c int64
		want    int64
	}{
		{6, 4, 3, 8},
		{7, 3, 2, 10},
		{1, 1, 2, 0},
		{0, 5, 3, 0},
		{1000, 1000, 7, 142857},
	}
	for _, tc := range cases {
		got, err := MulDivFloor(big.NewInt(tc.a), big.NewInt(tc.b), big.NewInt(tc.c))
		if err != nil {
			t.Fatalf("MulDivFloor(%d,%d,%d): unexpected error: %v", tc.a, tc.b, tc.c, err)
		}
		if got.Int64() != tc.want {
			t.Fatalf("MulDivFloor(%d,%d,%d) = %s, want %d", tc.a, tc.b, tc.c, got, tc.want)
		}
	}
}

func TestMulDivCeil(t *testing.T) {
	cases := []struct {
		a, b, c int64
		want    int64
	}{
		{6, 4, 3, 8},
		{7, 3, 2, 11},
		{1, 1, 2, 1},
		{0, 5, 3, 0},
		{1000, 1000, 7, 142858},
	}
	for _, tc := range cases {
		got, err := MulDivCeil(big.NewInt(tc.a), big.NewInt(tc.b), big.NewInt(tc.c))
		if err != nil {
			t.Fatalf("MulDivCeil(%d,%d,%d): unexpected error: %v", tc.a, tc.b, tc.c, err)
		}
		if got.Int64() != tc.want {
			t.Fatalf("MulDivCeil(%d,%d,%d) = %s, want %d", tc.a, tc.b, tc.c, got, tc.want)
		}
	}
}

func TestMulDivWideIntermediate(t *testing.T) {
	// a*b overflows 256 bits but the quotient fits.
	a := new(big.Int).Sub(MaxUint256, big.NewInt(1))
	got, err := MulDivFloor(a, a, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(a) != 0 {
		t.Fatalf("MulDivFloor(a,a,a) = %s, want %s", got, a)
	}
}

func TestMulDivOverflow(t *testing.T) {
	if _, err := MulDivFloor(MaxUint256, big.NewInt(2), big.NewInt(1)); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if _, err := MulDivCeil(MaxUint256, big.NewInt(3), big.NewInt(2)); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestMulDivDivisionByZero(t *testing.T) {
	if _, err := MulDivFloor(big.NewInt(1), big.NewInt(1), big.NewInt(0)); err != ErrDivisionByZero {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
	if _, err := MulDivCeil(big.NewInt(1), big.NewInt(1), big.NewInt(0)); err != ErrDivisionByZero {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestMulDivNegativeInput(t *testing.T) {
	if _, err := MulDivFloor(big.NewInt(-1), big.NewInt(1), big.NewInt(1)); err == nil {
		t.Fatalf("expected error for negative input")
	}
}

func TestCeilDiv(t *testing.T) {
	got, err := CeilDiv(big.NewInt(7), big.NewInt(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Int64() != 4 {
		t.Fatalf("CeilDiv(7,2) = %s, want 4", got)
	}
}
