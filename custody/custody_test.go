package custody

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	token = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	venue = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func TestTransfer(t *testing.T) {
	c := NewInMemory()
	c.Mint(token, alice, big.NewInt(100))

	if err := c.Transfer(token, alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.BalanceOf(token, alice); got.Int64() != 60 {
		t.Fatalf("alice balance = %s, want 60", got)
	}
	if got := c.BalanceOf(token, bob); got.Int64() != 40 {
		t.Fatalf("bob balance = %s, want 40", got)
	}
}

func TestTransferInsufficient(t *testing.T) {
	c := NewInMemory()
	c.Mint(token, alice, big.NewInt(10))
	if err := c.Transfer(token, alice, bob, big.NewInt(11)); err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestTransferZeroIsNoOp(t *testing.T) {
	c := NewInMemory()
	if err := c.Transfer(token, alice, bob, big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer should be a no-op, got %v", err)
	}
	if err := c.Transfer(token, alice, bob, nil); err != nil {
		t.Fatalf("nil transfer should be a no-op, got %v", err)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	c := NewInMemory()
	c.Mint(token, alice, big.NewInt(100))
	if err := c.Approve(token, alice, venue, big.NewInt(70)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.TransferFrom(token, venue, alice, venue, big.NewInt(50)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.Allowance(token, alice, venue); got.Int64() != 20 {
		t.Fatalf("allowance = %s, want 20", got)
	}
	if err := c.TransferFrom(token, venue, alice, venue, big.NewInt(21)); err != ErrInsufficientAllowance {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
}

func TestNativeAssetUniform(t *testing.T) {
	c := NewInMemory()
	native := common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")
	c.Mint(native, alice, big.NewInt(5))
	if err := c.Transfer(native, alice, bob, big.NewInt(5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.BalanceOf(native, bob); got.Int64() != 5 {
		t.Fatalf("bob native balance = %s, want 5", got)
	}
}
