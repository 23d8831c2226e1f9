// Package custody abstracts token balance and transfer operations. The
// venue never moves value itself; it delegates every settlement to a
// Custody implementation.
package custody

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Custody is the external token-custody capability set. Implementations
// must treat zero-amount transfers as no-ops and handle the native-asset
// sentinel address uniformly with fungible tokens.
type Custody interface {
	BalanceOf(token, holder common.Address) *big.Int
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
	Approve(token, owner, spender common.Address, amount *big.Int) error
	Allowance(token, owner, spender common.Address) *big.Int
}

// InMemory is a map-backed Custody for tests and embedded deployments.
type InMemory struct {
	mu         sync.RWMutex
	balances   map[common.Address]map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]map[common.Address]*big.Int
}

func NewInMemory() *InMemory {
	return &InMemory{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*big.Int),
	}
}

// BalanceOf returns the holder's balance of token.
func (c *InMemory) BalanceOf(token, holder common.Address) *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if held, ok := c.balances[token][holder]; ok {
		return new(big.Int).Set(held)
	}
	return big.NewInt(0)
}

// Mint credits freshly created balance to a holder.
func (c *InMemory) Mint(token, holder common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credit(token, holder, amount)
}

// Transfer moves amount of token between holders. A zero amount is a no-op.
func (c *InMemory) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.move(token, from, to, amount)
}

// TransferFrom moves amount of token on behalf of spender, consuming the
// owner's allowance.
func (c *InMemory) TransferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	allowed := c.allowances[token][from][spender]
	if allowed == nil || allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := c.move(token, from, to, amount); err != nil {
		return err
	}
	allowed.Sub(allowed, amount)
	return nil
}

// Approve sets the spender's allowance over the owner's token balance.
func (c *InMemory) Approve(token, owner, spender common.Address, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.allowances[token] == nil {
		c.allowances[token] = make(map[common.Address]map[common.Address]*big.Int)
	}
	if c.allowances[token][owner] == nil {
		c.allowances[token][owner] = make(map[common.Address]*big.Int)
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	c.allowances[token][owner][spender] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns the spender's remaining allowance over owner's tokens.
func (c *InMemory) Allowance(token, owner, spender common.Address) *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if allowed, ok := c.allowances[token][owner][spender]; ok {
		return new(big.Int).Set(allowed)
	}
	return big.NewInt(0)
}

func (c *InMemory) move(token, from, to common.Address, amount *big.Int) error {
	held := c.balances[token][from]
	if held == nil || held.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	held.Sub(held, amount)
	c.credit(token, to, amount)
	return nil
}

func (c *InMemory) credit(token, holder common.Address, amount *big.Int) {
	if c.balances[token] == nil {
		c.balances[token] = make(map[common.Address]*big.Int)
	}
	if c.balances[token][holder] == nil {
		c.balances[token][holder] = big.NewInt(0)
	}
	c.balances[token][holder].Add(c.balances[token][holder], amount)
}
