package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"carbonvenue/custody"
)

type transferOp struct {
	token  common.Address
	holder common.Address
	amount *big.Int
	debit  bool
}

// settlement batches the custody transfers of one ledger operation so the
// whole set either applies or is unwound, keeping call-level atomicity.
type settlement struct {
	ops []transferOp
}

func (s *settlement) debit(token, holder common.Address, amount *big.Int) {
	s.ops = append(s.ops, transferOp{token: token, holder: holder, amount: new(big.Int).Set(amount), debit: true})
}

func (s *settlement) refund(token, holder common.Address, amount *big.Int) {
	s.ops = append(s.ops, transferOp{token: token, holder: holder, amount: new(big.Int).Set(amount)})
}

func (s *settlement) run(cust custody.Custody, venue common.Address) error {
	for _, op := range s.ops {
		if op.debit {
			if cust.BalanceOf(op.token, op.holder).Cmp(op.amount) < 0 {
				return custody.ErrInsufficientBalance
			}
			if cust.Allowance(op.token, op.holder, venue).Cmp(op.amount) < 0 {
				return custody.ErrInsufficientAllowance
			}
		} else if cust.BalanceOf(op.token, venue).Cmp(op.amount) < 0 {
			return custody.ErrInsufficientBalance
		}
	}

	done := make([]transferOp, 0, len(s.ops))
	for _, op := range s.ops {
		var err error
		if op.debit {
			err = cust.TransferFrom(op.token, venue, op.holder, venue, op.amount)
		} else {
			err = cust.Transfer(op.token, venue, op.holder, op.amount)
		}
		if err != nil {
			unwind(cust, venue, done)
			return fmt.Errorf("settle transfer: %w", err)
		}
		done = append(done, op)
	}
	return nil
}

func unwind(cust custody.Custody, venue common.Address, done []transferOp) {
	for i := len(done) - 1; i >= 0; i-- {
		op := done[i]
		if op.debit {
			_ = cust.Transfer(op.token, venue, op.holder, op.amount)
			restoreAllowance(cust, op.token, op.holder, venue, op.amount)
		} else {
			// Pulling a refund back consumes allowance as well, so the
			// holder's approval is restored when the pull succeeds.
			if err := cust.TransferFrom(op.token, venue, op.holder, venue, op.amount); err == nil {
				restoreAllowance(cust, op.token, op.holder, venue, op.amount)
			}
		}
	}
}

// restoreAllowance re-grants the approval a rolled-back TransferFrom
// consumed, so a failed call leaves the holder's allowance untouched.
func restoreAllowance(cust custody.Custody, token, holder, venue common.Address, amount *big.Int) {
	allowance := cust.Allowance(token, holder, venue)
	_ = cust.Approve(token, holder, venue, allowance.Add(allowance, amount))
}
