// Package ledger owns the venue's in-memory state: pairs, strategies, the
// strategy ID counter, and per-token accumulated trading fees. Every
// mutation either completes fully or leaves no trace; settlement is
// delegated to the custody collaborator.
package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"carbonvenue/access"
	"carbonvenue/custody"
	"carbonvenue/model"
)

var (
	ErrPairAlreadyExists    = errors.New("pair already exists")
	ErrPairDoesNotExist     = errors.New("pair does not exist")
	ErrStrategyDoesNotExist = errors.New("strategy does not exist")
	ErrOutdated             = errors.New("strategy state is outdated")
	ErrInvalidIndices       = errors.New("invalid pagination indices")
)

type pairState struct {
	strategyIDs []uint64
}

// Ledger is the strategy and fee store. It is not internally synchronized;
// the controller serializes access, matching the venue's atomic-per-call
// execution model.
type Ledger struct {
	venue   common.Address
	custody custody.Custody
	access  access.Controller
	logger  *zap.Logger

	pairs      map[model.Pair]*pairState
	pairList   []model.Pair
	strategies map[uint64]*model.Strategy
	nextID     uint64
	fees       map[common.Address]*big.Int
}

func New(venue common.Address, cust custody.Custody, acc access.Controller, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		venue:      venue,
		custody:    cust,
		access:     acc,
		logger:     logger,
		pairs:      make(map[model.Pair]*pairState),
		strategies: make(map[uint64]*model.Strategy),
		fees:       make(map[common.Address]*big.Int),
	}
}

// Venue returns the custody account holding deposited liquidity.
func (l *Ledger) Venue() common.Address {
	return l.venue
}

// CreatePair registers the canonical pair for two distinct tokens.
func (l *Ledger) CreatePair(a, b common.Address) (model.Pair, error) {
	pair, err := model.NewPair(a, b)
	if err != nil {
		return model.Pair{}, err
	}
	if _, ok := l.pairs[pair]; ok {
		return model.Pair{}, ErrPairAlreadyExists
	}
	l.addPair(pair)
	l.logger.Info("pair created", zap.Stringer("pair", pair))
	return pair, nil
}

// Pairs returns every registered pair in creation order.
func (l *Ledger) Pairs() []model.Pair {
	out := make([]model.Pair, len(l.pairList))
	copy(out, l.pairList)
	return out
}

// PairExists reports whether the pair has been registered.
func (l *Ledger) PairExists(pair model.Pair) bool {
	_, ok := l.pairs[pair]
	return ok
}

func (l *Ledger) addPair(pair model.Pair) *pairState {
	state := &pairState{}
	l.pairs[pair] = state
	l.pairList = append(l.pairList, pair)
	return state
}

// CreateStrategy validates the two orders, debits their liquidity from the
// owner, and indexes the strategy under its pair. The pair is created
// implicitly on first use and canonicalized; a reversed pair swaps the
// orders along with it. Orders are indexed canonically: index 0 accepts
// pair.Token0, index 1 accepts pair.Token1. A nil marginal rate defaults
// to the order's lowest rate.
func (l *Ledger) CreateStrategy(owner common.Address, pair model.Pair, orders [2]*model.Order) (uint64, error) {
	canonical, err := model.NewPair(pair.Token0, pair.Token1)
	if err != nil {
		return 0, err
	}
	if canonical.Token0 != pair.Token0 {
		// Caller passed the tokens reversed; keep each order bound to
		// the token it accepts.
		orders[0], orders[1] = orders[1], orders[0]
	}
	pair = canonical

	staged := [2]*model.Order{}
	for i, order := range orders {
		if order == nil {
			return 0, model.ErrInvalidAmount
		}
		clone := order.Clone()
		if clone.MarginalRate == nil {
			clone.MarginalRate = new(big.Int).Set(clone.LowestRate)
		}
		if err := clone.Validate(); err != nil {
			return 0, err
		}
		staged[i] = clone
	}

	strategy := &model.Strategy{
		Owner:   owner,
		Pair:    pair,
		Orders:  staged,
		Version: 1,
	}

	var transfers settlement
	for i, order := range staged {
		if order.Liquidity.Sign() > 0 {
			transfers.debit(strategy.InputToken(i), owner, order.Liquidity)
		}
	}
	if err := transfers.run(l.custody, l.venue); err != nil {
		return 0, err
	}

	l.nextID++
	strategy.ID = l.nextID
	l.strategies[strategy.ID] = strategy

	state, ok := l.pairs[pair]
	if !ok {
		state = l.addPair(pair)
	}
	state.strategyIDs = append(state.strategyIDs, strategy.ID)

	l.logger.Info("strategy created",
		zap.Uint64("id", strategy.ID),
		zap.Stringer("owner", owner),
		zap.Stringer("pair", pair),
	)
	return strategy.ID, nil
}

// Strategy returns a copy of the stored strategy.
func (l *Ledger) Strategy(id uint64) (*model.Strategy, error) {
	strategy, ok := l.strategies[id]
	if !ok {
		return nil, ErrStrategyDoesNotExist
	}
	return strategy.Clone(), nil
}

// UpdateStrategy replaces a strategy's orders. The caller passes the
// version it read; a mismatch means a concurrent mutation won the race and
// the call fails with ErrOutdated. Liquidity deltas settle through
// custody, and each order's marginal rate is remapped so its fractional
// curve progress is preserved across the bound change.
func (l *Ledger) UpdateStrategy(caller common.Address, id, version uint64, newOrders [2]*model.Order) error {
	strategy, ok := l.strategies[id]
	if !ok {
		return ErrStrategyDoesNotExist
	}
	if strategy.Owner != caller {
		return access.ErrAccessDenied
	}
	if strategy.Version != version {
		return ErrOutdated
	}

	staged := [2]*model.Order{}
	var transfers settlement
	for i, order := range newOrders {
		if order == nil {
			return model.ErrInvalidAmount
		}
		current := strategy.Orders[i]
		clone := order.Clone()
		marginal, err := model.RemapMarginalRate(current, clone.LowestRate, clone.HighestRate)
		if err != nil {
			return err
		}
		clone.MarginalRate = marginal
		if err := clone.Validate(); err != nil {
			return err
		}
		staged[i] = clone

		delta := new(big.Int).Sub(clone.Liquidity, current.Liquidity)
		token := strategy.InputToken(i)
		switch delta.Sign() {
		case 1:
			transfers.debit(token, strategy.Owner, delta)
		case -1:
			transfers.refund(token, strategy.Owner, new(big.Int).Neg(delta))
		}
	}

	if err := transfers.run(l.custody, l.venue); err != nil {
		return err
	}

	strategy.Orders = staged
	strategy.Version++
	l.logger.Info("strategy updated", zap.Uint64("id", id), zap.Uint64("version", strategy.Version))
	return nil
}

// DeleteStrategy refunds all remaining liquidity to the owner and retires
// the strategy ID permanently.
func (l *Ledger) DeleteStrategy(caller common.Address, id uint64) error {
	strategy, ok := l.strategies[id]
	if !ok {
		return ErrStrategyDoesNotExist
	}
	if strategy.Owner != caller {
		return access.ErrAccessDenied
	}

	var transfers settlement
	for i, order := range strategy.Orders {
		if order.Liquidity.Sign() > 0 {
			transfers.refund(strategy.InputToken(i), strategy.Owner, order.Liquidity)
		}
	}
	if err := transfers.run(l.custody, l.venue); err != nil {
		return err
	}

	delete(l.strategies, id)
	state := l.pairs[strategy.Pair]
	for i, sid := range state.strategyIDs {
		if sid == id {
			state.strategyIDs = append(state.strategyIDs[:i], state.strategyIDs[i+1:]...)
			break
		}
	}

	l.logger.Info("strategy deleted", zap.Uint64("id", id), zap.Stringer("owner", strategy.Owner))
	return nil
}

// StrategiesByPair returns copies of the pair's strategies in creation
// order. The half-open index range [start, end) paginates; (0, 0) selects
// everything.
func (l *Ledger) StrategiesByPair(pair model.Pair, start, end uint64) ([]*model.Strategy, error) {
	state, ok := l.pairs[pair]
	if !ok {
		return nil, ErrPairDoesNotExist
	}
	count := uint64(len(state.strategyIDs))
	if start == 0 && end == 0 {
		end = count
	}
	if end > count {
		end = count
	}
	if start > end {
		return nil, ErrInvalidIndices
	}

	out := make([]*model.Strategy, 0, end-start)
	for _, id := range state.strategyIDs[start:end] {
		out = append(out, l.strategies[id].Clone())
	}
	return out, nil
}

// StrategiesByPairCount returns the number of live strategies in the pair.
func (l *Ledger) StrategiesByPairCount(pair model.Pair) (uint64, error) {
	state, ok := l.pairs[pair]
	if !ok {
		return 0, ErrPairDoesNotExist
	}
	return uint64(len(state.strategyIDs)), nil
}

// OrderUpdate is one staged order mutation from a committed trade.
type OrderUpdate struct {
	StrategyID uint64
	OrderIndex int
	Order      *model.Order
}

// ApplyOrderUpdates commits trade mutations. All referenced strategies
// must exist; nothing is written otherwise. Each touched strategy's
// version advances once so optimistic updates racing a trade fail.
func (l *Ledger) ApplyOrderUpdates(updates []OrderUpdate) error {
	for _, update := range updates {
		if _, ok := l.strategies[update.StrategyID]; !ok {
			return ErrStrategyDoesNotExist
		}
	}
	touched := make(map[uint64]struct{}, len(updates))
	for _, update := range updates {
		strategy := l.strategies[update.StrategyID]
		strategy.Orders[update.OrderIndex] = update.Order.Clone()
		touched[update.StrategyID] = struct{}{}
	}
	for id := range touched {
		l.strategies[id].Version++
	}
	return nil
}

// CreditFees adds amount to the token's accumulated trading fees.
func (l *Ledger) CreditFees(token common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	if l.fees[token] == nil {
		l.fees[token] = big.NewInt(0)
	}
	l.fees[token].Add(l.fees[token], amount)
}

// AccumulatedFees returns the token's current fee balance.
func (l *Ledger) AccumulatedFees(token common.Address) *big.Int {
	if held, ok := l.fees[token]; ok {
		return new(big.Int).Set(held)
	}
	return big.NewInt(0)
}

// WithdrawFees drains the token's accumulated fees to the recipient. Only
// callers holding the fees-manager role may drain.
func (l *Ledger) WithdrawFees(caller, token, to common.Address) (*big.Int, error) {
	if l.access == nil || !l.access.HasRole(access.RoleFeesManager, caller) {
		return nil, access.ErrAccessDenied
	}
	amount := l.AccumulatedFees(token)
	if amount.Sign() == 0 {
		return amount, nil
	}
	if err := l.custody.Transfer(token, l.venue, to, amount); err != nil {
		return nil, fmt.Errorf("withdraw fees: %w", err)
	}
	l.fees[token].SetInt64(0)
	l.logger.Info("fees withdrawn",
		zap.Stringer("token", token),
		zap.Stringer("to", to),
		zap.String("amount", amount.String()),
	)
	return amount, nil
}
