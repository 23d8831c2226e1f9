// Package trading implements the trade matching engine: it walks order
// curves for a batch of trade actions, computes exact amounts with
// explicit rounding directions, and commits all resulting state at once
// or not at all.
package trading

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"carbonvenue/access"
	"carbonvenue/custody"
	"carbonvenue/ledger"
	"carbonvenue/model"
	"carbonvenue/storage"
)

var (
	ErrDeadlineExpired     = errors.New("deadline expired")
	ErrGreaterThanMaxInput = errors.New("input greater than max input")
	ErrLowerThanMinReturn  = errors.New("return lower than min return")
)

// Action instructs the engine to trade amount against one strategy. For
// by-source trades the amount is source tokens paid; for by-target trades
// it is target tokens received.
type Action struct {
	StrategyID uint64
	Amount     *big.Int
}

// Request describes one trade call over a single source/target pair.
// MinReturn bounds by-source trades, MaxInput bounds by-target trades; a
// nil bound is unconstrained. A zero deadline never expires.
type Request struct {
	Trader      common.Address
	SourceToken common.Address
	TargetToken common.Address
	Actions     []Action
	Deadline    uint64
	MinReturn   *big.Int
	MaxInput    *big.Int
}

// Result aggregates a trade call. FeeAmount is denominated in the target
// token and already excluded from TargetAmount.
type Result struct {
	SourceAmount *big.Int
	TargetAmount *big.Int
	FeeAmount    *big.Int
}

// Engine matches trades against the ledger's strategies.
type Engine struct {
	ledger  *ledger.Ledger
	custody custody.Custody
	access  access.Controller
	logger  *zap.Logger
	sink    storage.Sink
	now     func() time.Time

	defaultFeePPM uint32
	pairFees      map[model.Pair]uint32
}

func NewEngine(l *ledger.Ledger, cust custody.Custody, acc access.Controller, feePPM uint32, logger *zap.Logger) (*Engine, error) {
	if feePPM >= PPMResolution {
		return nil, ErrInvalidFee
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		ledger:        l,
		custody:       cust,
		access:        acc,
		logger:        logger,
		now:           time.Now,
		defaultFeePPM: feePPM,
		pairFees:      make(map[model.Pair]uint32),
	}, nil
}

// SetSink attaches an audit sink. Sink failures never fail a trade.
func (e *Engine) SetSink(sink storage.Sink) {
	e.sink = sink
}

// SetClock overrides the engine's time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// TradingFeePPM returns the fee applied to trades on the pair.
func (e *Engine) TradingFeePPM(pair model.Pair) uint32 {
	if fee, ok := e.pairFees[pair]; ok {
		return fee
	}
	return e.defaultFeePPM
}

// SetPairTradingFeePPM overrides the trading fee for one pair. Restricted
// to the fees-manager role.
func (e *Engine) SetPairTradingFeePPM(caller common.Address, pair model.Pair, feePPM uint32) error {
	if e.access == nil || !e.access.HasRole(access.RoleFeesManager, caller) {
		return access.ErrAccessDenied
	}
	if feePPM >= PPMResolution {
		return ErrInvalidFee
	}
	prev := e.TradingFeePPM(pair)
	e.pairFees[pair] = feePPM
	e.logger.Info("pair trading fee updated",
		zap.Stringer("pair", pair),
		zap.Uint32("prev_ppm", prev),
		zap.Uint32("new_ppm", feePPM),
	)
	return nil
}

// TradeBySourceAmount executes a trade where every action fixes the source
// amount paid and the engine computes the target amount received.
func (e *Engine) TradeBySourceAmount(req Request) (*Result, error) {
	return e.trade(req, false)
}

// TradeByTargetAmount executes a trade where every action fixes the target
// amount received and the engine computes the source amount owed.
func (e *Engine) TradeByTargetAmount(req Request) (*Result, error) {
	return e.trade(req, true)
}

// QuoteBySourceAmount computes a by-source trade without mutating state.
// The amounts are identical to what executing the same request would move.
func (e *Engine) QuoteBySourceAmount(req Request) (*Result, error) {
	result, _, err := e.compute(req, false)
	return result, err
}

// QuoteByTargetAmount computes a by-target trade without mutating state.
func (e *Engine) QuoteByTargetAmount(req Request) (*Result, error) {
	result, _, err := e.compute(req, true)
	return result, err
}

func (e *Engine) trade(req Request, byTarget bool) (*Result, error) {
	if req.Deadline != 0 && uint64(e.now().Unix()) > req.Deadline {
		return nil, ErrDeadlineExpired
	}

	result, updates, err := e.compute(req, byTarget)
	if err != nil {
		return nil, err
	}

	if err := e.settle(req, result); err != nil {
		return nil, err
	}
	if err := e.ledger.ApplyOrderUpdates(updates); err != nil {
		return nil, fmt.Errorf("apply order updates: %w", err)
	}
	e.ledger.CreditFees(req.TargetToken, result.FeeAmount)

	e.logger.Info("trade executed",
		zap.Stringer("trader", req.Trader),
		zap.Stringer("source", req.SourceToken),
		zap.Stringer("target", req.TargetToken),
		zap.Int("actions", len(req.Actions)),
		zap.String("source_amount", result.SourceAmount.String()),
		zap.String("target_amount", result.TargetAmount.String()),
		zap.String("fee_amount", result.FeeAmount.String()),
	)
	e.emit(req, result)
	return result, nil
}

// compute runs the matching algorithm against cloned strategies, producing
// the aggregate amounts and the staged order mutations. Nothing observable
// changes until the caller commits the updates.
func (e *Engine) compute(req Request, byTarget bool) (*Result, []ledger.OrderUpdate, error) {
	pair, err := model.NewPair(req.SourceToken, req.TargetToken)
	if err != nil {
		return nil, nil, err
	}
	if len(req.Actions) == 0 {
		return nil, nil, model.ErrInvalidAmount
	}
	feePPM := e.TradingFeePPM(pair)

	staged := make(map[uint64]*model.Strategy)
	type touchedOrder struct {
		strategyID uint64
		orderIndex int
	}
	var touched []touchedOrder
	seen := make(map[touchedOrder]struct{})

	totalSource := big.NewInt(0)
	totalTarget := big.NewInt(0)
	totalFee := big.NewInt(0)

	for _, action := range req.Actions {
		if action.Amount == nil || action.Amount.Sign() <= 0 {
			return nil, nil, model.ErrInvalidAmount
		}

		strategy, ok := staged[action.StrategyID]
		if !ok {
			strategy, err = e.ledger.Strategy(action.StrategyID)
			if err != nil {
				return nil, nil, err
			}
			staged[action.StrategyID] = strategy
		}
		if strategy.Pair != pair {
			return nil, nil, ledger.ErrStrategyDoesNotExist
		}
		orderIndex, ok := strategy.OrderIndex(req.SourceToken)
		if !ok {
			return nil, nil, ledger.ErrStrategyDoesNotExist
		}
		order := strategy.Orders[orderIndex]

		var consumed, gross, net, fee *big.Int
		var newMarginal *big.Int
		if byTarget {
			net = new(big.Int).Set(action.Amount)
			gross, err = grossFromNet(net, feePPM)
			if err != nil {
				return nil, nil, err
			}
			consumed, newMarginal, err = inputByTarget(order, gross)
			if err != nil {
				return nil, nil, err
			}
			fee = new(big.Int).Sub(gross, net)
		} else {
			consumed = new(big.Int).Set(action.Amount)
			gross, newMarginal, err = outputBySource(order, consumed)
			if err != nil {
				return nil, nil, err
			}
			net, fee, err = netFromGross(gross, feePPM)
			if err != nil {
				return nil, nil, err
			}
		}

		order.Liquidity.Sub(order.Liquidity, consumed)
		order.MarginalRate.Set(newMarginal)

		totalSource.Add(totalSource, consumed)
		totalTarget.Add(totalTarget, net)
		totalFee.Add(totalFee, fee)

		key := touchedOrder{strategyID: action.StrategyID, orderIndex: orderIndex}
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			touched = append(touched, key)
		}
	}

	if req.MinReturn != nil && totalTarget.Cmp(req.MinReturn) < 0 {
		return nil, nil, ErrLowerThanMinReturn
	}
	if req.MaxInput != nil && totalSource.Cmp(req.MaxInput) > 0 {
		return nil, nil, ErrGreaterThanMaxInput
	}

	updates := make([]ledger.OrderUpdate, 0, len(touched))
	for _, key := range touched {
		updates = append(updates, ledger.OrderUpdate{
			StrategyID: key.strategyID,
			OrderIndex: key.orderIndex,
			Order:      staged[key.strategyID].Orders[key.orderIndex],
		})
	}

	result := &Result{
		SourceAmount: totalSource,
		TargetAmount: totalTarget,
		FeeAmount:    totalFee,
	}
	return result, updates, nil
}

// settle moves the trade's aggregate amounts through custody. The trader's
// debit is checked and executed before the venue pays out, and unwound if
// the payout cannot complete.
func (e *Engine) settle(req Request, result *Result) error {
	venue := e.ledger.Venue()
	if e.custody.BalanceOf(req.SourceToken, req.Trader).Cmp(result.SourceAmount) < 0 {
		return custody.ErrInsufficientBalance
	}
	if e.custody.Allowance(req.SourceToken, req.Trader, venue).Cmp(result.SourceAmount) < 0 {
		return custody.ErrInsufficientAllowance
	}
	if e.custody.BalanceOf(req.TargetToken, venue).Cmp(result.TargetAmount) < 0 {
		return custody.ErrInsufficientBalance
	}

	if err := e.custody.TransferFrom(req.SourceToken, venue, req.Trader, venue, result.SourceAmount); err != nil {
		return fmt.Errorf("debit trader: %w", err)
	}
	if err := e.custody.Transfer(req.TargetToken, venue, req.Trader, result.TargetAmount); err != nil {
		// Return the debit and the approval it consumed.
		_ = e.custody.Transfer(req.SourceToken, venue, req.Trader, result.SourceAmount)
		allowance := e.custody.Allowance(req.SourceToken, req.Trader, venue)
		_ = e.custody.Approve(req.SourceToken, req.Trader, venue, allowance.Add(allowance, result.SourceAmount))
		return fmt.Errorf("pay trader: %w", err)
	}
	return nil
}

func (e *Engine) emit(req Request, result *Result) {
	if e.sink == nil {
		return
	}
	pair, err := model.NewPair(req.SourceToken, req.TargetToken)
	if err != nil {
		return
	}
	event := model.Event{
		Kind:         model.EventTrade,
		Timestamp:    uint64(e.now().Unix()),
		Trader:       req.Trader.Hex(),
		SourceToken:  req.SourceToken.Hex(),
		TargetToken:  req.TargetToken.Hex(),
		SourceAmount: result.SourceAmount.String(),
		TargetAmount: result.TargetAmount.String(),
		FeeAmount:    result.FeeAmount.String(),
		FeePPM:       e.TradingFeePPM(pair),
	}
	if err := e.sink.PutEventBatch([]model.Event{event}); err != nil {
		e.logger.Warn("emit trade event", zap.Error(err))
	}
}
