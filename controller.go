// Package carbonvenue implements a discrete, order-based trading venue:
// liquidity providers post two-order strategies over token pairs, takers
// trade against the strategies' rate curves, and accumulated protocol fees
// are auctioned off through a decaying-price vortex.
package carbonvenue

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"carbonvenue/access"
	"carbonvenue/config"
	"carbonvenue/custody"
	"carbonvenue/ledger"
	"carbonvenue/model"
	"carbonvenue/storage"
	"carbonvenue/storage/postgres"
	"carbonvenue/trading"
	"carbonvenue/vortex"
)

var ErrMissingCustody = errors.New("custody collaborator is required")

// Options wires the venue's collaborators. Custody is mandatory; a nil
// Access builds a role set granting the admin role to Admin and the
// fees-manager role to the vortex account. A nil Sink is assembled from
// the configured event-log path and Postgres DSN.
type Options struct {
	Address       common.Address // custody account holding venue liquidity
	VortexAddress common.Address // custody account of the fee auction
	Admin         common.Address
	TargetToken   common.Address
	BurnAddress   common.Address
	Custody       custody.Custody
	Access        access.Controller
	Logger        *zap.Logger
	Sink          storage.Sink
	Clock         func() time.Time
}

// Venue is the public operations surface. Every call runs serialized and
// atomically: it completes fully or leaves no observable state change.
type Venue struct {
	mu      sync.Mutex
	ledger  *ledger.Ledger
	engine  *trading.Engine
	vortex  *vortex.Vortex
	custody custody.Custody
	logger  *zap.Logger
	sink    storage.Sink
	now     func() time.Time
}

// New assembles a venue from configuration and collaborators.
func New(cfg config.Config, opts Options) (*Venue, error) {
	if opts.Custody == nil {
		return nil, ErrMissingCustody
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sink := opts.Sink
	if sink == nil {
		var sinks storage.MultiSink
		if cfg.EventLog != "" {
			sinks = append(sinks, storage.NewJsonlSink(cfg.EventLog))
		}
		if cfg.PgDSN != "" {
			store, err := postgres.NewStore(context.Background(), cfg.PgDSN)
			if err != nil {
				return nil, fmt.Errorf("postgres sink: %w", err)
			}
			sinks = append(sinks, store)
		}
		switch len(sinks) {
		case 0:
		case 1:
			sink = sinks[0]
		default:
			sink = sinks
		}
	}

	acc := opts.Access
	if acc == nil {
		roles := access.NewRoleSet()
		roles.Grant(access.RoleAdmin, opts.Admin)
		roles.Grant(access.RoleFeesManager, opts.Admin)
		roles.Grant(access.RoleFeesManager, opts.VortexAddress)
		acc = roles
	}

	led := ledger.New(opts.Address, opts.Custody, acc, logger.Named("ledger"))

	engine, err := trading.NewEngine(led, opts.Custody, acc, cfg.TradingFeePPM, logger.Named("trading"))
	if err != nil {
		return nil, err
	}

	vtx, err := vortex.New(vortex.Config{
		Address:            opts.VortexAddress,
		TargetToken:        opts.TargetToken,
		BurnAddress:        opts.BurnAddress,
		RewardsPPM:         cfg.RewardsPPM,
		PriceDecayHalfLife: uint64(cfg.PriceDecayHalfLife / time.Second),
	}, led, opts.Custody, acc, logger.Named("vortex"))
	if err != nil {
		return nil, err
	}

	venue := &Venue{
		ledger:  led,
		engine:  engine,
		vortex:  vtx,
		custody: opts.Custody,
		logger:  logger,
		sink:    sink,
		now:     time.Now,
	}
	if opts.Clock != nil {
		venue.now = opts.Clock
		engine.SetClock(opts.Clock)
		vtx.SetClock(opts.Clock)
	}
	if sink != nil {
		engine.SetSink(sink)
		vtx.SetSink(sink)
	}
	return venue, nil
}

// CreatePair registers the canonical pair for two distinct tokens.
func (v *Venue) CreatePair(a, b common.Address) (model.Pair, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ledger.CreatePair(a, b)
}

// Pairs lists every registered pair in creation order.
func (v *Venue) Pairs() []model.Pair {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ledger.Pairs()
}

// CreateStrategy opens a strategy for the owner, debiting each order's
// liquidity through custody, and returns its permanent ID.
func (v *Venue) CreateStrategy(owner common.Address, pair model.Pair, orders [2]*model.Order) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id, err := v.ledger.CreateStrategy(owner, pair, orders)
	if err != nil {
		return 0, err
	}
	v.emitStrategy(model.EventStrategyCreated, id, owner, pair)
	return id, nil
}

// UpdateStrategy replaces the strategy's orders against the version the
// caller last read, settling liquidity deltas through custody.
func (v *Venue) UpdateStrategy(caller common.Address, id, version uint64, orders [2]*model.Order) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	strategy, err := v.ledger.Strategy(id)
	if err != nil {
		return err
	}
	if err := v.ledger.UpdateStrategy(caller, id, version, orders); err != nil {
		return err
	}
	v.emitStrategy(model.EventStrategyUpdated, id, caller, strategy.Pair)
	return nil
}

// DeleteStrategy refunds all remaining liquidity and retires the ID.
func (v *Venue) DeleteStrategy(caller common.Address, id uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	strategy, err := v.ledger.Strategy(id)
	if err != nil {
		return err
	}
	if err := v.ledger.DeleteStrategy(caller, id); err != nil {
		return err
	}
	v.emitStrategy(model.EventStrategyDeleted, id, caller, strategy.Pair)
	return nil
}

// Strategy returns a copy of the stored strategy.
func (v *Venue) Strategy(id uint64) (*model.Strategy, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ledger.Strategy(id)
}

// StrategiesByPair paginates the pair's strategies; (0, 0) selects all.
func (v *Venue) StrategiesByPair(pair model.Pair, start, end uint64) ([]*model.Strategy, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ledger.StrategiesByPair(pair, start, end)
}

// StrategiesByPairCount returns the number of live strategies in the pair.
func (v *Venue) StrategiesByPairCount(pair model.Pair) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ledger.StrategiesByPairCount(pair)
}

// TradeBySourceAmount executes a trade whose actions fix source amounts.
func (v *Venue) TradeBySourceAmount(req trading.Request) (*trading.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.TradeBySourceAmount(req)
}

// TradeByTargetAmount executes a trade whose actions fix target amounts.
func (v *Venue) TradeByTargetAmount(req trading.Request) (*trading.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.TradeByTargetAmount(req)
}

// TradeSourceAmount quotes the source amount a by-target trade would
// consume, without mutating state.
func (v *Venue) TradeSourceAmount(req trading.Request) (*trading.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.QuoteByTargetAmount(req)
}

// TradeTargetAmount quotes the target amount a by-source trade would
// return, without mutating state.
func (v *Venue) TradeTargetAmount(req trading.Request) (*trading.Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.QuoteBySourceAmount(req)
}

// TradingFeePPM returns the fee applied to trades on the pair.
func (v *Venue) TradingFeePPM(pair model.Pair) uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.TradingFeePPM(pair)
}

// SetPairTradingFeePPM overrides one pair's trading fee. Fees-manager only.
func (v *Venue) SetPairTradingFeePPM(caller common.Address, pair model.Pair, feePPM uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.engine.SetPairTradingFeePPM(caller, pair, feePPM)
}

// AccumulatedFees returns the token's undrained trading fees.
func (v *Venue) AccumulatedFees(token common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ledger.AccumulatedFees(token)
}

// RegisterVortexToken opens the fee auction for a token. Admin only.
func (v *Venue) RegisterVortexToken(caller, token common.Address, ceilingRate, floorRate *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vortex.RegisterToken(caller, token, ceilingRate, floorRate)
}

// Execute runs the fee auction over the listed tokens.
func (v *Venue) Execute(caller common.Address, tokens []common.Address) (*vortex.ExecuteResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vortex.Execute(caller, tokens)
}

// SetRewardsPPM updates the auction caller-reward fraction. Admin only.
func (v *Venue) SetRewardsPPM(caller common.Address, ppm uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vortex.SetRewardsPPM(caller, ppm)
}

// RewardsPPM returns the auction caller-reward fraction.
func (v *Venue) RewardsPPM() uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vortex.RewardsPPM()
}

// TotalBurned returns the cumulative burned reference-asset value.
func (v *Venue) TotalBurned() *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vortex.TotalBurned()
}

// AvailableTokens returns what the next auction call would sell of token.
func (v *Venue) AvailableTokens(token common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vortex.AvailableTokens(token)
}

// CurrentAuctionRate returns the token's present decayed ask rate.
func (v *Venue) CurrentAuctionRate(token common.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vortex.CurrentRate(token)
}

func (v *Venue) emitStrategy(kind string, id uint64, owner common.Address, pair model.Pair) {
	if v.sink == nil {
		return
	}
	event := model.Event{
		Kind:       kind,
		Timestamp:  uint64(v.now().Unix()),
		StrategyID: id,
		Owner:      owner.Hex(),
		Token0:     pair.Token0.Hex(),
		Token1:     pair.Token1.Hex(),
	}
	if err := v.sink.PutEventBatch([]model.Event{event}); err != nil {
		v.logger.Warn("emit strategy event", zap.Error(err))
	}
}
