// Package vortex auctions accumulated trading fees. Each registered token
// has a standing Dutch auction: the ask rate, quoted in the reference
// asset, decays exponentially from a ceiling toward a floor since the last
// sale. Anyone may call Execute, pay the current ask, take the fee tokens,
// and collect a caller reward; the remaining proceeds are burned.
package vortex

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"carbonvenue/access"
	"carbonvenue/custody"
	"carbonvenue/decay"
	"carbonvenue/ledger"
	"carbonvenue/mathx"
	"carbonvenue/model"
	"carbonvenue/storage"
	"carbonvenue/trading"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrDuplicateToken = errors.New("duplicate token")
	ErrInvalidPPM     = errors.New("invalid ppm value")
)

// Config holds the vortex's fixed parameters.
type Config struct {
	Address            common.Address // custody account of the vortex
	TargetToken        common.Address // reference asset fees convert into
	BurnAddress        common.Address
	RewardsPPM         uint32
	PriceDecayHalfLife uint64 // seconds
}

type tokenAuction struct {
	ceilingRate *big.Int
	floorRate   *big.Int
	lastReset   uint64
}

// Lot reports the outcome for one token in an Execute call.
type Lot struct {
	Token    common.Address
	Amount   *big.Int // fee tokens sold to the caller
	Proceeds *big.Int // reference-asset value of the lot
}

// ExecuteResult aggregates an Execute call.
type ExecuteResult struct {
	Lots     []Lot
	Proceeds *big.Int
	Reward   *big.Int
	Burned   *big.Int
}

// Vortex drains accumulated fees through decaying-price sales.
type Vortex struct {
	cfg     Config
	ledger  *ledger.Ledger
	custody custody.Custody
	access  access.Controller
	logger  *zap.Logger
	sink    storage.Sink
	now     func() time.Time

	rewardsPPM  uint32
	totalBurned *big.Int
	auctions    map[common.Address]*tokenAuction
}

func New(cfg Config, l *ledger.Ledger, cust custody.Custody, acc access.Controller, logger *zap.Logger) (*Vortex, error) {
	if cfg.RewardsPPM > trading.PPMResolution {
		return nil, ErrInvalidPPM
	}
	if cfg.PriceDecayHalfLife == 0 {
		return nil, mathx.ErrInputOutOfRange
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vortex{
		cfg:         cfg,
		ledger:      l,
		custody:     cust,
		access:      acc,
		logger:      logger,
		now:         time.Now,
		rewardsPPM:  cfg.RewardsPPM,
		totalBurned: big.NewInt(0),
		auctions:    make(map[common.Address]*tokenAuction),
	}, nil
}

// SetSink attaches an audit sink.
func (v *Vortex) SetSink(sink storage.Sink) {
	v.sink = sink
}

// SetClock overrides the vortex's time source.
func (v *Vortex) SetClock(now func() time.Time) {
	v.now = now
}

// RewardsPPM returns the caller-reward fraction.
func (v *Vortex) RewardsPPM() uint32 {
	return v.rewardsPPM
}

// TotalBurned returns the cumulative burned reference-asset value.
func (v *Vortex) TotalBurned() *big.Int {
	return new(big.Int).Set(v.totalBurned)
}

// SetRewardsPPM updates the caller-reward fraction. Admin only.
func (v *Vortex) SetRewardsPPM(caller common.Address, ppm uint32) error {
	if v.access == nil || !v.access.HasRole(access.RoleAdmin, caller) {
		return access.ErrAccessDenied
	}
	if ppm > trading.PPMResolution {
		return ErrInvalidPPM
	}
	prev := v.rewardsPPM
	v.rewardsPPM = ppm
	v.logger.Info("rewards ppm updated", zap.Uint32("prev_ppm", prev), zap.Uint32("new_ppm", ppm))
	v.emit(model.Event{
		Kind:      model.EventRewardsUpdated,
		Timestamp: uint64(v.now().Unix()),
		Caller:    caller.Hex(),
		PrevPPM:   prev,
		NewPPM:    ppm,
	})
	return nil
}

// RegisterToken opens the standing auction for a fee token with its rate
// bounds, quoted as reference asset per token. Admin only. The reference
// asset itself needs no registration.
func (v *Vortex) RegisterToken(caller, token common.Address, ceilingRate, floorRate *big.Int) error {
	if v.access == nil || !v.access.HasRole(access.RoleAdmin, caller) {
		return access.ErrAccessDenied
	}
	if token == v.cfg.TargetToken {
		return ErrInvalidToken
	}
	if ceilingRate == nil || floorRate == nil || floorRate.Sign() < 0 || ceilingRate.Cmp(floorRate) < 0 {
		return model.ErrInvalidRate
	}
	v.auctions[token] = &tokenAuction{
		ceilingRate: new(big.Int).Set(ceilingRate),
		floorRate:   new(big.Int).Set(floorRate),
		lastReset:   uint64(v.now().Unix()),
	}
	return nil
}

// CurrentRate returns the token's present ask rate: the ceiling decayed by
// the time since the last sale, clamped at the floor. Once the decay
// exponent leaves the supported domain the ask simply sits at the floor.
func (v *Vortex) CurrentRate(token common.Address) (*big.Int, error) {
	if token == v.cfg.TargetToken {
		return new(big.Int).Set(model.RateOne), nil
	}
	auction, ok := v.auctions[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return v.currentRate(auction), nil
}

func (v *Vortex) currentRate(auction *tokenAuction) *big.Int {
	elapsed := uint64(0)
	if ts := uint64(v.now().Unix()); ts > auction.lastReset {
		elapsed = ts - auction.lastReset
	}
	rate, err := decay.DecayedAmount(auction.ceilingRate, elapsed, v.cfg.PriceDecayHalfLife)
	if err != nil || rate.Cmp(auction.floorRate) < 0 {
		return new(big.Int).Set(auction.floorRate)
	}
	return rate
}

// AvailableTokens returns the amount of a token the next Execute call
// would sell: accumulated fees plus any balance held directly.
func (v *Vortex) AvailableTokens(token common.Address) *big.Int {
	amount := v.ledger.AccumulatedFees(token)
	return amount.Add(amount, v.custody.BalanceOf(token, v.cfg.Address))
}

// Execute drains the listed tokens. Every lot is priced up front, the
// caller's reference-asset funding and the venue's custody backing for
// each lot's accumulated fees are verified, and only then does settlement
// run, so the call has no partial effect. A sale resets that token's
// auction clock; empty lots are skipped and do not reset.
func (v *Vortex) Execute(caller common.Address, tokens []common.Address) (*ExecuteResult, error) {
	if len(tokens) == 0 {
		return nil, ErrInvalidToken
	}
	seen := make(map[common.Address]struct{}, len(tokens))
	for _, token := range tokens {
		if _, ok := seen[token]; ok {
			return nil, ErrDuplicateToken
		}
		seen[token] = struct{}{}
		if token != v.cfg.TargetToken {
			if _, ok := v.auctions[token]; !ok {
				return nil, ErrInvalidToken
			}
		}
	}

	result := &ExecuteResult{
		Proceeds: big.NewInt(0),
		Reward:   big.NewInt(0),
		Burned:   big.NewInt(0),
	}
	required := big.NewInt(0)
	for _, token := range tokens {
		amount := v.AvailableTokens(token)
		if amount.Sign() == 0 {
			continue
		}
		var proceeds *big.Int
		if token == v.cfg.TargetToken {
			proceeds = new(big.Int).Set(amount)
		} else {
			rate := v.currentRate(v.auctions[token])
			converted, err := mathx.MulDivFloor(amount, rate, model.RateOne)
			if err != nil {
				return nil, err
			}
			proceeds = converted
			required.Add(required, converted)
		}
		result.Lots = append(result.Lots, Lot{Token: token, Amount: amount, Proceeds: proceeds})
		result.Proceeds.Add(result.Proceeds, proceeds)
	}
	if len(result.Lots) == 0 {
		return result, nil
	}

	if v.custody.BalanceOf(v.cfg.TargetToken, caller).Cmp(required) < 0 {
		return nil, custody.ErrInsufficientBalance
	}
	if v.custody.Allowance(v.cfg.TargetToken, caller, v.cfg.Address).Cmp(required) < 0 {
		return nil, custody.ErrInsufficientAllowance
	}
	// The venue's pooled inventory also backs trade payouts, so its
	// balance can fall below a token's accumulated fees. Catch that
	// before any lot settles; WithdrawFees must not fail mid-loop.
	for _, lot := range result.Lots {
		fees := v.ledger.AccumulatedFees(lot.Token)
		if v.custody.BalanceOf(lot.Token, v.ledger.Venue()).Cmp(fees) < 0 {
			return nil, custody.ErrInsufficientBalance
		}
	}

	ts := uint64(v.now().Unix())
	for _, lot := range result.Lots {
		if _, err := v.ledger.WithdrawFees(v.cfg.Address, lot.Token, v.cfg.Address); err != nil {
			return nil, err
		}
		if lot.Token != v.cfg.TargetToken {
			if err := v.custody.TransferFrom(v.cfg.TargetToken, v.cfg.Address, caller, v.cfg.Address, lot.Proceeds); err != nil {
				return nil, err
			}
			if err := v.custody.Transfer(lot.Token, v.cfg.Address, caller, lot.Amount); err != nil {
				return nil, err
			}
			v.auctions[lot.Token].lastReset = ts
		}
	}

	reward, err := mathx.MulDivFloor(result.Proceeds, big.NewInt(int64(v.rewardsPPM)), big.NewInt(trading.PPMResolution))
	if err != nil {
		return nil, err
	}
	burned := new(big.Int).Sub(result.Proceeds, reward)
	if err := v.custody.Transfer(v.cfg.TargetToken, v.cfg.Address, caller, reward); err != nil {
		return nil, err
	}
	if err := v.custody.Transfer(v.cfg.TargetToken, v.cfg.Address, v.cfg.BurnAddress, burned); err != nil {
		return nil, err
	}
	result.Reward = reward
	result.Burned = burned
	v.totalBurned.Add(v.totalBurned, burned)

	v.logger.Info("vortex executed",
		zap.Stringer("caller", caller),
		zap.Int("lots", len(result.Lots)),
		zap.String("proceeds", result.Proceeds.String()),
		zap.String("reward", reward.String()),
		zap.String("burned", burned.String()),
	)
	v.emit(model.Event{
		Kind:         model.EventFeesBurned,
		Timestamp:    ts,
		Caller:       caller.Hex(),
		Token:        v.cfg.TargetToken.Hex(),
		Amount:       result.Proceeds.String(),
		RewardAmount: reward.String(),
		BurnedAmount: burned.String(),
	})
	return result, nil
}

func (v *Vortex) emit(event model.Event) {
	if v.sink == nil {
		return
	}
	if err := v.sink.PutEventBatch([]model.Event{event}); err != nil {
		v.logger.Warn("emit vortex event", zap.Error(err))
	}
}
