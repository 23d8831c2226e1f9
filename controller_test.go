package carbonvenue

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"carbonvenue/access"
	"carbonvenue/config"
	"carbonvenue/custody"
	"carbonvenue/ledger"
	"carbonvenue/model"
	"carbonvenue/trading"
)

var (
	venueAddr  = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	vortexAddr = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	burnAddr   = common.HexToAddress("0x00000000000000000000000000000000000000fd")
	adminAddr  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	ownerAddr  = common.HexToAddress("0x0000000000000000000000000000000000000002")
	traderAddr = common.HexToAddress("0x0000000000000000000000000000000000000003")
	tokenA     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokenB     = common.HexToAddress("0x00000000000000000000000000000000000000a2")
)

type captureSink struct {
	events []model.Event
}

func (s *captureSink) PutEventBatch(events []model.Event) error {
	s.events = append(s.events, events...)
	return nil
}

type venueFixture struct {
	venue   *Venue
	custody *custody.InMemory
	sink    *captureSink
	pair    model.Pair
}

// newVenueFixture assembles a full venue on an in-memory custody: 0.2%
// trading fee, 10% auction reward, fees denominated in tokenB as the
// auction's reference asset.
func newVenueFixture(t *testing.T) *venueFixture {
	t.Helper()

	cust := custody.NewInMemory()
	sink := &captureSink{}
	funds := big.NewInt(10_000_000)
	for _, token := range []common.Address{tokenA, tokenB} {
		for _, holder := range []common.Address{ownerAddr, traderAddr} {
			cust.Mint(token, holder, funds)
			if err := cust.Approve(token, holder, venueAddr, funds); err != nil {
				t.Fatalf("approve: %v", err)
			}
		}
		// Working inventory backing trade payouts.
		cust.Mint(token, venueAddr, funds)
	}

	venue, err := New(config.Config{
		TradingFeePPM:      2000,
		RewardsPPM:         100_000,
		PriceDecayHalfLife: 100 * time.Second,
	}, Options{
		Address:       venueAddr,
		VortexAddress: vortexAddr,
		Admin:         adminAddr,
		TargetToken:   tokenB,
		BurnAddress:   burnAddr,
		Custody:       cust,
		Sink:          sink,
		Clock:         func() time.Time { return time.Unix(1_000_000, 0) },
	})
	if err != nil {
		t.Fatalf("new venue: %v", err)
	}

	pair, err := model.NewPair(tokenA, tokenB)
	if err != nil {
		t.Fatalf("new pair: %v", err)
	}
	return &venueFixture{venue: venue, custody: cust, sink: sink, pair: pair}
}

func (f *venueFixture) createStrategy(t *testing.T) uint64 {
	t.Helper()
	id, err := f.venue.CreateStrategy(ownerAddr, f.pair, [2]*model.Order{
		model.NewOrder(big.NewInt(1_000_000), model.RateFromInt(1), model.RateFromInt(2)),
		model.NewOrder(big.NewInt(2_000_000), model.RateFromInt(1), model.RateFromInt(3)),
	})
	if err != nil {
		t.Fatalf("create strategy: %v", err)
	}
	return id
}

func TestNewRequiresCustody(t *testing.T) {
	_, err := New(config.Config{TradingFeePPM: 0, PriceDecayHalfLife: time.Second}, Options{})
	if !errors.Is(err, ErrMissingCustody) {
		t.Fatalf("expected ErrMissingCustody, got %v", err)
	}
}

func TestCreateDeleteConservation(t *testing.T) {
	f := newVenueFixture(t)

	id := f.createStrategy(t)
	if got := f.custody.BalanceOf(tokenA, ownerAddr).Int64(); got != 9_000_000 {
		t.Fatalf("owner A balance after create = %d", got)
	}
	if got := f.custody.BalanceOf(tokenB, ownerAddr).Int64(); got != 8_000_000 {
		t.Fatalf("owner B balance after create = %d", got)
	}

	if err := f.venue.DeleteStrategy(ownerAddr, id); err != nil {
		t.Fatalf("delete strategy: %v", err)
	}
	// Untouched liquidity comes back in full.
	for _, token := range []common.Address{tokenA, tokenB} {
		if got := f.custody.BalanceOf(token, ownerAddr).Int64(); got != 10_000_000 {
			t.Fatalf("owner %s balance after delete = %d", token.Hex(), got)
		}
	}

	if _, err := f.venue.Strategy(id); !errors.Is(err, ledger.ErrStrategyDoesNotExist) {
		t.Fatalf("expected ErrStrategyDoesNotExist, got %v", err)
	}
}

func TestUpdateStrategyVersioning(t *testing.T) {
	f := newVenueFixture(t)
	id := f.createStrategy(t)

	orders := [2]*model.Order{
		model.NewOrder(big.NewInt(2_000_000), model.RateFromInt(1), model.RateFromInt(2)),
		model.NewOrder(big.NewInt(2_000_000), model.RateFromInt(1), model.RateFromInt(3)),
	}
	if err := f.venue.UpdateStrategy(ownerAddr, id, 2, orders); !errors.Is(err, ledger.ErrOutdated) {
		t.Fatalf("expected ErrOutdated, got %v", err)
	}
	if err := f.venue.UpdateStrategy(ownerAddr, id, 1, orders); err != nil {
		t.Fatalf("update strategy: %v", err)
	}

	strategy, err := f.venue.Strategy(id)
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	if strategy.Version != 2 {
		t.Fatalf("version = %d, want 2", strategy.Version)
	}
	// The liquidity top-up was debited.
	if got := f.custody.BalanceOf(tokenA, ownerAddr).Int64(); got != 8_000_000 {
		t.Fatalf("owner A balance = %d, want 8000000", got)
	}
}

func TestQuoteThenTrade(t *testing.T) {
	f := newVenueFixture(t)
	id := f.createStrategy(t)

	req := trading.Request{
		Trader:      traderAddr,
		SourceToken: tokenA,
		TargetToken: tokenB,
		Actions:     []trading.Action{{StrategyID: id, Amount: big.NewInt(500_000)}},
	}
	quote, err := f.venue.TradeTargetAmount(req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	result, err := f.venue.TradeBySourceAmount(req)
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	if quote.TargetAmount.Cmp(result.TargetAmount) != 0 || quote.FeeAmount.Cmp(result.FeeAmount) != 0 {
		t.Fatalf("quote %s/%s does not match trade %s/%s",
			quote.TargetAmount, quote.FeeAmount, result.TargetAmount, result.FeeAmount)
	}
	if result.TargetAmount.Int64() != 623_750 || result.FeeAmount.Int64() != 1_250 {
		t.Fatalf("target/fee = %s/%s, want 623750/1250", result.TargetAmount, result.FeeAmount)
	}
}

func TestFeeAuctionCycle(t *testing.T) {
	f := newVenueFixture(t)
	id := f.createStrategy(t)

	req := trading.Request{
		Trader:      traderAddr,
		SourceToken: tokenA,
		TargetToken: tokenB,
		Actions:     []trading.Action{{StrategyID: id, Amount: big.NewInt(500_000)}},
	}
	if _, err := f.venue.TradeBySourceAmount(req); err != nil {
		t.Fatalf("trade: %v", err)
	}
	if got := f.venue.AccumulatedFees(tokenB).Int64(); got != 1_250 {
		t.Fatalf("accumulated fees = %d, want 1250", got)
	}
	if got := f.venue.AvailableTokens(tokenB).Int64(); got != 1_250 {
		t.Fatalf("available tokens = %d, want 1250", got)
	}

	// Fees are already in the reference asset: no conversion, the caller
	// just triggers the burn and keeps the reward.
	result, err := f.venue.Execute(traderAddr, []common.Address{tokenB})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Proceeds.Int64() != 1_250 || result.Reward.Int64() != 125 || result.Burned.Int64() != 1_125 {
		t.Fatalf("proceeds/reward/burned = %s/%s/%s", result.Proceeds, result.Reward, result.Burned)
	}
	if got := f.custody.BalanceOf(tokenB, burnAddr).Int64(); got != 1_125 {
		t.Fatalf("burn balance = %d, want 1125", got)
	}
	if got := f.venue.TotalBurned().Int64(); got != 1_125 {
		t.Fatalf("total burned = %d, want 1125", got)
	}
	if got := f.venue.AccumulatedFees(tokenB).Int64(); got != 0 {
		t.Fatalf("accumulated fees after burn = %d, want 0", got)
	}
}

func TestAdminSurface(t *testing.T) {
	f := newVenueFixture(t)

	if err := f.venue.SetPairTradingFeePPM(traderAddr, f.pair, 100); !errors.Is(err, access.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if err := f.venue.SetPairTradingFeePPM(adminAddr, f.pair, 100); err != nil {
		t.Fatalf("set pair fee: %v", err)
	}
	if got := f.venue.TradingFeePPM(f.pair); got != 100 {
		t.Fatalf("pair fee = %d, want 100", got)
	}

	if err := f.venue.SetRewardsPPM(adminAddr, 42); err != nil {
		t.Fatalf("set rewards ppm: %v", err)
	}
	if got := f.venue.RewardsPPM(); got != 42 {
		t.Fatalf("rewards ppm = %d, want 42", got)
	}

	if err := f.venue.RegisterVortexToken(adminAddr, tokenA, model.RateFromInt(2), model.RateFromInt(1)); err != nil {
		t.Fatalf("register vortex token: %v", err)
	}
	rate, err := f.venue.CurrentAuctionRate(tokenA)
	if err != nil {
		t.Fatalf("current auction rate: %v", err)
	}
	if rate.Cmp(model.RateFromInt(2)) != 0 {
		t.Fatalf("auction rate = %s, want %s", rate, model.RateFromInt(2))
	}
}

func TestSinkAssembledFromConfig(t *testing.T) {
	cust := custody.NewInMemory()
	cust.Mint(tokenA, ownerAddr, big.NewInt(10_000_000))
	cust.Mint(tokenB, ownerAddr, big.NewInt(10_000_000))
	for _, token := range []common.Address{tokenA, tokenB} {
		if err := cust.Approve(token, ownerAddr, venueAddr, big.NewInt(10_000_000)); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}

	logPath := filepath.Join(t.TempDir(), "events.jsonl")
	venue, err := New(config.Config{
		TradingFeePPM:      2000,
		RewardsPPM:         100_000,
		PriceDecayHalfLife: 100 * time.Second,
		EventLog:           logPath,
	}, Options{
		Address:       venueAddr,
		VortexAddress: vortexAddr,
		Admin:         adminAddr,
		TargetToken:   tokenB,
		BurnAddress:   burnAddr,
		Custody:       cust,
	})
	if err != nil {
		t.Fatalf("new venue: %v", err)
	}

	pair, err := model.NewPair(tokenA, tokenB)
	if err != nil {
		t.Fatalf("new pair: %v", err)
	}
	if _, err := venue.CreateStrategy(ownerAddr, pair, [2]*model.Order{
		model.NewOrder(big.NewInt(1_000), model.RateFromInt(1), model.RateFromInt(2)),
		model.NewOrder(big.NewInt(1_000), model.RateFromInt(1), model.RateFromInt(2)),
	}); err != nil {
		t.Fatalf("create strategy: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read event log: %v", err)
	}
	var event model.Event
	if err := json.Unmarshal(bytes.TrimSpace(data), &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Kind != model.EventStrategyCreated {
		t.Fatalf("event kind = %q, want %q", event.Kind, model.EventStrategyCreated)
	}
}

func TestEventStream(t *testing.T) {
	f := newVenueFixture(t)
	id := f.createStrategy(t)

	req := trading.Request{
		Trader:      traderAddr,
		SourceToken: tokenA,
		TargetToken: tokenB,
		Actions:     []trading.Action{{StrategyID: id, Amount: big.NewInt(500_000)}},
	}
	if _, err := f.venue.TradeBySourceAmount(req); err != nil {
		t.Fatalf("trade: %v", err)
	}
	if err := f.venue.DeleteStrategy(ownerAddr, id); err != nil {
		t.Fatalf("delete strategy: %v", err)
	}

	var kinds []string
	for _, event := range f.sink.events {
		kinds = append(kinds, event.Kind)
	}
	want := []string{model.EventStrategyCreated, model.EventTrade, model.EventStrategyDeleted}
	if len(kinds) != len(want) {
		t.Fatalf("event kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event kinds = %v, want %v", kinds, want)
		}
	}
}
