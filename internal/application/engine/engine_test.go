package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapterbroker "github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/adapters/broker"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/ports"
)

// --- mocks ---

type mockBroker struct {
	name          string
	configured    bool
	marketOpen    bool
	account       domain.Account
	accountErr    error
	positions     []domain.Position
	positionsErr  error
	prices        map[string]float64
	entryErr      error
	closeErr      error
	entries       []string
	closes        []string
}

func (b *mockBroker) Name() string { return b.name }

func (b *mockBroker) IsConfigured() bool { return b.configured }

func (b *mockBroker) IsMarketOpen(context.Context) bool { return b.marketOpen }

func (b *mockBroker) GetAccount(context.Context) (domain.Account, error) {
	return b.account, b.accountErr
}

func (b *mockBroker) ListPositions(context.Context) ([]domain.Position, error) {
	if b.positionsErr != nil {
		return nil, b.positionsErr
	}
	return b.positions, nil
}

func (b *mockBroker) LatestPrice(_ context.Context, symbol string) (float64, bool) {
	px, ok := b.prices[symbol]
	return px, ok
}

func (b *mockBroker) PlaceEntryWithBracket(_ context.Context, symbol string, qty int, _, _ float64, _ string) error {
	if b.entryErr != nil {
		return b.entryErr
	}
	b.entries = append(b.entries, symbol)
	b.positions = append(b.positions, domain.Position{Symbol: symbol, Qty: float64(qty), Side: domain.SideLong, AvgEntryPrice: b.prices[symbol]})
	return nil
}

func (b *mockBroker) ClosePosition(_ context.Context, symbol string, _ *float64, _ string) error {
	b.closes = append(b.closes, symbol)
	if b.closeErr != nil {
		return b.closeErr
	}
	kept := b.positions[:0]
	found := false
	for _, p := range b.positions {
		if p.Symbol == symbol {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	b.positions = kept
	if !found {
		return adapterbroker.ErrNoPosition
	}
	return nil
}

type mockStore struct {
	state *domain.RuntimeState
	saves int
}

func (s *mockStore) Load() *domain.RuntimeState {
	if s.state == nil {
		s.state = domain.NewRuntimeState()
	}
	return s.state
}

func (s *mockStore) Save(st *domain.RuntimeState) error {
	s.saves++
	s.state = st
	return nil
}

type mockTradeLog struct {
	entries []domain.TradeLogEntry
}

func (t *mockTradeLog) LogTrade(e domain.TradeLogEntry) error {
	t.entries = append(t.entries, e)
	return nil
}

type mockScores struct {
	scores map[string]int
	lastMs int64
	pushOK bool
}

func (s *mockScores) Snapshot() (map[string]int, int64) { return s.scores, s.lastMs }
func (s *mockScores) PushOK() bool                      { return s.pushOK }

var _ ports.Broker = (*mockBroker)(nil)
var _ ports.StateStore = (*mockStore)(nil)
var _ ports.TradeLog = (*mockTradeLog)(nil)
var _ ScoreSource = (*mockScores)(nil)

func testConfig() Config {
	return Config{
		DefaultProfile:       "balanced",
		DecisionInterval:     12 * time.Second,
		SignalStaleThreshold: 480 * time.Second,
		MissingSymbolGrace:   180 * time.Second,
		SafeReduceStep:       60 * time.Second,
		SafeReducePerStep:    1,
		SafeStaleEscalate:    900 * time.Second,
		Cooldown:             240 * time.Second,
		AccountPollInterval:  20 * time.Second,
		CashBuffer:           0.05,
		MinWeightPerPos:      0.08,
		ScorePointValueBps:   4.0,
		CommissionPerTrade:   0,
		SlippageBps:          2.5,
		SwitchCostMultiplier: 1.5,
	}
}

func newTestEngine(cfg Config, scores *mockScores, br *mockBroker, store *mockStore, trades *mockTradeLog) *Engine {
	e := New(cfg, scores, br, store, trades, nil, nil, nil)
	e.now = func() time.Time { return time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestTick_NeedsBrokerConfig(t *testing.T) {
	br := &mockBroker{configured: false}
	e := newTestEngine(testConfig(), &mockScores{}, br, &mockStore{}, &mockTradeLog{})

	result, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeNeedsBrokerConfig, result.Mode)
}

func TestTick_MarketClosed(t *testing.T) {
	br := &mockBroker{configured: true, marketOpen: false}
	e := newTestEngine(testConfig(), &mockScores{}, br, &mockStore{}, &mockTradeLog{})

	result, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeMarketClosed, result.Mode)
}

func TestTick_WaitingSignalsWhenNoSignalEverReceived(t *testing.T) {
	br := &mockBroker{configured: true, marketOpen: true, account: domain.Account{Equity: 10000, Cash: 10000}}
	e := newTestEngine(testConfig(), &mockScores{}, br, &mockStore{}, &mockTradeLog{})

	result, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeWaitingSignals, result.Mode)
}

func TestTick_PanicClosesAllPositions(t *testing.T) {
	br := &mockBroker{
		configured: true, marketOpen: true,
		positions: []domain.Position{{Symbol: "AAA", Qty: 10, Side: domain.SideLong, AvgEntryPrice: 100}},
		prices:    map[string]float64{"AAA": 105},
	}
	store := &mockStore{}
	trades := &mockTradeLog{}
	e := newTestEngine(testConfig(), &mockScores{scores: map[string]int{"AAA": 80}, lastMs: 1}, br, store, trades)
	e.panic = ports.PanicFunc(func() bool { return true })

	result, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModePanic, result.Mode)
	assert.Empty(t, br.positions)
	assert.Contains(t, br.closes, "AAA")
	require.Len(t, trades.entries, 1)
	assert.Equal(t, domain.TradeSell, trades.entries[0].Side)
}

func TestTick_SignalStaleTriggersGracefulReduction(t *testing.T) {
	br := &mockBroker{
		configured: true, marketOpen: true,
		positions: []domain.Position{{Symbol: "AAA", Qty: 10, Side: domain.SideLong, AvgEntryPrice: 100}},
		prices:    map[string]float64{"AAA": 100},
	}
	cfg := testConfig()
	e := newTestEngine(cfg, &mockScores{scores: map[string]int{"AAA": 80}, lastMs: 1}, br, &mockStore{}, &mockTradeLog{})
	// lastMs=1 vs now (2026-07-31 12:00 UTC) is far older than SignalStaleThreshold.
	result, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeSignalStale, result.Mode)
	assert.Contains(t, br.closes, "AAA")
}

func TestTick_DailyDrawdownFlattensAll(t *testing.T) {
	br := &mockBroker{
		configured: true, marketOpen: true,
		account:   domain.Account{Equity: 9000, Cash: 9000},
		positions: []domain.Position{{Symbol: "AAA", Qty: 10, Side: domain.SideLong, AvgEntryPrice: 100}},
		prices:    map[string]float64{"AAA": 90},
	}
	nowMs := domain.NowMs(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	store := &mockStore{state: &domain.RuntimeState{
		AboveSince: map[string]int64{}, BelowSince: map[string]int64{}, MissingSince: map[string]int64{},
		Cooldowns: map[string]int64{}, OpenedAtMs: map[string]int64{},
		Day: domain.DailyBaseline{DayID: "2026-07-31", EquityStart: 10000},
	}}
	e := newTestEngine(testConfig(), &mockScores{scores: map[string]int{"AAA": 80}, lastMs: nowMs}, br, store, &mockTradeLog{})

	result, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeDailyDrawdown, result.Mode)
	assert.Empty(t, br.positions)
}

func TestTick_ScoreExitAfterConfirmWindow(t *testing.T) {
	nowMs := domain.NowMs(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	br := &mockBroker{
		configured: true, marketOpen: true,
		account:   domain.Account{Equity: 10000, Cash: 10000},
		positions: []domain.Position{{Symbol: "AAA", Qty: 10, Side: domain.SideLong, AvgEntryPrice: 100}},
		prices:    map[string]float64{"AAA": 90},
	}
	store := &mockStore{state: &domain.RuntimeState{
		AboveSince: map[string]int64{}, BelowSince: map[string]int64{"AAA": nowMs - 30_000}, MissingSince: map[string]int64{},
		Cooldowns: map[string]int64{}, OpenedAtMs: map[string]int64{"AAA": nowMs - 1_000_000},
		Day: domain.DailyBaseline{DayID: "2026-07-31", EquityStart: 10000},
	}}
	e := newTestEngine(testConfig(), &mockScores{scores: map[string]int{"AAA": 40}, lastMs: nowMs}, br, store, &mockTradeLog{})

	result, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeRunning, result.Mode)
	assert.Contains(t, br.closes, "AAA")
}

func TestTick_EntryOpensConfirmedCandidate(t *testing.T) {
	nowMs := domain.NowMs(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	br := &mockBroker{
		configured: true, marketOpen: true,
		account: domain.Account{Equity: 10000, Cash: 10000},
		prices:  map[string]float64{"AAA": 50},
	}
	store := &mockStore{state: &domain.RuntimeState{
		AboveSince: map[string]int64{"AAA": nowMs - 60_000}, BelowSince: map[string]int64{}, MissingSince: map[string]int64{},
		Cooldowns: map[string]int64{}, OpenedAtMs: map[string]int64{},
		Day: domain.DailyBaseline{DayID: "2026-07-31", EquityStart: 10000},
	}}
	trades := &mockTradeLog{}
	e := newTestEngine(testConfig(), &mockScores{scores: map[string]int{"AAA": 90}, lastMs: nowMs}, br, store, trades)

	result, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeRunning, result.Mode)
	assert.Contains(t, br.entries, "AAA")
	require.Len(t, trades.entries, 1)
	assert.Equal(t, domain.TradeBuy, trades.entries[0].Side)
	assert.NotZero(t, store.state.OpenedAtMs["AAA"])
	assert.NotZero(t, store.state.Cooldowns["AAA"])
}

func TestTick_EntrySkippedDuringCooldown(t *testing.T) {
	nowMs := domain.NowMs(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	br := &mockBroker{
		configured: true, marketOpen: true,
		account: domain.Account{Equity: 10000, Cash: 10000},
		prices:  map[string]float64{"AAA": 50},
	}
	store := &mockStore{state: &domain.RuntimeState{
		AboveSince: map[string]int64{"AAA": nowMs - 60_000}, BelowSince: map[string]int64{}, MissingSince: map[string]int64{},
		Cooldowns: map[string]int64{"AAA": nowMs + 60_000}, OpenedAtMs: map[string]int64{},
		Day: domain.DailyBaseline{DayID: "2026-07-31", EquityStart: 10000},
	}}
	e := newTestEngine(testConfig(), &mockScores{scores: map[string]int{"AAA": 90}, lastMs: nowMs}, br, store, &mockTradeLog{})

	result, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeRunning, result.Mode)
	assert.Empty(t, br.entries)
}

func TestTick_MissingSymbolPastGraceIsClosed(t *testing.T) {
	nowMs := domain.NowMs(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	br := &mockBroker{
		configured: true, marketOpen: true,
		account:   domain.Account{Equity: 10000, Cash: 10000},
		positions: []domain.Position{{Symbol: "AAA", Qty: 10, Side: domain.SideLong, AvgEntryPrice: 100}},
		prices:    map[string]float64{"AAA": 100},
	}
	store := &mockStore{state: &domain.RuntimeState{
		AboveSince: map[string]int64{}, BelowSince: map[string]int64{}, MissingSince: map[string]int64{"AAA": nowMs - 200_000},
		Cooldowns: map[string]int64{}, OpenedAtMs: map[string]int64{"AAA": nowMs - 1_000_000},
		Day: domain.DailyBaseline{DayID: "2026-07-31", EquityStart: 10000},
	}}
	e := newTestEngine(testConfig(), &mockScores{scores: map[string]int{}, lastMs: nowMs}, br, store, &mockTradeLog{})

	result, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeRunning, result.Mode)
	assert.Contains(t, br.closes, "AAA")
}

func TestTick_PersistsStateExactlyOncePerTick(t *testing.T) {
	br := &mockBroker{configured: true, marketOpen: false}
	store := &mockStore{}
	e := newTestEngine(testConfig(), &mockScores{}, br, store, &mockTradeLog{})

	_, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.saves)
}

func TestClosePosition_NoPositionIsNotAFailure(t *testing.T) {
	br := &mockBroker{configured: true, marketOpen: true}
	trades := &mockTradeLog{}
	store := &mockStore{}
	e := newTestEngine(testConfig(), &mockScores{}, br, store, trades)
	e.state = store.Load()

	result := &TickResult{}
	e.closePosition(context.Background(), domain.Position{Symbol: "ZZZ", Qty: 1}, "test", 0, result)

	require.Len(t, br.closes, 1)
	assert.Len(t, trades.entries, 1)
	assert.Contains(t, result.Actions[0], "close ZZZ")
}

func TestTick_RotationReplacesWorstPositionWhenFull(t *testing.T) {
	nowMs := domain.NowMs(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))

	held := []domain.Position{
		{Symbol: "P1", Qty: 10, Side: domain.SideLong, AvgEntryPrice: 100},
		{Symbol: "P2", Qty: 10, Side: domain.SideLong, AvgEntryPrice: 100},
		{Symbol: "P3", Qty: 10, Side: domain.SideLong, AvgEntryPrice: 100},
		{Symbol: "P4", Qty: 10, Side: domain.SideLong, AvgEntryPrice: 100},
		{Symbol: "P5", Qty: 10, Side: domain.SideLong, AvgEntryPrice: 100},
	}
	br := &mockBroker{
		configured: true, marketOpen: true,
		account:   domain.Account{Equity: 10000, Cash: 10000},
		positions: held,
		prices:    map[string]float64{"P1": 100, "P2": 100, "P3": 100, "P4": 100, "P5": 100, "NEW": 50},
	}
	store := &mockStore{state: &domain.RuntimeState{
		AboveSince: map[string]int64{"NEW": nowMs - 60_000},
		BelowSince: map[string]int64{}, MissingSince: map[string]int64{},
		Cooldowns: map[string]int64{},
		// P1 (the worst-scored position) has no opened_at_ms entry at
		// all — a pre-existing or state-reset position — and must not
		// permanently veto rotation.
		OpenedAtMs: map[string]int64{"P2": nowMs - 1_000_000, "P3": nowMs - 1_000_000, "P4": nowMs - 1_000_000, "P5": nowMs - 1_000_000},
		Day:        domain.DailyBaseline{DayID: "2026-07-31", EquityStart: 10000},
	}}
	trades := &mockTradeLog{}
	scores := map[string]int{"P1": 60, "P2": 80, "P3": 80, "P4": 80, "P5": 80, "NEW": 90}
	e := newTestEngine(testConfig(), &mockScores{scores: scores, lastMs: nowMs}, br, store, trades)

	result, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModeRunning, result.Mode)

	assert.Contains(t, br.closes, "P1", "the worst-scored held position should be rotated out")
	assert.Contains(t, br.entries, "NEW", "the confirmed higher-scored candidate should replace it")
	assert.NotZero(t, store.state.OpenedAtMs["NEW"])
	assert.NotContains(t, store.state.OpenedAtMs, "P1")
}

func TestTick_RotationDoesNotFireBelowMargin(t *testing.T) {
	nowMs := domain.NowMs(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))

	held := []domain.Position{
		{Symbol: "P1", Qty: 10, Side: domain.SideLong, AvgEntryPrice: 100},
		{Symbol: "P2", Qty: 10, Side: domain.SideLong, AvgEntryPrice: 100},
		{Symbol: "P3", Qty: 10, Side: domain.SideLong, AvgEntryPrice: 100},
		{Symbol: "P4", Qty: 10, Side: domain.SideLong, AvgEntryPrice: 100},
		{Symbol: "P5", Qty: 10, Side: domain.SideLong, AvgEntryPrice: 100},
	}
	br := &mockBroker{
		configured: true, marketOpen: true,
		account:   domain.Account{Equity: 10000, Cash: 10000},
		positions: held,
		prices:    map[string]float64{"P1": 100, "P2": 100, "P3": 100, "P4": 100, "P5": 100, "NEW": 50},
	}
	store := &mockStore{state: &domain.RuntimeState{
		AboveSince: map[string]int64{"NEW": nowMs - 60_000},
		BelowSince: map[string]int64{}, MissingSince: map[string]int64{},
		Cooldowns:  map[string]int64{},
		OpenedAtMs: map[string]int64{"P1": nowMs - 1_000_000, "P2": nowMs - 1_000_000, "P3": nowMs - 1_000_000, "P4": nowMs - 1_000_000, "P5": nowMs - 1_000_000},
		Day:        domain.DailyBaseline{DayID: "2026-07-31", EquityStart: 10000},
	}}
	// NEW only beats the worst score (P1=80) by 5, under Balanced's
	// rotation_margin of 12 — rotation must not fire.
	scores := map[string]int{"P1": 80, "P2": 80, "P3": 80, "P4": 80, "P5": 80, "NEW": 85}
	e := newTestEngine(testConfig(), &mockScores{scores: scores, lastMs: nowMs}, br, store, &mockTradeLog{})

	_, err := e.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, br.closes)
	assert.Empty(t, br.entries)
}

func TestWorstPosition_MissingScoreTreatedAs50(t *testing.T) {
	e := newTestEngine(testConfig(), &mockScores{}, &mockBroker{}, &mockStore{state: domain.NewRuntimeState()}, &mockTradeLog{})

	positions := map[string]domain.Position{
		"AAA": {Symbol: "AAA"},
		"BBB": {Symbol: "BBB"},
	}
	scores := map[string]int{"AAA": 60} // BBB missing -> treated as 50, the lowest

	sym, score := e.worstPosition(positions, scores)
	assert.Equal(t, "BBB", sym)
	assert.Equal(t, 50, score)
}
