// Package engine is the Decision Engine (spec.md §2.7, §4.5): the
// orchestrator that composes the signal feed, broker, risk profile, and
// control inputs into open/close/rotate actions once per tick.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/ports"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/riskprofile"
)

// ScoreSource is the read side of the signal feed the engine depends on —
// satisfied by *domain.ScoreMap.
type ScoreSource interface {
	Snapshot() (scores map[string]int, lastUpdateMs int64)
	PushOK() bool
}

// Config holds every tunable named in spec.md §6. Zero values are not
// valid; callers should build this from config.DecisionConfig.
type Config struct {
	DefaultProfile string

	DecisionInterval      time.Duration
	SignalStaleThreshold  time.Duration
	MissingSymbolGrace    time.Duration
	SafeReduceStep        time.Duration
	SafeReducePerStep     int
	SafeStaleEscalate     time.Duration
	Cooldown              time.Duration
	AccountPollInterval    time.Duration

	CashBuffer           float64
	MinWeightPerPos      float64
	ScorePointValueBps   float64
	CommissionPerTrade   float64
	SlippageBps          float64
	SwitchCostMultiplier float64
}

// TickResult summarizes one tick — returned to the caller for logging or
// a CLI report, never inspected by the engine itself afterward.
type TickResult struct {
	Mode    domain.Mode
	Actions []string
}

func (r *TickResult) note(action string) {
	r.Actions = append(r.Actions, action)
}

// accountCache is the equity/cash snapshot throttled to AccountPollInterval
// (spec.md §4.5.3). It is transient — never persisted.
type accountCache struct {
	account  domain.Account
	pollMs   int64
	hasValue bool
}

// Engine is the single-goroutine tick loop. It is not safe for concurrent
// calls to Tick; the caller drives one tick at a time on a timer, the way
// the teacher's live engine is driven from cmd/scanner's ticker loop.
type Engine struct {
	cfg Config

	scores  ScoreSource
	broker  ports.Broker
	store   ports.StateStore
	trades  ports.TradeLog
	panic   ports.PanicSource
	profile ports.ProfileSource

	log *slog.Logger
	now func() time.Time

	state   *domain.RuntimeState
	account accountCache

	// lastDrawdown is the most recently computed day_drawdown, surfaced in
	// health telemetry regardless of whether it tripped the gate.
	lastDrawdown float64

	// randIntn picks an index in [0,n) for the "no scores known" random
	// graceful-reduction fallback (spec.md §4.5.7). Overridable in tests.
	randIntn func(n int) int
}

// New wires the engine's dependencies. log defaults to slog.Default()
// when nil.
func New(cfg Config, scores ScoreSource, broker ports.Broker, store ports.StateStore, trades ports.TradeLog, panicSrc ports.PanicSource, profileSrc ports.ProfileSource, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		scores:   scores,
		broker:   broker,
		store:    store,
		trades:   trades,
		panic:    panicSrc,
		profile:  profileSrc,
		log:      log.With("component", "engine"),
		now:      time.Now,
		state:    store.Load(),
		randIntn: defaultRandIntn,
	}
}

// Run ticks every cfg.DecisionInterval until ctx is cancelled, the way
// the teacher's cmd/scanner drives its live engine off a time.Ticker.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.DecisionInterval)
	defer ticker.Stop()

	e.tickLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tickLogged(ctx)
		}
	}
}

// tickLogged runs one tick with a tick-scoped recover, the way the
// teacher's live loop survives a single bad iteration instead of taking
// the whole process down with it (spec.md §7).
func (e *Engine) tickLogged(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("tick_panic", "recovered", r)
		}
	}()

	result, err := e.Tick(ctx)
	if err != nil {
		e.log.Error("tick_failed", "err", err)
		return
	}
	e.log.Info("tick_done", "mode", result.Mode, "actions", result.Actions)
}

func (e *Engine) nowMs() int64 {
	return domain.NowMs(e.now())
}

// activeProfile resolves the current risk profile, falling back to the
// configured default and then to balanced (spec.md §4.5.1, §4.1).
func (e *Engine) activeProfile() riskprofile.Params {
	name := e.cfg.DefaultProfile
	if e.profile != nil {
		if p := e.profile.GetProfile(); p != "" {
			name = p
		}
	}
	return riskprofile.For(name)
}

func (e *Engine) isPanic() bool {
	return e.panic != nil && e.panic.GetPanic()
}
