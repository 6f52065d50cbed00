package engine

import (
	"context"

	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"
)

// Tick runs one full decision cycle: control refresh, gate ladder (which
// runs graceful reduction and returns when signals are stale),
// account/drawdown check, position sync, tracker update, exits,
// entry/rotation with sizing, and persist — in that order (spec.md §4.5). PS is written exactly once, at the very end of
// every code path through this method.
func (e *Engine) Tick(ctx context.Context) (*TickResult, error) {
	result := &TickResult{}
	now := e.nowMs()

	// 4.5.1 Control refresh
	params := e.activeProfile()
	panicRequested := e.isPanic()

	// 4.5.2 Gate ladder
	if !e.broker.IsConfigured() {
		return e.finish(result, domain.ModeNeedsBrokerConfig, false, now, 0, string(params.Name)), nil
	}

	marketOpen := e.broker.IsMarketOpen(ctx)

	if panicRequested && marketOpen {
		positions, _ := e.broker.ListPositions(ctx)
		e.closeAll(ctx, positions, "panic", result)
		return e.finish(result, domain.ModePanic, marketOpen, now, 0, string(params.Name)), nil
	}

	if marketOpen {
		_, lastUpdateMs := e.scores.Snapshot()
		if lastUpdateMs == 0 {
			return e.finish(result, domain.ModeWaitingSignals, marketOpen, now, 0, string(params.Name)), nil
		}
		ageS := float64(now-lastUpdateMs) / 1000.0
		if ageS > e.cfg.SignalStaleThreshold.Seconds() {
			e.gracefulReduction(ctx, ageS, now, result)
			return e.finish(result, domain.ModeSignalStale, marketOpen, now, ageS, string(params.Name)), nil
		}
		e.state.SafeSignal = nil
	} else {
		return e.finish(result, domain.ModeMarketClosed, marketOpen, now, 0, string(params.Name)), nil
	}

	// 4.5.3 Account & drawdown
	_, reason, tripped := e.refreshAccountAndDrawdown(ctx, now, params)
	if !e.account.hasValue {
		// Account unavailable and nothing cached: end the tick before any
		// tracker or position work.
		return e.finish(result, domain.ModeRunning, marketOpen, now, 0, string(params.Name)), nil
	}
	if tripped {
		positions, _ := e.broker.ListPositions(ctx)
		e.closeAll(ctx, positions, reason, result)
		return e.finish(result, domain.ModeDailyDrawdown, marketOpen, now, 0, string(params.Name)), nil
	}

	// 4.5.4 Position sync
	positions, err := e.broker.ListPositions(ctx)
	if err != nil {
		e.log.Warn("positions_unavailable", "err", err)
		return e.finish(result, domain.ModeRunning, marketOpen, now, 0, string(params.Name)), nil
	}
	positionsBySymbol := make(map[string]domain.Position, len(positions))
	for _, p := range positions {
		positionsBySymbol[p.Symbol] = p
	}

	// 4.5.5 Confirmation tracker update
	scores, _ := e.scores.Snapshot()
	e.updateTrackers(scores, positionsBySymbol, params, now)

	// 4.5.6 Exit decisions
	e.runExits(ctx, positionsBySymbol, scores, params, now, result)

	// 4.5.8/4.5.9 Entry and rotation
	e.runEntryAndRotation(ctx, positionsBySymbol, scores, params, now, result)

	return e.finish(result, domain.ModeRunning, marketOpen, now, 0, string(params.Name)), nil
}

// finish fills in health telemetry and persists PS exactly once. Every
// gate-ladder exit and the full-phase path funnel through here.
func (e *Engine) finish(result *TickResult, mode domain.Mode, marketOpen bool, nowMs int64, signalAgeS float64, profile string) *TickResult {
	result.Mode = mode

	positions := make([]string, 0, len(e.state.OpenedAtMs))
	for sym := range e.state.OpenedAtMs {
		positions = append(positions, sym)
	}

	_, lastUpdateMs := e.scores.Snapshot()

	e.state.Health = domain.Health{
		Mode:         mode,
		LastTickMs:   nowMs,
		PushOK:       e.scores.PushOK(),
		SignalLastMs: lastUpdateMs,
		SignalAgeS:   signalAgeS,
		MarketOpen:   marketOpen,
		DayDrawdown:  e.lastDrawdown,
		Positions:    positions,
		Profile:      profile,
	}

	if err := e.store.Save(e.state); err != nil {
		e.log.Error("state_save_failed", "err", err)
	}
	return result
}

// closeAll closes every broker-reported position, whatever its Side, for
// a flatten-all gate (panic, daily drawdown). Errors are logged and do not block remaining
// closes — each position gets its own attempt (spec.md §7).
func (e *Engine) closeAll(ctx context.Context, positions []domain.Position, reason string, result *TickResult) {
	scores, _ := e.scores.Snapshot()
	for _, p := range positions {
		e.closePosition(ctx, p, reason, scores[p.Symbol], result)
	}
}
