package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/adapters/broker"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/riskprofile"
)

// runExits implements spec.md §4.5.6: a symbol is closed at most once
// per tick, missing-grace takes priority over a confirmed score exit,
// and all selected closes complete before entry/rotation runs.
func (e *Engine) runExits(ctx context.Context, positions map[string]domain.Position, scores map[string]int, params riskprofile.Params, nowMs int64, result *TickResult) {
	closed := make(map[string]bool)

	if sym, ok := e.oldestMissing(positions, nowMs); ok {
		e.closePosition(ctx, positions[sym], "symbol_missing", scores[sym], result)
		delete(e.state.MissingSince, sym)
		closed[sym] = true
	}

	for sym, since := range e.state.BelowSince {
		if closed[sym] {
			continue
		}
		p, held := positions[sym]
		if !held {
			continue
		}
		if nowMs-since >= int64(params.ExitConfirmS)*1000 {
			e.closePosition(ctx, p, "score_exit", scores[sym], result)
			delete(e.state.BelowSince, sym)
			closed[sym] = true
		}
	}
}

// oldestMissing returns the held symbol whose missing_since is both past
// the grace window and the longest-absent of any such symbol — at most
// one is closed per tick (spec.md §4.5.6.1).
func (e *Engine) oldestMissing(positions map[string]domain.Position, nowMs int64) (string, bool) {
	graceMs := e.cfg.MissingSymbolGrace.Milliseconds()
	var chosen string
	var oldest int64
	found := false

	for sym, since := range e.state.MissingSince {
		if _, held := positions[sym]; !held {
			continue
		}
		if nowMs-since < graceMs {
			continue
		}
		if !found || since < oldest {
			chosen, oldest, found = sym, since, true
		}
	}
	return chosen, found
}

// closePosition closes the full position, logs the trade on success, and
// clears opened_at_ms. ErrNoPosition is treated as success (spec.md P10).
func (e *Engine) closePosition(ctx context.Context, p domain.Position, reason string, score int, result *TickResult) {
	clientID := clientOrderID()
	err := e.broker.ClosePosition(ctx, p.Symbol, nil, clientID)
	if err != nil && !errors.Is(err, broker.ErrNoPosition) {
		e.log.Warn("close_failed", "symbol", p.Symbol, "reason", reason, "err", err)
		return
	}

	delete(e.state.OpenedAtMs, p.Symbol)
	result.note(fmt.Sprintf("close %s (%s)", p.Symbol, reason))

	priceEst := p.AvgEntryPrice
	if px, ok := e.broker.LatestPrice(ctx, p.Symbol); ok {
		priceEst = px
	}
	logErr := e.trades.LogTrade(domain.TradeLogEntry{
		TsMs:     e.nowMs(),
		Symbol:   p.Symbol,
		Side:     domain.TradeSell,
		Qty:      p.Qty,
		Score:    score,
		PriceEst: priceEst,
		Reason:   reason,
		Broker:   e.broker.Name(),
		Mode:     string(e.state.Health.Mode),
	})
	if logErr != nil {
		e.log.Warn("trade_log_failed", "symbol", p.Symbol, "err", logErr)
	}
}

func clientOrderID() string {
	id := uuid.NewString()
	if len(id) > 48 {
		id = id[:48]
	}
	return id
}
