package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/riskprofile"
)

// tryOpen implements the convex-weighting sizing formula and order
// placement described in spec.md §4.5.9.
func (e *Engine) tryOpen(ctx context.Context, sym string, score int, params riskprofile.Params, nowMs int64, result *TickResult) {
	if e.state.Cooldowns[sym] > nowMs {
		return
	}

	price, ok := e.broker.LatestPrice(ctx, sym)
	if !ok || price <= 0 {
		return
	}

	strength := clamp(float64(score-params.Entry)/float64(100-params.Entry), 0, 1)
	minWeight := e.cfg.MinWeightPerPos
	weight := minWeight + (params.MaxWeightPerPos-minWeight)*strength*strength

	equity := e.account.account.Equity
	cash := e.account.account.Cash

	alloc := equity * math.Min(weight, params.MaxExposure)
	maxSpend := math.Max(0, cash-equity*e.cfg.CashBuffer)
	alloc = math.Min(alloc, maxSpend)

	if alloc <= 50 {
		return
	}

	qty := int(math.Floor(alloc / price))
	if qty < 1 {
		return
	}

	clientID := clientOrderID()
	err := e.broker.PlaceEntryWithBracket(ctx, sym, qty, params.StopLossPct, params.TakeProfitPct, clientID)
	if err != nil {
		e.log.Warn("entry_failed", "symbol", sym, "err", err)
		return
	}

	e.state.OpenedAtMs[sym] = nowMs
	e.state.Cooldowns[sym] = nowMs + int64(e.cfg.Cooldown.Seconds())*1000
	e.account.account.Cash = math.Max(0, e.account.account.Cash-float64(qty)*price)

	result.note(fmt.Sprintf("open %s qty=%d score=%d", sym, qty, score))

	if logErr := e.trades.LogTrade(domain.TradeLogEntry{
		TsMs:     nowMs,
		Symbol:   sym,
		Side:     domain.TradeBuy,
		Qty:      float64(qty),
		Score:    score,
		PriceEst: price,
		Reason:   "entry",
		Broker:   e.broker.Name(),
		Mode:     string(e.state.Health.Mode),
	}); logErr != nil {
		e.log.Warn("trade_log_failed", "symbol", sym, "err", logErr)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
