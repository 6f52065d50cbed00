package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/riskprofile"
)

// refreshAccountAndDrawdown implements spec.md §4.5.3: throttled account
// poll, daily baseline reset on UTC date rollover, and the drawdown
// trip check. Returns the cached account, a close-all reason when
// tripped, and whether the caller should flatten every long position.
func (e *Engine) refreshAccountAndDrawdown(ctx context.Context, nowMs int64, params riskprofile.Params) (domain.Account, string, bool) {
	if !e.account.hasValue || nowMs-e.account.pollMs >= e.cfg.AccountPollInterval.Milliseconds() {
		acct, err := e.broker.GetAccount(ctx)
		if err != nil {
			e.log.Warn("account_unavailable", "err", err)
			if e.account.hasValue {
				return e.account.account, "", false
			}
			return domain.Account{}, "", false
		}
		e.account.account = acct
		e.account.pollMs = nowMs
		e.account.hasValue = true
	}

	dayID := dayIDFromMs(nowMs)
	if e.state.Day.DayID != dayID {
		e.state.Day = domain.DailyBaseline{DayID: dayID, EquityStart: e.account.account.Equity}
	}

	var dd float64
	if e.state.Day.EquityStart > 0 {
		dd = (e.state.Day.EquityStart - e.account.account.Equity) / e.state.Day.EquityStart
	}
	e.lastDrawdown = dd

	if dd > params.DailyMaxDrawdownPct {
		reason := fmt.Sprintf("daily_drawdown_%.2f%%", dd*100)
		return e.account.account, reason, true
	}
	return e.account.account, "", false
}

// dayIDFromMs formats a millisecond timestamp as a UTC yyyy-mm-dd date,
// the identity the daily baseline resets on (spec.md §3).
func dayIDFromMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}
