package engine

import (
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/riskprofile"
)

// updateTrackers implements spec.md §4.5.5: above_since/below_since are
// complementary predicates over the live score, missing_since tracks
// held symbols that have fallen out of the feed entirely.
func (e *Engine) updateTrackers(scores map[string]int, positions map[string]domain.Position, params riskprofile.Params, nowMs int64) {
	for sym, score := range scores {
		if score >= params.Entry {
			if e.state.AboveSince[sym] == 0 {
				e.state.AboveSince[sym] = nowMs
			}
		} else {
			delete(e.state.AboveSince, sym)
		}
	}

	for sym := range positions {
		score, present := scores[sym]
		if present {
			delete(e.state.MissingSince, sym)
			if score <= params.Exit {
				if e.state.BelowSince[sym] == 0 {
					e.state.BelowSince[sym] = nowMs
				}
			} else {
				delete(e.state.BelowSince, sym)
			}
		} else {
			if e.state.MissingSince[sym] == 0 {
				e.state.MissingSince[sym] = nowMs
			}
		}
	}
}
