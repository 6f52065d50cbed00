package engine

import (
	"context"
	"sort"

	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"
	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/riskprofile"
)

// runEntryAndRotation implements spec.md §4.5.8: fill free slots first,
// otherwise consider exactly one rotation against the worst held
// position.
func (e *Engine) runEntryAndRotation(ctx context.Context, positions map[string]domain.Position, scores map[string]int, params riskprofile.Params, nowMs int64, result *TickResult) {
	candidates := e.buildCandidates(scores, positions, params, nowMs)
	if len(candidates) == 0 {
		return
	}

	if len(positions) < params.MaxPositions {
		slots := params.MaxPositions - len(positions)
		for i := 0; i < slots && i < len(candidates); i++ {
			sym := candidates[i]
			e.tryOpen(ctx, sym, scores[sym], params, nowMs, result)
		}
		return
	}

	e.tryRotate(ctx, candidates[0], positions, scores, params, nowMs, result)
}

// buildCandidates returns symbols whose above_since has been confirmed
// for at least entry_confirm_s, that are currently scored and not
// already held, sorted by score descending (spec.md §4.5.8).
func (e *Engine) buildCandidates(scores map[string]int, positions map[string]domain.Position, params riskprofile.Params, nowMs int64) []string {
	type cand struct {
		sym   string
		score int
	}

	var list []cand
	for sym, since := range e.state.AboveSince {
		if nowMs-since < int64(params.EntryConfirmS)*1000 {
			continue
		}
		score, ok := scores[sym]
		if !ok {
			continue
		}
		if _, held := positions[sym]; held {
			continue
		}
		list = append(list, cand{sym, score})
	}

	sort.Slice(list, func(i, j int) bool { return list[i].score > list[j].score })

	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.sym
	}
	return out
}

// tryRotate evaluates the single rotation opportunity the gate ladder
// allows once at max_positions (spec.md §4.5.8).
func (e *Engine) tryRotate(ctx context.Context, candidateSym string, positions map[string]domain.Position, scores map[string]int, params riskprofile.Params, nowMs int64, result *TickResult) {
	worstSym, worstScore := e.worstPosition(positions, scores)
	if worstSym == "" {
		return
	}

	candidateScore := scores[candidateSym]
	if candidateScore < worstScore+params.RotationMargin {
		return
	}

	// A missing opened_at_ms (state reset, or a position the engine did
	// not itself open) counts as held indefinitely, not zero — it must
	// not permanently veto rotation for that symbol (spec.md §4.5.8).
	heldMs := nowMs
	if openedAt := e.state.OpenedAtMs[worstSym]; openedAt != 0 {
		heldMs = nowMs - openedAt
	}
	if heldMs < int64(params.MinHoldS)*1000 {
		return
	}

	worstPos := positions[worstSym]
	price, ok := e.broker.LatestPrice(ctx, worstSym)
	if !ok || price <= 0 {
		price = worstPos.AvgEntryPrice
	}
	outNotional := worstPos.Qty * price
	delta := float64(candidateScore - worstScore)
	benefit := outNotional * delta * e.cfg.ScorePointValueBps / 10000
	cost := outNotional*e.cfg.SlippageBps/10000*2 + 2*e.cfg.CommissionPerTrade
	if benefit < cost*e.cfg.SwitchCostMultiplier {
		return
	}

	e.closePosition(ctx, worstPos, "rotate", worstScore, result)
	e.tryOpen(ctx, candidateSym, candidateScore, params, nowMs, result)
}

// worstPosition returns the held symbol with the lowest current score, a
// missing score treated as 50 (spec.md §4.5.8).
func (e *Engine) worstPosition(positions map[string]domain.Position, scores map[string]int) (string, int) {
	var sym string
	var minScore int
	first := true
	for s := range positions {
		score, ok := scores[s]
		if !ok {
			score = 50
		}
		if first || score < minScore {
			sym, minScore, first = s, score, false
		}
	}
	return sym, minScore
}
