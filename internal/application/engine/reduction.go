package engine

import (
	"context"
	"fmt"
	mrand "math/rand"
	"sort"

	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"
)

// gracefulReduction implements spec.md §4.5.7: throttled to one step per
// SafeReduceStep, escalating to a full flatten once the signal has been
// stale for SafeStaleEscalate.
func (e *Engine) gracefulReduction(ctx context.Context, ageS float64, nowMs int64, result *TickResult) {
	if e.state.SafeSignal == nil {
		e.state.SafeSignal = &domain.SafeSignalState{}
	}
	stepMs := e.cfg.SafeReduceStep.Milliseconds()
	if e.state.SafeSignal.LastReduceMs != 0 && nowMs-e.state.SafeSignal.LastReduceMs < stepMs {
		return
	}

	positions, err := e.broker.ListPositions(ctx)
	if err != nil || len(positions) == 0 {
		return
	}
	scores, _ := e.scores.Snapshot()
	ageInt := int64(ageS)

	if ageS >= e.cfg.SafeStaleEscalate.Seconds() {
		reason := fmt.Sprintf("signal_stale_%ds", ageInt)
		for _, p := range positions {
			e.closePosition(ctx, p, reason, scores[p.Symbol], result)
		}
		e.state.SafeSignal.LastReduceMs = nowMs
		e.state.SafeSignal.EscalatedMs = nowMs
		return
	}

	reason := fmt.Sprintf("signal_stale_reduce_%ds", ageInt)
	for _, p := range e.pickLowestScored(positions, scores, e.cfg.SafeReducePerStep) {
		e.closePosition(ctx, p, reason, scores[p.Symbol], result)
	}
	e.state.SafeSignal.LastReduceMs = nowMs
}

// pickLowestScored picks up to n positions with the lowest current
// score. When none of the held symbols have a known score, it falls
// back to a random pick (spec.md §4.5.7).
func (e *Engine) pickLowestScored(positions []domain.Position, scores map[string]int, n int) []domain.Position {
	type scoredPos struct {
		p     domain.Position
		score int
		known bool
	}

	items := make([]scoredPos, len(positions))
	anyKnown := false
	for i, p := range positions {
		s, ok := scores[p.Symbol]
		items[i] = scoredPos{p, s, ok}
		anyKnown = anyKnown || ok
	}

	if !anyKnown {
		perm := e.randPerm(len(positions))
		out := make([]domain.Position, 0, n)
		for i := 0; i < n && i < len(perm); i++ {
			out = append(out, positions[perm[i]])
		}
		return out
	}

	sort.Slice(items, func(i, j int) bool {
		si, sj := items[i].score, items[j].score
		if !items[i].known {
			si = 1 << 30
		}
		if !items[j].known {
			sj = 1 << 30
		}
		return si < sj
	})

	out := make([]domain.Position, 0, n)
	for i := 0; i < n && i < len(items); i++ {
		out = append(out, items[i].p)
	}
	return out
}

func (e *Engine) randPerm(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := e.randIntn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

func defaultRandIntn(n int) int {
	if n <= 0 {
		return 0
	}
	return mrand.Intn(n)
}
