package domain

import "sync"

// ScoreMap is the always-available symbol -> score map the Signal Feed
// maintains (spec.md §2, §3). Go gives this process true parallelism, so
// unlike the cooperative-concurrency source this is guarded by a
// read-mostly lock (spec.md §9's fallback clause) rather than relying on
// single-threaded interleaving.
type ScoreMap struct {
	mu           sync.RWMutex
	scores       map[string]int
	epoch        int64
	lastUpdateMs int64
	pushOK       bool
}

// NewScoreMap returns an empty map with no last-update timestamp — the
// engine treats a zero LastUpdateMs as "no signal received yet" (spec.md
// §4.5.2 waiting_signals gate).
func NewScoreMap() *ScoreMap {
	return &ScoreMap{scores: make(map[string]int)}
}

// Upsert merges entries into the map without deleting any existing key —
// the feed never deletes keys; staleness is detected via LastUpdateMs
// (spec.md §4.2).
func (m *ScoreMap) Upsert(entries map[string]int, epoch, tsMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sym, sc := range entries {
		m.scores[sym] = sc
	}
	if epoch != 0 {
		m.epoch = epoch
	}
	if tsMs != 0 {
		m.lastUpdateMs = tsMs
	}
}

// Snapshot returns a copy of the current map plus its freshness fields.
// DE reads a consistent snapshot each tick rather than reading through
// the shared map field-by-field.
func (m *ScoreMap) Snapshot() (scores map[string]int, lastUpdateMs int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.scores))
	for k, v := range m.scores {
		out[k] = v
	}
	return out, m.lastUpdateMs
}

// SetPushOK records the push-subscription health bit.
func (m *ScoreMap) SetPushOK(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushOK = ok
}

// PushOK reports whether the push subscription is currently healthy.
func (m *ScoreMap) PushOK() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pushOK
}
