package ports

import "github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"

// StateStore is the persistent runtime-state contract (spec.md §4.4): an
// atomically-replaced on-disk document with a small rotation of backups.
type StateStore interface {
	// Load returns the persisted document, or a fresh empty one if the
	// file is missing or malformed — it never returns an error the
	// caller must special-case.
	Load() *domain.RuntimeState

	// Save atomically replaces the document on disk, rotating previous
	// generations into .bak1/.bak2/.bak3.
	Save(state *domain.RuntimeState) error
}

// TradeLog is the append-only execution record (spec.md §2.5/§6).
type TradeLog interface {
	LogTrade(entry domain.TradeLogEntry) error
}
