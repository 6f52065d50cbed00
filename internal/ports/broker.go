// Package ports declares the capability contracts the decision engine
// consumes. None of these are classes in an inheritance sense — adapters
// are independent variants implementing the same operations (spec.md §9).
package ports

import (
	"context"

	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"
)

// Broker is the uniform contract described in spec.md §4.3. Concrete
// adapters (Alpaca-style REST, TWS-style gateway) are variants behind
// this contract; the engine never depends on which one it is holding.
type Broker interface {
	// Name identifies the adapter for trade-log attribution (e.g. "alpaca").
	Name() string

	// IsConfigured reports whether credentials/connection are sufficient
	// to trade at all.
	IsConfigured() bool

	// IsMarketOpen is best-effort; returns false on any transport error.
	IsMarketOpen(ctx context.Context) bool

	// GetAccount returns cash/equity. Returns ErrBrokerUnavailable on
	// transport error.
	GetAccount(ctx context.Context) (domain.Account, error)

	// ListPositions returns the broker's positions, each tagged with its
	// Side. Never nil on soft failure — returns an empty slice instead.
	ListPositions(ctx context.Context) ([]domain.Position, error)

	// LatestPrice prefers quote midpoint, then whichever side of the quote
	// is positive, then last trade price, else reports ok=false.
	LatestPrice(ctx context.Context, symbol string) (price float64, ok bool)

	// PlaceEntryWithBracket opens a long market position sized qty shares
	// and arranges broker-side take-profit/stop-loss protective exits.
	// Returns ErrEntryFailed if the entry leg itself could not be placed.
	// A failure to attach protections after a successful entry is not
	// surfaced as an error — spec.md §7 treats it as log-only.
	PlaceEntryWithBracket(ctx context.Context, symbol string, qty int, stopLossPct, takeProfitPct float64, clientOrderID string) error

	// ClosePosition closes qty shares of symbol, or the full position when
	// qty is nil. Idempotent on "no such position" — returns
	// ErrNoPosition, not a generic failure.
	ClosePosition(ctx context.Context, symbol string, qty *float64, clientOrderID string) error
}
