// Package broker holds the broker-error taxonomy shared by all adapters
// (spec.md §7).
package broker

import "errors"

var (
	// ErrBrokerUnavailable wraps a transport-level failure talking to the
	// broker (account/positions calls). The tick ends after setting
	// telemetry; trackers are left unchanged.
	ErrBrokerUnavailable = errors.New("broker_unavailable")

	// ErrEntryFailed means the entry leg of a bracket order could not be
	// placed. No state change follows; the symbol remains eligible next
	// tick unless a cooldown was already set.
	ErrEntryFailed = errors.New("entry_failed")

	// ErrNoPosition means a close was requested for a symbol with no
	// broker-side position. This is an idempotence signal, not a
	// failure (spec.md P10).
	ErrNoPosition = errors.New("no_position")
)
