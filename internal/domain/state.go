package domain

// RuntimeState is the persisted document described in spec.md §3/§4.4. It
// is intentionally a flat mapping-of-mappings so future fields can be
// added without breaking old readers — see state.Store.Load.
type RuntimeState struct {
	V int `json:"v"`

	AboveSince  map[string]int64 `json:"above_since"`
	BelowSince  map[string]int64 `json:"below_since"`
	MissingSince map[string]int64 `json:"missing_since"`

	Cooldowns  map[string]int64 `json:"cooldowns"`
	OpenedAtMs map[string]int64 `json:"opened_at_ms"`

	Day DailyBaseline `json:"day"`

	SafeSignal *SafeSignalState `json:"safe_signal,omitempty"`

	Health Health `json:"health"`
}

// NewRuntimeState returns an empty document with initialized sub-maps,
// the same shape state.Store.Load falls back to on a missing or
// corrupt file (spec.md §4.4).
func NewRuntimeState() *RuntimeState {
	return &RuntimeState{
		V:            1,
		AboveSince:   map[string]int64{},
		BelowSince:   map[string]int64{},
		MissingSince: map[string]int64{},
		Cooldowns:    map[string]int64{},
		OpenedAtMs:   map[string]int64{},
	}
}
