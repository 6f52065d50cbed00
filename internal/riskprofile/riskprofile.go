// Package riskprofile holds the immutable risk profile table (spec.md
// §4.1): pure data, no behavior.
package riskprofile

// Name identifies one of the three tuned profiles.
type Name string

const (
	Conservative Name = "conservative"
	Balanced     Name = "balanced"
	Aggressive   Name = "aggressive"
)

// Params is one profile's full tuned parameter set.
type Params struct {
	Name Name

	Entry int
	Exit  int

	EntryConfirmS int
	ExitConfirmS  int

	MaxPositions    int
	MaxExposure     float64
	MaxWeightPerPos float64

	RotationMargin int
	MinHoldS       int

	StopLossPct   float64
	TakeProfitPct float64

	DailyMaxDrawdownPct float64
}

// Table is the immutable profile-name -> params mapping (spec.md §4.1).
var Table = map[Name]Params{
	Conservative: {
		Name:                Conservative,
		Entry:               78,
		Exit:                58,
		EntryConfirmS:       60,
		ExitConfirmS:        20,
		MaxPositions:        3,
		MaxExposure:         0.75,
		MaxWeightPerPos:     0.35,
		RotationMargin:      14,
		MinHoldS:            900,
		StopLossPct:         0.022,
		TakeProfitPct:       0.05,
		DailyMaxDrawdownPct: 0.03,
	},
	Balanced: {
		Name:                Balanced,
		Entry:               74,
		Exit:                56,
		EntryConfirmS:       45,
		ExitConfirmS:        15,
		MaxPositions:        5,
		MaxExposure:         0.85,
		MaxWeightPerPos:     0.25,
		RotationMargin:      12,
		MinHoldS:            600,
		StopLossPct:         0.03,
		TakeProfitPct:       0.065,
		DailyMaxDrawdownPct: 0.05,
	},
	Aggressive: {
		Name:                Aggressive,
		Entry:               70,
		Exit:                54,
		EntryConfirmS:       30,
		ExitConfirmS:        10,
		MaxPositions:        7,
		MaxExposure:         0.95,
		MaxWeightPerPos:     0.20,
		RotationMargin:      10,
		MinHoldS:            420,
		StopLossPct:         0.04,
		TakeProfitPct:       0.085,
		DailyMaxDrawdownPct: 0.08,
	},
}

// For returns the params for name, falling back to Balanced for any
// unknown profile (spec.md §4.1).
func For(name string) Params {
	if p, ok := Table[Name(name)]; ok {
		return p
	}
	return Table[Balanced]
}
