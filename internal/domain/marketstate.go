package domain

import "time"

// VolRegime is a coarse classification of implied volatility conditions,
// supplied by the market data collaborator.
type VolRegime string

const (
	VolLow      VolRegime = "LOW"
	VolNormal   VolRegime = "NORMAL"
	VolElevated VolRegime = "ELEVATED"
	VolExtreme  VolRegime = "EXTREME"
)

// Known event flags. Profiles may carry overrides for any event name; these
// are the ones the synthetic calendar emits.
const (
	EventFOMC = "FOMC"
	EventCPI  = "CPI"
	EventOPEX = "OPEX"
)

// MarketState is the broad-market snapshot used for gating and fill
// adjustments. It is an input to the cycle, never modified by it.
type MarketState struct {
	Timestamp       time.Time
	UnderlyingPrice float64
	VolIndex        float64 // annualized implied vol, points (VIX-like)
	VolRegime       VolRegime
	FrontDTE        int     // days to the front monthly expiration
	StressLevel     float64 // 0..1 composite stress indicator
	ActiveEvents    []string
}

// HasEvent reports whether the named event flag is active.
func (m MarketState) HasEvent(name string) bool {
	for _, e := range m.ActiveEvents {
		if e == name {
			return true
		}
	}
	return false
}
