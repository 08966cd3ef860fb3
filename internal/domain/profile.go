package domain

import "time"

// ProfileName identifies one of the named execution assumption sets.
type ProfileName string

const (
	ProfileConservative ProfileName = "conservative"
	ProfileBase         ProfileName = "base"
	ProfileOptimistic   ProfileName = "optimistic"
)

// EventOverride adjusts fill behavior while a named market event is active.
// Factors multiply the profile's normal values; 1.0 is a no-op.
type EventOverride struct {
	MidFillFactor float64 // scales the mid-fill probability down
	SpreadFactor  float64 // scales the slippage floor up
	LatencyFactor float64 // scales the assumed latency up
}

// ExecutionProfile bundles the assumptions the fill simulator applies to
// every order: latency, slippage floors, size penalties, adverse selection
// and price-improvement odds. Profiles are data, not behavior; the same
// engine runs under any of them.
type ExecutionProfile struct {
	Name                ProfileName
	Latency             time.Duration
	MaxParticipation    float64 // fraction of touch size filled without penalty
	SlippagePerContract float64 // fixed floor, $ per contract
	SlippageSpreadPct   float64 // floor as a fraction of the quoted spread
	SizePenaltyBps      float64 // bps of mid per unit of participation excess
	AdverseSelectionBps float64 // bps of mid charged against the order
	MidFillProbs        map[SpreadBucket]float64
	EventOverrides      map[string]EventOverride
}

// MidFillProb returns the chance of price improvement to the midpoint for
// the given spread bucket. Unknown buckets get zero.
func (p ExecutionProfile) MidFillProb(bucket SpreadBucket) float64 {
	return p.MidFillProbs[bucket]
}

// OverrideFor returns the event override for the named event, if any.
func (p ExecutionProfile) OverrideFor(event string) (EventOverride, bool) {
	o, ok := p.EventOverrides[event]
	return o, ok
}

// SlippageFloor returns the per-contract floor for a given spread width,
// before event adjustments.
func (p ExecutionProfile) SlippageFloor(spread float64) float64 {
	pct := p.SlippageSpreadPct * spread
	if pct > p.SlippagePerContract {
		return pct
	}
	return p.SlippagePerContract
}

// Conservative is the default research profile: no price improvement ever,
// the highest cost floors, the slowest assumed latency. Results under it are
// meant to survive contact with real execution.
func Conservative() ExecutionProfile {
	return ExecutionProfile{
		Name:                ProfileConservative,
		Latency:             250 * time.Millisecond,
		MaxParticipation:    0.25,
		SlippagePerContract: 0.005,
		SlippageSpreadPct:   0.10,
		SizePenaltyBps:      15,
		AdverseSelectionBps: 5,
		MidFillProbs: map[SpreadBucket]float64{
			SpreadTight:  0,
			SpreadNormal: 0,
			SpreadWide:   0,
		},
		EventOverrides: map[string]EventOverride{
			EventFOMC: {MidFillFactor: 0.5, SpreadFactor: 1.5, LatencyFactor: 2.0},
			EventCPI:  {MidFillFactor: 0.5, SpreadFactor: 1.3, LatencyFactor: 1.5},
			EventOPEX: {MidFillFactor: 0.8, SpreadFactor: 1.2, LatencyFactor: 1.2},
		},
	}
}

// Base models realistic mid-range execution.
func Base() ExecutionProfile {
	return ExecutionProfile{
		Name:                ProfileBase,
		Latency:             120 * time.Millisecond,
		MaxParticipation:    0.50,
		SlippagePerContract: 0.002,
		SlippageSpreadPct:   0.05,
		SizePenaltyBps:      10,
		AdverseSelectionBps: 2,
		MidFillProbs: map[SpreadBucket]float64{
			SpreadTight:  0.65,
			SpreadNormal: 0.55,
			SpreadWide:   0.40,
		},
		EventOverrides: map[string]EventOverride{
			EventFOMC: {MidFillFactor: 0.6, SpreadFactor: 1.3, LatencyFactor: 1.5},
			EventCPI:  {MidFillFactor: 0.7, SpreadFactor: 1.2, LatencyFactor: 1.3},
			EventOPEX: {MidFillFactor: 0.9, SpreadFactor: 1.1, LatencyFactor: 1.1},
		},
	}
}

// Optimistic assumes near-ideal fills. Useful only as a sensitivity bound;
// never the default for anything.
func Optimistic() ExecutionProfile {
	return ExecutionProfile{
		Name:                ProfileOptimistic,
		Latency:             50 * time.Millisecond,
		MaxParticipation:    1.0,
		SlippagePerContract: 0.001,
		SlippageSpreadPct:   0.02,
		SizePenaltyBps:      5,
		AdverseSelectionBps: 1,
		MidFillProbs: map[SpreadBucket]float64{
			SpreadTight:  0.85,
			SpreadNormal: 0.75,
			SpreadWide:   0.60,
		},
		EventOverrides: map[string]EventOverride{
			EventFOMC: {MidFillFactor: 0.8, SpreadFactor: 1.15, LatencyFactor: 1.2},
			EventCPI:  {MidFillFactor: 0.85, SpreadFactor: 1.1, LatencyFactor: 1.15},
			EventOPEX: {MidFillFactor: 0.95, SpreadFactor: 1.05, LatencyFactor: 1.05},
		},
	}
}

// ProfileSet is a registry of execution profiles keyed by name.
type ProfileSet map[ProfileName]ExecutionProfile

// DefaultProfiles returns the three canonical profiles.
func DefaultProfiles() ProfileSet {
	return ProfileSet{
		ProfileConservative: Conservative(),
		ProfileBase:         Base(),
		ProfileOptimistic:   Optimistic(),
	}
}

// Get looks up a profile by name.
func (s ProfileSet) Get(name ProfileName) (ExecutionProfile, bool) {
	p, ok := s[name]
	return p, ok
}

// MidFillProbability answers the price-improvement odds for the named
// profile at the given spread width. Unknown profile names get zero.
func (s ProfileSet) MidFillProbability(name ProfileName, spread float64) float64 {
	p, ok := s[name]
	if !ok {
		return 0
	}
	return p.MidFillProb(BucketForSpread(spread))
}
