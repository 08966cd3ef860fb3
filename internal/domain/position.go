package domain

import (
	"math"
	"time"
)

// PositionRole partitions the portfolio. Every position has exactly one.
type PositionRole string

const (
	RoleProbe PositionRole = "PROBE"
	RoleCore  PositionRole = "CORE"
	RoleHedge PositionRole = "HEDGE"
)

// Greeks are dollar-denominated aggregate sensitivities for a position or
// portfolio: Delta is $ P&L per $1 underlying move, Gamma the delta change
// per $1, Theta $ per day, Vega $ per vol point.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
}

// Add returns the element-wise sum.
func (g Greeks) Add(o Greeks) Greeks {
	return Greeks{
		Delta: g.Delta + o.Delta,
		Gamma: g.Gamma + o.Gamma,
		Theta: g.Theta + o.Theta,
		Vega:  g.Vega + o.Vega,
	}
}

// Sub returns the element-wise difference.
func (g Greeks) Sub(o Greeks) Greeks {
	return Greeks{
		Delta: g.Delta - o.Delta,
		Gamma: g.Gamma - o.Gamma,
		Theta: g.Theta - o.Theta,
		Vega:  g.Vega - o.Vega,
	}
}

// Scale returns the greeks multiplied by f.
func (g Greeks) Scale(f float64) Greeks {
	return Greeks{Delta: g.Delta * f, Gamma: g.Gamma * f, Theta: g.Theta * f, Vega: g.Vega * f}
}

// ExitRule holds the per-position exit thresholds evaluated every cycle.
type ExitRule struct {
	ProfitTarget     float64 // fraction of max profit captured, e.g. 0.5
	StopLossMultiple float64 // loss as a multiple of credit (or of risk, for debits)
	ForcedExitDTE    int     // close unconditionally at or below this DTE
}

// Position is an open multi-leg options structure. The portfolio book owns
// the canonical copy; everything else references positions by ID.
//
// Sign conventions: EntryPrice is the net per-structure price using
// credit-positive convention (premium received minus premium paid). Credit
// is the same quantity in total dollars. Risk is the max loss in dollars.
type Position struct {
	ID          string
	Symbol      string // human-readable structure name
	Role        PositionRole
	Side        Side // Sell for credit structures, Buy for debits
	Quantity    int  // structures, not legs
	Legs        []OrderLeg
	EntryDate   time.Time
	Expiration  time.Time
	EntryPrice  float64 // net $ per structure, credit positive
	Credit      float64 // net premium, $ total; negative = debit paid
	Risk        float64 // max loss, $ total
	MaxLossBase float64 // structural max loss before premium offset, $ total
	MaxPayoff   float64 // hedge max payoff, $ total; zero for probe/core
	Greeks      Greeks  // position totals
	Exit        ExitRule
}

// DTE returns whole days to expiration as of the given time, floored at 0.
func (p Position) DTE(asOf time.Time) int {
	d := int(math.Ceil(p.Expiration.Sub(asOf).Hours() / 24))
	if d < 0 {
		return 0
	}
	return d
}

// CapitalAtRisk is the capital this position consumes against the ceiling:
// max loss for probe/core, premium paid for hedges. Both cases equal Risk.
func (p Position) CapitalAtRisk() float64 {
	return p.Risk
}

// MarkNet returns the current net per-structure price of the position using
// entry-side sign convention, so it compares directly against EntryPrice.
// Legs missing from the mark set contribute zero.
func (p Position) MarkNet(marks MarkSet) float64 {
	if p.Quantity == 0 {
		return 0
	}
	var net float64
	for _, l := range p.Legs {
		mid, ok := marks[l.Symbol]
		if !ok {
			continue
		}
		if l.Side == Sell {
			net += mid * float64(l.Quantity)
		} else {
			net -= mid * float64(l.Quantity)
		}
	}
	return net / float64(p.Quantity)
}

// UnrealizedPnL marks the position against current leg midpoints.
// For a credit structure the position profits as the mark decays toward
// zero; for a debit the sign convention makes the same formula hold.
func (p Position) UnrealizedPnL(marks MarkSet) float64 {
	return (p.EntryPrice - p.MarkNet(marks)) * float64(p.Quantity) * ContractMultiplier
}

// MarkSet maps leg symbols to current midpoints.
type MarkSet map[string]float64

// ClosedTrade is one entry in the book's closed-position history.
type ClosedTrade struct {
	PositionID  string
	Symbol      string
	Role        PositionRole
	Opened      time.Time
	Closed      time.Time
	RealizedPnL float64
	Reason      ExitReason
}

// Win reports whether the trade closed profitable.
func (t ClosedTrade) Win() bool {
	return t.RealizedPnL > 0
}

// PortfolioState is a consistent snapshot of the book, derived by summation
// at snapshot time. It is a value; mutating it never touches the book.
type PortfolioState struct {
	AsOf           time.Time
	Probes         []Position
	Cores          []Position
	Hedges         []Position
	ProbeCount     int
	CoreCount      int
	HedgeCount     int
	TotalExposure  float64 // probe + core capital at risk
	HedgeCost      float64 // premium tied up in hedges
	CapitalInUse   float64 // TotalExposure + HedgeCost
	HedgeMaxPayoff float64
	Greeks         Greeks
	UnrealizedPnL  float64
	RealizedPnL    float64
}
