package domain

// ContractMultiplier is the share equivalent of one listed option contract.
const ContractMultiplier = 100.0

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the closing side for a position opened on s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Right is the option type of a contract.
type Right string

const (
	Call Right = "CALL"
	Put  Right = "PUT"
)

// Order is a single-leg instruction handed to the fill simulator.
type Order struct {
	Symbol      string
	Right       Right
	Strike      float64
	Side        Side
	Quantity    int
	Notional    float64 // estimated $ value at arrival mid, for reporting
	StrategyTag string  // PROBE | CORE | HEDGE | EXIT
}

// OrderLeg is one leg of a multi-leg entry candidate. Quantities are totals,
// not per-structure ratios.
type OrderLeg struct {
	Symbol   string
	Right    Right
	Strike   float64
	Side     Side
	Quantity int
}

// ToOrder converts a leg into a simulator order.
func (l OrderLeg) ToOrder(tag string) Order {
	return Order{
		Symbol:      l.Symbol,
		Right:       l.Right,
		Strike:      l.Strike,
		Side:        l.Side,
		Quantity:    l.Quantity,
		StrategyTag: tag,
	}
}

// Flip returns the leg with the opposite side, used when closing a position.
func (l OrderLeg) Flip() OrderLeg {
	l.Side = l.Side.Opposite()
	return l
}
