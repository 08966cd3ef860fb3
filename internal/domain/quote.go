package domain

import "time"

// SpreadBucket classifies a quoted spread by its absolute width.
type SpreadBucket string

const (
	SpreadTight  SpreadBucket = "TIGHT"
	SpreadNormal SpreadBucket = "NORMAL"
	SpreadWide   SpreadBucket = "WIDE"
)

const (
	tightSpreadMax  = 0.05
	normalSpreadMax = 0.15
)

// BucketForSpread maps a spread width in dollars to its bucket.
func BucketForSpread(width float64) SpreadBucket {
	switch {
	case width < tightSpreadMax:
		return SpreadTight
	case width < normalSpreadMax:
		return SpreadNormal
	default:
		return SpreadWide
	}
}

// Quote is a top-of-book snapshot for a single option symbol.
// Sizes are displayed contracts at the touch.
type Quote struct {
	Bid       float64
	Ask       float64
	BidSize   int
	AskSize   int
	Timestamp time.Time
}

// Mid returns the arrival midpoint.
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// Spread returns the quoted width in dollars.
func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// Bucket classifies this quote's spread.
func (q Quote) Bucket() SpreadBucket {
	return BucketForSpread(q.Spread())
}

// IsViable reports whether the quote can be traded against. Zero bids,
// zero asks and crossed books are all unusable.
func (q Quote) IsViable() bool {
	return q.Bid > 0 && q.Ask > 0 && q.Ask >= q.Bid
}

// TouchSize returns the displayed size an order on the given side consumes:
// buys lift the ask, sells hit the bid.
func (q Quote) TouchSize(side Side) int {
	if side == Buy {
		return q.AskSize
	}
	return q.BidSize
}

// FarTouch returns the aggressive reference price for the given side.
func (q Quote) FarTouch(side Side) float64 {
	if side == Buy {
		return q.Ask
	}
	return q.Bid
}
