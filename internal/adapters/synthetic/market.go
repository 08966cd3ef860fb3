package synthetic

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/quantfork/optsim/internal/domain"
)

const (
	dtDay         = 1.0 / yearDays
	volOfVol      = 0.9
	volMeanRevert = 0.08
	minVol        = 0.08
	maxVol        = 0.80
	minTheo       = 0.02
	skewSlope     = 0.8
	maxReturns    = 64
)

// MarketConfig sets the synthetic market's starting point and dynamics.
type MarketConfig struct {
	StartDate time.Time
	Spot      float64 // initial underlying level
	Vol       float64 // baseline annualized vol, e.g. 0.16
	Drift     float64 // annualized drift of the underlying
	Seed      int64
}

// Market generates an underlying path by daily geometric Brownian steps and
// prices option quotes off it with Black-Scholes plus a put skew.
//
// Quotes are a pure function of (symbol, current date, seed): the jitter rng
// is re-derived from a hash every call, so fetching quotes concurrently or
// repeatedly never perturbs the path.
type Market struct {
	cfg MarketConfig

	mu      sync.Mutex
	date    time.Time
	spot    float64
	vol     float64
	returns []float64 // trailing daily simple returns, oldest first
	rng     *rand.Rand
}

// NewMarket creates a synthetic market. Zero config fields get defaults:
// spot 5000, vol 16%, drift 5%, start 2026-01-02.
func NewMarket(cfg MarketConfig) *Market {
	if cfg.Spot <= 0 {
		cfg.Spot = 5000
	}
	if cfg.Vol <= 0 {
		cfg.Vol = 0.16
	}
	if cfg.Drift == 0 {
		cfg.Drift = 0.05
	}
	if cfg.StartDate.IsZero() {
		cfg.StartDate = time.Date(2026, time.January, 2, 21, 0, 0, 0, time.UTC)
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	return &Market{
		cfg:  cfg,
		date: cfg.StartDate,
		spot: cfg.Spot,
		vol:  cfg.Vol,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Advance steps the underlying forward to the given date, one trading day
// at a time. Weekends pass without a price step. Rewinding is an error.
func (m *Market) Advance(_ context.Context, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if date.Before(m.date) {
		return fmt.Errorf("synthetic.Advance: cannot rewind from %s to %s",
			m.date.Format("2006-01-02"), date.Format("2006-01-02"))
	}
	for m.date.Before(date) {
		m.date = m.date.AddDate(0, 0, 1)
		if wd := m.date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		m.stepLocked()
	}
	return nil
}

func (m *Market) stepLocked() {
	z := m.rng.NormFloat64()
	prev := m.spot
	m.spot *= math.Exp((m.cfg.Drift-0.5*m.vol*m.vol)*dtDay + m.vol*math.Sqrt(dtDay)*z)

	zv := m.rng.NormFloat64()
	m.vol *= math.Exp(volOfVol*math.Sqrt(dtDay)*zv - 0.5*volOfVol*volOfVol*dtDay)
	m.vol += volMeanRevert * (m.cfg.Vol - m.vol)
	m.vol = math.Min(maxVol, math.Max(minVol, m.vol))

	m.returns = append(m.returns, m.spot/prev-1)
	if len(m.returns) > maxReturns {
		m.returns = m.returns[1:]
	}
}

// GetMarketState derives the broad regime from the current path point.
func (m *Market) GetMarketState(_ context.Context) (domain.MarketState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	volIndex := m.vol * 100
	base := m.cfg.Vol * 100
	stress := (volIndex - base) / base
	if stress < 0 {
		stress = 0
	} else if stress > 1 {
		stress = 1
	}

	return domain.MarketState{
		Timestamp:       m.date,
		UnderlyingPrice: m.spot,
		VolIndex:        volIndex,
		VolRegime:       regimeFor(volIndex),
		FrontDTE:        daysUntil(m.date, nextMonthlyExpiry(m.date)),
		StressLevel:     stress,
		ActiveEvents:    eventsOn(m.date),
	}, nil
}

// GetQuote prices one option symbol at the current date. The symbol grammar
// is ROOT|YYYYMMDD|C or P|STRIKE, e.g. "SPX|20260918|P|4800".
func (m *Market) GetQuote(_ context.Context, symbol string) (domain.Quote, error) {
	_, expiry, right, strike, err := parseSymbol(symbol)
	if err != nil {
		return domain.Quote{}, err
	}

	m.mu.Lock()
	date, spot, vol, baseVol := m.date, m.spot, m.vol, m.cfg.Vol
	m.mu.Unlock()

	years := expiry.Sub(date).Hours() / 24 / 365
	theo := bsPrice(right, spot, strike, smiledVol(vol, spot, strike), years)
	if theo < minTheo {
		theo = minTheo
	}

	hr := quoteRand(symbol, date, m.cfg.Seed)
	mid := theo * (1 + 0.01*(hr.Float64()-0.5))

	stress := math.Min(1, math.Max(0, vol/baseVol-1))
	spread := mid * (0.015 + 0.025*stress + 0.01*hr.Float64())
	if spread < 0.02 {
		spread = 0.02
	}
	bid := mid - spread/2
	if bid < 0.01 {
		bid = 0.01
	}

	depth := 1 - 0.5*stress
	return domain.Quote{
		Bid:       round2(bid),
		Ask:       round2(bid + spread),
		BidSize:   5 + int(float64(hr.Intn(80))*depth),
		AskSize:   5 + int(float64(hr.Intn(80))*depth),
		Timestamp: date,
	}, nil
}

// Spot returns the current underlying level.
func (m *Market) Spot() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spot
}

// Date returns the market's current simulation date.
func (m *Market) Date() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.date
}

// Vol returns the current annualized volatility of the path.
func (m *Market) Vol() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vol
}

// TrailingReturns returns up to n most recent daily returns, oldest first.
func (m *Market) TrailingReturns(n int) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.returns) {
		n = len(m.returns)
	}
	out := make([]float64, n)
	copy(out, m.returns[len(m.returns)-n:])
	return out
}

// smiledVol applies an equity-style skew: strikes below spot price richer,
// strikes above cheaper.
func smiledVol(vol, spot, strike float64) float64 {
	moneyness := strike/spot - 1
	v := vol * (1 - skewSlope*moneyness)
	if v < 0.05 {
		v = 0.05
	}
	return v
}

// quoteRand derives a one-off generator from (symbol, date, seed), so the
// same quote is returned no matter how many times or in what order it is
// fetched within a cycle.
func quoteRand(symbol string, date time.Time, seed int64) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte{'|'})
	h.Write([]byte(date.Format("20060102")))
	return rand.New(rand.NewSource(int64(h.Sum64()) ^ seed))
}

func parseSymbol(symbol string) (root string, expiry time.Time, right domain.Right, strike float64, err error) {
	parts := strings.Split(symbol, "|")
	if len(parts) != 4 {
		return "", time.Time{}, "", 0, fmt.Errorf("synthetic: symbol %q: want ROOT|YYYYMMDD|C/P|STRIKE", symbol)
	}
	expiry, err = time.Parse("20060102", parts[1])
	if err != nil {
		return "", time.Time{}, "", 0, fmt.Errorf("synthetic: symbol %q: bad expiry: %w", symbol, err)
	}
	expiry = expiry.Add(21 * time.Hour)
	switch parts[2] {
	case "C":
		right = domain.Call
	case "P":
		right = domain.Put
	default:
		return "", time.Time{}, "", 0, fmt.Errorf("synthetic: symbol %q: bad right %q", symbol, parts[2])
	}
	strike, err = strconv.ParseFloat(parts[3], 64)
	if err != nil || strike <= 0 {
		return "", time.Time{}, "", 0, fmt.Errorf("synthetic: symbol %q: bad strike %q", symbol, parts[3])
	}
	return parts[0], expiry, right, strike, nil
}

// optionSymbol renders the symbol grammar for a contract.
func optionSymbol(root string, expiry time.Time, right domain.Right, strike float64) string {
	r := "P"
	if right == domain.Call {
		r = "C"
	}
	return fmt.Sprintf("%s|%s|%s|%g", root, expiry.Format("20060102"), r, strike)
}

func regimeFor(volIndex float64) domain.VolRegime {
	switch {
	case volIndex < 13:
		return domain.VolLow
	case volIndex < 20:
		return domain.VolNormal
	case volIndex < 30:
		return domain.VolElevated
	}
	return domain.VolExtreme
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func daysUntil(from, to time.Time) int {
	d := int(math.Ceil(to.Sub(from).Hours() / 24))
	if d < 0 {
		return 0
	}
	return d
}

// --- calendar ---

// nthWeekday returns the nth given weekday of a month, at 21:00 UTC.
func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 21, 0, 0, 0, time.UTC)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+(n-1)*7)
}

// nextMonthlyExpiry returns the first third-Friday on or after the date.
func nextMonthlyExpiry(date time.Time) time.Time {
	exp := nthWeekday(date.Year(), date.Month(), time.Friday, 3)
	if exp.Before(date) {
		next := date.AddDate(0, 1, 0)
		exp = nthWeekday(next.Year(), next.Month(), time.Friday, 3)
	}
	return exp
}

// targetExpiry picks the monthly expiry of the month date + targetDTE days
// falls in, or the nearer neighbor when that month's expiry has passed.
func targetExpiry(date time.Time, targetDTE int) time.Time {
	want := date.AddDate(0, 0, targetDTE)
	before := nthWeekday(want.Year(), want.Month(), time.Friday, 3)
	if !before.Before(want) {
		return before
	}
	next := want.AddDate(0, 1, 0)
	after := nthWeekday(next.Year(), next.Month(), time.Friday, 3)
	if want.Sub(before) <= after.Sub(want) && before.After(date) {
		return before
	}
	return after
}

// fomcMonths are the eight scheduled meeting months.
var fomcMonths = map[time.Month]bool{
	time.January: true, time.March: true, time.April: true, time.June: true,
	time.July: true, time.September: true, time.October: true, time.December: true,
}

// eventsOn returns the macro event flags active on a date: FOMC on the
// third Wednesday of meeting months, CPI on the 13th shifted off weekends,
// and monthly OPEX on the third Friday.
func eventsOn(date time.Time) []string {
	var events []string
	y, mo, d := date.Date()

	if fomcMonths[mo] && sameDay(date, nthWeekday(y, mo, time.Wednesday, 3)) {
		events = append(events, domain.EventFOMC)
	}

	cpi := time.Date(y, mo, 13, 21, 0, 0, 0, time.UTC)
	for cpi.Weekday() == time.Saturday || cpi.Weekday() == time.Sunday {
		cpi = cpi.AddDate(0, 0, 1)
	}
	if d == cpi.Day() {
		events = append(events, domain.EventCPI)
	}

	if sameDay(date, nthWeekday(y, mo, time.Friday, 3)) {
		events = append(events, domain.EventOPEX)
	}
	return events
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
