// Package engine owns the two core state machines: the lazy market
// simulator that evolves the shared price record, and the trade engine
// that executes market orders against an agent's ledger.
package engine

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agentmarket/agentmarket/internal/domain"
	"github.com/agentmarket/agentmarket/internal/store"
)

// priceFloor is the minimum any asset price can reach.
var priceFloor = decimal.RequireFromString("10.00")

// Seed values for a freshly created market.
var (
	seedNews   = "Market opens. Trading is quiet."
	seedPrices = domain.Prices{
		Compute: decimal.NewFromInt(100),
		Energy:  decimal.NewFromInt(50),
		Data:    decimal.NewFromInt(20),
	}
)

// Impact is the per-asset multiplicative price adjustment of a news
// event.
type Impact struct {
	Compute decimal.Decimal
	Energy  decimal.Decimal
	Data    decimal.Decimal
}

func (i Impact) factor(a domain.Asset) decimal.Decimal {
	switch a {
	case domain.AssetCompute:
		return i.Compute
	case domain.AssetEnergy:
		return i.Energy
	default:
		return i.Data
	}
}

// NewsEvent pairs a human-readable headline with its impact vector.
type NewsEvent struct {
	News   string
	Impact Impact
}

func impact(compute, energy, data string) Impact {
	return Impact{
		Compute: decimal.RequireFromString(compute),
		Energy:  decimal.RequireFromString(energy),
		Data:    decimal.RequireFromString(data),
	}
}

// newsEvents is the fixed table one event is drawn from, uniformly at
// random, per completed tick.
var newsEvents = []NewsEvent{
	{News: "AI Boom! Demand for Compute skyrockets.", Impact: impact("1.2", "1.1", "1.0")},
	{News: "Energy crisis strikes server farms.", Impact: impact("0.8", "1.5", "1.0")},
	{News: "Data privacy laws restrict scraping.", Impact: impact("1.0", "1.0", "1.5")},
	{News: "Tech rally! Optimism is high.", Impact: impact("1.1", "1.05", "1.1")},
	{News: "Power outage in data center region.", Impact: impact("0.9", "1.4", "1.0")},
	{News: "New regulation hits data brokers.", Impact: impact("1.0", "1.0", "0.7")},
	{News: "Quiet trading day.", Impact: impact("1.0", "1.0", "1.0")},
	{News: "Market stabilizes.", Impact: impact("1.0", "1.0", "1.0")},
}

// Simulator advances the shared market state on demand. There is no
// background driver: ticking happens only when a request calls
// EnsureCurrent, and at most one round advances per call no matter how
// many intervals have elapsed.
type Simulator struct {
	store    *store.Store
	interval time.Duration

	// Injectable for tests: wall clock and uniform event selection.
	now  func() time.Time
	pick func(n int) int
}

// NewSimulator creates a simulator that ticks once the elapsed time
// since the last update exceeds interval.
func NewSimulator(st *store.Store, interval time.Duration) *Simulator {
	return &Simulator{
		store:    st,
		interval: interval,
		now:      time.Now,
		pick:     rand.IntN,
	}
}

// EnsureCurrent returns the market state, seeding it on first access
// and advancing it by one round if the tick interval has elapsed.
// Within the interval it is an idempotent read.
func (s *Simulator) EnsureCurrent() (*domain.MarketState, error) {
	m, err := s.store.GetMarket()
	if errors.Is(err, domain.ErrMarketNotFound) {
		m, err = s.seed()
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if now.Sub(m.LastUpdated) <= s.interval {
		return m, nil
	}

	event := newsEvents[s.pick(len(newsEvents))]
	next := &domain.MarketState{
		Tick:        m.Tick + 1,
		News:        event.News,
		Prices:      applyImpact(m.Prices, event.Impact),
		LastUpdated: now,
	}

	// Last-writer-wins by design: two requests racing past a stale
	// LastUpdated may both write, yielding two consecutive ticks.
	if err := s.store.PutMarket(next); err != nil {
		return nil, err
	}
	return next, nil
}

// seed creates the initial market record. If a concurrent request won
// the creation race, the committed record is re-read instead.
func (s *Simulator) seed() (*domain.MarketState, error) {
	m := &domain.MarketState{
		Tick:        0,
		News:        seedNews,
		Prices:      seedPrices,
		LastUpdated: s.now(),
	}
	err := s.store.CreateMarket(m)
	if errors.Is(err, domain.ErrMarketAlreadyExists) {
		return s.store.GetMarket()
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// applyImpact scales every price by its impact factor, rounded to two
// decimal places and clamped to the floor.
func applyImpact(p domain.Prices, imp Impact) domain.Prices {
	var out domain.Prices
	for _, a := range domain.AllAssets() {
		next := p.Price(a).Mul(imp.factor(a)).Round(2)
		if next.LessThan(priceFloor) {
			next = priceFloor
		}
		out.SetPrice(a, next)
	}
	return out
}
