// Package service implements the agent directory: registration,
// API-key resolution, and the read-only portfolio and dashboard views.
package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agentmarket/agentmarket/internal/domain"
	"github.com/agentmarket/agentmarket/internal/engine"
	"github.com/agentmarket/agentmarket/internal/store"
)

const maxNameLen = 64

// startingCash is the seed balance every new agent receives.
var startingCash = decimal.NewFromInt(10000)

// Directory maps opaque API keys to agent identities and serves the
// read-only reporting surfaces.
type Directory struct {
	store *store.Store
	sim   *engine.Simulator
}

// NewDirectory creates a Directory backed by the given store and
// market simulator.
func NewDirectory(st *store.Store, sim *engine.Simulator) *Directory {
	return &Directory{store: st, sim: sim}
}

// Register creates a new agent with seed cash, an empty portfolio, and
// a fresh unguessable API key.
func (d *Directory) Register(name string) (*domain.Agent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Message: "name is required"}
	}
	if len(name) > maxNameLen {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("name must be at most %d characters", maxNameLen),
		}
	}

	agent := &domain.Agent{
		ID:       uuid.NewString(),
		Name:     name,
		APIKey:   newAPIKey(),
		Cash:     startingCash,
		JoinedAt: time.Now().UTC(),
	}
	if err := d.store.CreateAgent(agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// Resolve maps an API key to its agent. Unknown keys return
// domain.ErrAgentNotFound.
func (d *Directory) Resolve(apiKey string) (*domain.Agent, error) {
	return d.store.GetAgentByAPIKey(apiKey)
}

// PortfolioView is the caller's own ledger valued at current prices.
type PortfolioView struct {
	Name      string
	Cash      decimal.Decimal
	Portfolio domain.Portfolio
	NetWorth  decimal.Decimal
}

// Portfolio returns the calling agent's ledger, catching the market up
// first so net worth reflects current prices.
func (d *Directory) Portfolio(apiKey string) (*PortfolioView, error) {
	agent, err := d.store.GetAgentByAPIKey(apiKey)
	if err != nil {
		return nil, err
	}
	market, err := d.sim.EnsureCurrent()
	if err != nil {
		return nil, err
	}

	netWorth := agent.Cash
	for _, a := range domain.AllAssets() {
		qty := decimal.NewFromInt(agent.Portfolio.Quantity(a))
		netWorth = netWorth.Add(market.Prices.Price(a).Mul(qty))
	}

	return &PortfolioView{
		Name:      agent.Name,
		Cash:      agent.Cash,
		Portfolio: agent.Portfolio,
		NetWorth:  netWorth,
	}, nil
}

// DashboardView is the public market-plus-agents snapshot. API keys are
// stripped by the handler layer, never serialized.
type DashboardView struct {
	Market *domain.MarketState
	Agents []*domain.Agent
}

// Dashboard catches the market up, then returns it together with every
// registered agent ordered by join time.
func (d *Directory) Dashboard() (*DashboardView, error) {
	market, err := d.sim.EnsureCurrent()
	if err != nil {
		return nil, err
	}
	agents, err := d.store.ListAgents()
	if err != nil {
		return nil, err
	}
	return &DashboardView{Market: market, Agents: agents}, nil
}

// ResetMarket deletes the market record so the next read seeds a fresh
// one. Agents are preserved.
func (d *Directory) ResetMarket() error {
	return d.store.DeleteMarket()
}

// newAPIKey returns a bearer token with 128 bits of entropy. The key is
// the sole authentication factor, so it must be unguessable.
func newAPIKey() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("api key entropy unavailable: %v", err))
	}
	return "sk-" + hex.EncodeToString(b)
}
