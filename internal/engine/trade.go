package engine

import (
	"github.com/shopspring/decimal"

	"github.com/agentmarket/agentmarket/internal/domain"
	"github.com/agentmarket/agentmarket/internal/store"
)

// Action is the order direction. Only immediate market orders exist.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// ParseAction validates a raw action string. Matching is exact.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionBuy, ActionSell:
		return Action(s), nil
	}
	return "", domain.ErrInvalidAction
}

// TradeResult reports an executed trade: the price in effect at the
// moment of execution and the authoritative post-commit ledger.
type TradeResult struct {
	Action        Action
	Asset         domain.Asset
	Quantity      int64
	ExecutedPrice decimal.Decimal
	NewCash       decimal.Decimal
	NewPortfolio  domain.Portfolio
}

// TradeEngine validates orders and mutates agent ledgers against the
// current market price.
type TradeEngine struct {
	store *store.Store
	sim   *Simulator
}

// NewTradeEngine creates a trade engine backed by the given store and
// market simulator.
func NewTradeEngine(st *store.Store, sim *Simulator) *TradeEngine {
	return &TradeEngine{store: st, sim: sim}
}

// Execute runs the full trade protocol: authenticate, validate, read
// the current price, then atomically check-and-mutate the ledger.
// Validation fails fast in a fixed order; the first failing check wins.
// The solvency/inventory predicate is re-asserted inside the store
// transaction, so two concurrent trades can never jointly overdraw an
// account: the second one is rejected exactly as if the check had
// failed up front.
func (e *TradeEngine) Execute(apiKey, action, asset string, quantity int64) (*TradeResult, error) {
	agent, err := e.store.GetAgentByAPIKey(apiKey)
	if err != nil {
		return nil, err
	}
	ast, err := domain.ParseAsset(asset)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	act, err := ParseAction(action)
	if err != nil {
		return nil, err
	}

	market, err := e.sim.EnsureCurrent()
	if err != nil {
		return nil, err
	}
	price := market.Prices.Price(ast)
	cost := price.Mul(decimal.NewFromInt(quantity))

	updated, err := e.store.UpdateAgent(agent.ID, func(a *domain.Agent) error {
		switch act {
		case ActionBuy:
			if a.Cash.LessThan(cost) {
				return &domain.InsufficientFundsError{Cost: cost, Available: a.Cash}
			}
			a.Cash = a.Cash.Sub(cost)
			a.Portfolio.Add(ast, quantity)
		case ActionSell:
			if a.Portfolio.Quantity(ast) < quantity {
				return domain.ErrInsufficientHoldings
			}
			a.Cash = a.Cash.Add(cost)
			a.Portfolio.Add(ast, -quantity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &TradeResult{
		Action:        act,
		Asset:         ast,
		Quantity:      quantity,
		ExecutedPrice: price,
		NewCash:       updated.Cash,
		NewPortfolio:  updated.Portfolio,
	}, nil
}
