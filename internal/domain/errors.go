package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrAgentNotFound        = errors.New("agent_not_found")
	ErrAgentAlreadyExists   = errors.New("agent_already_exists")
	ErrMarketNotFound       = errors.New("market_not_found")
	ErrMarketAlreadyExists  = errors.New("market_already_exists")
	ErrInvalidAsset         = errors.New("invalid_asset")
	ErrInvalidAction        = errors.New("invalid_action")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrInsufficientHoldings = errors.New("insufficient_holdings")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// InsufficientFundsError is the business rejection for a BUY whose
// total cost exceeds the agent's cash. It carries both amounts so the
// caller can see the shortfall and resubmit a smaller order.
type InsufficientFundsError struct {
	Cost      decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: cost %s, available %s", e.Cost, e.Available)
}

// Shortfall returns how much cash the agent was missing.
func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Cost.Sub(e.Available)
}
