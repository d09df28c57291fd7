package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/agentmarket/agentmarket/internal/domain"
	"github.com/agentmarket/agentmarket/internal/engine"
)

// TradeHandler handles POST /trade.
type TradeHandler struct {
	trades *engine.TradeEngine
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(trades *engine.TradeEngine) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// tradeRequest is the JSON request body for POST /trade. Quantity is an
// integer; fractional values fail JSON decoding instead of being
// truncated.
type tradeRequest struct {
	Action   string `json:"action"`
	Asset    string `json:"asset"`
	Quantity int64  `json:"quantity"`
}

// tradeResponse is the JSON response for an executed trade.
type tradeResponse struct {
	Message       string           `json:"message"`
	ExecutedPrice float64          `json:"executed_price"`
	NewCash       float64          `json:"new_cash_balance"`
	NewPortfolio  domain.Portfolio `json:"new_portfolio"`
}

// Trade handles POST /trade with a bearer-token credential.
func (h *TradeHandler) Trade(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := bearerToken(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "missing_api_key",
			"Authorization: Bearer <KEY> header is required")
		return
	}

	var req tradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := h.trades.Execute(apiKey, req.Action, req.Asset, req.Quantity)
	if err != nil {
		mapTradeError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, tradeResponse{
		Message: fmt.Sprintf("Successfully %s %d %s at %s",
			res.Action, res.Quantity, res.Asset, res.ExecutedPrice),
		ExecutedPrice: res.ExecutedPrice.InexactFloat64(),
		NewCash:       res.NewCash.InexactFloat64(),
		NewPortfolio:  res.NewPortfolio,
	})
}

// mapTradeError maps domain errors to HTTP responses for the trade
// endpoint. Business rejections are 400s with enough detail to adjust
// and resubmit; they are never conflated with store failures.
func mapTradeError(w http.ResponseWriter, err error) {
	var ife *domain.InsufficientFundsError
	if errors.As(err, &ife) {
		WriteError(w, http.StatusBadRequest, "insufficient_funds",
			fmt.Sprintf("Insufficient funds: cost %s, available %s (short %s)",
				ife.Cost, ife.Available, ife.Shortfall()))
		return
	}

	switch {
	case errors.Is(err, domain.ErrAgentNotFound):
		WriteError(w, http.StatusUnauthorized, "invalid_api_key", "Unknown API key")
	case errors.Is(err, domain.ErrInvalidAsset):
		WriteError(w, http.StatusBadRequest, "invalid_asset",
			"asset must be one of COMPUTE, ENERGY, DATA")
	case errors.Is(err, domain.ErrInvalidQuantity):
		WriteError(w, http.StatusBadRequest, "invalid_quantity",
			"quantity must be a positive integer")
	case errors.Is(err, domain.ErrInvalidAction):
		WriteError(w, http.StatusBadRequest, "invalid_action",
			"action must be BUY or SELL")
	case errors.Is(err, domain.ErrInsufficientHoldings):
		WriteError(w, http.StatusBadRequest, "insufficient_holdings",
			"Not enough holdings to sell")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
