package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/agentmarket/agentmarket/internal/domain"
	"github.com/agentmarket/agentmarket/internal/service"
)

// AgentHandler handles registration and the authenticated portfolio
// view.
type AgentHandler struct {
	directory *service.Directory
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(directory *service.Directory) *AgentHandler {
	return &AgentHandler{directory: directory}
}

// registerRequest is the JSON request body for POST /register.
type registerRequest struct {
	Name string `json:"name"`
}

// registerResponse is the JSON response for POST /register
// (201 Created). This is the only place the API key is ever returned.
type registerResponse struct {
	AgentID   string           `json:"agent_id"`
	Name      string           `json:"name"`
	APIKey    string           `json:"api_key"`
	Cash      float64          `json:"cash"`
	Portfolio domain.Portfolio `json:"portfolio"`
	JoinedAt  string           `json:"joined_at"`
}

// portfolioResponse is the JSON response for GET /portfolio.
type portfolioResponse struct {
	Name      string           `json:"name"`
	Cash      float64          `json:"cash"`
	Portfolio domain.Portfolio `json:"portfolio"`
	NetWorth  float64          `json:"net_worth"`
}

// Register handles POST /register.
func (h *AgentHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	agent, err := h.directory.Register(req.Name)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	WriteJSON(w, http.StatusCreated, registerResponse{
		AgentID:   agent.ID,
		Name:      agent.Name,
		APIKey:    agent.APIKey,
		Cash:      agent.Cash.InexactFloat64(),
		Portfolio: agent.Portfolio,
		JoinedAt:  agent.JoinedAt.UTC().Format(time.RFC3339),
	})
}

// GetPortfolio handles GET /portfolio with a bearer-token credential.
func (h *AgentHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	apiKey, ok := bearerToken(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "missing_api_key",
			"Authorization: Bearer <KEY> header is required")
		return
	}

	view, err := h.directory.Portfolio(apiKey)
	if err != nil {
		if errors.Is(err, domain.ErrAgentNotFound) {
			WriteError(w, http.StatusUnauthorized, "invalid_api_key", "Unknown API key")
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	WriteJSON(w, http.StatusOK, portfolioResponse{
		Name:      view.Name,
		Cash:      view.Cash.InexactFloat64(),
		Portfolio: view.Portfolio,
		NetWorth:  view.NetWorth.InexactFloat64(),
	})
}
