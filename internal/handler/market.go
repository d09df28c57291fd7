package handler

import (
	"net/http"
	"time"

	"github.com/agentmarket/agentmarket/internal/domain"
	"github.com/agentmarket/agentmarket/internal/engine"
	"github.com/agentmarket/agentmarket/internal/service"
)

// MarketHandler handles the public market, dashboard, and reset
// endpoints.
type MarketHandler struct {
	sim       *engine.Simulator
	directory *service.Directory
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(sim *engine.Simulator, directory *service.Directory) *MarketHandler {
	return &MarketHandler{sim: sim, directory: directory}
}

// pricesResponse is the per-asset price mapping in JSON responses.
type pricesResponse struct {
	Compute float64 `json:"COMPUTE"`
	Energy  float64 `json:"ENERGY"`
	Data    float64 `json:"DATA"`
}

func toPricesResponse(p domain.Prices) pricesResponse {
	return pricesResponse{
		Compute: p.Compute.InexactFloat64(),
		Energy:  p.Energy.InexactFloat64(),
		Data:    p.Data.InexactFloat64(),
	}
}

// marketResponse is the JSON response for GET /market.
type marketResponse struct {
	Tick        int64          `json:"tick"`
	News        string         `json:"news"`
	Prices      pricesResponse `json:"prices"`
	LastUpdated string         `json:"last_updated"`
}

func toMarketResponse(m *domain.MarketState) marketResponse {
	return marketResponse{
		Tick:        m.Tick,
		News:        m.News,
		Prices:      toPricesResponse(m.Prices),
		LastUpdated: m.LastUpdated.UTC().Format(time.RFC3339),
	}
}

// dashboardAgentResponse is a single agent in the dashboard response.
// The API key is deliberately absent.
type dashboardAgentResponse struct {
	AgentID   string           `json:"agent_id"`
	Name      string           `json:"name"`
	Cash      float64          `json:"cash"`
	Portfolio domain.Portfolio `json:"portfolio"`
}

// dashboardResponse is the JSON response for GET /dashboard.
type dashboardResponse struct {
	Market marketResponse           `json:"market"`
	Agents []dashboardAgentResponse `json:"agents"`
}

// GetMarket handles GET /market, advancing the market first if the
// tick interval has elapsed.
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := h.sim.EnsureCurrent()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}
	WriteJSON(w, http.StatusOK, toMarketResponse(m))
}

// GetDashboard handles GET /dashboard.
func (h *MarketHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := h.directory.Dashboard()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	agents := make([]dashboardAgentResponse, len(view.Agents))
	for i, a := range view.Agents {
		agents[i] = dashboardAgentResponse{
			AgentID:   a.ID,
			Name:      a.Name,
			Cash:      a.Cash.InexactFloat64(),
			Portfolio: a.Portfolio,
		}
	}

	WriteJSON(w, http.StatusOK, dashboardResponse{
		Market: toMarketResponse(view.Market),
		Agents: agents,
	})
}

// Reset handles POST /reset: the market record is deleted and re-seeded
// lazily on the next read. Agents are preserved.
func (h *MarketHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.directory.ResetMarket(); err != nil {
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Market reset. A fresh market is seeded on the next read.",
	})
}
