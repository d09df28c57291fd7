package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agentmarket/agentmarket/internal/engine"
	"github.com/agentmarket/agentmarket/internal/service"
	"github.com/agentmarket/agentmarket/internal/store"
)

// testEnv bundles all dependencies for handler integration tests. The
// hour-long tick interval keeps prices pinned at their seed values
// (COMPUTE=100, ENERGY=50, DATA=20) for the duration of a test.
type testEnv struct {
	router http.Handler
	store  *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	sim := engine.NewSimulator(st, time.Hour)
	trades := engine.NewTradeEngine(st, sim)
	directory := service.NewDirectory(st, sim)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testEnv{
		router: NewRouter(sim, trades, directory, logger),
		store:  st,
	}
}

// do issues a request against the router. A non-nil body is JSON
// encoded; a non-empty token is sent as a bearer credential.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(w.Body).Decode(&m); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return m
}

// register creates an agent through the API and returns its API key.
func (e *testEnv) register(t *testing.T, name string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/register", "", map[string]string{"name": name})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	key, _ := body["api_key"].(string)
	if key == "" {
		t.Fatal("register: response missing api_key")
	}
	return key
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRegisterAndPortfolio_RoundTrip(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/register", "", map[string]string{"name": "hal"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["name"] != "hal" {
		t.Errorf("name = %v, want hal", body["name"])
	}
	key := body["api_key"].(string)
	if !strings.HasPrefix(key, "sk-") {
		t.Errorf("api_key = %q, want sk- prefix", key)
	}
	if body["cash"].(float64) != 10000 {
		t.Errorf("cash = %v, want 10000", body["cash"])
	}

	w = env.do(t, http.MethodGet, "/portfolio", key, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("portfolio status = %d; body %s", w.Code, w.Body.String())
	}
	pf := decodeBody(t, w)
	if pf["cash"].(float64) != 10000 {
		t.Errorf("portfolio cash = %v, want 10000", pf["cash"])
	}
	holdings := pf["portfolio"].(map[string]any)
	for _, asset := range []string{"COMPUTE", "ENERGY", "DATA"} {
		if holdings[asset].(float64) != 0 {
			t.Errorf("%s = %v, want 0", asset, holdings[asset])
		}
	}
	if pf["net_worth"].(float64) != 10000 {
		t.Errorf("net_worth = %v, want 10000", pf["net_worth"])
	}
}

func TestRegister_MissingName(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/register", "", map[string]string{"name": ""})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "validation_error" {
		t.Errorf("error = %v, want validation_error", body["error"])
	}
}

func TestRegister_RequiresJSONContentType(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{"name":"hal"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestMarket_IdempotentWithinInterval(t *testing.T) {
	env := newTestEnv(t)

	first := decodeBody(t, env.do(t, http.MethodGet, "/market", "", nil))
	second := decodeBody(t, env.do(t, http.MethodGet, "/market", "", nil))

	if first["tick"] != second["tick"] || first["news"] != second["news"] {
		t.Errorf("market changed within interval: %v vs %v", first, second)
	}
	prices := first["prices"].(map[string]any)
	if prices["COMPUTE"].(float64) != 100 || prices["ENERGY"].(float64) != 50 || prices["DATA"].(float64) != 20 {
		t.Errorf("seed prices = %v, want 100/50/20", prices)
	}
}

func TestTrade_BuyFlow(t *testing.T) {
	env := newTestEnv(t)
	key := env.register(t, "hal")

	w := env.do(t, http.MethodPost, "/trade", key, map[string]any{
		"action": "BUY", "asset": "COMPUTE", "quantity": 5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["executed_price"].(float64) != 100 {
		t.Errorf("executed_price = %v, want 100", body["executed_price"])
	}
	if body["new_cash_balance"].(float64) != 9500 {
		t.Errorf("new_cash_balance = %v, want 9500", body["new_cash_balance"])
	}
	pf := body["new_portfolio"].(map[string]any)
	if pf["COMPUTE"].(float64) != 5 {
		t.Errorf("COMPUTE = %v, want 5", pf["COMPUTE"])
	}
}

func TestTrade_Rejections(t *testing.T) {
	env := newTestEnv(t)
	key := env.register(t, "hal")

	cases := []struct {
		name       string
		token      string
		body       map[string]any
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing credential",
			body:       map[string]any{"action": "BUY", "asset": "COMPUTE", "quantity": 1},
			wantStatus: http.StatusUnauthorized,
			wantError:  "missing_api_key",
		},
		{
			name:       "unknown credential",
			token:      "sk-bogus",
			body:       map[string]any{"action": "BUY", "asset": "COMPUTE", "quantity": 1},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_api_key",
		},
		{
			name:       "invalid asset",
			token:      key,
			body:       map[string]any{"action": "BUY", "asset": "GOLD", "quantity": 1},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_asset",
		},
		{
			name:       "zero quantity",
			token:      key,
			body:       map[string]any{"action": "BUY", "asset": "COMPUTE", "quantity": 0},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_quantity",
		},
		{
			name:       "fractional quantity",
			token:      key,
			body:       map[string]any{"action": "BUY", "asset": "COMPUTE", "quantity": 1.5},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "invalid action",
			token:      key,
			body:       map[string]any{"action": "HOLD", "asset": "COMPUTE", "quantity": 1},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_action",
		},
		{
			name:       "insufficient funds",
			token:      key,
			body:       map[string]any{"action": "BUY", "asset": "COMPUTE", "quantity": 500},
			wantStatus: http.StatusBadRequest,
			wantError:  "insufficient_funds",
		},
		{
			name:       "insufficient holdings",
			token:      key,
			body:       map[string]any{"action": "SELL", "asset": "DATA", "quantity": 3},
			wantStatus: http.StatusBadRequest,
			wantError:  "insufficient_holdings",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/trade", tc.token, tc.body)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", w.Code, tc.wantStatus, w.Body.String())
			}
			body := decodeBody(t, w)
			if body["error"] != tc.wantError {
				t.Errorf("error = %v, want %v", body["error"], tc.wantError)
			}
		})
	}

	// None of the rejections touched the ledger.
	w := env.do(t, http.MethodGet, "/portfolio", key, nil)
	pf := decodeBody(t, w)
	if pf["cash"].(float64) != 10000 {
		t.Errorf("cash = %v, want untouched 10000", pf["cash"])
	}
}

func TestDashboard_OmitsAPIKeys(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "first")
	env.register(t, "second")

	w := env.do(t, http.MethodGet, "/dashboard", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
	}

	raw := w.Body.String()
	if strings.Contains(raw, "sk-") || strings.Contains(raw, "api_key") {
		t.Fatalf("dashboard leaks credentials: %s", raw)
	}

	var parsed struct {
		Market struct {
			Tick int64 `json:"tick"`
		} `json:"market"`
		Agents []struct {
			AgentID string  `json:"agent_id"`
			Name    string  `json:"name"`
			Cash    float64 `json:"cash"`
		} `json:"agents"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if len(parsed.Agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(parsed.Agents))
	}
	if parsed.Agents[0].Name != "first" || parsed.Agents[1].Name != "second" {
		t.Errorf("agents out of join order: %+v", parsed.Agents)
	}
	if parsed.Agents[0].Cash != 10000 {
		t.Errorf("cash = %v, want 10000", parsed.Agents[0].Cash)
	}
}

func TestReset_ReseedsMarketKeepsAgents(t *testing.T) {
	env := newTestEnv(t)
	key := env.register(t, "hal")

	w := env.do(t, http.MethodPost, "/reset", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d; body %s", w.Code, w.Body.String())
	}

	market := decodeBody(t, env.do(t, http.MethodGet, "/market", "", nil))
	if market["tick"].(float64) != 0 {
		t.Errorf("tick = %v, want 0 after reset", market["tick"])
	}

	// The agent survived the reset.
	w = env.do(t, http.MethodGet, "/portfolio", key, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("portfolio after reset: status %d", w.Code)
	}
}
