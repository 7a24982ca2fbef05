package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danisherror/backend-for-notes-expense-stocks/internal/auth"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/expenses"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/health"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/marketdata"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/notes"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/positions"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/reports"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/store"
	"github.com/danisherror/backend-for-notes-expense-stocks/internal/transactions"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct{}

func (staticProvider) HistoricalSeries(ctx context.Context, symbol string, rng marketdata.Range) ([]marketdata.Point, error) {
	if symbol == "NONE" {
		return nil, marketdata.ErrNoData
	}
	return []marketdata.Point{{Time: 3600, Open: 1, High: 2, Low: 1, Close: 2, Volume: 10}}, nil
}

type testServer struct {
	*httptest.Server
}

func newTestServer(t *testing.T, limiter *RateLimiter) *testServer {
	t.Helper()
	log := zerolog.Nop()
	s := store.NewMemory()
	bus := marketdata.NewBus()
	authSvc := auth.NewService(s, "test", []byte("secret"), time.Hour)
	ledger := positions.NewService(s, bus, log)
	history := marketdata.NewHistoryService(staticProvider{}, s, bus, log)

	h := NewRouter(RouterDeps{
		AuthHandler:         auth.NewHandler(authSvc),
		NotesHandler:        notes.NewHandler(notes.NewService(s)),
		ExpensesHandler:     expenses.NewHandler(expenses.NewService(s)),
		TransactionsHandler: transactions.NewHandler(transactions.NewService(s)),
		PositionsHandler:    positions.NewHandler(ledger, log),
		MarketHandler:       marketdata.NewHandler(history, log),
		ReportsHandler:      reports.NewHandler(reports.NewService(ledger, history), log),
		HealthHandler:       health.NewHandler(s, "memory", time.Now()),
		AuthService:         authSvc,
		WSHandler:           NewWSHandler(bus, authSvc, ledger, "*", log),
		RateLimiter:         limiter,
		CORSOrigins:         []string{"http://localhost:5173"},
		Log:                 log,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.Bytes()
}

func (s *testServer) signup(t *testing.T, email string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/signup", "", `{"email":"`+email+`","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

func TestRouter_StockFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	token := srv.signup(t, "ann@example.com")

	status, body := srv.do(t, http.MethodPost, "/api/buy_stocks", token, `{"symbol":"AAPL","name":"Apple","quantity":10,"price_per_unit":100}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	status, body = srv.do(t, http.MethodPost, "/api/buy_stocks", token, `{"symbol":"AAPL","quantity":10,"price_per_unit":200}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	status, body = srv.do(t, http.MethodPost, "/api/sell_stocks", token, `{"symbol":"AAPL","quantity":5,"price_per_unit_sold":300}`)
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = srv.do(t, http.MethodPost, "/api/sell_stocks", token, `{"symbol":"AAPL","quantity":20,"price_per_unit_sold":300}`)
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, body = srv.do(t, http.MethodGet, "/api/user_stocks/aapl", token, "")
	require.Equal(t, http.StatusOK, status, string(body))
	var pos positions.Position
	require.NoError(t, json.Unmarshal(body, &pos))
	assert.Equal(t, int64(15), pos.Quantity)
	assert.Equal(t, "150", pos.PricePerUnit.String())
	assert.Equal(t, "-1500", pos.NetProfit.String())

	status, body = srv.do(t, http.MethodPost, "/api/stock_data/AAPL/refresh", token, "")
	require.Equal(t, http.StatusOK, status, string(body))
	status, _ = srv.do(t, http.MethodGet, "/api/all_stock_datas/AAPL", token, "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = srv.do(t, http.MethodPost, "/api/stock_data/NONE/refresh", token, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = srv.do(t, http.MethodGet, "/api/all_stocks_data_of_users/AAPL", token, "")
	require.Equal(t, http.StatusOK, status, string(body))
	var rep reports.SymbolReport
	require.NoError(t, json.Unmarshal(body, &rep))
	assert.Len(t, rep.BuyStock, 2)
	assert.Len(t, rep.SoldRecords, 1)
	require.NotNil(t, rep.StockData)

	other := srv.signup(t, "bob@example.com")
	status, _ = srv.do(t, http.MethodGet, "/api/user_stocks/AAPL", other, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRouter_CRUDResources(t *testing.T) {
	srv := newTestServer(t, nil)
	token := srv.signup(t, "ann@example.com")

	for _, tc := range []struct {
		path string
		body string
	}{
		{"/api/notes", `{"title":"groceries","content":"milk"}`},
		{"/api/expenses", `{"amount":12.5,"description":"lunch"}`},
		{"/api/transactions", `{"amount":100,"transaction_type":"income","second_party":"acme"}`},
	} {
		t.Run(tc.path, func(t *testing.T) {
			status, body := srv.do(t, http.MethodPost, tc.path, token, tc.body)
			require.Equal(t, http.StatusCreated, status, string(body))
			var created struct {
				ID string `json:"id"`
			}
			require.NoError(t, json.Unmarshal(body, &created))
			require.NotEmpty(t, created.ID)

			status, _ = srv.do(t, http.MethodGet, tc.path+"/"+created.ID, token, "")
			assert.Equal(t, http.StatusOK, status)
			status, _ = srv.do(t, http.MethodDelete, tc.path+"/"+created.ID, token, "")
			assert.Equal(t, http.StatusOK, status)
			status, _ = srv.do(t, http.MethodGet, tc.path+"/"+created.ID, token, "")
			assert.Equal(t, http.StatusNotFound, status)
		})
	}
}

func TestRouter_Auth(t *testing.T) {
	srv := newTestServer(t, nil)
	token := srv.signup(t, "ann@example.com")

	status, body := srv.do(t, http.MethodGet, "/api/profile", token, "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "ann@example.com")

	status, body = srv.do(t, http.MethodGet, "/api/notes", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, string(body), "missing bearer token")

	status, _ = srv.do(t, http.MethodGet, "/api/notes", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = srv.do(t, http.MethodPost, "/api/signin", "", `{"email":"ann@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = srv.do(t, http.MethodPost, "/api/signin", "", `{"email":"ann@example.com","password":"hunter22"}`)
	assert.Equal(t, http.StatusOK, status)
}

func TestRouter_HealthAndHeaders(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	}

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/notes", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_RateLimit(t *testing.T) {
	srv := newTestServer(t, NewRateLimiter(0.001, 2))

	for i := 0; i < 2; i++ {
		status, _ := srv.do(t, http.MethodGet, "/health/live", "", "")
		require.Equal(t, http.StatusOK, status)
	}
	status, body := srv.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, string(body), "rate limit exceeded")
}

func TestWS_PositionEvents(t *testing.T) {
	srv := newTestServer(t, nil)
	token := srv.signup(t, "ann@example.com")
	otherToken := srv.signup(t, "bob@example.com")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token="

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"bad", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+token, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var evt struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "positions_snapshot", evt.Type)

	// the other owner's buy must not reach this socket
	status, _ := srv.do(t, http.MethodPost, "/api/buy_stocks", otherToken, `{"symbol":"MSFT","quantity":1,"price_per_unit":1}`)
	require.Equal(t, http.StatusCreated, status)
	status, _ = srv.do(t, http.MethodPost, "/api/buy_stocks", token, `{"symbol":"AAPL","quantity":3,"price_per_unit":10}`)
	require.Equal(t, http.StatusCreated, status)

	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "position", evt.Type)
	var pos positions.Position
	require.NoError(t, json.Unmarshal(evt.Data, &pos))
	assert.Equal(t, "AAPL", pos.Symbol)
	assert.Equal(t, int64(3), pos.Quantity)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "positions_snapshot"}))
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "positions_snapshot", evt.Type)
	assert.Contains(t, string(evt.Data), "AAPL")
}
