package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"account-balances/internal/config"
	"account-balances/internal/logger"
	"account-balances/internal/repository/memory"
)

type envelope struct {
	Data  map[string]any `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

type APITestSuite struct {
	suite.Suite
	server *Server
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func testConfig() *config.Config {
	return &config.Config{
		ServerPort:      "0",
		StoreDriver:     config.StoreMemory,
		RequestTimeout:  5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

func (s *APITestSuite) SetupTest() {
	log := logger.Discard()
	srv, err := NewServerWithLedger(context.Background(), testConfig(), memory.NewLedger(log), log)
	s.Require().NoError(err)
	s.server = srv
}

func (s *APITestSuite) do(method, path, contentType, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	s.server.GetRouter().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (s *APITestSuite) post(path, body string) (*httptest.ResponseRecorder, envelope) {
	return s.do(http.MethodPost, path, "application/json", body)
}

func (s *APITestSuite) get(path string) (*httptest.ResponseRecorder, envelope) {
	return s.do(http.MethodGet, path, "", "")
}

func (s *APITestSuite) assertError(rec *httptest.ResponseRecorder, env envelope, status int, code string) {
	s.Equal(status, rec.Code, rec.Body.String())
	s.Require().NotNil(env.Error, rec.Body.String())
	s.Equal(code, env.Error.Code)
}

func (s *APITestSuite) TestRoot() {
	rec, env := s.get("/")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ok", env.Data["status"])
}

func (s *APITestSuite) TestHealth() {
	rec, _ := s.get("/health")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"status":"healthy"`)
}

func (s *APITestSuite) TestAccountLifecycle() {
	rec, env := s.post("/accounts/12345", `{"initial_balance": 105}`)
	s.Equal(http.StatusCreated, rec.Code)
	s.Equal("12345", env.Data["account_id"])
	s.Equal("105.00", env.Data["balance"])

	rec, env = s.post("/accounts/12345/deposit", `{"amount": 10.5}`)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("115.50", env.Data["balance"])

	rec, env = s.post("/accounts/12345/withdraw", `{"amount": "15.50"}`)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("100.00", env.Data["balance"])

	rec, env = s.get("/accounts/12345/balance")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("100.00", env.Data["balance"])

	rec, env = s.get("/accounts/12345")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("100.00", env.Data["balance"])
}

func (s *APITestSuite) TestCreateWithoutBody() {
	rec, env := s.post("/accounts/a111", "")
	s.Equal(http.StatusCreated, rec.Code)
	s.Equal("0.00", env.Data["balance"])
}

func (s *APITestSuite) TestDuplicateAccount() {
	s.post("/accounts/777", `{"initial_balance": 12015.00}`)

	rec, env := s.post("/accounts/777", `{"initial_balance": 1}`)
	s.assertError(rec, env, http.StatusConflict, "duplicate_account")

	_, env = s.get("/accounts/777/balance")
	s.Equal("12015.00", env.Data["balance"])
}

func (s *APITestSuite) TestAccountNotFound() {
	rec, env := s.get("/accounts/999/balance")
	s.assertError(rec, env, http.StatusNotFound, "account_not_found")

	rec, env = s.post("/accounts/999/deposit", `{"amount": 1}`)
	s.assertError(rec, env, http.StatusNotFound, "account_not_found")
}

func (s *APITestSuite) TestInsufficientFunds() {
	s.post("/accounts/007", `{"initial_balance": 60}`)

	rec, env := s.post("/accounts/007/withdraw", `{"amount": 60.01}`)
	s.assertError(rec, env, http.StatusBadRequest, "insufficient_funds")

	_, env = s.get("/accounts/007/balance")
	s.Equal("60.00", env.Data["balance"])
}

func (s *APITestSuite) TestValidation() {
	s.post("/accounts/valid", `{}`)

	cases := []struct {
		name string
		path string
		body string
	}{
		{"zero amount", "/accounts/valid/deposit", `{"amount": 0}`},
		{"negative amount", "/accounts/valid/withdraw", `{"amount": -5}`},
		{"missing amount", "/accounts/valid/deposit", `{}`},
		{"boolean amount", "/accounts/valid/deposit", `{"amount": true}`},
		{"text amount", "/accounts/valid/deposit", `{"amount": "ten"}`},
		{"negative initial", "/accounts/other", `{"initial_balance": -1}`},
		{"amount below the smallest unit", "/accounts/valid/deposit", `{"amount": "1e-10000000"}`},
		{"amount exponent too large", "/accounts/valid/withdraw", `{"amount": 1e2000000000}`},
		{"initial balance with 19 places", "/accounts/other", `{"initial_balance": "0.0000000000000000001"}`},
		{"bad id", "/accounts/bad%20id", `{}`},
		{"long id", "/accounts/" + strings.Repeat("x", 65) + "/deposit", `{"amount": 1}`},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			rec, env := s.post(tc.path, tc.body)
			s.assertError(rec, env, http.StatusUnprocessableEntity, "invalid_argument")
		})
	}
}

func (s *APITestSuite) TestMalformedBody() {
	s.post("/accounts/broken", `{}`)

	for _, body := range []string{
		`{"amount": `,
		`{"amount": 1}{"amount": 999}`,
		`{"amount": 1} junk`,
	} {
		rec, env := s.post("/accounts/broken/deposit", body)
		s.assertError(rec, env, http.StatusBadRequest, "invalid_request_body")
	}

	_, env := s.get("/accounts/broken/balance")
	s.Equal("0.00", env.Data["balance"])
}

func (s *APITestSuite) TestRequiresJSON() {
	rec, env := s.do(http.MethodPost, "/accounts/plain", "text/plain", `{}`)
	s.assertError(rec, env, http.StatusUnsupportedMediaType, "unsupported_media_type")

	rec, env = s.do(http.MethodPost, "/accounts/plain", "", "")
	s.assertError(rec, env, http.StatusUnsupportedMediaType, "unsupported_media_type")

	rec, _ = s.do(http.MethodPost, "/accounts/plain", "application/json; charset=utf-8", `{}`)
	s.Equal(http.StatusCreated, rec.Code)
}

func (s *APITestSuite) TestUnknownRouteAndMethod() {
	rec, env := s.get("/nowhere")
	s.assertError(rec, env, http.StatusNotFound, "route_not_found")

	rec, env = s.do(http.MethodDelete, "/accounts/12345", "", "")
	s.assertError(rec, env, http.StatusMethodNotAllowed, "method_not_allowed")
}

func (s *APITestSuite) TestRequestIDHeader() {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	s.server.GetRouter().ServeHTTP(rec, req)
	s.Equal("req-42", rec.Header().Get(RequestIDHeader))

	rec, _ = s.get("/")
	s.NotEmpty(rec.Header().Get(RequestIDHeader))
}

func (s *APITestSuite) TestConcurrentDeposits() {
	s.post("/accounts/busy", `{"initial_balance": 0}`)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/accounts/busy/deposit", bytes.NewBufferString(`{"amount": 0.10}`))
			req.Header.Set("Content-Type", "application/json")
			s.server.GetRouter().ServeHTTP(httptest.NewRecorder(), req)
		}()
	}
	wg.Wait()

	_, env := s.get("/accounts/busy/balance")
	s.Equal("20.00", env.Data["balance"])
}

func TestSeedDemoAccountsOnStartup(t *testing.T) {
	cfg := testConfig()
	cfg.SeedDemoAccounts = true
	log := logger.Discard()

	srv, err := NewServerWithLedger(context.Background(), cfg, memory.NewLedger(log), log)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.GetRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts/a111/balance", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balance":"5040.00"`)
}

func TestStartServerAndStop(t *testing.T) {
	ctx := context.Background()

	srv, port, err := StartServer(ctx, testConfig())
	require.NoError(t, err)
	require.NotEmpty(t, port)

	resp, err := http.Post(srv.GetBaseURL()+"/accounts/net", "application/json", strings.NewReader(`{"initial_balance": "1.005"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "1.01", env.Data["balance"])

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	assert.NoError(t, srv.Stop(stopCtx))
}

func TestRunStopsOnCancel(t *testing.T) {
	log := logger.Discard()
	srv, err := NewServerWithLedger(context.Background(), testConfig(), memory.NewLedger(log), log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, "0", time.Second) }()

	// Give Run a moment to bind; cancelling earlier is also a valid shutdown.
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	// Amounts are decoded exactly whether sent as JSON numbers or strings.
	for _, body := range []string{`{"amount": 0.1}`, `{"amount": "0.1"}`} {
		log := logger.Discard()
		ledger := memory.NewLedger(log)
		srv, err := NewServerWithLedger(context.Background(), testConfig(), ledger, log)
		require.NoError(t, err)

		require.NoError(t, ledger.Insert(context.Background(), "exact", decimal.Zero))
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/accounts/exact/deposit", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			srv.GetRouter().ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
		}

		balance, err := ledger.Read(context.Background(), "exact")
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("0.3").Equal(balance), balance.String())
	}
}
