package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang-orb-trader/internal/entity"
	"golang-orb-trader/internal/trading/dto"
	"golang-orb-trader/internal/trading/orb"
	"golang-orb-trader/internal/trading/service"
	"golang-orb-trader/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockScanner struct {
	mock.Mock
}

func (m *mockScanner) Scan(ctx context.Context, date time.Time, force bool) (*orb.ScanResult, error) {
	args := m.Called(ctx, date, force)
	result, _ := args.Get(0).(*orb.ScanResult)
	return result, args.Error(1)
}

func (m *mockScanner) GetResult(ctx context.Context, scanDate string) (*orb.ScanResult, error) {
	args := m.Called(ctx, scanDate)
	result, _ := args.Get(0).(*orb.ScanResult)
	return result, args.Error(1)
}

func (m *mockScanner) GetRegime(ctx context.Context, scanDate string) (*orb.MarketRegime, error) {
	args := m.Called(ctx, scanDate)
	regime, _ := args.Get(0).(*orb.MarketRegime)
	return regime, args.Error(1)
}

type mockAccountService struct {
	mock.Mock
}

func (m *mockAccountService) RiskState(ctx context.Context, accountID uint) (*orb.State, error) {
	args := m.Called(ctx, accountID)
	state, _ := args.Get(0).(*orb.State)
	return state, args.Error(1)
}

func (m *mockAccountService) Stop(ctx context.Context, accountID uint, reason string) (*orb.State, error) {
	args := m.Called(ctx, accountID, reason)
	state, _ := args.Get(0).(*orb.State)
	return state, args.Error(1)
}

func (m *mockAccountService) Start(ctx context.Context, accountID uint) (*orb.State, error) {
	args := m.Called(ctx, accountID)
	state, _ := args.Get(0).(*orb.State)
	return state, args.Error(1)
}

func (m *mockAccountService) Ranges(ctx context.Context, accountID uint) ([]orb.OpeningRange, error) {
	args := m.Called(ctx, accountID)
	ranges, _ := args.Get(0).([]orb.OpeningRange)
	return ranges, args.Error(1)
}

func (m *mockAccountService) Positions(ctx context.Context, accountID uint) ([]orb.Position, error) {
	args := m.Called(ctx, accountID)
	positions, _ := args.Get(0).([]orb.Position)
	return positions, args.Error(1)
}

func (m *mockAccountService) Trades(ctx context.Context, accountID uint, tradeDate string) ([]entity.TradeLog, error) {
	args := m.Called(ctx, accountID, tradeDate)
	trades, _ := args.Get(0).([]entity.TradeLog)
	return trades, args.Error(1)
}

func (m *mockAccountService) GetTickers(ctx context.Context, accountID uint) ([]string, error) {
	args := m.Called(ctx, accountID)
	symbols, _ := args.Get(0).([]string)
	return symbols, args.Error(1)
}

func (m *mockAccountService) UpdateTickers(ctx context.Context, accountID uint, symbols []string) ([]string, error) {
	args := m.Called(ctx, accountID, symbols)
	out, _ := args.Get(0).([]string)
	return out, args.Error(1)
}

func newTestServer(t *testing.T, scanner service.ScannerService, accounts service.AccountService) *echo.Echo {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	e := echo.New()
	e.Validator = NewRequestValidator()
	apiV1 := e.Group("/api/v1")

	stockHandler := NewStockHandler(scanner, loc, logger.NewNop())
	stockHandler.now = func() time.Time { return time.Date(2025, 3, 4, 7, 0, 0, 0, loc) }
	stockHandler.RegisterRoutes(apiV1.Group("/stocks"))
	stockHandler.RegisterRegimeRoutes(apiV1.Group("/regime"))

	NewAccountHandler(accounts, logger.NewNop()).RegisterRoutes(apiV1.Group("/accounts"))
	return e
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGetQualifiedDefaultsToToday(t *testing.T) {
	scanner := &mockScanner{}
	scanner.On("GetResult", mock.Anything, "2025-03-04").Return(&orb.ScanResult{
		Date:   "2025-03-04",
		Stocks: []orb.QualifiedStock{{Symbol: "SMCI", Rank: 1}},
		Regime: orb.MarketRegime{Regime: orb.RegimeBullish},
	}, nil)
	e := newTestServer(t, scanner, &mockAccountService{})

	rec := serve(e, http.MethodGet, "/api/v1/stocks/qualified", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got orb.ScanResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Stocks, 1)
	assert.Equal(t, "SMCI", got.Stocks[0].Symbol)
	assert.Equal(t, orb.RegimeBullish, got.Regime.Regime)
	scanner.AssertExpectations(t)
}

func TestGetQualifiedErrors(t *testing.T) {
	scanner := &mockScanner{}
	scanner.On("GetResult", mock.Anything, "2025-02-28").Return(nil, nil)
	e := newTestServer(t, scanner, &mockAccountService{})

	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodGet, "/api/v1/stocks/qualified?date=03-04-2025", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodGet, "/api/v1/stocks/qualified?date=2025-02-28", "").Code)
}

func TestRunScan(t *testing.T) {
	scanner := &mockScanner{}
	scanner.On("Scan", mock.Anything, mock.Anything, true).Return(&orb.ScanResult{Date: "2025-03-04", IsFallback: true}, nil).Once()
	scanner.On("Scan", mock.Anything, mock.Anything, false).Return(nil, service.ErrScanInProgress).Once()
	e := newTestServer(t, scanner, &mockAccountService{})

	rec := serve(e, http.MethodPost, "/api/v1/stocks/scan?force=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_fallback":true`)

	assert.Equal(t, http.StatusConflict, serve(e, http.MethodPost, "/api/v1/stocks/scan", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodPost, "/api/v1/stocks/scan?force=maybe", "").Code)
	scanner.AssertExpectations(t)
}

func TestGetRegime(t *testing.T) {
	scanner := &mockScanner{}
	scanner.On("GetRegime", mock.Anything, "2025-03-03").Return(&orb.MarketRegime{Regime: orb.RegimeBearish, IndexSymbol: "SPY", Degraded: true}, nil)
	scanner.On("GetRegime", mock.Anything, "2025-03-04").Return(nil, fmt.Errorf("db down"))
	e := newTestServer(t, scanner, &mockAccountService{})

	rec := serve(e, http.MethodGet, "/api/v1/regime?date=2025-03-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got orb.MarketRegime
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, orb.RegimeBearish, got.Regime)
	assert.True(t, got.Degraded)

	assert.Equal(t, http.StatusInternalServerError, serve(e, http.MethodGet, "/api/v1/regime", "").Code)
}

func TestStopAndStartTrading(t *testing.T) {
	accounts := &mockAccountService{}
	accounts.On("Stop", mock.Anything, uint(7), defaultStopReason).
		Return(&orb.State{AccountID: 7, Status: orb.StatusManuallyStopped, ManualStop: true, StopReason: defaultStopReason}, nil).Once()
	accounts.On("Stop", mock.Anything, uint(7), "news halt").
		Return(&orb.State{AccountID: 7, Status: orb.StatusManuallyStopped, ManualStop: true, StopReason: "news halt"}, nil).Once()
	accounts.On("Start", mock.Anything, uint(7)).
		Return(&orb.State{AccountID: 7, Status: orb.StatusLocked, Locked: true}, orb.ErrLockedForDay).Once()
	e := newTestServer(t, &mockScanner{}, accounts)

	rec := serve(e, http.MethodPost, "/api/v1/accounts/7/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"manual_stop":true`)

	rec = serve(e, http.MethodPost, "/api/v1/accounts/7/stop", `{"reason":"news halt"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stop_reason":"news halt"`)

	rec = serve(e, http.MethodPost, "/api/v1/accounts/7/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), orb.ErrLockedForDay.Error())

	tooLong := fmt.Sprintf(`{"reason":%q}`, strings.Repeat("x", 201))
	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodPost, "/api/v1/accounts/7/stop", tooLong).Code)
	accounts.AssertExpectations(t)
}

func TestAccountNotFoundAndBadID(t *testing.T) {
	accounts := &mockAccountService{}
	accounts.On("RiskState", mock.Anything, uint(99)).Return(nil, service.ErrAccountNotFound)
	e := newTestServer(t, &mockScanner{}, accounts)

	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodGet, "/api/v1/accounts/99/risk", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodGet, "/api/v1/accounts/abc/risk", "").Code)
}

func TestSessionViews(t *testing.T) {
	accounts := &mockAccountService{}
	accounts.On("Ranges", mock.Anything, uint(1)).Return([]orb.OpeningRange{{Symbol: "ARM", High: 101, Low: 99, IsSet: true}}, nil)
	accounts.On("Positions", mock.Anything, uint(1)).Return([]orb.Position{{Symbol: "ARM", Side: orb.SideLong, Qty: 100}}, nil)
	accounts.On("Trades", mock.Anything, uint(1), "2025-03-03").Return([]entity.TradeLog{{ID: 3, Symbol: "ARM", Status: entity.TradeStatusClosed}}, nil)
	e := newTestServer(t, &mockScanner{}, accounts)

	rec := serve(e, http.MethodGet, "/api/v1/accounts/1/ranges", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ranges []orb.OpeningRange
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ranges))
	require.Len(t, ranges, 1)
	assert.Equal(t, 101.0, ranges[0].High)

	rec = serve(e, http.MethodGet, "/api/v1/accounts/1/positions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ARM"`)

	rec = serve(e, http.MethodGet, "/api/v1/accounts/1/trades?date=2025-03-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"closed"`)

	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodGet, "/api/v1/accounts/1/trades?date=yesterday", "").Code)
	accounts.AssertExpectations(t)
}

func TestTickers(t *testing.T) {
	accounts := &mockAccountService{}
	accounts.On("GetTickers", mock.Anything, uint(2)).Return([]string{"ARM"}, nil)
	accounts.On("UpdateTickers", mock.Anything, uint(2), []string{"smci", "arm"}).Return([]string{"SMCI", "ARM"}, nil)
	e := newTestServer(t, &mockScanner{}, accounts)

	rec := serve(e, http.MethodGet, "/api/v1/accounts/2/tickers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got dto.TickersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint(2), got.AccountID)
	assert.Equal(t, []string{"ARM"}, got.Symbols)

	rec = serve(e, http.MethodPut, "/api/v1/accounts/2/tickers", `{"symbols":["smci","arm"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"SMCI", "ARM"}, got.Symbols)

	rec = serve(e, http.MethodPut, "/api/v1/accounts/2/tickers", `{"symbols":["ARM",""]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodPut, "/api/v1/accounts/2/tickers", `{"symbols":`).Code)
	accounts.AssertExpectations(t)
}
