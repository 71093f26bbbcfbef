package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang-orb-trader/internal/trading/config"
	"golang-orb-trader/internal/trading/dto"
	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(url string) *config.Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Alpaca.DataURL = url
	cfg.Alpaca.PaperURL = url
	cfg.Alpaca.LiveURL = url + "/live"
	cfg.Alpaca.MaxRequestPerMinute = 60000
	cfg.Alpaca.DataKeyID = "data-key"
	cfg.Alpaca.DataSecretKey = "data-secret"
	return cfg
}

type wireBar struct {
	T string  `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V uint64  `json:"v"`
	N uint64  `json:"n"`
	W float64 `json:"vw"`
}

// writeBars answers both the single symbol and the multi symbol bars endpoints.
func writeBars(w http.ResponseWriter, r *http.Request, symbol string, bars []wireBar, next string) {
	var token interface{}
	if next != "" {
		token = next
	}
	resp := map[string]interface{}{"next_page_token": token}
	if strings.HasSuffix(r.URL.Path, "/v2/stocks/bars") {
		resp["bars"] = map[string][]wireBar{symbol: bars}
	} else {
		resp["symbol"] = symbol
		resp["bars"] = bars
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func TestGetDailyBarsFollowsPagination(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Contains(t, r.URL.Path, "bars")
		assert.Equal(t, "1Day", r.URL.Query().Get("timeframe"))
		assert.Equal(t, "data-key", r.Header.Get("APCA-API-KEY-ID"))
		if r.URL.Query().Get("page_token") == "" {
			writeBars(w, r, "ARM", []wireBar{{T: "2025-03-03T05:00:00Z", C: 10, V: 100}}, "next")
			return
		}
		writeBars(w, r, "ARM", []wireBar{{T: "2025-03-04T05:00:00Z", C: 11, V: 200}}, "")
	}))
	defer srv.Close()

	repo := NewAlpacaMarketDataRepository(newTestConfig(srv.URL), logger.NewNop(), metrics.NewNop())
	bars, err := repo.GetDailyBars(context.Background(), "ARM", time.Now().AddDate(0, 0, -30), time.Now())
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 11.0, bars[1].Close)
	assert.Equal(t, 200.0, bars[1].Volume)
}

func TestEmptyBarsAreNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeBars(w, r, "ARM", nil, "")
	}))
	defer srv.Close()

	repo := NewAlpacaMarketDataRepository(newTestConfig(srv.URL), logger.NewNop(), metrics.NewNop())
	_, err := repo.GetIntradayBars(context.Background(), "ARM", dto.Timeframe5Min, time.Now().Add(-time.Hour), time.Now())
	assert.True(t, errors.Is(err, ErrNoData))

	_, err = repo.GetIntradayBars(context.Background(), "ARM", "1Week", time.Now().Add(-time.Hour), time.Now())
	assert.Error(t, err)
}

func TestGetLatestTrade(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trade := map[string]interface{}{"t": "2025-03-04T14:41:00Z", "p": 101.5, "s": 100}
		if strings.HasSuffix(r.URL.Path, "/v2/stocks/trades/latest") {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"trades": map[string]interface{}{"ARM": trade}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"symbol": "ARM", "trade": trade})
	}))
	defer srv.Close()

	repo := NewAlpacaMarketDataRepository(newTestConfig(srv.URL), logger.NewNop(), metrics.NewNop())
	trade, err := repo.GetLatestTrade(context.Background(), "ARM")
	require.NoError(t, err)
	assert.Equal(t, 101.5, trade.Price)
	assert.Equal(t, 100.0, trade.Size)
}

func TestUnauthorizedIsMapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":40310000,"message":"forbidden"}`))
	}))
	defer srv.Close()

	repo := NewAlpacaBrokerRepository(newTestConfig(srv.URL), logger.NewNop(), metrics.NewNop())
	_, err := repo.GetAccount(context.Background(), dto.Credentials{KeyID: "k", SecretKey: "s", Paper: true})
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestGetAccountReadsDecimalFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/account", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("APCA-API-KEY-ID"))
		_, _ = w.Write([]byte(`{"id":"acc-1","status":"ACTIVE","equity":"96900","last_equity":"100000","cash":"50000","buying_power":"200000"}`))
	}))
	defer srv.Close()

	repo := NewAlpacaBrokerRepository(newTestConfig(srv.URL), logger.NewNop(), metrics.NewNop())
	account, err := repo.GetAccount(context.Background(), dto.Credentials{KeyID: "k", SecretKey: "s", Paper: true})
	require.NoError(t, err)
	assert.Equal(t, 96900.0, account.Equity)
	assert.InDelta(t, -3.1, account.DailyPnLPct(), 1e-9)
}

func TestPlaceBracketOrderPayload(t *testing.T) {
	var got struct {
		Symbol        string          `json:"symbol"`
		Qty           decimal.Decimal `json:"qty"`
		Type          string          `json:"type"`
		TimeInForce   string          `json:"time_in_force"`
		OrderClass    string          `json:"order_class"`
		ClientOrderID string          `json:"client_order_id"`
		TakeProfit    struct {
			LimitPrice decimal.Decimal `json:"limit_price"`
		} `json:"take_profit"`
		StopLoss struct {
			StopPrice decimal.Decimal `json:"stop_price"`
		} `json:"stop_loss"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/orders", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"ord-1","client_order_id":"` + got.ClientOrderID + `","symbol":"ARM","side":"buy","status":"accepted","qty":"10"}`))
	}))
	defer srv.Close()

	repo := NewAlpacaBrokerRepository(newTestConfig(srv.URL), logger.NewNop(), metrics.NewNop())
	order, err := repo.PlaceBracketOrder(context.Background(), dto.Credentials{KeyID: "k", Paper: true}, dto.BracketOrderRequest{
		Symbol: "ARM", Side: dto.OrderSideBuy, Qty: 10, StopPrice: 94.999, TargetPrice: 112.004,
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", order.ID)
	assert.Equal(t, 10.0, order.Qty)
	assert.True(t, got.Qty.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "bracket", got.OrderClass)
	assert.Equal(t, "market", got.Type)
	assert.Equal(t, "day", got.TimeInForce)
	assert.Equal(t, "95.00", got.StopLoss.StopPrice.StringFixed(2))
	assert.Equal(t, "112.00", got.TakeProfit.LimitPrice.StringFixed(2))
	_, err = uuid.Parse(got.ClientOrderID)
	assert.NoError(t, err)
}

func TestRejectedOrderCarriesProviderText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":40310000,"message":"insufficient buying power"}`))
	}))
	defer srv.Close()

	repo := NewAlpacaBrokerRepository(newTestConfig(srv.URL), logger.NewNop(), metrics.NewNop())
	_, err := repo.PlaceBracketOrder(context.Background(), dto.Credentials{KeyID: "k", Paper: true}, dto.BracketOrderRequest{
		Symbol: "ARM", Side: dto.OrderSideBuy, Qty: 10, StopPrice: 95, TargetPrice: 112,
	})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "insufficient buying power", apiErr.Message)
}

func TestPlaceBracketOrderHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	repo := NewAlpacaBrokerRepository(newTestConfig(srv.URL), logger.NewNop(), metrics.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := repo.PlaceBracketOrder(ctx, dto.Credentials{KeyID: "k", Paper: true}, dto.BracketOrderRequest{
		Symbol: "ARM", Side: dto.OrderSideBuy, Qty: 10, StopPrice: 95, TargetPrice: 112,
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClosePositionToleratesFlat(t *testing.T) {
	var deleted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v2/orders":
			assert.Equal(t, "ARM", r.URL.Query().Get("symbols"))
			_, _ = w.Write([]byte(`[{"id":"o1","symbol":"ARM"}]`))
		case r.Method == http.MethodDelete:
			deleted = append(deleted, r.URL.Path)
			if r.URL.Path == "/v2/positions/ARM" {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"code":40410000,"message":"position does not exist"}`))
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	repo := NewAlpacaBrokerRepository(newTestConfig(srv.URL), logger.NewNop(), metrics.NewNop())
	err := repo.ClosePosition(context.Background(), dto.Credentials{KeyID: "k", Paper: true}, "ARM")
	require.NoError(t, err)
	assert.Equal(t, []string{"/v2/orders/o1", "/v2/positions/ARM"}, deleted)
}
