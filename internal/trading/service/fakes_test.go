package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang-orb-trader/internal/entity"
	"golang-orb-trader/internal/trading/config"
	"golang-orb-trader/internal/trading/dto"
	"golang-orb-trader/internal/trading/orb"
	"golang-orb-trader/internal/trading/repository"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Universe = []orb.Candidate{
		{Symbol: "ARM", FloatMillions: 102, Exchange: "NASDAQ"},
		{Symbol: "SMCI", FloatMillions: 52, Exchange: "NASDAQ"},
	}
	return cfg
}

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) GetAccount(ctx context.Context, creds dto.Credentials) (*dto.Account, error) {
	args := m.Called(ctx, creds)
	acc, _ := args.Get(0).(*dto.Account)
	return acc, args.Error(1)
}

func (m *mockBroker) ListPositions(ctx context.Context, creds dto.Credentials) ([]dto.Position, error) {
	args := m.Called(ctx, creds)
	positions, _ := args.Get(0).([]dto.Position)
	return positions, args.Error(1)
}

func (m *mockBroker) ListOrders(ctx context.Context, creds dto.Credentials, status string, since time.Time) ([]dto.Order, error) {
	args := m.Called(ctx, creds, status, since)
	orders, _ := args.Get(0).([]dto.Order)
	return orders, args.Error(1)
}

func (m *mockBroker) PlaceBracketOrder(ctx context.Context, creds dto.Credentials, req dto.BracketOrderRequest) (*dto.Order, error) {
	args := m.Called(ctx, creds, req)
	order, _ := args.Get(0).(*dto.Order)
	return order, args.Error(1)
}

func (m *mockBroker) ReplaceOrderStop(ctx context.Context, creds dto.Credentials, orderID string, stopPrice float64) (*dto.Order, error) {
	args := m.Called(ctx, creds, orderID, stopPrice)
	order, _ := args.Get(0).(*dto.Order)
	return order, args.Error(1)
}

func (m *mockBroker) CancelAllOrders(ctx context.Context, creds dto.Credentials) error {
	return m.Called(ctx, creds).Error(0)
}

func (m *mockBroker) CloseAllPositions(ctx context.Context, creds dto.Credentials) error {
	return m.Called(ctx, creds).Error(0)
}

func (m *mockBroker) ClosePosition(ctx context.Context, creds dto.Credentials, symbol string) error {
	return m.Called(ctx, creds, symbol).Error(0)
}

// fakeMarketData serves canned bars keyed by symbol and timeframe. Missing data is ErrNoData.
type fakeMarketData struct {
	daily    map[string][]dto.Bar
	intraday map[string][]dto.Bar
	trades   map[string]float64
	calls    atomic.Int64
}

func newFakeMarketData() *fakeMarketData {
	return &fakeMarketData{
		daily:    map[string][]dto.Bar{},
		intraday: map[string][]dto.Bar{},
		trades:   map[string]float64{},
	}
}

func (f *fakeMarketData) GetDailyBars(_ context.Context, symbol string, _, _ time.Time) ([]dto.Bar, error) {
	f.calls.Add(1)
	bars, ok := f.daily[symbol]
	if !ok {
		return nil, repository.ErrNoData
	}
	return bars, nil
}

func (f *fakeMarketData) GetIntradayBars(_ context.Context, symbol, timeframe string, _, _ time.Time) ([]dto.Bar, error) {
	f.calls.Add(1)
	bars, ok := f.intraday[symbol+":"+timeframe]
	if !ok {
		return nil, repository.ErrNoData
	}
	return bars, nil
}

func (f *fakeMarketData) GetLatestTrade(_ context.Context, symbol string) (*dto.LatestTrade, error) {
	f.calls.Add(1)
	price, ok := f.trades[symbol]
	if !ok {
		return nil, repository.ErrNoData
	}
	return &dto.LatestTrade{Price: price, Timestamp: time.Now()}, nil
}

type fakeStateRepo struct {
	mu     sync.Mutex
	rows   map[string]entity.TradingState
	writes int
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{rows: map[string]entity.TradingState{}}
}

func stateKey(accountID uint, date string) string {
	return fmt.Sprintf("%d:%s", accountID, date)
}

func (f *fakeStateRepo) Find(_ context.Context, accountID uint, tradeDate string) (*entity.TradingState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[stateKey(accountID, tradeDate)]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (f *fakeStateRepo) Upsert(_ context.Context, state *entity.TradingState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[stateKey(state.AccountID, state.TradeDate)] = *state
	f.writes++
	return nil
}

type fakeTradeLogRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   []entity.TradeLog
}

func (f *fakeTradeLogRepo) Create(_ context.Context, tl *entity.TradeLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	tl.ID = f.nextID
	f.rows = append(f.rows, *tl)
	return nil
}

func (f *fakeTradeLogRepo) UpdateFields(_ context.Context, id uint, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID != id {
			continue
		}
		row := &f.rows[i]
		for k, v := range fields {
			switch k {
			case "status":
				row.Status = v.(string)
			case "exit_reason":
				row.ExitReason = v.(string)
			case "exit_price":
				row.ExitPrice = v.(float64)
			case "realized_pnl":
				row.RealizedPnL = v.(float64)
			case "extended":
				row.Extended = v.(bool)
			case "stop_price":
				row.StopPrice = v.(float64)
			}
		}
	}
	return nil
}

func (f *fakeTradeLogRepo) Find(_ context.Context, filter repository.TradeLogFilter) ([]entity.TradeLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	statuses := map[string]bool{}
	for _, s := range filter.Statuses {
		statuses[s] = true
	}
	out := []entity.TradeLog{}
	for _, row := range f.rows {
		if filter.AccountID != nil && row.AccountID != *filter.AccountID {
			continue
		}
		if filter.TradeDate != "" && row.TradeDate != filter.TradeDate {
			continue
		}
		if len(statuses) > 0 && !statuses[row.Status] {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeTradeLogRepo) byID(id uint) entity.TradeLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			return row
		}
	}
	return entity.TradeLog{}
}

type fakeTickerRepo struct {
	selections map[uint]entity.TickerSelection
}

func (f *fakeTickerRepo) FindByAccountID(_ context.Context, accountID uint) (*entity.TickerSelection, error) {
	sel, ok := f.selections[accountID]
	if !ok {
		return nil, nil
	}
	return &sel, nil
}

func (f *fakeTickerRepo) Upsert(_ context.Context, selection *entity.TickerSelection) error {
	if f.selections == nil {
		f.selections = map[uint]entity.TickerSelection{}
	}
	f.selections[selection.AccountID] = *selection
	return nil
}

type fakeRangeRepo struct {
	mu     sync.Mutex
	ranges map[string]orb.OpeningRange
}

func (f *fakeRangeRepo) Save(_ context.Context, _ uint, _ string, r orb.OpeningRange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ranges == nil {
		f.ranges = map[string]orb.OpeningRange{}
	}
	if _, ok := f.ranges[r.Symbol]; !ok {
		f.ranges[r.Symbol] = r
	}
	return nil
}

func (f *fakeRangeRepo) Load(_ context.Context, _ uint, _ string) ([]orb.OpeningRange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]orb.OpeningRange, 0, len(f.ranges))
	for _, r := range f.ranges {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []dto.TradeEvent
}

func (f *fakeEventRepo) Publish(_ context.Context, event dto.TradeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventRepo) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

type fakeStockRepo struct {
	rows map[string][]entity.DailyORBStock
}

func (f *fakeStockRepo) FindByDate(_ context.Context, scanDate string) ([]entity.DailyORBStock, error) {
	return f.rows[scanDate], nil
}

func (f *fakeStockRepo) FindLatestQualifiedBefore(_ context.Context, scanDate string) ([]entity.DailyORBStock, error) {
	latest := ""
	for date, rows := range f.rows {
		if date >= scanDate || len(rows) == 0 || rows[0].IsFallback {
			continue
		}
		if date > latest {
			latest = date
		}
	}
	return f.rows[latest], nil
}

func (f *fakeStockRepo) ReplaceForDate(_ context.Context, scanDate string, stocks []entity.DailyORBStock) error {
	if f.rows == nil {
		f.rows = map[string][]entity.DailyORBStock{}
	}
	f.rows[scanDate] = stocks
	return nil
}

type fakeRegimeRepo struct {
	rows map[string]entity.MarketRegime
}

func (f *fakeRegimeRepo) FindByDate(_ context.Context, scanDate string) (*entity.MarketRegime, error) {
	row, ok := f.rows[scanDate]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (f *fakeRegimeRepo) Upsert(_ context.Context, regime *entity.MarketRegime) error {
	if f.rows == nil {
		f.rows = map[string]entity.MarketRegime{}
	}
	f.rows[regime.ScanDate] = *regime
	return nil
}

type fakeScanLock struct {
	held map[string]bool
}

func (f *fakeScanLock) Acquire(_ context.Context, scanDate string, _ time.Duration) (bool, error) {
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[scanDate] {
		return false, nil
	}
	f.held[scanDate] = true
	return true, nil
}

func (f *fakeScanLock) Release(_ context.Context, scanDate string) error {
	delete(f.held, scanDate)
	return nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts []entity.TradingAccount
}

func (f *fakeAccountRepo) FindAutoTradingEnabled(_ context.Context) ([]entity.TradingAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []entity.TradingAccount{}
	for _, a := range f.accounts {
		if a.AutoTradingEnabled {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) FindByID(_ context.Context, id uint) (*entity.TradingAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.ID == id {
			acc := a
			return &acc, nil
		}
	}
	return nil, nil
}
