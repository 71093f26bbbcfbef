package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang-orb-trader/internal/entity"
	"golang-orb-trader/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTradeLogs struct {
	rows []entity.TradeLog
	err  error
}

func (f *fakeTradeLogs) FindByDate(_ context.Context, tradeDate string) ([]entity.TradeLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []entity.TradeLog{}
	for _, row := range f.rows {
		if row.TradeDate == tradeDate {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeAccounts struct {
	accounts []entity.TradingAccount
}

func (f *fakeAccounts) FindAll(_ context.Context) ([]entity.TradingAccount, error) {
	return f.accounts, nil
}

func summaryFixture() (*fakeTradeLogs, *fakeAccounts) {
	logs := &fakeTradeLogs{rows: []entity.TradeLog{
		{AccountID: 2, TradeDate: "2025-03-04", Symbol: "ARM", Status: entity.TradeStatusClosed, ExitReason: "target_hit", RealizedPnL: 400.10},
		{AccountID: 2, TradeDate: "2025-03-04", Symbol: "SMCI", Status: entity.TradeStatusClosed, ExitReason: "stop_hit", RealizedPnL: -150.05},
		{AccountID: 2, TradeDate: "2025-03-04", Symbol: "TSLA", Status: entity.TradeStatusFailed},
		{AccountID: 1, TradeDate: "2025-03-04", Symbol: "NVDA", Status: entity.TradeStatusOpen},
		{AccountID: 1, TradeDate: "2025-03-04", Symbol: "AMD", Status: entity.TradeStatusClosed, ExitReason: "entry_not_filled"},
		{AccountID: 1, TradeDate: "2025-03-03", Symbol: "AMD", Status: entity.TradeStatusClosed, RealizedPnL: 999},
	}}
	accounts := &fakeAccounts{accounts: []entity.TradingAccount{{ID: 1, Name: "paper"}, {ID: 2, Name: "live"}}}
	return logs, accounts
}

func TestBuildAggregatesPerAccount(t *testing.T) {
	logs, accounts := summaryFixture()
	svc := NewSummaryService(logger.NewNop(), logs, accounts, &fakeNotifier{}, time.UTC)

	summary, err := svc.Build(context.Background(), "2025-03-04")
	require.NoError(t, err)
	require.Len(t, summary.Accounts, 2)
	assert.Equal(t, "250.05", summary.TotalPnL.StringFixed(2))

	paper := summary.Accounts[0]
	assert.Equal(t, "paper", paper.AccountName)
	assert.Equal(t, 2, paper.Trades)
	assert.Equal(t, 1, paper.Open)
	assert.Equal(t, 0, paper.Wins+paper.Losses)
	assert.Equal(t, 1, paper.ExitReasons["entry_not_filled"])
	assert.True(t, paper.RealizedPnL.IsZero())

	live := summary.Accounts[1]
	assert.Equal(t, "live", live.AccountName)
	assert.Equal(t, 2, live.Trades)
	assert.Equal(t, 1, live.Failed)
	assert.Equal(t, 1, live.Wins)
	assert.Equal(t, 1, live.Losses)
	assert.Equal(t, "50.0", live.WinRate().StringFixed(1))
	assert.Equal(t, "ARM", live.BestSymbol)
	assert.Equal(t, "SMCI", live.WorstSymbol)
	assert.Equal(t, "250.05", live.RealizedPnL.StringFixed(2))
}

func TestSendDailySummary(t *testing.T) {
	logs, accounts := summaryFixture()
	notifier := &fakeNotifier{}
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	svc := NewSummaryService(logger.NewNop(), logs, accounts, notifier, loc)

	// 16:10 ET on 2025-03-04 is already 2025-03-04 21:10 UTC
	require.NoError(t, svc.SendDailySummary(context.Background(), time.Date(2025, 3, 4, 21, 10, 0, 0, time.UTC)))

	sent := notifier.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "2025-03-04")
	assert.Contains(t, sent[0], "$250.05")
	assert.Contains(t, sent[0], "target\\_hit")
}

func TestSendDailySummaryWithoutTrades(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := NewSummaryService(logger.NewNop(), &fakeTradeLogs{}, &fakeAccounts{}, notifier, time.UTC)

	require.NoError(t, svc.SendDailySummary(context.Background(), time.Date(2025, 3, 8, 21, 0, 0, 0, time.UTC)))
	sent := notifier.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "No trades today")
}

func TestSendDailySummaryPropagatesDeliveryError(t *testing.T) {
	logs, accounts := summaryFixture()
	svc := NewSummaryService(logger.NewNop(), logs, accounts, &fakeNotifier{failures: 1}, time.UTC)

	assert.Error(t, svc.SendDailySummary(context.Background(), time.Date(2025, 3, 4, 21, 0, 0, 0, time.UTC)))
}

func TestSendDailySummaryAlertsWhenTradeLogsFail(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := NewSummaryService(logger.NewNop(), &fakeTradeLogs{err: errors.New("connection refused")}, &fakeAccounts{}, notifier, time.UTC)

	err := svc.SendDailySummary(context.Background(), time.Date(2025, 3, 4, 21, 0, 0, 0, time.UTC))
	require.Error(t, err)

	sent := notifier.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "ERROR ALERT")
	assert.Contains(t, sent[0], "connection refused")
	assert.Contains(t, sent[0], "2025-03-04")
}
