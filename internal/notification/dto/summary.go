package dto

import "github.com/shopspring/decimal"

// AccountSummary is one account's end-of-day performance.
type AccountSummary struct {
	AccountID   uint
	AccountName string
	Trades      int
	Failed      int
	Open        int
	Wins        int
	Losses      int
	RealizedPnL decimal.Decimal
	BestSymbol  string
	BestPnL     decimal.Decimal
	WorstSymbol string
	WorstPnL    decimal.Decimal
	ExitReasons map[string]int
}

// WinRate returns the share of closed trades with positive P&L, in percent.
func (s AccountSummary) WinRate() decimal.Decimal {
	closed := s.Wins + s.Losses
	if closed == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.Wins)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(closed))).Round(1)
}

// DailySummary is the end-of-day report across every account that traded.
type DailySummary struct {
	Date     string
	Accounts []AccountSummary
	TotalPnL decimal.Decimal
}
