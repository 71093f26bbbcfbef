package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang-orb-trader/internal/entity"
	"golang-orb-trader/internal/notification/dto"
	"golang-orb-trader/internal/notification/repository"
	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/telegram"
	"golang-orb-trader/pkg/utils"

	"github.com/shopspring/decimal"
)

// SummaryService builds and sends the end-of-day performance report.
type SummaryService interface {
	Build(ctx context.Context, tradeDate string) (dto.DailySummary, error)
	SendDailySummary(ctx context.Context, now time.Time) error
}

type summaryService struct {
	log          *logger.Logger
	tradeLogRepo repository.TradeLogRepository
	accountRepo  repository.TradingAccountRepository
	telegramBot  telegram.Notifier
	loc          *time.Location
}

func NewSummaryService(
	log *logger.Logger,
	tradeLogRepo repository.TradeLogRepository,
	accountRepo repository.TradingAccountRepository,
	telegramBot telegram.Notifier,
	loc *time.Location,
) SummaryService {
	return &summaryService{
		log:          log,
		tradeLogRepo: tradeLogRepo,
		accountRepo:  accountRepo,
		telegramBot:  telegramBot,
		loc:          loc,
	}
}

func (s *summaryService) Build(ctx context.Context, tradeDate string) (dto.DailySummary, error) {
	summary := dto.DailySummary{Date: tradeDate, TotalPnL: decimal.Zero}

	logs, err := s.tradeLogRepo.FindByDate(ctx, tradeDate)
	if err != nil {
		return summary, fmt.Errorf("failed to load trade logs: %w", err)
	}
	if len(logs) == 0 {
		return summary, nil
	}

	accounts, err := s.accountRepo.FindAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load trading accounts: %w", err)
	}
	names := make(map[uint]string, len(accounts))
	for _, acc := range accounts {
		names[acc.ID] = acc.Name
	}

	byAccount := map[uint]*dto.AccountSummary{}
	for _, tl := range logs {
		acc, ok := byAccount[tl.AccountID]
		if !ok {
			acc = &dto.AccountSummary{
				AccountID:   tl.AccountID,
				AccountName: names[tl.AccountID],
				RealizedPnL: decimal.Zero,
				ExitReasons: map[string]int{},
			}
			byAccount[tl.AccountID] = acc
		}
		addTrade(acc, tl)
	}

	for _, acc := range byAccount {
		summary.Accounts = append(summary.Accounts, *acc)
		summary.TotalPnL = summary.TotalPnL.Add(acc.RealizedPnL)
	}
	sort.Slice(summary.Accounts, func(i, j int) bool {
		return summary.Accounts[i].AccountID < summary.Accounts[j].AccountID
	})
	return summary, nil
}

func addTrade(acc *dto.AccountSummary, tl entity.TradeLog) {
	switch tl.Status {
	case entity.TradeStatusFailed:
		acc.Failed++
		return
	case entity.TradeStatusOpen, entity.TradeStatusPartial:
		acc.Trades++
		acc.Open++
		return
	}

	acc.Trades++
	if tl.ExitReason != "" {
		acc.ExitReasons[tl.ExitReason]++
	}
	// unfilled entries carry no P&L and count as neither win nor loss
	if tl.ExitReason == "entry_not_filled" {
		return
	}

	pnl := decimal.NewFromFloat(tl.RealizedPnL).Round(2)
	acc.RealizedPnL = acc.RealizedPnL.Add(pnl)
	if pnl.IsPositive() {
		acc.Wins++
	} else {
		acc.Losses++
	}
	if acc.BestSymbol == "" || pnl.GreaterThan(acc.BestPnL) {
		acc.BestSymbol, acc.BestPnL = tl.Symbol, pnl
	}
	if acc.WorstSymbol == "" || pnl.LessThan(acc.WorstPnL) {
		acc.WorstSymbol, acc.WorstPnL = tl.Symbol, pnl
	}
}

func (s *summaryService) SendDailySummary(ctx context.Context, now time.Time) error {
	tradeDate := utils.DateKey(now, s.loc)
	summary, err := s.Build(ctx, tradeDate)
	if err != nil {
		alert := telegram.FormatErrorAlertMessage(now.In(s.loc), "daily summary", err.Error(), tradeDate)
		if sendErr := s.telegramBot.SendMessage(alert); sendErr != nil {
			s.log.WarnContext(ctx, "Failed to send summary error alert", logger.ErrorField(sendErr))
		}
		return err
	}

	for _, msg := range telegram.FormatDailySummary(summary) {
		if err := s.telegramBot.SendMessage(msg); err != nil {
			return fmt.Errorf("failed to send daily summary: %w", err)
		}
	}
	s.log.InfoContext(ctx, "Daily summary sent",
		logger.StringField("trade_date", tradeDate),
		logger.IntField("accounts", len(summary.Accounts)),
		logger.StringField("total_pnl", summary.TotalPnL.StringFixed(2)))
	return nil
}
