package service

import (
	"context"
	"strings"
	"time"

	"golang-orb-trader/internal/entity"
	"golang-orb-trader/internal/trading/orb"
	"golang-orb-trader/internal/trading/repository"
	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/utils"

	"github.com/lib/pq"
)

// AccountService exposes the per-account risk state and session data to the API.
type AccountService interface {
	RiskState(ctx context.Context, accountID uint) (*orb.State, error)
	Stop(ctx context.Context, accountID uint, reason string) (*orb.State, error)
	Start(ctx context.Context, accountID uint) (*orb.State, error)
	Ranges(ctx context.Context, accountID uint) ([]orb.OpeningRange, error)
	Positions(ctx context.Context, accountID uint) ([]orb.Position, error)
	Trades(ctx context.Context, accountID uint, tradeDate string) ([]entity.TradeLog, error)
	GetTickers(ctx context.Context, accountID uint) ([]string, error)
	UpdateTickers(ctx context.Context, accountID uint, symbols []string) ([]string, error)
}

type accountService struct {
	log          *logger.Logger
	accountRepo  repository.TradingAccountRepository
	tradeLogRepo repository.TradeLogRepository
	tickerRepo   repository.TickerSelectionRepository
	sessions     SessionService
	now          func() time.Time
}

func NewAccountService(
	log *logger.Logger,
	accountRepo repository.TradingAccountRepository,
	tradeLogRepo repository.TradeLogRepository,
	tickerRepo repository.TickerSelectionRepository,
	sessions SessionService,
) AccountService {
	return &accountService{
		log:          log,
		accountRepo:  accountRepo,
		tradeLogRepo: tradeLogRepo,
		tickerRepo:   tickerRepo,
		sessions:     sessions,
		now:          time.Now,
	}
}

func (s *accountService) account(ctx context.Context, accountID uint) (Account, error) {
	acc, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return Account{}, err
	}
	if acc == nil {
		return Account{}, ErrAccountNotFound
	}
	return NewAccount(*acc), nil
}

func (s *accountService) RiskState(ctx context.Context, accountID uint) (*orb.State, error) {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	state, err := s.sessions.State(ctx, account, s.now())
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *accountService) Stop(ctx context.Context, accountID uint, reason string) (*orb.State, error) {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	state, err := s.sessions.Stop(ctx, account, reason, s.now())
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *accountService) Start(ctx context.Context, accountID uint) (*orb.State, error) {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	state, err := s.sessions.Start(ctx, account, s.now())
	if err != nil {
		return &state, err
	}
	return &state, nil
}

func (s *accountService) Ranges(ctx context.Context, accountID uint) ([]orb.OpeningRange, error) {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.sessions.Ranges(ctx, account, s.now())
}

func (s *accountService) Positions(ctx context.Context, accountID uint) ([]orb.Position, error) {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.sessions.Positions(ctx, account, s.now())
}

func (s *accountService) Trades(ctx context.Context, accountID uint, tradeDate string) ([]entity.TradeLog, error) {
	if _, err := s.account(ctx, accountID); err != nil {
		return nil, err
	}
	if tradeDate == "" {
		tradeDate = utils.DateKey(s.now(), utils.GetMarketLocation())
	}
	return s.tradeLogRepo.Find(ctx, repository.TradeLogFilter{
		AccountID: &accountID,
		TradeDate: tradeDate,
	})
}

func (s *accountService) GetTickers(ctx context.Context, accountID uint) ([]string, error) {
	if _, err := s.account(ctx, accountID); err != nil {
		return nil, err
	}
	selection, err := s.tickerRepo.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if selection == nil {
		return []string{}, nil
	}
	return selection.Symbols, nil
}

// UpdateTickers replaces the account's ticker selection. An empty list trades every qualified symbol.
func (s *accountService) UpdateTickers(ctx context.Context, accountID uint, symbols []string) ([]string, error) {
	if _, err := s.account(ctx, accountID); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(symbols))
	normalized := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		normalized = append(normalized, symbol)
	}

	selection := &entity.TickerSelection{
		AccountID: accountID,
		Symbols:   pq.StringArray(normalized),
	}
	if err := s.tickerRepo.Upsert(ctx, selection); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "Ticker selection updated", logger.Field("account_id", accountID), logger.Field("symbols", normalized))
	return normalized, nil
}
