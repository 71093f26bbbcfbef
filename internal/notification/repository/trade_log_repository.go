package repository

import (
	"context"

	"golang-orb-trader/internal/entity"

	"gorm.io/gorm"
)

// TradeLogRepository reads the trade log for reporting.
type TradeLogRepository interface {
	FindByDate(ctx context.Context, tradeDate string) ([]entity.TradeLog, error)
}

type tradeLogRepository struct {
	db *gorm.DB
}

func NewTradeLogRepository(db *gorm.DB) TradeLogRepository {
	return &tradeLogRepository{
		db: db,
	}
}

func (r *tradeLogRepository) FindByDate(ctx context.Context, tradeDate string) ([]entity.TradeLog, error) {
	var logs []entity.TradeLog
	if err := r.db.WithContext(ctx).Where("trade_date = ?", tradeDate).Order("account_id ASC, created_at ASC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// TradingAccountRepository resolves account display names.
type TradingAccountRepository interface {
	FindAll(ctx context.Context) ([]entity.TradingAccount, error)
}

type tradingAccountRepository struct {
	db *gorm.DB
}

func NewTradingAccountRepository(db *gorm.DB) TradingAccountRepository {
	return &tradingAccountRepository{
		db: db,
	}
}

func (r *tradingAccountRepository) FindAll(ctx context.Context) ([]entity.TradingAccount, error) {
	var accounts []entity.TradingAccount
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}
