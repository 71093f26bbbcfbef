package repository

import (
	"context"
	"errors"

	"golang-orb-trader/internal/entity"

	"gorm.io/gorm"
)

type TradingAccountRepository interface {
	FindAutoTradingEnabled(ctx context.Context) ([]entity.TradingAccount, error)
	FindByID(ctx context.Context, id uint) (*entity.TradingAccount, error)
}

type tradingAccountRepository struct {
	db *gorm.DB
}

func NewTradingAccountRepository(db *gorm.DB) TradingAccountRepository {
	return &tradingAccountRepository{
		db: db,
	}
}

func (r *tradingAccountRepository) FindAutoTradingEnabled(ctx context.Context) ([]entity.TradingAccount, error) {
	var accounts []entity.TradingAccount
	if err := r.db.WithContext(ctx).Where("auto_trading_enabled = ?", true).Order("id ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *tradingAccountRepository) FindByID(ctx context.Context, id uint) (*entity.TradingAccount, error) {
	var account entity.TradingAccount
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}
