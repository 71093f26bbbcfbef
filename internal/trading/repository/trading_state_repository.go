package repository

import (
	"context"
	"errors"

	"golang-orb-trader/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TradingStateRepository interface {
	Find(ctx context.Context, accountID uint, tradeDate string) (*entity.TradingState, error)
	Upsert(ctx context.Context, state *entity.TradingState) error
}

type tradingStateRepository struct {
	db *gorm.DB
}

func NewTradingStateRepository(db *gorm.DB) TradingStateRepository {
	return &tradingStateRepository{
		db: db,
	}
}

func (r *tradingStateRepository) Find(ctx context.Context, accountID uint, tradeDate string) (*entity.TradingState, error) {
	var state entity.TradingState
	if err := r.db.WithContext(ctx).Where("account_id = ? AND trade_date = ?", accountID, tradeDate).First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (r *tradingStateRepository) Upsert(ctx context.Context, state *entity.TradingState) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "trade_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"trades_today", "daily_pnl_pct", "is_locked", "lock_reason",
			"manual_stop", "stop_reason", "liquidated", "updated_at",
		}),
	}).Create(state).Error
}
