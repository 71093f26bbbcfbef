package repository

import (
	"context"
	"fmt"
	"strings"

	"golang-orb-trader/internal/entity"

	"gorm.io/gorm"
)

// TradeLogFilter selects trade log rows. At least one field must be set.
type TradeLogFilter struct {
	AccountID *uint
	TradeDate string
	Symbol    string
	Statuses  []string
}

type TradeLogRepository interface {
	Create(ctx context.Context, log *entity.TradeLog) error
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	Find(ctx context.Context, filter TradeLogFilter) ([]entity.TradeLog, error)
}

type tradeLogRepository struct {
	db *gorm.DB
}

func NewTradeLogRepository(db *gorm.DB) TradeLogRepository {
	return &tradeLogRepository{
		db: db,
	}
}

func (r *tradeLogRepository) Create(ctx context.Context, log *entity.TradeLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *tradeLogRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.TradeLog{}).Where("id = ?", id).Updates(fields).Error
}

func (r *tradeLogRepository) Find(ctx context.Context, filter TradeLogFilter) ([]entity.TradeLog, error) {
	var logs []entity.TradeLog

	qFilter := []string{}
	qFilterParam := []interface{}{}

	if filter.AccountID != nil {
		qFilter = append(qFilter, "account_id = ?")
		qFilterParam = append(qFilterParam, *filter.AccountID)
	}

	if filter.TradeDate != "" {
		qFilter = append(qFilter, "trade_date = ?")
		qFilterParam = append(qFilterParam, filter.TradeDate)
	}

	if filter.Symbol != "" {
		qFilter = append(qFilter, "symbol = ?")
		qFilterParam = append(qFilterParam, filter.Symbol)
	}

	if len(filter.Statuses) > 0 {
		qFilter = append(qFilter, "status IN (?)")
		qFilterParam = append(qFilterParam, filter.Statuses)
	}

	if len(qFilter) == 0 {
		return nil, fmt.Errorf("no filter provided")
	}

	if err := r.db.WithContext(ctx).Where(strings.Join(qFilter, " AND "), qFilterParam...).Order("created_at ASC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
