package repository

import (
	"context"
	"errors"

	"golang-orb-trader/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TickerSelectionRepository interface {
	FindByAccountID(ctx context.Context, accountID uint) (*entity.TickerSelection, error)
	Upsert(ctx context.Context, selection *entity.TickerSelection) error
}

type tickerSelectionRepository struct {
	db *gorm.DB
}

func NewTickerSelectionRepository(db *gorm.DB) TickerSelectionRepository {
	return &tickerSelectionRepository{
		db: db,
	}
}

func (r *tickerSelectionRepository) FindByAccountID(ctx context.Context, accountID uint) (*entity.TickerSelection, error) {
	var selection entity.TickerSelection
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&selection).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &selection, nil
}

func (r *tickerSelectionRepository) Upsert(ctx context.Context, selection *entity.TickerSelection) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"symbols", "updated_at"}),
	}).Create(selection).Error
}
