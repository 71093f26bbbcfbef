package repository

import (
	"context"
	"errors"

	"golang-orb-trader/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MarketRegimeRepository interface {
	FindByDate(ctx context.Context, scanDate string) (*entity.MarketRegime, error)
	Upsert(ctx context.Context, regime *entity.MarketRegime) error
}

type marketRegimeRepository struct {
	db *gorm.DB
}

func NewMarketRegimeRepository(db *gorm.DB) MarketRegimeRepository {
	return &marketRegimeRepository{
		db: db,
	}
}

func (r *marketRegimeRepository) FindByDate(ctx context.Context, scanDate string) (*entity.MarketRegime, error) {
	var regime entity.MarketRegime
	if err := r.db.WithContext(ctx).Where("scan_date = ?", scanDate).First(&regime).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &regime, nil
}

func (r *marketRegimeRepository) Upsert(ctx context.Context, regime *entity.MarketRegime) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scan_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"regime", "index_symbol", "index_price", "sma200", "degraded"}),
	}).Create(regime).Error
}
