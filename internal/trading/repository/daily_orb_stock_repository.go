package repository

import (
	"context"

	"golang-orb-trader/internal/entity"

	"gorm.io/gorm"
)

type DailyORBStockRepository interface {
	FindByDate(ctx context.Context, scanDate string) ([]entity.DailyORBStock, error)
	// FindLatestQualifiedBefore returns the most recent non fallback set persisted before scanDate.
	FindLatestQualifiedBefore(ctx context.Context, scanDate string) ([]entity.DailyORBStock, error)
	ReplaceForDate(ctx context.Context, scanDate string, stocks []entity.DailyORBStock) error
}

type dailyORBStockRepository struct {
	db *gorm.DB
}

func NewDailyORBStockRepository(db *gorm.DB) DailyORBStockRepository {
	return &dailyORBStockRepository{
		db: db,
	}
}

func (r *dailyORBStockRepository) FindByDate(ctx context.Context, scanDate string) ([]entity.DailyORBStock, error) {
	var stocks []entity.DailyORBStock
	if err := r.db.WithContext(ctx).Where("scan_date = ?", scanDate).Order("rank ASC").Find(&stocks).Error; err != nil {
		return nil, err
	}
	return stocks, nil
}

func (r *dailyORBStockRepository) FindLatestQualifiedBefore(ctx context.Context, scanDate string) ([]entity.DailyORBStock, error) {
	var latest entity.DailyORBStock
	err := r.db.WithContext(ctx).
		Where("scan_date < ? AND is_fallback = ?", scanDate, false).
		Order("scan_date DESC").
		Limit(1).
		Find(&latest).Error
	if err != nil {
		return nil, err
	}
	if latest.ID == 0 {
		return nil, nil
	}
	return r.FindByDate(ctx, latest.ScanDate)
}

// ReplaceForDate swaps the persisted set of scanDate in a single transaction.
func (r *dailyORBStockRepository) ReplaceForDate(ctx context.Context, scanDate string, stocks []entity.DailyORBStock) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scan_date = ?", scanDate).Delete(&entity.DailyORBStock{}).Error; err != nil {
			return err
		}
		if len(stocks) == 0 {
			return nil
		}
		return tx.Create(&stocks).Error
	})
}
