package repository

import (
	"context"
	"fmt"
	"time"

	"golang-orb-trader/pkg/common"

	"github.com/redis/go-redis/v9"
)

// ScanLockRepository makes sure a single instance runs the scan of a date at a time.
type ScanLockRepository interface {
	Acquire(ctx context.Context, scanDate string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, scanDate string) error
}

type scanLockRepository struct {
	redisClient *redis.Client
}

func NewScanLockRepository(redisClient *redis.Client) ScanLockRepository {
	return &scanLockRepository{
		redisClient: redisClient,
	}
}

func (r *scanLockRepository) Acquire(ctx context.Context, scanDate string, ttl time.Duration) (bool, error) {
	return r.redisClient.SetNX(ctx, fmt.Sprintf(common.RedisKeyScanLock, scanDate), time.Now().Unix(), ttl).Result()
}

func (r *scanLockRepository) Release(ctx context.Context, scanDate string) error {
	return r.redisClient.Del(ctx, fmt.Sprintf(common.RedisKeyScanLock, scanDate)).Err()
}
