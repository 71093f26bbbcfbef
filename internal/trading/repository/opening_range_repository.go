package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang-orb-trader/internal/trading/orb"
	"golang-orb-trader/pkg/common"

	"github.com/redis/go-redis/v9"
)

const openingRangeTTL = 36 * time.Hour

// OpeningRangeRepository persists formed ranges so a restart inside the session keeps them frozen.
type OpeningRangeRepository interface {
	Save(ctx context.Context, accountID uint, sessionDate string, r orb.OpeningRange) error
	Load(ctx context.Context, accountID uint, sessionDate string) ([]orb.OpeningRange, error)
}

type openingRangeRepository struct {
	redisClient *redis.Client
}

func NewOpeningRangeRepository(redisClient *redis.Client) OpeningRangeRepository {
	return &openingRangeRepository{
		redisClient: redisClient,
	}
}

func (r *openingRangeRepository) Save(ctx context.Context, accountID uint, sessionDate string, rng orb.OpeningRange) error {
	if !rng.IsSet {
		return fmt.Errorf("refusing to persist unformed range for %s", rng.Symbol)
	}
	payload, err := json.Marshal(rng)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(common.RedisKeyOpeningRange, sessionDate, accountID)
	pipe := r.redisClient.TxPipeline()
	pipe.HSetNX(ctx, key, rng.Symbol, payload)
	pipe.Expire(ctx, key, openingRangeTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *openingRangeRepository) Load(ctx context.Context, accountID uint, sessionDate string) ([]orb.OpeningRange, error) {
	key := fmt.Sprintf(common.RedisKeyOpeningRange, sessionDate, accountID)
	values, err := r.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	ranges := make([]orb.OpeningRange, 0, len(values))
	for symbol, raw := range values {
		var rng orb.OpeningRange
		if err := json.Unmarshal([]byte(raw), &rng); err != nil {
			return nil, fmt.Errorf("failed to unmarshal range of %s: %w", symbol, err)
		}
		ranges = append(ranges, rng)
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Symbol < ranges[j].Symbol })
	return ranges, nil
}
