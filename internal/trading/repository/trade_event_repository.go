package repository

import (
	"context"
	"encoding/json"
	"time"

	"golang-orb-trader/internal/trading/dto"
	"golang-orb-trader/pkg/common"

	"github.com/redis/go-redis/v9"
)

// TradeEventRepository publishes trade events for the notification service.
type TradeEventRepository interface {
	Publish(ctx context.Context, event dto.TradeEvent) error
}

type tradeEventRepository struct {
	redisClient *redis.Client
	maxLen      int64
}

func NewTradeEventRepository(redisClient *redis.Client, maxLen int64) TradeEventRepository {
	return &tradeEventRepository{
		redisClient: redisClient,
		maxLen:      maxLen,
	}
}

func (r *tradeEventRepository) Publish(ctx context.Context, event dto.TradeEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: common.RedisStreamTradeEvents,
		Values: map[string]interface{}{"payload": payload},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	return r.redisClient.XAdd(ctx, args).Err()
}
