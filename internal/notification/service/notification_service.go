package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang-orb-trader/internal/notification/config"
	"golang-orb-trader/internal/trading/dto"
	"golang-orb-trader/pkg/common"
	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/telegram"

	"github.com/redis/go-redis/v9"
)

// NotificationService turns trade events from the stream into Telegram messages.
type NotificationService interface {
	// ProcessEvents reads and delivers at most one new event.
	ProcessEvents(ctx context.Context)
	// ProcessRetries reclaims one event left pending past the idle threshold.
	ProcessRetries(ctx context.Context)
}

type notificationService struct {
	cfg         *config.Config
	log         *logger.Logger
	redisClient *redis.Client
	telegramBot telegram.Notifier
	loc         *time.Location
}

func NewNotificationService(cfg *config.Config, log *logger.Logger, redisClient *redis.Client, telegramBot telegram.Notifier, loc *time.Location) NotificationService {
	return &notificationService{
		cfg:         cfg,
		log:         log,
		redisClient: redisClient,
		telegramBot: telegramBot,
		loc:         loc,
	}
}

func (s *notificationService) ProcessEvents(ctx context.Context) {
	streams, err := s.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{common.RedisStreamTradeEvents, ">"},
		Count:    1,
		Block:    2 * time.Second,
	}).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return
		}
		s.log.Error("Failed to read from stream", logger.ErrorField(err))
		return
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return
	}

	message := streams[0].Messages[0]
	event, err := decodeEvent(message)
	if err != nil {
		s.log.Error("Dropping malformed trade event", logger.ErrorField(err), logger.StringField("message_id", message.ID))
		s.ackNDel(ctx, message.ID)
		return
	}

	if err := s.deliver(event); err != nil {
		s.log.Error("Failed to deliver trade event, will retry",
			logger.ErrorField(err),
			logger.StringField("message_id", message.ID),
			logger.StringField("type", event.Type))
		return
	}
	s.ackNDel(ctx, message.ID)
}

func (s *notificationService) ProcessRetries(ctx context.Context) {
	msgs, _, err := s.redisClient.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   common.RedisStreamTradeEvents,
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer + "-retry",
		MinIdle:  s.cfg.Notification.MaxIdleDuration,
		Start:    "0",
		Count:    1,
	}).Result()
	if err != nil {
		s.log.Error("Failed to claim trade event on retry", logger.ErrorField(err))
		return
	}

	if len(msgs) == 0 {
		s.log.Debug("Retry No pending messages found", logger.StringField("stream", common.RedisStreamTradeEvents))
		return
	}

	msg := msgs[0]
	pendingInfo, err := s.redisClient.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: common.RedisStreamTradeEvents,
		Group:  common.RedisStreamGroup,
		Start:  msg.ID,
		End:    msg.ID,
		Count:  1,
	}).Result()
	if err != nil {
		s.log.Error("Failed to get pending info", logger.ErrorField(err))
		return
	}
	if len(pendingInfo) == 0 {
		s.log.Warn("pending msg not found, but exist on xautoclaim",
			logger.StringField("stream", common.RedisStreamTradeEvents),
			logger.StringField("message_id", msg.ID))
		return
	}

	event, err := decodeEvent(msg)
	if err != nil {
		s.log.Error("Dropping malformed trade event", logger.ErrorField(err), logger.StringField("message_id", msg.ID))
		s.ackNDel(ctx, msg.ID)
		return
	}

	if pendingInfo[0].RetryCount > int64(s.cfg.Notification.MaxRetry) {
		s.log.Error("pending msg retry count exceeded",
			logger.StringField("stream", common.RedisStreamTradeEvents),
			logger.StringField("message_id", msg.ID),
			logger.StringField("type", event.Type),
			logger.IntField("retry_count", int(pendingInfo[0].RetryCount)),
			logger.IntField("max_retry", s.cfg.Notification.MaxRetry))
		s.ackNDel(ctx, msg.ID)
		return
	}

	if err := s.deliver(event); err != nil {
		s.log.Error("Failed to deliver trade event on retry",
			logger.ErrorField(err),
			logger.StringField("message_id", msg.ID),
			logger.IntField("retry_count", int(pendingInfo[0].RetryCount)))
		return
	}
	s.ackNDel(ctx, msg.ID)
}

func (s *notificationService) deliver(event dto.TradeEvent) error {
	text := telegram.FormatTradeEvent(event, s.loc)
	if text == "" {
		s.log.Debug("No message for trade event type", logger.StringField("type", event.Type))
		return nil
	}
	return s.telegramBot.SendMessage(text)
}

func (s *notificationService) ackNDel(ctx context.Context, messageID string) {
	if err := s.redisClient.XAck(ctx, common.RedisStreamTradeEvents, common.RedisStreamGroup, messageID).Err(); err != nil {
		s.log.Error("Failed to acknowledge trade event", logger.ErrorField(err), logger.StringField("message_id", messageID))
		return
	}
	if err := s.redisClient.XDel(ctx, common.RedisStreamTradeEvents, messageID).Err(); err != nil {
		s.log.Error("Failed to delete trade event", logger.ErrorField(err), logger.StringField("message_id", messageID))
	}
}

func decodeEvent(message redis.XMessage) (dto.TradeEvent, error) {
	var event dto.TradeEvent
	payload, ok := message.Values["payload"].(string)
	if !ok {
		return event, fmt.Errorf("field 'payload' not found or not a string")
	}
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal trade event: %w", err)
	}
	return event, nil
}
