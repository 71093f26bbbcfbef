package consumer

import (
	"context"
	"sync"
	"time"

	"golang-orb-trader/internal/notification/config"
	"golang-orb-trader/internal/notification/service"
	"golang-orb-trader/pkg/common"
	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/utils"

	"github.com/robfig/cron/v3"
)

// RedisConsumer drives the trade event stream handlers and the daily summary schedule.
type RedisConsumer struct {
	cfg                 *config.Config
	notificationService service.NotificationService
	summaryService      service.SummaryService
	logger              *logger.Logger
	loc                 *time.Location
	scheduler           *cron.Cron
	stopChan            chan struct{}
	wg                  sync.WaitGroup
}

// NewRedisConsumer creates a new RedisConsumer.
func NewRedisConsumer(
	cfg *config.Config,
	notificationService service.NotificationService,
	summaryService service.SummaryService,
	loc *time.Location,
	log *logger.Logger,
) *RedisConsumer {
	return &RedisConsumer{
		cfg:                 cfg,
		notificationService: notificationService,
		summaryService:      summaryService,
		logger:              log,
		loc:                 loc,
		scheduler:           cron.New(cron.WithLocation(loc)),
		stopChan:            make(chan struct{}),
	}
}

// Start begins consuming trade events and schedules the daily summary.
func (c *RedisConsumer) Start(ctx context.Context) error {
	c.logger.Info("Redis consumer started")
	c.RegisterStreamHandler(ctx, c.notificationService.ProcessEvents, common.RedisStreamTradeEvents, c.cfg.Notification.StreamTimeout)
	c.RegisterTickerHandler(ctx, c.notificationService.ProcessRetries, c.cfg.Notification.RetryInterval, c.cfg.Notification.StreamTimeout, common.RedisStreamTradeEvents+"-retry")

	_, err := c.scheduler.AddFunc(c.cfg.Notification.SummaryCron, func() {
		summaryCtx, cancel := context.WithTimeout(ctx, c.cfg.Notification.SummaryTimeout)
		defer cancel()
		if err := c.summaryService.SendDailySummary(summaryCtx, time.Now().In(c.loc)); err != nil {
			c.logger.Error("Failed to send daily summary", logger.ErrorField(err))
		}
	})
	if err != nil {
		return err
	}
	c.scheduler.Start()
	c.logger.Info("Daily summary scheduled", logger.StringField("cron", c.cfg.Notification.SummaryCron))
	return nil
}

func (c *RedisConsumer) RegisterStreamHandler(ctx context.Context, fn func(ctx context.Context), streamName string, timeout time.Duration) {
	c.logger.Info("Registering stream handler", logger.Field("stream", streamName))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Redis consumer stopping due to context cancellation")
				return
			case <-c.stopChan:
				c.logger.Info("Redis consumer stopping")
				return
			default:
				ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
				fn(ctxTimeout)
				cancel()
			}
		}
	})
}

func (c *RedisConsumer) RegisterTickerHandler(ctx context.Context, fn func(ctx context.Context), interval time.Duration, timeout time.Duration, name string) {
	c.logger.Info("Registering ticker handler",
		logger.Field("name", name),
		logger.Field("interval", interval),
		logger.Field("timeout", timeout))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
				fn(ctxTimeout)
				cancel()
			case <-ctx.Done():
				c.logger.Info("Ticker handler stopping due to context cancellation", logger.Field("name", name))
				return
			case <-c.stopChan:
				c.logger.Info("Ticker handler stopping", logger.Field("name", name))
				return
			}
		}
	})
}

// Stop gracefully shuts down the consumer.
func (c *RedisConsumer) Stop() {
	<-c.scheduler.Stop().Done()
	close(c.stopChan)
	c.wg.Wait()
	c.logger.Info("Redis consumer stopped")
}
