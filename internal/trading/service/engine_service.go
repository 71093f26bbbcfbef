package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang-orb-trader/internal/entity"
	"golang-orb-trader/internal/trading/config"
	"golang-orb-trader/internal/trading/orb"
	"golang-orb-trader/internal/trading/repository"
	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/metrics"
	"golang-orb-trader/pkg/utils"

	"github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"
)

// tickGrace keeps the loop running past the hard end so the session_end flatten can be retried.
const tickGrace = 15 * time.Minute

// EngineService drives the pre-market scan and the polling loop over all auto-trading accounts.
type EngineService interface {
	Start(ctx context.Context)
	// RunTick evaluates every enabled account once at now.
	RunTick(ctx context.Context, now time.Time)
}

type engineService struct {
	cfg         *config.Config
	sessionCfg  orb.SessionConfig
	log         *logger.Logger
	metrics     *metrics.Recorder
	accountRepo repository.TradingAccountRepository
	marketData  repository.MarketDataRepository
	scanner     ScannerService
	sessions    SessionService
	quarantine  *cache.Cache
	cronParser  cron.Parser
	scanning    atomic.Bool
}

func NewEngineService(
	cfg *config.Config,
	sessionCfg orb.SessionConfig,
	log *logger.Logger,
	rec *metrics.Recorder,
	accountRepo repository.TradingAccountRepository,
	marketData repository.MarketDataRepository,
	scanner ScannerService,
	sessions SessionService,
) EngineService {
	return &engineService{
		cfg:         cfg,
		sessionCfg:  sessionCfg,
		log:         log,
		metrics:     rec,
		accountRepo: accountRepo,
		marketData:  marketData,
		scanner:     scanner,
		sessions:    sessions,
		quarantine:  cache.New(cfg.Trading.AuthQuarantine, 2*cfg.Trading.AuthQuarantine),
		cronParser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Start schedules the daily scan, catches up a missed scan and polls until ctx is done.
func (s *engineService) Start(ctx context.Context) {
	scheduler := cron.New(cron.WithLocation(s.sessionCfg.Location), cron.WithParser(s.cronParser))
	if _, err := scheduler.AddFunc(s.cfg.Trading.ScanCron, func() { s.scan(ctx, time.Now()) }); err != nil {
		s.log.Error("Invalid scan schedule, scans will run on demand only",
			logger.StringField("scan_cron", s.cfg.Trading.ScanCron), logger.ErrorField(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	utils.GoSafe(func() { s.catchUpScan(ctx, time.Now()) })

	ticker := time.NewTicker(s.cfg.Trading.PollInterval)
	defer ticker.Stop()

	s.log.Info("Trading engine started", logger.Field("poll_interval", s.cfg.Trading.PollInterval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Trading engine stopping")
			return
		case <-ticker.C:
			s.RunTick(ctx, time.Now())
		}
	}
}

// catchUpScan runs the scan when the process starts after the scheduled time on a trading day.
func (s *engineService) catchUpScan(ctx context.Context, now time.Time) {
	if !s.sessionCfg.IsTradingDay(now) {
		return
	}
	schedule, err := s.cronParser.Parse(s.cfg.Trading.ScanCron)
	if err != nil {
		return
	}
	session := s.sessionCfg.SessionFor(now)
	if schedule.Next(session.Date).After(now) || !now.Before(session.ExtendedEndAt()) {
		return
	}
	s.scan(ctx, now)
}

func (s *engineService) scan(ctx context.Context, now time.Time) {
	if !s.sessionCfg.IsTradingDay(now) {
		return
	}
	scanCtx, cancel := context.WithTimeout(ctx, s.cfg.Trading.ScanTimeout)
	defer cancel()

	if _, err := s.scanner.Scan(scanCtx, now, false); err != nil {
		if errors.Is(err, ErrScanInProgress) {
			s.log.Info("Scan already running elsewhere")
			return
		}
		s.log.Error("Qualification scan failed", logger.ErrorField(err))
	}
}

func (s *engineService) RunTick(ctx context.Context, now time.Time) {
	session := s.sessionCfg.SessionFor(now)
	if !s.sessionCfg.IsTradingDay(now) || now.Before(session.OpenAt()) || now.After(session.ExtendedEndAt().Add(tickGrace)) {
		return
	}

	start := time.Now()
	defer func() { s.metrics.RecordTick("engine", time.Since(start).Seconds()) }()

	market, err := s.marketInputs(ctx, session, now)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to prepare market inputs", logger.ErrorField(err))
		return
	}

	accounts, err := s.accountRepo.FindAutoTradingEnabled(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to load trading accounts", logger.ErrorField(err))
		return
	}

	var wg sync.WaitGroup
	for _, acc := range accounts {
		if _, quarantined := s.quarantine.Get(quarantineKey(acc)); quarantined {
			continue
		}
		account := acc
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			s.tickAccount(ctx, account, market, now)
		})
	}
	wg.Wait()
}

func (s *engineService) tickAccount(ctx context.Context, acc entity.TradingAccount, market MarketInputs, now time.Time) {
	tickCtx, cancel := context.WithTimeout(ctx, s.cfg.Trading.TickTimeout)
	defer cancel()

	start := time.Now()
	err := s.sessions.Tick(tickCtx, NewAccount(acc), market, now)
	s.metrics.RecordTick("account", time.Since(start).Seconds())
	if err == nil {
		return
	}

	if errors.Is(err, repository.ErrUnauthorized) {
		s.quarantine.Set(quarantineKey(acc), true, cache.DefaultExpiration)
		s.log.ErrorContext(ctx, "Broker rejected account credentials, quarantining account",
			logger.Field("account_id", acc.ID),
			logger.StringField("account", acc.Name),
			logger.Field("quarantine", s.cfg.Trading.AuthQuarantine),
			logger.ErrorField(err))
		return
	}
	if IsNotReady(err) {
		s.log.DebugContext(ctx, "Account tick skipped, data not ready", logger.Field("account_id", acc.ID), logger.ErrorField(err))
		return
	}
	s.log.ErrorContext(ctx, "Account tick failed", logger.Field("account_id", acc.ID), logger.ErrorField(err))
}

// marketInputs loads the qualified set and the volatility level shared by every account this tick.
// A missing scan is started in the background; until it is persisted the tick carries no scan,
// so open positions are still managed but no entries are taken.
func (s *engineService) marketInputs(ctx context.Context, session orb.Session, now time.Time) (MarketInputs, error) {
	scan, err := s.scanner.GetResult(ctx, session.Key())
	if err != nil {
		return MarketInputs{}, fmt.Errorf("failed to load scan result: %w", err)
	}
	if scan == nil {
		s.scanInBackground(ctx, session, now)
	}

	return MarketInputs{
		Scan:            scan,
		VolatilityIndex: s.volatilityIndex(ctx),
	}, nil
}

func (s *engineService) scanInBackground(ctx context.Context, session orb.Session, now time.Time) {
	if !s.scanning.CompareAndSwap(false, true) {
		return
	}
	s.log.WarnContext(ctx, "No scan for the session yet, scanning in background", logger.StringField("session", session.Key()))
	utils.GoSafe(func() {
		defer s.scanning.Store(false)
		s.scan(ctx, now)
	})
}

// volatilityIndex reads the index itself, then approximates it from the proxy ETF
// (price times the factor, clamped to the proxy bounds), then falls back to the neutral default.
func (s *engineService) volatilityIndex(ctx context.Context) float64 {
	risk := s.cfg.Risk
	if price, ok := s.latestPrice(ctx, risk.VolatilitySymbol); ok {
		return price
	}
	if price, ok := s.latestPrice(ctx, risk.VolatilityProxySymbol); ok {
		level := price * risk.VolatilityProxyFactor
		if level < risk.VolatilityProxyMin {
			level = risk.VolatilityProxyMin
		}
		if level > risk.VolatilityProxyMax {
			level = risk.VolatilityProxyMax
		}
		s.log.DebugContext(ctx, "Volatility index approximated from proxy",
			logger.StringField("proxy", risk.VolatilityProxySymbol),
			logger.Float64Field("proxy_price", price),
			logger.Float64Field("level", level))
		return level
	}
	s.log.DebugContext(ctx, "Volatility index unavailable, using default",
		logger.StringField("symbol", risk.VolatilitySymbol),
		logger.Float64Field("default", risk.DefaultVolatility))
	return risk.DefaultVolatility
}

func (s *engineService) latestPrice(ctx context.Context, symbol string) (float64, bool) {
	if symbol == "" {
		return 0, false
	}
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.Trading.RequestTimeout)
	defer cancel()

	trade, err := s.marketData.GetLatestTrade(reqCtx, symbol)
	if err != nil || trade.Price <= 0 {
		return 0, false
	}
	return trade.Price, true
}

func quarantineKey(acc entity.TradingAccount) string {
	return fmt.Sprintf("%d:%s", acc.ID, acc.APIKeyID)
}
