package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang-orb-trader/internal/entity"
	"golang-orb-trader/internal/trading/config"
	"golang-orb-trader/internal/trading/dto"
	"golang-orb-trader/internal/trading/orb"
	"golang-orb-trader/internal/trading/repository"
	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/metrics"
	"golang-orb-trader/pkg/utils"
)

const (
	regimeHistoryDays = 400
	warningFallback   = "no symbol met the qualification filters; trading the fallback set"
	warningReview     = "more than half of the scan universe has no float data; review the universe"
)

// ScannerService runs the pre-market qualification scan and serves its persisted result.
type ScannerService interface {
	// Scan qualifies the universe for the session of date. Without force, a persisted result is returned as is.
	Scan(ctx context.Context, date time.Time, force bool) (*orb.ScanResult, error)
	// GetResult returns the persisted scan of scanDate, or nil when none exists.
	GetResult(ctx context.Context, scanDate string) (*orb.ScanResult, error)
	GetRegime(ctx context.Context, scanDate string) (*orb.MarketRegime, error)
}

type scannerService struct {
	cfg        *config.Config
	sessionCfg orb.SessionConfig
	log        *logger.Logger
	metrics    *metrics.Recorder
	marketData repository.MarketDataRepository
	stockRepo  repository.DailyORBStockRepository
	regimeRepo repository.MarketRegimeRepository
	scanLock   repository.ScanLockRepository
	events     repository.TradeEventRepository
}

func NewScannerService(
	cfg *config.Config,
	sessionCfg orb.SessionConfig,
	log *logger.Logger,
	rec *metrics.Recorder,
	marketData repository.MarketDataRepository,
	stockRepo repository.DailyORBStockRepository,
	regimeRepo repository.MarketRegimeRepository,
	scanLock repository.ScanLockRepository,
	events repository.TradeEventRepository,
) ScannerService {
	return &scannerService{
		cfg:        cfg,
		sessionCfg: sessionCfg,
		log:        log,
		metrics:    rec,
		marketData: marketData,
		stockRepo:  stockRepo,
		regimeRepo: regimeRepo,
		scanLock:   scanLock,
		events:     events,
	}
}

func (s *scannerService) Scan(ctx context.Context, date time.Time, force bool) (*orb.ScanResult, error) {
	sessionDate := utils.StartOfDay(date, s.sessionCfg.Location)
	scanDate := sessionDate.Format(utils.DateLayout)

	if !force {
		existing, err := s.GetResult(ctx, scanDate)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.log.DebugContext(ctx, "Scan already persisted", logger.StringField("scan_date", scanDate))
			return existing, nil
		}
	}

	acquired, err := s.scanLock.Acquire(ctx, scanDate, s.cfg.Trading.ScanTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire scan lock: %w", err)
	}
	if !acquired {
		return nil, ErrScanInProgress
	}
	defer func() {
		if err := s.scanLock.Release(context.Background(), scanDate); err != nil {
			s.log.Warn("Failed to release scan lock", logger.ErrorField(err), logger.StringField("scan_date", scanDate))
		}
	}()

	start := time.Now()
	report := orb.FilterUniverse(s.cfg.Universe, orb.UniverseRules{
		MaxFloatMillions: s.cfg.Scanner.MaxFloatMillions,
		Exchanges:        s.cfg.Scanner.Exchanges,
	})
	if report.NeedsReview {
		s.log.WarnContext(ctx, "Universe float data mostly missing",
			logger.IntField("missing_float", report.MissingFloat),
			logger.IntField("total", report.Total))
	}

	thresholds := s.cfg.Thresholds()
	stats := s.collectStats(ctx, report.Eligible, sessionDate, thresholds)
	stocks := orb.Qualify(stats, report.Eligible, thresholds, scanDate)
	regime := s.computeRegime(ctx, sessionDate)

	result := &orb.ScanResult{
		Date:         scanDate,
		Stocks:       stocks,
		Regime:       regime,
		Eligible:     len(report.Eligible),
		MissingFloat: report.MissingFloat,
		NeedsReview:  report.NeedsReview,
	}
	if len(stocks) == 0 {
		result.Stocks = s.fallback(ctx, sessionDate)
		result.IsFallback = true
		result.Warning = warningFallback
	}
	if report.NeedsReview {
		result.Warning = joinWarning(result.Warning, warningReview)
	}

	rows := make([]entity.DailyORBStock, len(result.Stocks))
	for i, stock := range result.Stocks {
		rows[i] = entity.NewDailyORBStock(stock)
	}
	if err := s.stockRepo.ReplaceForDate(ctx, scanDate, rows); err != nil {
		return nil, fmt.Errorf("failed to persist qualified stocks: %w", err)
	}
	regimeRow := entity.NewMarketRegime(scanDate, regime)
	if err := s.regimeRepo.Upsert(ctx, &regimeRow); err != nil {
		return nil, fmt.Errorf("failed to persist market regime: %w", err)
	}

	s.metrics.SetQualified(len(result.Stocks))
	s.publish(ctx, result)

	s.log.InfoContext(ctx, "Qualification scan completed",
		logger.StringField("scan_date", scanDate),
		logger.IntField("eligible", result.Eligible),
		logger.IntField("qualified", len(result.Stocks)),
		logger.Field("is_fallback", result.IsFallback),
		logger.StringField("regime", string(regime.Regime)),
		logger.Field("duration", time.Since(start)))

	return result, nil
}

// collectStats fetches daily bars strictly before the session in parallel. A symbol whose data is
// missing or stale is skipped.
func (s *scannerService) collectStats(ctx context.Context, candidates []orb.Candidate, sessionDate time.Time, th orb.Thresholds) []orb.DailyStats {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		stats = make([]orb.DailyStats, 0, len(candidates))
		sem   = make(chan struct{}, s.cfg.Trading.MaxConcurrentData)
	)
	start := sessionDate.AddDate(0, 0, -s.cfg.Scanner.HistoryDays)
	end := sessionDate.Add(-time.Nanosecond)

	for _, c := range candidates {
		symbol := c.Symbol
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			reqCtx, cancel := context.WithTimeout(ctx, s.cfg.Trading.RequestTimeout)
			defer cancel()
			bars, err := s.marketData.GetDailyBars(reqCtx, symbol, start, end)
			if err != nil {
				s.log.WarnContext(ctx, "Skipping symbol without daily bars", logger.StringField("symbol", symbol), logger.ErrorField(err))
				return
			}
			st, err := orb.ComputeDailyStats(symbol, bars, sessionDate, th)
			if err != nil {
				s.log.WarnContext(ctx, "Skipping symbol with incomplete history", logger.StringField("symbol", symbol), logger.ErrorField(err))
				return
			}
			mu.Lock()
			stats = append(stats, st)
			mu.Unlock()
		})
	}
	wg.Wait()
	return stats
}

func (s *scannerService) computeRegime(ctx context.Context, sessionDate time.Time) orb.MarketRegime {
	index := s.cfg.Scanner.IndexSymbol
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.Trading.RequestTimeout)
	defer cancel()

	bars, err := s.marketData.GetDailyBars(reqCtx, index, sessionDate.AddDate(0, 0, -regimeHistoryDays), sessionDate.Add(-time.Nanosecond))
	if err != nil {
		s.log.WarnContext(ctx, "Index history unavailable, defaulting to bearish regime", logger.StringField("symbol", index), logger.ErrorField(err))
		return orb.BearishDefault(index, sessionDate)
	}
	regime, err := orb.ComputeRegime(index, bars, sessionDate, s.cfg.Scanner.IndexSMAPeriod, s.cfg.Scanner.IndexMinBars)
	if err != nil {
		s.log.WarnContext(ctx, "Index history too short, defaulting to bearish regime", logger.StringField("symbol", index), logger.ErrorField(err))
		return orb.BearishDefault(index, sessionDate)
	}
	return regime
}

// fallback reuses the most recent qualified set when it is recent enough, otherwise the static list.
func (s *scannerService) fallback(ctx context.Context, sessionDate time.Time) []orb.QualifiedStock {
	scanDate := sessionDate.Format(utils.DateLayout)

	previous, err := s.stockRepo.FindLatestQualifiedBefore(ctx, scanDate)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to load previous qualified set", logger.ErrorField(err))
	}
	if len(previous) > 0 {
		prevDate, err := utils.ParseDate(previous[0].ScanDate, s.sessionCfg.Location)
		if err == nil {
			daysAgo := s.tradingDaysBetween(prevDate, sessionDate)
			if daysAgo <= s.cfg.Scanner.FallbackReuseDays {
				stocks := make([]orb.QualifiedStock, len(previous))
				for i, row := range previous {
					stocks[i] = row.ToQualified()
				}
				return orb.Reuse(stocks, scanDate, daysAgo)
			}
		}
	}
	return orb.FallbackSet(s.cfg.Scanner.FallbackSymbols, s.cfg.Universe, scanDate)
}

// tradingDaysBetween counts trading days after from up to and including to.
func (s *scannerService) tradingDaysBetween(from, to time.Time) int {
	n := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if s.sessionCfg.IsTradingDay(d) {
			n++
		}
	}
	return n
}

func (s *scannerService) publish(ctx context.Context, result *orb.ScanResult) {
	symbols := make([]string, len(result.Stocks))
	for i, stock := range result.Stocks {
		symbols[i] = stock.Symbol
	}
	event := dto.TradeEvent{
		Type:    dto.EventScanCompleted,
		Symbols: symbols,
		Reason:  fmt.Sprintf("regime %s", result.Regime.Regime),
	}
	if result.IsFallback {
		event.Type = dto.EventScanFallback
		event.Reason = result.Warning
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.WarnContext(ctx, "Failed to publish scan event", logger.ErrorField(err))
	}
}

func (s *scannerService) GetResult(ctx context.Context, scanDate string) (*orb.ScanResult, error) {
	rows, err := s.stockRepo.FindByDate(ctx, scanDate)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	result := &orb.ScanResult{Date: scanDate, Stocks: make([]orb.QualifiedStock, len(rows))}
	for i, row := range rows {
		result.Stocks[i] = row.ToQualified()
		if row.IsFallback {
			result.IsFallback = true
		}
	}
	if result.IsFallback {
		result.Warning = warningFallback
	}

	regime, err := s.GetRegime(ctx, scanDate)
	if err != nil {
		return nil, err
	}
	if regime == nil {
		fallback := orb.BearishDefault(s.cfg.Scanner.IndexSymbol, time.Now())
		regime = &fallback
	}
	result.Regime = *regime
	return result, nil
}

func (s *scannerService) GetRegime(ctx context.Context, scanDate string) (*orb.MarketRegime, error) {
	row, err := s.regimeRepo.FindByDate(ctx, scanDate)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	regime := row.ToRegime()
	return &regime, nil
}

func joinWarning(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

// IsNotReady reports data unavailability that should be retried on the next tick.
func IsNotReady(err error) bool {
	return errors.Is(err, orb.ErrNotReady) || errors.Is(err, repository.ErrNoData)
}
