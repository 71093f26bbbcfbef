package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
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

	"go.uber.org/zap"
)

// Exit reasons recorded on closed positions.
const (
	ExitReasonCheckpoint     = "checkpoint"
	ExitReasonEMATrail       = "ema_trail"
	ExitReasonSessionEnd     = "session_end"
	ExitReasonLossLimit      = "loss_limit"
	ExitReasonStopHit        = "stop_hit"
	ExitReasonTargetHit      = "target_hit"
	ExitReasonEntryNotFilled = "entry_not_filled"
	ExitReasonExternal       = "closed_externally"
)

// MarketInputs are the shared per-tick inputs computed once for all accounts.
type MarketInputs struct {
	Scan            *orb.ScanResult
	VolatilityIndex float64
}

// SessionService runs the intraday lifecycle of each account: range capture, entries, exits and
// the daily risk state.
type SessionService interface {
	// Tick runs one evaluation cycle for account at now.
	Tick(ctx context.Context, account Account, market MarketInputs, now time.Time) error
	// State returns the current risk state of account, restoring it from storage when needed.
	State(ctx context.Context, account Account, now time.Time) (orb.State, error)
	// Stop halts new entries for account. Open positions keep their brackets.
	Stop(ctx context.Context, account Account, reason string, now time.Time) (orb.State, error)
	// Start resumes a manually stopped account. It fails with orb.ErrLockedForDay on a locked day.
	Start(ctx context.Context, account Account, now time.Time) (orb.State, error)
	Ranges(ctx context.Context, account Account, now time.Time) ([]orb.OpeningRange, error)
	Positions(ctx context.Context, account Account, now time.Time) ([]orb.Position, error)
}

type accountSession struct {
	tickMu      sync.Mutex
	restoreMu   sync.Mutex
	ctrl        *orb.Controller
	ranges      *orb.RangeTracker
	book        *orb.Book
	restoredKey string
}

type sessionService struct {
	cfg          *config.Config
	sessionCfg   orb.SessionConfig
	log          *logger.Logger
	metrics      *metrics.Recorder
	marketData   repository.MarketDataRepository
	broker       repository.BrokerRepository
	stateRepo    repository.TradingStateRepository
	tradeLogRepo repository.TradeLogRepository
	tickerRepo   repository.TickerSelectionRepository
	rangeRepo    repository.OpeningRangeRepository
	events       repository.TradeEventRepository
	dispatcher   DispatcherService
	scorer       orb.Scorer
	detector     orb.Detector
	gate         orb.Gate
	exitRule     orb.ExitRule

	mu       sync.Mutex
	sessions map[uint]*accountSession
}

func NewSessionService(
	cfg *config.Config,
	sessionCfg orb.SessionConfig,
	log *logger.Logger,
	rec *metrics.Recorder,
	marketData repository.MarketDataRepository,
	broker repository.BrokerRepository,
	stateRepo repository.TradingStateRepository,
	tradeLogRepo repository.TradeLogRepository,
	tickerRepo repository.TickerSelectionRepository,
	rangeRepo repository.OpeningRangeRepository,
	events repository.TradeEventRepository,
	dispatcher DispatcherService,
	scorer orb.Scorer,
) SessionService {
	return &sessionService{
		cfg:          cfg,
		sessionCfg:   sessionCfg,
		log:          log,
		metrics:      rec,
		marketData:   marketData,
		broker:       broker,
		stateRepo:    stateRepo,
		tradeLogRepo: tradeLogRepo,
		tickerRepo:   tickerRepo,
		rangeRepo:    rangeRepo,
		events:       events,
		dispatcher:   dispatcher,
		scorer:       scorer,
		detector:     orb.NewDetector(cfg.DetectorConfig()),
		gate:         orb.Gate{ShortsOnlyAbove: cfg.Risk.ShortsOnlyAbove},
		exitRule:     cfg.ExitRule(),
		sessions:     make(map[uint]*accountSession),
	}
}

func (s *sessionService) session(accountID uint, sessionKey string) *accountSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	as, ok := s.sessions[accountID]
	if !ok {
		as = &accountSession{
			ctrl:   orb.NewController(accountID, sessionKey, s.cfg.Limits()),
			ranges: orb.NewRangeTracker(),
			book:   orb.NewBook(),
		}
		s.sessions[accountID] = as
	}
	return as
}

// prepare rolls the account over to the session of now and restores persisted state once per session.
func (s *sessionService) prepare(ctx context.Context, account Account, now time.Time) (*accountSession, orb.Session, error) {
	session := s.sessionCfg.SessionFor(now)
	key := session.Key()
	as := s.session(account.ID, key)

	as.restoreMu.Lock()
	defer as.restoreMu.Unlock()

	as.ctrl.Rollover(key)
	as.ranges.Reset(key)
	as.book.Reset(key)
	if as.restoredKey == key {
		return as, session, nil
	}
	if err := s.restore(ctx, account, as, session); err != nil {
		return nil, session, err
	}
	as.restoredKey = key
	return as, session, nil
}

func (s *sessionService) restore(ctx context.Context, account Account, as *accountSession, session orb.Session) error {
	key := session.Key()

	state, err := s.stateRepo.Find(ctx, account.ID, key)
	if err != nil {
		return fmt.Errorf("failed to load trading state: %w", err)
	}
	if state != nil {
		as.ctrl.Restore(state.ToState())
	}

	ranges, err := s.rangeRepo.Load(ctx, account.ID, key)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to load opening ranges, they will be rebuilt from bars",
			logger.Field("account_id", account.ID), logger.ErrorField(err))
	}
	for _, r := range ranges {
		as.ranges.Restore(r)
	}

	accountID := account.ID
	logs, err := s.tradeLogRepo.Find(ctx, repository.TradeLogFilter{
		AccountID: &accountID,
		TradeDate: key,
		Statuses:  []string{entity.TradeStatusOpen, entity.TradeStatusPartial, entity.TradeStatusClosed},
	})
	if err != nil {
		return fmt.Errorf("failed to load trade logs: %w", err)
	}
	for _, tl := range logs {
		p := positionFromLog(tl, session)
		if tl.Status == entity.TradeStatusClosed {
			as.book.RecordClosed(p)
			continue
		}
		as.book.Add(p)
	}

	snap := as.ctrl.Snapshot()
	s.log.InfoContext(ctx, "Session restored",
		logger.Field("account_id", account.ID),
		logger.StringField("session", key),
		logger.IntField("trades_taken", snap.TradesTaken),
		logger.IntField("ranges", len(ranges)),
		logger.IntField("positions", len(logs)))
	return nil
}

func positionFromLog(tl entity.TradeLog, session orb.Session) orb.Position {
	side := orb.Side(tl.Side)
	initialStop := tl.Price - tl.RiskPerShare
	if side == orb.SideShort {
		initialStop = tl.Price + tl.RiskPerShare
	}
	p := orb.Position{
		TradeID:        tl.ID,
		Symbol:         tl.Symbol,
		Side:           side,
		Rank:           tl.Rank,
		Qty:            tl.Qty,
		Entry:          tl.Price,
		Stop:           tl.StopPrice,
		InitialStop:    initialStop,
		Target1:        tl.TargetPrice,
		Target2:        tl.Target2Price,
		R:              tl.RiskPerShare,
		OrderID:        tl.OrderID,
		Extended:       tl.Extended,
		CheckpointDone: tl.Extended,
		HardStopAt:     session.ExtendedEndAt(),
		LastPrice:      tl.Price,
		RealizedPnL:    tl.RealizedPnL,
		OpenedAt:       tl.CreatedAt,
		ExitReason:     tl.ExitReason,
	}
	if tl.Extended {
		p.Trail = orb.TrailEMA
	}
	if tl.Status == entity.TradeStatusPartial {
		p.Status = orb.PositionPartial
		p.PartialFill = true
	}
	return p
}

func (s *sessionService) Tick(ctx context.Context, account Account, market MarketInputs, now time.Time) error {
	session := s.sessionCfg.SessionFor(now)
	as := s.session(account.ID, session.Key())
	as.tickMu.Lock()
	defer as.tickMu.Unlock()

	as, session, err := s.prepare(ctx, account, now)
	if err != nil {
		return err
	}

	phase := session.Phase(now)
	if phase == orb.PhaseClosed || phase == orb.PhasePreOpen {
		return nil
	}
	defer s.persist(ctx, as)

	brokerAccount, err := s.broker.GetAccount(ctx, account.Creds)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	if as.ctrl.UpdatePnL(brokerAccount.DailyPnLPct()) {
		snap := as.ctrl.Snapshot()
		s.metrics.RecordRiskLock()
		s.log.WarnContext(ctx, "Daily loss limit reached, account locked",
			logger.Field("account_id", account.ID),
			logger.Float64Field("daily_pnl_pct", snap.DailyPnLPct))
		s.publish(ctx, dto.TradeEvent{
			Type:        dto.EventRiskLocked,
			AccountID:   account.ID,
			AccountName: account.Name,
			Reason:      snap.LockReason,
		})
		s.persist(ctx, as)
	}

	if as.ctrl.PendingLiquidation() {
		return s.liquidate(ctx, account, as, now)
	}

	if err := s.reconcile(ctx, account, as, session, now); err != nil {
		return err
	}

	if phase == orb.PhaseEnded {
		s.flattenAll(ctx, account, as, ExitReasonSessionEnd, now)
		return nil
	}

	s.manage(ctx, account, as, session, now)

	if phase == orb.PhaseEntry && market.Scan != nil && as.ctrl.CanSubmit() {
		return s.enter(ctx, account, as, session, market, brokerAccount.Equity, now)
	}
	return nil
}

// liquidate cancels every open order and closes every position once per locked day.
func (s *sessionService) liquidate(ctx context.Context, account Account, as *accountSession, now time.Time) error {
	if err := s.broker.CancelAllOrders(ctx, account.Creds); err != nil {
		return fmt.Errorf("failed to cancel orders on lock: %w", err)
	}
	if err := s.broker.CloseAllPositions(ctx, account.Creds); err != nil {
		return fmt.Errorf("failed to close positions on lock: %w", err)
	}
	as.ctrl.MarkLiquidated()
	s.persist(ctx, as)

	symbols := []string{}
	for _, p := range as.book.Open() {
		s.closePosition(ctx, account, as, p, ExitReasonLossLimit, p.LastPrice, now)
		symbols = append(symbols, p.Symbol)
	}
	s.log.WarnContext(ctx, "Account liquidated after loss lock",
		logger.Field("account_id", account.ID), logger.Field("symbols", symbols))
	s.publish(ctx, dto.TradeEvent{
		Type:        dto.EventSessionFlattened,
		AccountID:   account.ID,
		AccountName: account.Name,
		Reason:      ExitReasonLossLimit,
		Symbols:     symbols,
	})
	return nil
}

// reconcile refreshes the book from broker positions and resolves positions the broker no longer holds.
func (s *sessionService) reconcile(ctx context.Context, account Account, as *accountSession, session orb.Session, now time.Time) error {
	open := as.book.Open()
	if len(open) == 0 {
		return nil
	}

	positions, err := s.broker.ListPositions(ctx, account.Creds)
	if err != nil {
		return fmt.Errorf("failed to list positions: %w", err)
	}
	held := make(map[string]dto.Position, len(positions))
	for _, p := range positions {
		held[p.Symbol] = p
	}

	var orders map[string]dto.Order
	for _, p := range open {
		bp, ok := held[p.Symbol]
		if ok {
			s.refresh(ctx, as, p, bp)
			continue
		}

		if orders == nil {
			list, err := s.broker.ListOrders(ctx, account.Creds, dto.OrderStatusAll, session.Date)
			if err != nil {
				return fmt.Errorf("failed to list orders: %w", err)
			}
			orders = make(map[string]dto.Order, len(list))
			for _, o := range list {
				orders[o.ID] = o
			}
		}
		s.resolveMissing(ctx, account, as, p, orders, now)
	}
	return nil
}

func (s *sessionService) refresh(ctx context.Context, as *accountSession, p orb.Position, bp dto.Position) {
	qty := int(math.Abs(bp.Qty))
	becamePartial := false
	as.book.Update(p.Symbol, func(pos *orb.Position) {
		pos.LastPrice = bp.CurrentPrice
		pos.UnrealizedPnL = bp.UnrealizedPL
		pos.RemainingQty = qty
		if qty < pos.Qty && !pos.PartialFill {
			pos.PartialFill = true
			pos.Status = orb.PositionPartial
			becamePartial = true
		}
	})
	if becamePartial {
		s.log.InfoContext(ctx, "Partial fill detected",
			logger.StringField("symbol", p.Symbol), logger.IntField("qty", qty), logger.IntField("ordered", p.Qty))
		s.updateLog(ctx, p.TradeID, map[string]interface{}{"status": entity.TradeStatusPartial})
	}
}

// resolveMissing closes a book position the broker no longer reports, using the bracket legs to
// tell a stop from a target. An entry that is still working is left alone.
func (s *sessionService) resolveMissing(ctx context.Context, account Account, as *accountSession, p orb.Position, orders map[string]dto.Order, now time.Time) {
	order, ok := orders[p.OrderID]
	if !ok {
		s.closePosition(ctx, account, as, p, ExitReasonExternal, p.LastPrice, now)
		return
	}
	if order.FilledQty <= 0 {
		switch order.Status {
		case "canceled", "expired", "rejected":
			s.closePosition(ctx, account, as, p, ExitReasonEntryNotFilled, 0, now)
		}
		return
	}

	for _, leg := range order.Legs {
		if leg.Status != "filled" {
			continue
		}
		reason := ExitReasonTargetHit
		if leg.Type == "stop" || leg.Type == "stop_limit" {
			reason = ExitReasonStopHit
		}
		s.closePosition(ctx, account, as, p, reason, leg.FilledAvgPrice, now)
		return
	}
	s.closePosition(ctx, account, as, p, ExitReasonExternal, p.LastPrice, now)
}

// manage runs the checkpoint decision and the trailing stop of extended positions.
func (s *sessionService) manage(ctx context.Context, account Account, as *accountSession, session orb.Session, now time.Time) {
	for _, p := range as.book.Open() {
		if p.LastPrice <= 0 {
			continue
		}

		if !p.CheckpointDone && !now.Before(session.CheckpointAt()) {
			s.checkpoint(ctx, account, as, p, session, now)
			continue
		}
		if p.Extended {
			s.trail(ctx, account, as, p, session, now)
		}
	}
}

func (s *sessionService) checkpoint(ctx context.Context, account Account, as *accountSession, p orb.Position, session orb.Session, now time.Time) {
	r := p.UnrealizedR()
	if s.exitRule.Checkpoint(p.Side, p.Entry, p.InitialStop, p.LastPrice) == orb.ExitFlatten {
		s.log.InfoContext(ctx, "Checkpoint flatten",
			logger.StringField("symbol", p.Symbol), logger.Float64Field("r", r))
		s.flatten(ctx, account, as, p, ExitReasonCheckpoint, now)
		return
	}

	as.book.Update(p.Symbol, func(pos *orb.Position) {
		pos.CheckpointDone = true
		pos.Extended = true
		pos.Trail = orb.TrailEMA
		pos.HardStopAt = session.ExtendedEndAt()
	})
	s.updateLog(ctx, p.TradeID, map[string]interface{}{"extended": true})
	s.log.InfoContext(ctx, "Position extended past checkpoint",
		logger.StringField("symbol", p.Symbol), logger.Float64Field("r", r))
	s.publish(ctx, dto.TradeEvent{
		Type:        dto.EventPositionExtended,
		AccountID:   account.ID,
		AccountName: account.Name,
		Symbol:      p.Symbol,
		Side:        string(p.Side),
		Qty:         p.RemainingQty,
		Price:       p.LastPrice,
		StopPrice:   p.Stop,
		R:           r,
		Rank:        p.Rank,
	})
}

// trail flattens an extended position that crosses its EMA and otherwise ratchets the bracket stop toward it.
func (s *sessionService) trail(ctx context.Context, account Account, as *accountSession, p orb.Position, session orb.Session, now time.Time) {
	fields := []zap.Field{
		logger.Field("account_id", account.ID),
		logger.StringField("symbol", p.Symbol),
	}

	bars, err := s.marketData.GetIntradayBars(ctx, p.Symbol, dto.Timeframe1Min, session.OpenAt(), now)
	if err != nil {
		s.log.WarnContext(ctx, "Trail bars unavailable", append(fields, logger.ErrorField(err))...)
		return
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	ema, ok := orb.EMA(closes, s.exitRule.EMAPeriod)
	if !ok {
		return
	}

	if orb.TrailBreached(p.Side, p.LastPrice, ema) {
		s.log.InfoContext(ctx, "EMA trail breached", append(fields, logger.Float64Field("ema", ema))...)
		s.flatten(ctx, account, as, p, ExitReasonEMATrail, now)
		return
	}

	stop, moved := orb.RatchetStop(p.Side, p.Stop, orb.RoundPrice(ema))
	if !moved {
		return
	}
	legID := p.StopOrderID
	if legID == "" {
		legID, err = s.findStopLeg(ctx, account, p, session)
		if err != nil {
			s.log.WarnContext(ctx, "Stop leg not found", append(fields, logger.ErrorField(err))...)
			return
		}
	}
	if _, err := s.broker.ReplaceOrderStop(ctx, account.Creds, legID, stop); err != nil {
		s.log.WarnContext(ctx, "Failed to ratchet stop", append(fields, logger.ErrorField(err))...)
		return
	}

	as.book.Update(p.Symbol, func(pos *orb.Position) {
		pos.Stop = stop
		pos.StopOrderID = legID
	})
	s.updateLog(ctx, p.TradeID, map[string]interface{}{"stop_price": stop})
	s.log.DebugContext(ctx, "Stop ratcheted", append(fields, logger.Float64Field("stop", stop))...)
}

func (s *sessionService) findStopLeg(ctx context.Context, account Account, p orb.Position, session orb.Session) (string, error) {
	orders, err := s.broker.ListOrders(ctx, account.Creds, dto.OrderStatusOpen, session.Date)
	if err != nil {
		return "", err
	}
	for _, o := range orders {
		if o.ID != p.OrderID {
			continue
		}
		if leg, ok := o.StopLeg(); ok {
			return leg.ID, nil
		}
	}
	return "", fmt.Errorf("no open stop leg for order %s", p.OrderID)
}

func (s *sessionService) flattenAll(ctx context.Context, account Account, as *accountSession, reason string, now time.Time) {
	open := as.book.Open()
	if len(open) == 0 {
		return
	}
	symbols := []string{}
	for _, p := range open {
		if s.flatten(ctx, account, as, p, reason, now) {
			symbols = append(symbols, p.Symbol)
		}
	}
	if len(symbols) == 0 {
		return
	}
	s.publish(ctx, dto.TradeEvent{
		Type:        dto.EventSessionFlattened,
		AccountID:   account.ID,
		AccountName: account.Name,
		Reason:      reason,
		Symbols:     symbols,
	})
}

// flatten closes one position at the broker. A failed close is retried on the next tick.
func (s *sessionService) flatten(ctx context.Context, account Account, as *accountSession, p orb.Position, reason string, now time.Time) bool {
	if err := s.broker.ClosePosition(ctx, account.Creds, p.Symbol); err != nil {
		s.log.ErrorContext(ctx, "Failed to flatten position",
			logger.Field("account_id", account.ID),
			logger.StringField("symbol", p.Symbol),
			logger.StringField("reason", reason),
			logger.ErrorField(err))
		return false
	}
	s.closePosition(ctx, account, as, p, reason, p.LastPrice, now)
	return true
}

func (s *sessionService) closePosition(ctx context.Context, account Account, as *accountSession, p orb.Position, reason string, exitPrice float64, now time.Time) {
	pnl := 0.0
	if exitPrice > 0 {
		qty := float64(p.RemainingQty)
		if qty == 0 {
			qty = float64(p.Qty)
		}
		pnl = (exitPrice - p.Entry) * qty
		if p.Side == orb.SideShort {
			pnl = -pnl
		}
	}
	as.book.Update(p.Symbol, func(pos *orb.Position) {
		pos.RealizedPnL = pnl
	})
	if _, ok := as.book.Close(p.Symbol, reason, now); !ok {
		return
	}
	s.metrics.RecordExit(reason)

	s.updateLog(ctx, p.TradeID, map[string]interface{}{
		"status":       entity.TradeStatusClosed,
		"exit_reason":  reason,
		"exit_price":   exitPrice,
		"realized_pnl": pnl,
	})
	s.log.InfoContext(ctx, "Position closed",
		logger.Field("account_id", account.ID),
		logger.StringField("symbol", p.Symbol),
		logger.StringField("reason", reason),
		logger.Float64Field("exit_price", exitPrice),
		logger.Float64Field("realized_pnl", pnl))
	if reason == ExitReasonCheckpoint || reason == ExitReasonEMATrail {
		s.publish(ctx, dto.TradeEvent{
			Type:        dto.EventPositionFlattened,
			AccountID:   account.ID,
			AccountName: account.Name,
			Symbol:      p.Symbol,
			Side:        string(p.Side),
			Qty:         p.RemainingQty,
			Price:       exitPrice,
			R:           p.UnrealizedR(),
			Rank:        p.Rank,
			Reason:      reason,
		})
	}
}

type entryInputs struct {
	rangeBars []dto.Bar
	bars      []dto.Bar
	trade     *dto.LatestTrade
	err       error
}

// enter evaluates the active tickers in rank order and dispatches approved breakouts.
func (s *sessionService) enter(ctx context.Context, account Account, as *accountSession, session orb.Session, market MarketInputs, equity float64, now time.Time) error {
	stocks, err := s.activeStocks(ctx, account, market.Scan.Stocks)
	if err != nil {
		return err
	}
	if len(stocks) == 0 {
		return nil
	}

	inputs := s.fetchEntryInputs(ctx, as, session, stocks, now)
	regime := market.Scan.Regime

	for i, stock := range stocks {
		symbol := stock.Symbol
		fields := []zap.Field{
			logger.Field("account_id", account.ID),
			logger.StringField("symbol", symbol),
			logger.IntField("rank", stock.Rank),
		}
		in := inputs[i]
		if in.err != nil {
			if IsNotReady(in.err) {
				s.log.DebugContext(ctx, "Entry data not ready", append(fields, logger.ErrorField(in.err))...)
			} else {
				s.log.WarnContext(ctx, "Entry data unavailable", append(fields, logger.ErrorField(in.err))...)
			}
			continue
		}

		wasFormed := as.ranges.State(symbol) == orb.RangeFormed
		r, state := as.ranges.Observe(symbol, session, in.rangeBars, now)
		if state != orb.RangeFormed {
			continue
		}
		if !wasFormed {
			if err := s.rangeRepo.Save(ctx, account.ID, session.Key(), r); err != nil {
				s.log.WarnContext(ctx, "Failed to persist opening range", append(fields, logger.ErrorField(err))...)
			}
		}

		if _, open := as.book.Get(symbol); open {
			continue
		}
		if entries := as.book.Entries(symbol); entries > 0 {
			if entries >= s.cfg.Risk.MaxEntriesPerSymbol || !session.InReentryWindow(now) {
				continue
			}
		}
		if gap, ok := orb.GapPct(stock.Price, r.Open); ok && math.Abs(gap) > s.cfg.Risk.CoolOffGapPct {
			s.log.DebugContext(ctx, "Opening gap too large, cooling off", append(fields, logger.Float64Field("gap_pct", gap))...)
			continue
		}

		ratio, err := orb.VolumeRatio(in.bars, s.cfg.Risk.VolumeLookback)
		if err != nil {
			continue
		}
		price := in.trade.Price
		sig, ok := s.detector.Evaluate(r, price, ratio, now)
		if !ok {
			continue
		}
		s.metrics.RecordSignal(string(sig.Side))

		if allowed, reason := s.gate.Allow(sig.Side, regime, market.VolatilityIndex); !allowed {
			s.log.InfoContext(ctx, "Signal gated", append(fields, logger.StringField("side", string(sig.Side)), logger.StringField("reason", reason))...)
			continue
		}

		vwap, hasVWAP := orb.VWAP(in.bars, s.cfg.Risk.VWAPLookback)
		if !now.Before(session.CheckpointAt()) && ratio < s.cfg.Risk.LowVolumeRatio && hasVWAP {
			if (sig.Side == orb.SideLong && price < vwap) || (sig.Side == orb.SideShort && price > vwap) {
				s.log.DebugContext(ctx, "Low volume signal on the wrong side of VWAP", fields...)
				continue
			}
		}

		advice, err := s.scorer.Score(ctx, orb.SnapshotOf(sig, stock.Rank, regime.Regime, vwap))
		var advicePtr *orb.Advice
		if err == nil {
			if advice.Vetoes() {
				s.log.InfoContext(ctx, "Advisory veto", append(fields, logger.StringField("reason", advice.Reason))...)
				continue
			}
			if advice.Source != orb.SourceRule && advice.Confidence < s.cfg.Risk.MinConfidence {
				continue
			}
			advicePtr = &advice
		}

		decision := as.ctrl.Approve(orb.Proposal{
			Signal:          sig,
			Rank:            stock.Rank,
			Equity:          equity,
			Regime:          regime,
			VolatilityIndex: market.VolatilityIndex,
			Advice:          advicePtr,
		})
		if !decision.Allow {
			s.metrics.RecordRiskRejection(decision.Reason)
			s.log.InfoContext(ctx, "Risk rejected signal", append(fields, logger.StringField("reason", decision.Reason))...)
			switch decision.Reason {
			case orb.ReasonTradeCap, orb.ReasonLocked, orb.ReasonManualStop:
				return nil
			}
			continue
		}

		result := s.dispatcher.Dispatch(ctx, account, as.ctrl, session.Key(), decision.Approval)
		if result.Err != nil {
			if errors.Is(result.Err, ErrHalted) {
				return nil
			}
			if errors.Is(result.Err, repository.ErrUnauthorized) {
				return result.Err
			}
			continue
		}
		s.track(as, session, decision.Approval, result, now)
	}
	return nil
}

func (s *sessionService) track(as *accountSession, session orb.Session, approval orb.Approval, result DispatchResult, now time.Time) {
	p := orb.Position{
		Symbol:         approval.Symbol,
		Side:           approval.Side,
		Rank:           approval.Rank,
		Qty:            approval.Qty,
		Entry:          approval.Entry,
		Stop:           approval.Levels.Stop,
		InitialStop:    approval.Levels.Stop,
		Target1:        approval.Levels.Target1,
		Target2:        approval.Levels.Target2,
		R:              approval.Levels.R,
		CheckpointDone: !now.Before(session.CheckpointAt()),
		HardStopAt:     session.ExtendedEndAt(),
		LastPrice:      approval.Entry,
		OpenedAt:       now,
	}
	if result.TradeLog != nil {
		p.TradeID = result.TradeLog.ID
	}
	if result.Order != nil {
		p.OrderID = result.Order.ID
		if leg, ok := result.Order.StopLeg(); ok {
			p.StopOrderID = leg.ID
		}
	}
	as.book.Add(p)
}

// activeStocks returns the top qualified stocks, restricted to the account's ticker selection when one exists.
func (s *sessionService) activeStocks(ctx context.Context, account Account, stocks []orb.QualifiedStock) ([]orb.QualifiedStock, error) {
	selection, err := s.tickerRepo.FindByAccountID(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticker selection: %w", err)
	}
	var allowed map[string]struct{}
	if selection != nil && len(selection.Symbols) > 0 {
		allowed = make(map[string]struct{}, len(selection.Symbols))
		for _, symbol := range selection.Symbols {
			allowed[strings.ToUpper(symbol)] = struct{}{}
		}
	}

	out := make([]orb.QualifiedStock, 0, s.cfg.Trading.MaxActiveTickers)
	for _, stock := range stocks {
		if allowed != nil {
			if _, ok := allowed[stock.Symbol]; !ok {
				continue
			}
		}
		out = append(out, stock)
		if len(out) == s.cfg.Trading.MaxActiveTickers {
			break
		}
	}
	return out, nil
}

// fetchEntryInputs loads bars and the latest trade of every active ticker in parallel.
func (s *sessionService) fetchEntryInputs(ctx context.Context, as *accountSession, session orb.Session, stocks []orb.QualifiedStock, now time.Time) []entryInputs {
	inputs := make([]entryInputs, len(stocks))
	var wg sync.WaitGroup
	for i, stock := range stocks {
		symbol := stock.Symbol
		needRange := as.ranges.State(symbol) != orb.RangeFormed
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			reqCtx, cancel := context.WithTimeout(ctx, s.cfg.Trading.RequestTimeout)
			defer cancel()

			var in entryInputs
			if needRange {
				in.rangeBars, in.err = s.marketData.GetIntradayBars(reqCtx, symbol, dto.Timeframe5Min, session.OpenAt(), session.RangeEndAt())
				if in.err != nil {
					inputs[i] = in
					return
				}
			}
			in.bars, in.err = s.marketData.GetIntradayBars(reqCtx, symbol, dto.Timeframe1Min, session.OpenAt(), now)
			if in.err != nil {
				inputs[i] = in
				return
			}
			in.trade, in.err = s.marketData.GetLatestTrade(reqCtx, symbol)
			inputs[i] = in
		})
	}
	wg.Wait()
	return inputs
}

func (s *sessionService) State(ctx context.Context, account Account, now time.Time) (orb.State, error) {
	as, _, err := s.prepare(ctx, account, now)
	if err != nil {
		return orb.State{}, err
	}
	return as.ctrl.Snapshot(), nil
}

func (s *sessionService) Stop(ctx context.Context, account Account, reason string, now time.Time) (orb.State, error) {
	as, _, err := s.prepare(ctx, account, now)
	if err != nil {
		return orb.State{}, err
	}
	if reason == "" {
		reason = "manual stop"
	}
	if as.ctrl.Stop(reason) {
		s.persist(ctx, as)
		s.log.InfoContext(ctx, "Account manually stopped", logger.Field("account_id", account.ID), logger.StringField("reason", reason))
		s.publish(ctx, dto.TradeEvent{
			Type:        dto.EventManualStop,
			AccountID:   account.ID,
			AccountName: account.Name,
			Reason:      reason,
		})
	}
	return as.ctrl.Snapshot(), nil
}

func (s *sessionService) Start(ctx context.Context, account Account, now time.Time) (orb.State, error) {
	as, _, err := s.prepare(ctx, account, now)
	if err != nil {
		return orb.State{}, err
	}
	wasStopped := as.ctrl.Snapshot().ManualStop
	if err := as.ctrl.Start(); err != nil {
		return as.ctrl.Snapshot(), err
	}
	if wasStopped {
		s.persist(ctx, as)
		s.log.InfoContext(ctx, "Account manually started", logger.Field("account_id", account.ID))
		s.publish(ctx, dto.TradeEvent{
			Type:        dto.EventManualStart,
			AccountID:   account.ID,
			AccountName: account.Name,
		})
	}
	return as.ctrl.Snapshot(), nil
}

func (s *sessionService) Ranges(ctx context.Context, account Account, now time.Time) ([]orb.OpeningRange, error) {
	as, _, err := s.prepare(ctx, account, now)
	if err != nil {
		return nil, err
	}
	ranges := as.ranges.Ranges()
	sortRanges(ranges)
	return ranges, nil
}

func (s *sessionService) Positions(ctx context.Context, account Account, now time.Time) ([]orb.Position, error) {
	as, _, err := s.prepare(ctx, account, now)
	if err != nil {
		return nil, err
	}
	return as.book.All(), nil
}

func sortRanges(ranges []orb.OpeningRange) {
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Symbol < ranges[j].Symbol })
}

func (s *sessionService) persist(ctx context.Context, as *accountSession) {
	row := entity.NewTradingState(as.ctrl.Snapshot())
	if err := s.stateRepo.Upsert(ctx, &row); err != nil {
		s.log.ErrorContext(ctx, "Failed to persist trading state",
			logger.Field("account_id", row.AccountID), logger.ErrorField(err))
	}
}

func (s *sessionService) updateLog(ctx context.Context, id uint, fields map[string]interface{}) {
	if id == 0 {
		return
	}
	if err := s.tradeLogRepo.UpdateFields(ctx, id, fields); err != nil {
		s.log.ErrorContext(ctx, "Failed to update trade log", logger.Field("trade_id", id), logger.ErrorField(err))
	}
}

func (s *sessionService) publish(ctx context.Context, event dto.TradeEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.WarnContext(ctx, "Failed to publish trade event", logger.ErrorField(err), logger.StringField("type", event.Type))
	}
}
