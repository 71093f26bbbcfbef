package service

import (
	"context"
	"encoding/json"
	"errors"

	"golang-orb-trader/internal/entity"
	"golang-orb-trader/internal/trading/dto"
	"golang-orb-trader/internal/trading/orb"
	"golang-orb-trader/internal/trading/repository"
	"golang-orb-trader/pkg/common"
	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/metrics"
	"golang-orb-trader/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Account identifies the brokerage account a session trades.
type Account struct {
	ID    uint
	Name  string
	Creds dto.Credentials
}

func NewAccount(a entity.TradingAccount) Account {
	return Account{
		ID:   a.ID,
		Name: a.Name,
		Creds: dto.Credentials{
			KeyID:     a.APIKeyID,
			SecretKey: a.SecretKey,
			Paper:     a.IsPaperTrading,
		},
	}
}

// DispatchResult is the outcome of one bracket submission.
type DispatchResult struct {
	Placed   bool
	Order    *dto.Order
	TradeLog *entity.TradeLog
	// Err is the submission failure, if any. ErrHalted means nothing was sent.
	Err error
}

// DispatcherService turns an approved trade into a bracket order and settles the reservation.
type DispatcherService interface {
	// Dispatch records the trade under tradeDate, the key of the session that approved it.
	Dispatch(ctx context.Context, account Account, ctrl *orb.Controller, tradeDate string, approval orb.Approval) DispatchResult
}

type dispatcherService struct {
	log          *logger.Logger
	metrics      *metrics.Recorder
	broker       repository.BrokerRepository
	tradeLogRepo repository.TradeLogRepository
	events       repository.TradeEventRepository
}

func NewDispatcherService(
	log *logger.Logger,
	rec *metrics.Recorder,
	broker repository.BrokerRepository,
	tradeLogRepo repository.TradeLogRepository,
	events repository.TradeEventRepository,
) DispatcherService {
	return &dispatcherService{
		log:          log,
		metrics:      rec,
		broker:       broker,
		tradeLogRepo: tradeLogRepo,
		events:       events,
	}
}

// Dispatch submits the bracket unless the account was halted after approval. A lock or manual stop
// cancels an in-flight submission. On success the reservation is committed; otherwise it is released
// so a failed submission does not consume the daily trade budget.
func (s *dispatcherService) Dispatch(ctx context.Context, account Account, ctrl *orb.Controller, tradeDate string, approval orb.Approval) DispatchResult {
	log := s.log.With(
		logger.Field("account_id", account.ID),
		logger.StringField("symbol", approval.Symbol),
		logger.StringField("side", string(approval.Side)),
		logger.IntField("qty", approval.Qty),
	)
	s.metrics.RecordOrderAttempt()

	dispatchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	halted := ctrl.Halted()
	utils.GoSafe(func() {
		select {
		case <-halted:
			cancel()
		case <-dispatchCtx.Done():
		}
	})

	if !ctrl.CanSubmit() {
		ctrl.Release(approval)
		s.metrics.RecordOrderHalted()
		log.InfoContext(ctx, "Approved order suppressed by halt")
		return DispatchResult{Err: ErrHalted}
	}

	req := dto.BracketOrderRequest{
		Symbol:        approval.Symbol,
		Side:          orderSide(approval.Side),
		Qty:           approval.Qty,
		StopPrice:     approval.Levels.Stop,
		TargetPrice:   approval.Levels.Target1,
		ClientOrderID: uuid.NewString(),
	}
	order, err := s.broker.PlaceBracketOrder(dispatchCtx, account.Creds, req)
	if err != nil {
		ctrl.Release(approval)
		if isHalted(halted) && errors.Is(err, context.Canceled) {
			s.metrics.RecordOrderHalted()
			log.InfoContext(ctx, "In-flight order canceled by halt")
			return DispatchResult{Err: ErrHalted}
		}

		s.metrics.RecordOrderFailed()
		log.ErrorContext(ctx, "Bracket order rejected", logger.ErrorField(err))
		tradeLog := s.newTradeLog(account, tradeDate, approval, req.ClientOrderID, entity.TradeStatusFailed)
		tradeLog.ErrorMessage = providerMessage(err)
		if err := s.tradeLogRepo.Create(ctx, tradeLog); err != nil {
			log.ErrorContext(ctx, "Failed to record failed trade", logger.ErrorField(err))
		}
		s.publish(ctx, account, approval, dto.EventOrderFailed, tradeLog.ErrorMessage)
		return DispatchResult{TradeLog: tradeLog, Err: err}
	}

	if _, ok := ctrl.Commit(approval); !ok {
		log.WarnContext(ctx, "Order placed for an unknown reservation", logger.StringField("order_id", order.ID))
	}
	s.metrics.RecordOrderPlaced()

	tradeLog := s.newTradeLog(account, tradeDate, approval, req.ClientOrderID, entity.TradeStatusOpen)
	tradeLog.OrderID = order.ID
	if err := s.tradeLogRepo.Create(ctx, tradeLog); err != nil {
		log.ErrorContext(ctx, "Failed to record placed trade", logger.ErrorField(err), logger.StringField("order_id", order.ID))
	}
	s.publish(ctx, account, approval, dto.EventOrderPlaced, approval.AdviceReason)
	log.InfoContext(ctx, "Bracket order placed",
		logger.StringField("order_id", order.ID),
		logger.Float64Field("stop", approval.Levels.Stop),
		logger.Float64Field("target", approval.Levels.Target1))

	return DispatchResult{Placed: true, Order: order, TradeLog: tradeLog}
}

func (s *dispatcherService) newTradeLog(account Account, tradeDate string, approval orb.Approval, clientOrderID, status string) *entity.TradeLog {
	metadata, _ := json.Marshal(approval)
	return &entity.TradeLog{
		AccountID:     account.ID,
		TradeDate:     tradeDate,
		Symbol:        approval.Symbol,
		Side:          string(approval.Side),
		Qty:           approval.Qty,
		Price:         approval.Entry,
		StopPrice:     approval.Levels.Stop,
		TargetPrice:   approval.Levels.Target1,
		Target2Price:  approval.Levels.Target2,
		RiskPerShare:  approval.Levels.R,
		Rank:          approval.Rank,
		Status:        status,
		ClientOrderID: clientOrderID,
		Strategy:      common.StrategyTag,
		Metadata:      datatypes.JSON(metadata),
	}
}

func (s *dispatcherService) publish(ctx context.Context, account Account, approval orb.Approval, eventType, reason string) {
	event := dto.TradeEvent{
		Type:        eventType,
		AccountID:   account.ID,
		AccountName: account.Name,
		Symbol:      approval.Symbol,
		Side:        string(approval.Side),
		Qty:         approval.Qty,
		Price:       approval.Entry,
		StopPrice:   approval.Levels.Stop,
		TargetPrice: approval.Levels.Target1,
		R:           approval.Levels.R,
		Rank:        approval.Rank,
		Reason:      reason,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.WarnContext(ctx, "Failed to publish trade event", logger.ErrorField(err), logger.StringField("type", eventType))
	}
}

func orderSide(side orb.Side) dto.OrderSide {
	if side == orb.SideShort {
		return dto.OrderSideSell
	}
	return dto.OrderSideBuy
}

func isHalted(halted <-chan struct{}) bool {
	select {
	case <-halted:
		return true
	default:
		return false
	}
}

func providerMessage(err error) string {
	var apiErr *repository.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
