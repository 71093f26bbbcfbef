package repository

import (
	"context"
	"fmt"
	"time"

	"golang-orb-trader/internal/trading/config"
	"golang-orb-trader/internal/trading/dto"
	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/metrics"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BrokerRepository is the brokerage execution provider. Paper and live accounts share it;
// the credentials select the endpoint.
type BrokerRepository interface {
	GetAccount(ctx context.Context, creds dto.Credentials) (*dto.Account, error)
	ListPositions(ctx context.Context, creds dto.Credentials) ([]dto.Position, error)
	ListOrders(ctx context.Context, creds dto.Credentials, status string, since time.Time) ([]dto.Order, error)
	PlaceBracketOrder(ctx context.Context, creds dto.Credentials, req dto.BracketOrderRequest) (*dto.Order, error)
	ReplaceOrderStop(ctx context.Context, creds dto.Credentials, orderID string, stopPrice float64) (*dto.Order, error)
	CancelAllOrders(ctx context.Context, creds dto.Credentials) error
	CloseAllPositions(ctx context.Context, creds dto.Credentials) error
	ClosePosition(ctx context.Context, creds dto.Credentials, symbol string) error
}

type alpacaBrokerRepository struct {
	cfg    *config.Config
	log    *logger.Logger
	client *alpacaClient
}

// NewAlpacaBrokerRepository creates a broker repository backed by the Alpaca trading API.
func NewAlpacaBrokerRepository(cfg *config.Config, log *logger.Logger, rec *metrics.Recorder) BrokerRepository {
	return &alpacaBrokerRepository{
		cfg:    cfg,
		log:    log,
		client: newAlpacaClient("alpaca_broker", cfg.Alpaca.MaxRequestPerMinute, cfg.Trading.RequestTimeout, log, rec),
	}
}

func (r *alpacaBrokerRepository) baseURL(creds dto.Credentials) string {
	if creds.Paper {
		return r.cfg.Alpaca.PaperURL
	}
	return r.cfg.Alpaca.LiveURL
}

// trading returns an SDK client for one call. Building it is cheap; it carries the call's context.
func (r *alpacaBrokerRepository) trading(ctx context.Context, creds dto.Credentials, op string) (*alpaca.Client, error) {
	if err := r.client.wait(ctx, creds.KeyID, op); err != nil {
		return nil, err
	}
	return alpaca.NewClient(alpaca.ClientOpts{
		APIKey:     creds.KeyID,
		APISecret:  creds.SecretKey,
		BaseURL:    r.baseURL(creds),
		HTTPClient: r.client.httpClient(ctx),
	}), nil
}

func (r *alpacaBrokerRepository) GetAccount(ctx context.Context, creds dto.Credentials) (*dto.Account, error) {
	client, err := r.trading(ctx, creds, "get account")
	if err != nil {
		return nil, err
	}
	acct, err := client.GetAccount()
	if err != nil {
		return nil, r.client.mapError(ctx, "get account", err)
	}
	account := dto.Account{
		ID:              acct.ID,
		Status:          string(acct.Status),
		Equity:          decimalFloat(acct.Equity),
		LastEquity:      decimalFloat(acct.LastEquity),
		Cash:            decimalFloat(acct.Cash),
		BuyingPower:     decimalFloat(acct.BuyingPower),
		TradingBlocked:  acct.TradingBlocked,
		PatternDayTrade: acct.PatternDayTrader,
	}
	if account.Equity <= 0 {
		return nil, fmt.Errorf("account equity: %w", ErrNoData)
	}
	return &account, nil
}

func (r *alpacaBrokerRepository) ListPositions(ctx context.Context, creds dto.Credentials) ([]dto.Position, error) {
	client, err := r.trading(ctx, creds, "list positions")
	if err != nil {
		return nil, err
	}
	raw, err := client.GetPositions()
	if err != nil {
		return nil, r.client.mapError(ctx, "list positions", err)
	}
	positions := make([]dto.Position, len(raw))
	for i, p := range raw {
		positions[i] = dto.Position{
			Symbol:        p.Symbol,
			Side:          string(p.Side),
			Qty:           decimalFloat(p.Qty),
			AvgEntryPrice: decimalFloat(p.AvgEntryPrice),
			CurrentPrice:  decimalFloat(p.CurrentPrice),
			MarketValue:   decimalFloat(p.MarketValue),
			UnrealizedPL:  decimalFloat(p.UnrealizedPL),
		}
	}
	return positions, nil
}

func (r *alpacaBrokerRepository) ListOrders(ctx context.Context, creds dto.Credentials, status string, since time.Time) ([]dto.Order, error) {
	return r.listOrders(ctx, creds, status, since, "")
}

func (r *alpacaBrokerRepository) listOrders(ctx context.Context, creds dto.Credentials, status string, since time.Time, symbol string) ([]dto.Order, error) {
	client, err := r.trading(ctx, creds, "list orders")
	if err != nil {
		return nil, err
	}
	req := alpaca.GetOrdersRequest{
		Status: status,
		Limit:  500,
		After:  since,
		Nested: true,
	}
	if symbol != "" {
		req.Symbols = []string{symbol}
	}
	raw, err := client.GetOrders(req)
	if err != nil {
		return nil, r.client.mapError(ctx, "list orders", err)
	}
	orders := make([]dto.Order, len(raw))
	for i, o := range raw {
		orders[i] = toOrder(o)
	}
	return orders, nil
}

// PlaceBracketOrder submits a market entry with a protective stop and a take-profit limit.
// A client order id is generated when the request has none, so a retried submission is rejected as a duplicate.
func (r *alpacaBrokerRepository) PlaceBracketOrder(ctx context.Context, creds dto.Credentials, req dto.BracketOrderRequest) (*dto.Order, error) {
	if req.Qty <= 0 {
		return nil, fmt.Errorf("invalid bracket quantity %d", req.Qty)
	}
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}

	op := "place bracket " + req.Symbol
	client, err := r.trading(ctx, creds, op)
	if err != nil {
		return nil, err
	}
	qty := decimal.NewFromInt(int64(req.Qty))
	stop := roundCents(req.StopPrice)
	target := roundCents(req.TargetPrice)
	order, err := client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          alpaca.Side(req.Side),
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		OrderClass:    alpaca.Bracket,
		ClientOrderID: req.ClientOrderID,
		TakeProfit:    &alpaca.TakeProfit{LimitPrice: &target},
		StopLoss:      &alpaca.StopLoss{StopPrice: &stop},
	})
	if err != nil {
		return nil, r.client.mapError(ctx, op, err)
	}
	placed := toOrder(*order)
	return &placed, nil
}

func (r *alpacaBrokerRepository) ReplaceOrderStop(ctx context.Context, creds dto.Credentials, orderID string, stopPrice float64) (*dto.Order, error) {
	op := "replace stop " + orderID
	client, err := r.trading(ctx, creds, op)
	if err != nil {
		return nil, err
	}
	stop := roundCents(stopPrice)
	order, err := client.ReplaceOrder(orderID, alpaca.ReplaceOrderRequest{StopPrice: &stop})
	if err != nil {
		return nil, r.client.mapError(ctx, op, err)
	}
	replaced := toOrder(*order)
	return &replaced, nil
}

func (r *alpacaBrokerRepository) CancelAllOrders(ctx context.Context, creds dto.Credentials) error {
	client, err := r.trading(ctx, creds, "cancel all orders")
	if err != nil {
		return err
	}
	return r.client.mapError(ctx, "cancel all orders", client.CancelAllOrders())
}

func (r *alpacaBrokerRepository) CloseAllPositions(ctx context.Context, creds dto.Credentials) error {
	client, err := r.trading(ctx, creds, "close all positions")
	if err != nil {
		return err
	}
	_, err = client.CloseAllPositions(alpaca.CloseAllPositionsRequest{CancelOrders: true})
	return r.client.mapError(ctx, "close all positions", err)
}

// ClosePosition cancels the symbol's open orders, including bracket legs, then closes the position.
// A position that is already flat is not an error.
func (r *alpacaBrokerRepository) ClosePosition(ctx context.Context, creds dto.Credentials, symbol string) error {
	orders, err := r.listOrders(ctx, creds, dto.OrderStatusOpen, time.Time{}, symbol)
	if err != nil {
		return err
	}
	op := "close position " + symbol
	client, err := r.trading(ctx, creds, op)
	if err != nil {
		return err
	}
	for _, o := range orders {
		if err := r.client.mapError(ctx, op, client.CancelOrder(o.ID)); err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to cancel order %s: %w", o.ID, err)
		}
	}

	_, err = client.ClosePosition(symbol, alpaca.ClosePositionRequest{})
	if err = r.client.mapError(ctx, op, err); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func toOrder(o alpaca.Order) dto.Order {
	order := dto.Order{
		ID:             o.ID,
		ClientOrderID:  o.ClientOrderID,
		Symbol:         o.Symbol,
		Side:           dto.OrderSide(o.Side),
		Type:           string(o.Type),
		OrderClass:     string(o.OrderClass),
		Status:         string(o.Status),
		Qty:            decimalFloat(o.Qty),
		FilledQty:      decimalFloat(o.FilledQty),
		FilledAvgPrice: decimalFloat(o.FilledAvgPrice),
		StopPrice:      decimalFloat(o.StopPrice),
		LimitPrice:     decimalFloat(o.LimitPrice),
		SubmittedAt:    timePtr(o.SubmittedAt),
		FilledAt:       timePtr(o.FilledAt),
	}
	for _, leg := range o.Legs {
		order.Legs = append(order.Legs, toOrder(leg))
	}
	return order
}

func roundCents(price float64) decimal.Decimal {
	return decimal.NewFromFloat(price).Round(2)
}
