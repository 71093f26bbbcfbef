package repository

import (
	"context"
	"fmt"
	"time"

	"golang-orb-trader/internal/trading/config"
	"golang-orb-trader/internal/trading/dto"
	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/metrics"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// MarketDataRepository is the read-only market data provider.
// Empty results are reported as ErrNoData, never as zero values.
type MarketDataRepository interface {
	GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]dto.Bar, error)
	GetIntradayBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]dto.Bar, error)
	GetLatestTrade(ctx context.Context, symbol string) (*dto.LatestTrade, error)
}

type alpacaMarketDataRepository struct {
	cfg    *config.Config
	log    *logger.Logger
	client *alpacaClient
}

// NewAlpacaMarketDataRepository creates a market data repository backed by the Alpaca data API.
func NewAlpacaMarketDataRepository(cfg *config.Config, log *logger.Logger, rec *metrics.Recorder) MarketDataRepository {
	return &alpacaMarketDataRepository{
		cfg:    cfg,
		log:    log,
		client: newAlpacaClient("alpaca_data", cfg.Alpaca.MaxRequestPerMinute, cfg.Trading.RequestTimeout, log, rec),
	}
}

func (r *alpacaMarketDataRepository) data(ctx context.Context, op string) (*marketdata.Client, error) {
	if err := r.client.wait(ctx, r.cfg.Alpaca.DataKeyID, op); err != nil {
		return nil, err
	}
	return marketdata.NewClient(marketdata.ClientOpts{
		APIKey:     r.cfg.Alpaca.DataKeyID,
		APISecret:  r.cfg.Alpaca.DataSecretKey,
		BaseURL:    r.cfg.Alpaca.DataURL,
		Feed:       marketdata.Feed(r.cfg.Alpaca.Feed),
		HTTPClient: r.client.httpClient(ctx),
	}), nil
}

func (r *alpacaMarketDataRepository) GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]dto.Bar, error) {
	return r.getBars(ctx, symbol, dto.Timeframe1Day, marketdata.OneDay, start, end)
}

func (r *alpacaMarketDataRepository) GetIntradayBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]dto.Bar, error) {
	switch timeframe {
	case dto.Timeframe1Min:
		return r.getBars(ctx, symbol, timeframe, marketdata.OneMin, start, end)
	case dto.Timeframe5Min:
		return r.getBars(ctx, symbol, timeframe, marketdata.NewTimeFrame(5, marketdata.Min), start, end)
	}
	return nil, fmt.Errorf("unsupported intraday timeframe %q", timeframe)
}

// getBars lets the SDK follow next_page_token until the range is exhausted.
func (r *alpacaMarketDataRepository) getBars(ctx context.Context, symbol, timeframe string, tf marketdata.TimeFrame, start, end time.Time) ([]dto.Bar, error) {
	op := "bars " + symbol + " " + timeframe
	client, err := r.data(ctx, op)
	if err != nil {
		return nil, err
	}
	raw, err := client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     start,
		End:       end,
		Feed:      marketdata.Feed(r.cfg.Alpaca.Feed),
	})
	if err != nil {
		return nil, r.client.mapError(ctx, op, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s %s bars: %w", symbol, timeframe, ErrNoData)
	}

	bars := make([]dto.Bar, len(raw))
	for i, b := range raw {
		bars[i] = dto.Bar{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
			VWAP:      b.VWAP,
		}
	}
	return bars, nil
}

func (r *alpacaMarketDataRepository) GetLatestTrade(ctx context.Context, symbol string) (*dto.LatestTrade, error) {
	op := "latest trade " + symbol
	client, err := r.data(ctx, op)
	if err != nil {
		return nil, err
	}
	trade, err := client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{Feed: marketdata.Feed(r.cfg.Alpaca.Feed)})
	if err != nil {
		err = r.client.mapError(ctx, op, err)
		if isNotFound(err) {
			return nil, fmt.Errorf("%s latest trade: %w", symbol, ErrNoData)
		}
		return nil, err
	}
	if trade == nil || trade.Price <= 0 {
		return nil, fmt.Errorf("%s latest trade: %w", symbol, ErrNoData)
	}
	return &dto.LatestTrade{Price: trade.Price, Size: float64(trade.Size), Timestamp: trade.Timestamp}, nil
}
