package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/metrics"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// alpacaClient holds what the market data and broker repositories share around the Alpaca SDK:
// a limiter per key pair, the request timeout and the error mapping.
type alpacaClient struct {
	provider            string
	log                 *logger.Logger
	metrics             *metrics.Recorder
	timeout             time.Duration
	maxRequestPerMinute int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newAlpacaClient(provider string, maxRequestPerMinute int, timeout time.Duration, log *logger.Logger, rec *metrics.Recorder) *alpacaClient {
	if maxRequestPerMinute <= 0 {
		maxRequestPerMinute = 200
	}
	return &alpacaClient{
		provider:            provider,
		log:                 log,
		metrics:             rec,
		timeout:             timeout,
		maxRequestPerMinute: maxRequestPerMinute,
		limiters:            make(map[string]*rate.Limiter),
	}
}

func (c *alpacaClient) limiter(keyID string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[keyID]
	if !ok {
		secondsPerRequest := time.Minute / time.Duration(c.maxRequestPerMinute)
		l = rate.NewLimiter(rate.Every(secondsPerRequest), 1)
		c.limiters[keyID] = l
	}
	return l
}

func (c *alpacaClient) wait(ctx context.Context, keyID, op string) error {
	if err := c.limiter(keyID).Wait(ctx); err != nil {
		c.log.ErrorContext(ctx, "Failed to wait for request limit",
			zap.String("provider", c.provider), zap.String("op", op), zap.Error(err))
		return err
	}
	return nil
}

// httpClient binds ctx to every request the SDK sends, so cancellation and the request
// timeout reach calls whose SDK signature has no context.
func (c *alpacaClient) httpClient(ctx context.Context) *http.Client {
	return &http.Client{
		Timeout:   c.timeout,
		Transport: contextTransport{ctx: ctx, base: http.DefaultTransport},
	}
}

type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// mapError translates SDK errors: 401 and 403 become ErrUnauthorized, other
// non-success responses an *APIError carrying the provider's message.
func (c *alpacaClient) mapError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	fields := []zap.Field{zap.String("provider", c.provider), zap.String("op", op)}

	var sdkErr *alpaca.APIError
	if !errors.As(err, &sdkErr) {
		fields = append(fields, zap.Error(err))
		c.log.ErrorContext(ctx, "Failed to call Alpaca API", fields...)
		c.metrics.RecordProviderError(c.provider, "transport")
		return fmt.Errorf("%s: %w", op, err)
	}

	fields = append(fields, zap.Int("status_code", sdkErr.StatusCode))
	switch sdkErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		c.log.WarnContext(ctx, "Alpaca API rejected credentials", fields...)
		c.metrics.RecordProviderError(c.provider, "unauthorized")
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case http.StatusNotFound:
		return &APIError{StatusCode: sdkErr.StatusCode, Message: sdkErr.Message}
	}
	fields = append(fields, zap.String("message", sdkErr.Message))
	c.log.ErrorContext(ctx, "Received non-OK response from Alpaca API", fields...)
	c.metrics.RecordProviderError(c.provider, "status")
	return &APIError{StatusCode: sdkErr.StatusCode, Message: sdkErr.Message}
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// decimalFloat reads the SDK's decimal fields, which are values or nullable pointers.
func decimalFloat(v interface{}) float64 {
	switch d := v.(type) {
	case decimal.Decimal:
		return d.InexactFloat64()
	case *decimal.Decimal:
		if d == nil {
			return 0
		}
		return d.InexactFloat64()
	}
	return 0
}

func timePtr(v interface{}) *time.Time {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return &t
	case *time.Time:
		return t
	}
	return nil
}
