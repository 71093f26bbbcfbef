package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"golang-orb-trader/internal/trading/service"
	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/utils"

	"github.com/labstack/echo/v4"
)

// StockHandler serves the qualified stock list and the market regime.
type StockHandler struct {
	scanner service.ScannerService
	logger  *logger.Logger
	loc     *time.Location
	now     func() time.Time
}

// NewStockHandler creates a new StockHandler. Dates are interpreted in loc.
func NewStockHandler(scanner service.ScannerService, loc *time.Location, logger *logger.Logger) *StockHandler {
	return &StockHandler{scanner: scanner, logger: logger, loc: loc, now: time.Now}
}

// RegisterRoutes registers the stock routes to the Echo group.
func (h *StockHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/qualified", h.GetQualified)
	g.POST("/scan", h.RunScan)
}

// RegisterRegimeRoutes registers the regime route to the Echo group.
func (h *StockHandler) RegisterRegimeRoutes(g *echo.Group) {
	g.GET("", h.GetRegime)
}

// GetQualified godoc
// @Summary Get the qualified stocks
// @Description Get the ranked qualified stocks and regime of a session
// @Tags stocks
// @Produce  json
// @Param   date  query    string false  "Session date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} orb.ScanResult
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /stocks/qualified [get]
func (h *StockHandler) GetQualified(c echo.Context) error {
	date, err := h.date(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid date, expected YYYY-MM-DD"})
	}

	result, err := h.scanner.GetResult(c.Request().Context(), date.Format(utils.DateLayout))
	if err != nil {
		h.logger.Error("Failed to get qualified stocks", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to get qualified stocks"})
	}
	if result == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "No scan for this date"})
	}
	return c.JSON(http.StatusOK, result)
}

// RunScan godoc
// @Summary Run the qualification scan
// @Description Run the pre-market scan for today. An existing result is returned unless force is set.
// @Tags stocks
// @Produce  json
// @Param   force  query    bool false  "Rerun even when a result exists"
// @Success 200 {object} orb.ScanResult
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /stocks/scan [post]
func (h *StockHandler) RunScan(c echo.Context) error {
	force := false
	if raw := c.QueryParam("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid force flag"})
		}
		force = parsed
	}

	result, err := h.scanner.Scan(c.Request().Context(), h.now(), force)
	if err != nil {
		if errors.Is(err, service.ErrScanInProgress) {
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
		h.logger.Error("Manual scan failed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

// GetRegime godoc
// @Summary Get the market regime
// @Description Get the index trend regime computed by the scan of a session
// @Tags regime
// @Produce  json
// @Param   date  query    string false  "Session date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} orb.MarketRegime
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /regime [get]
func (h *StockHandler) GetRegime(c echo.Context) error {
	date, err := h.date(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid date, expected YYYY-MM-DD"})
	}

	regime, err := h.scanner.GetRegime(c.Request().Context(), date.Format(utils.DateLayout))
	if err != nil {
		h.logger.Error("Failed to get market regime", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to get market regime"})
	}
	if regime == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "No regime for this date"})
	}
	return c.JSON(http.StatusOK, regime)
}

func (h *StockHandler) date(c echo.Context) (time.Time, error) {
	raw := c.QueryParam("date")
	if raw == "" {
		return utils.StartOfDay(h.now(), h.loc), nil
	}
	return utils.ParseDate(raw, h.loc)
}
