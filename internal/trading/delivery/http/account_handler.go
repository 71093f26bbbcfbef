package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"golang-orb-trader/internal/trading/dto"
	"golang-orb-trader/internal/trading/orb"
	"golang-orb-trader/internal/trading/service"
	"golang-orb-trader/pkg/logger"
	"golang-orb-trader/pkg/utils"

	"github.com/labstack/echo/v4"
)

const defaultStopReason = "manual stop"

// AccountHandler handles the per-account risk controls and session views.
type AccountHandler struct {
	accountService service.AccountService
	logger         *logger.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService service.AccountService, logger *logger.Logger) *AccountHandler {
	return &AccountHandler{accountService: accountService, logger: logger}
}

// RegisterRoutes registers the account routes to the Echo group.
func (h *AccountHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:id/risk", h.GetRiskState)
	g.POST("/:id/stop", h.StopTrading)
	g.POST("/:id/start", h.StartTrading)
	g.GET("/:id/ranges", h.GetRanges)
	g.GET("/:id/positions", h.GetPositions)
	g.GET("/:id/trades", h.GetTrades)
	g.GET("/:id/tickers", h.GetTickers)
	g.PUT("/:id/tickers", h.UpdateTickers)
}

// GetRiskState godoc
// @Summary Get the risk state
// @Description Get the account's risk state for today's session
// @Tags accounts
// @Produce  json
// @Param   id  path    int true    "Account ID"
// @Success 200 {object} orb.State
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /accounts/{id}/risk [get]
func (h *AccountHandler) GetRiskState(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid account ID"})
	}

	state, err := h.accountService.RiskState(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "Failed to get risk state", err)
	}
	return c.JSON(http.StatusOK, state)
}

// StopTrading godoc
// @Summary Stop trading
// @Description Suppress new entries for the rest of the day. In-flight submissions are canceled; open positions keep their exits.
// @Tags accounts
// @Accept  json
// @Produce  json
// @Param   id  path    int true    "Account ID"
// @Param   request  body    dto.StopRequest false  "Stop reason"
// @Success 200 {object} orb.State
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /accounts/{id}/stop [post]
func (h *AccountHandler) StopTrading(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid account ID"})
	}

	var req dto.StopRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.Reason == "" {
		req.Reason = defaultStopReason
	}

	state, err := h.accountService.Stop(c.Request().Context(), id, req.Reason)
	if err != nil {
		return h.fail(c, "Failed to stop trading", err)
	}
	return c.JSON(http.StatusOK, state)
}

// StartTrading godoc
// @Summary Resume trading
// @Description Clear a manual stop. Refused once the daily loss limit has locked the day.
// @Tags accounts
// @Produce  json
// @Param   id  path    int true    "Account ID"
// @Success 200 {object} orb.State
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /accounts/{id}/start [post]
func (h *AccountHandler) StartTrading(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid account ID"})
	}

	state, err := h.accountService.Start(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "Failed to start trading", err)
	}
	return c.JSON(http.StatusOK, state)
}

// GetRanges godoc
// @Summary Get the opening ranges
// @Description Get the opening ranges captured today for the account
// @Tags accounts
// @Produce  json
// @Param   id  path    int true    "Account ID"
// @Success 200 {array} orb.OpeningRange
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /accounts/{id}/ranges [get]
func (h *AccountHandler) GetRanges(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid account ID"})
	}

	ranges, err := h.accountService.Ranges(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "Failed to get opening ranges", err)
	}
	return c.JSON(http.StatusOK, ranges)
}

// GetPositions godoc
// @Summary Get the tracked positions
// @Description Get today's open and closed positions tracked by the engine
// @Tags accounts
// @Produce  json
// @Param   id  path    int true    "Account ID"
// @Success 200 {array} orb.Position
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /accounts/{id}/positions [get]
func (h *AccountHandler) GetPositions(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid account ID"})
	}

	positions, err := h.accountService.Positions(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "Failed to get positions", err)
	}
	return c.JSON(http.StatusOK, positions)
}

// GetTrades godoc
// @Summary Get the trade log
// @Description Get the trade log of a session
// @Tags accounts
// @Produce  json
// @Param   id  path    int true    "Account ID"
// @Param   date  query    string false  "Session date (YYYY-MM-DD), defaults to today"
// @Success 200 {array} entity.TradeLog
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /accounts/{id}/trades [get]
func (h *AccountHandler) GetTrades(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid account ID"})
	}
	date := c.QueryParam("date")
	if date != "" {
		if _, err := time.Parse(utils.DateLayout, date); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid date, expected YYYY-MM-DD"})
		}
	}

	trades, err := h.accountService.Trades(c.Request().Context(), id, date)
	if err != nil {
		return h.fail(c, "Failed to get trades", err)
	}
	return c.JSON(http.StatusOK, trades)
}

// GetTickers godoc
// @Summary Get the ticker selection
// @Description Get the symbols the account is restricted to. Empty means every qualified symbol.
// @Tags accounts
// @Produce  json
// @Param   id  path    int true    "Account ID"
// @Success 200 {object} dto.TickersResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /accounts/{id}/tickers [get]
func (h *AccountHandler) GetTickers(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid account ID"})
	}

	symbols, err := h.accountService.GetTickers(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "Failed to get tickers", err)
	}
	return c.JSON(http.StatusOK, dto.TickersResponse{AccountID: id, Symbols: symbols})
}

// UpdateTickers godoc
// @Summary Replace the ticker selection
// @Description Replace the symbols the account is restricted to
// @Tags accounts
// @Accept  json
// @Produce  json
// @Param   id  path    int true    "Account ID"
// @Param   request  body    dto.TickersRequest true  "Ticker selection"
// @Success 200 {object} dto.TickersResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /accounts/{id}/tickers [put]
func (h *AccountHandler) UpdateTickers(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid account ID"})
	}

	var req dto.TickersRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	symbols, err := h.accountService.UpdateTickers(c.Request().Context(), id, req.Symbols)
	if err != nil {
		return h.fail(c, "Failed to update tickers", err)
	}
	return c.JSON(http.StatusOK, dto.TickersResponse{AccountID: id, Symbols: symbols})
}

func (h *AccountHandler) fail(c echo.Context, msg string, err error) error {
	switch {
	case errors.Is(err, service.ErrAccountNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, orb.ErrLockedForDay):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	h.logger.Error(msg, logger.ErrorField(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}

func accountID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
