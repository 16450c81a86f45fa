package http

import (
	"errors"
	"net/http"
	"strconv"

	"golang-algo-trader/internal/scheduler/dto"
	"golang-algo-trader/internal/scheduler/sandbox"
	"golang-algo-trader/internal/scheduler/service"
	"golang-algo-trader/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AlgorithmHandler handles HTTP requests for algorithms.
type AlgorithmHandler struct {
	algorithmService service.AlgorithmService
	logger           *logger.Logger
}

// NewAlgorithmHandler creates a new AlgorithmHandler.
func NewAlgorithmHandler(algorithmService service.AlgorithmService, logger *logger.Logger) *AlgorithmHandler {
	return &AlgorithmHandler{algorithmService: algorithmService, logger: logger}
}

// RegisterRoutes registers the algorithm routes to the Echo group.
func (h *AlgorithmHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.CreateAlgorithm)
	g.GET("", h.GetAllAlgorithms)
	g.GET("/:id", h.GetAlgorithmByID)
	g.POST("/:id/activate", h.ActivateAlgorithm)
	g.POST("/:id/deactivate", h.DeactivateAlgorithm)
	g.POST("/:id/dry-run", h.DryRunAlgorithm)
	g.GET("/:id/signals", h.GetSignals)
	g.GET("/:id/performance", h.GetPerformance)
}

// CreateAlgorithm godoc
// @Summary Create a new algorithm
// @Description Create a trading algorithm with its schedule, universe and stop policies
// @Tags algorithms
// @Accept  json
// @Produce  json
// @Param   algorithm  body    dto.CreateAlgorithmRequest   true    "Algorithm to create"
// @Success 201 {object} dto.AlgorithmResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /algorithms [post]
func (h *AlgorithmHandler) CreateAlgorithm(c echo.Context) error {
	var req dto.CreateAlgorithmRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}

	resp, err := h.algorithmService.CreateAlgorithm(c.Request().Context(), &req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// GetAllAlgorithms godoc
// @Summary Get all algorithms
// @Description Get all algorithms, optionally filtered by owner
// @Tags algorithms
// @Produce  json
// @Param   user_id  query   int false   "Owner user ID"
// @Success 200 {array} dto.AlgorithmResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /algorithms [get]
func (h *AlgorithmHandler) GetAllAlgorithms(c echo.Context) error {
	var userID uint
	if v := c.QueryParam("user_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user ID"})
		}
		userID = uint(id)
	}

	algorithms, err := h.algorithmService.GetAllAlgorithms(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get all algorithms", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get algorithms"})
	}
	return c.JSON(http.StatusOK, algorithms)
}

// GetAlgorithmByID godoc
// @Summary Get an algorithm by ID
// @Tags algorithms
// @Produce  json
// @Param   id  path    int true    "Algorithm ID"
// @Success 200 {object} dto.AlgorithmResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /algorithms/{id} [get]
func (h *AlgorithmHandler) GetAlgorithmByID(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid algorithm ID"})
	}

	resp, err := h.algorithmService.GetAlgorithmByID(c.Request().Context(), id)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ActivateAlgorithm godoc
// @Summary Activate an algorithm
// @Description Reactivates an algorithm, also after an automatic stop
// @Tags algorithms
// @Produce  json
// @Param   id  path    int true    "Algorithm ID"
// @Success 200 {object} dto.AlgorithmResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /algorithms/{id}/activate [post]
func (h *AlgorithmHandler) ActivateAlgorithm(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid algorithm ID"})
	}

	resp, err := h.algorithmService.ActivateAlgorithm(c.Request().Context(), id)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// DeactivateAlgorithm godoc
// @Summary Deactivate an algorithm
// @Tags algorithms
// @Produce  json
// @Param   id  path    int true    "Algorithm ID"
// @Success 200 {object} dto.AlgorithmResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /algorithms/{id}/deactivate [post]
func (h *AlgorithmHandler) DeactivateAlgorithm(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid algorithm ID"})
	}

	resp, err := h.algorithmService.DeactivateAlgorithm(c.Request().Context(), id)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// DryRunAlgorithm godoc
// @Summary Dry-run an algorithm
// @Description Runs the algorithm once without placing orders, ignoring its schedule and market hours
// @Tags algorithms
// @Produce  json
// @Param   id  path    int true    "Algorithm ID"
// @Success 200 {object} service.RunReport
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /algorithms/{id}/dry-run [post]
func (h *AlgorithmHandler) DryRunAlgorithm(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid algorithm ID"})
	}

	report, err := h.algorithmService.DryRunAlgorithm(c.Request().Context(), id)
	if err != nil {
		var sandboxErr *sandbox.Error
		if report != nil && errors.As(err, &sandboxErr) {
			// the strategy itself failed; the report carries its logs
			return c.JSON(http.StatusUnprocessableEntity, report)
		}
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// GetSignals godoc
// @Summary Get algorithm signals
// @Tags algorithms
// @Produce  json
// @Param   id  path    int true    "Algorithm ID"
// @Param   limit  query   int false   "Maximum number of signals"
// @Success 200 {array} dto.SignalResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /algorithms/{id}/signals [get]
func (h *AlgorithmHandler) GetSignals(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid algorithm ID"})
	}

	signals, err := h.algorithmService.GetSignals(c.Request().Context(), id, queryInt(c, "limit", defaultListLimit))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, signals)
}

// GetPerformance godoc
// @Summary Get algorithm performance
// @Description Daily trade snapshots and the cumulative P&L
// @Tags algorithms
// @Produce  json
// @Param   id  path    int true    "Algorithm ID"
// @Param   limit  query   int false   "Maximum number of days"
// @Success 200 {object} dto.PerformanceSummaryResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /algorithms/{id}/performance [get]
func (h *AlgorithmHandler) GetPerformance(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid algorithm ID"})
	}

	perf, err := h.algorithmService.GetPerformance(c.Request().Context(), id, queryInt(c, "limit", 0))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, perf)
}
