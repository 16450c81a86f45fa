package http

import (
	"net/http"

	"golang-algo-trader/internal/scheduler/dto"
	"golang-algo-trader/internal/scheduler/service"
	"golang-algo-trader/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ExecutionHistoryHandler handles HTTP requests for algorithm run records.
type ExecutionHistoryHandler struct {
	historyService service.ExecutionHistoryService
	logger         *logger.Logger
}

// NewExecutionHistoryHandler creates a new ExecutionHistoryHandler.
func NewExecutionHistoryHandler(historyService service.ExecutionHistoryService, logger *logger.Logger) *ExecutionHistoryHandler {
	return &ExecutionHistoryHandler{historyService: historyService, logger: logger}
}

// RegisterRoutes registers the execution history routes to the Echo group.
func (h *ExecutionHistoryHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:id", h.GetExecutionHistoryByID)
}

// RegisterAlgorithmRoutes registers the algorithm-specific execution history routes.
func (h *ExecutionHistoryHandler) RegisterAlgorithmRoutes(g *echo.Group) {
	g.GET("/:id/executions", h.GetExecutionHistoriesByAlgorithmID)
}

// GetExecutionHistoryByID godoc
// @Summary Get an execution by ID
// @Description Get a single algorithm run record by its ID
// @Tags executions
// @Produce  json
// @Param   id  path    int true    "Execution ID"
// @Success 200 {object} dto.ExecutionHistoryResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /executions/{id} [get]
func (h *ExecutionHistoryHandler) GetExecutionHistoryByID(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid execution ID"})
	}

	history, err := h.historyService.GetExecutionHistoryByID(c.Request().Context(), id)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, history)
}

// GetExecutionHistoriesByAlgorithmID godoc
// @Summary Get executions of an algorithm
// @Description Most recent runs first
// @Tags executions
// @Produce  json
// @Param   id  path    int true    "Algorithm ID"
// @Param   limit  query   int false   "Maximum number of runs"
// @Success 200 {array} dto.ExecutionHistoryResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /algorithms/{id}/executions [get]
func (h *ExecutionHistoryHandler) GetExecutionHistoriesByAlgorithmID(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid algorithm ID"})
	}

	histories, err := h.historyService.GetExecutionHistoriesByAlgorithmID(c.Request().Context(), id, queryInt(c, "limit", defaultListLimit))
	if err != nil {
		h.logger.Error("Failed to get execution histories", logger.ErrorField(err), logger.Field("algorithm_id", id))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get execution histories"})
	}
	return c.JSON(http.StatusOK, histories)
}
