package http

import (
	"net/http"

	"golang-algo-trader/internal/scheduler/dto"
	"golang-algo-trader/internal/scheduler/service"
	"golang-algo-trader/pkg/logger"

	"github.com/labstack/echo/v4"
)

// QueueHandler handles HTTP requests for the trade queue.
type QueueHandler struct {
	queueService service.QueueService
	logger       *logger.Logger
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(queueService service.QueueService, logger *logger.Logger) *QueueHandler {
	return &QueueHandler{queueService: queueService, logger: logger}
}

// RegisterRoutes registers the queue routes to the Echo group.
func (h *QueueHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListQueuedOrders)
	g.DELETE("/:id", h.CancelQueuedOrder)
}

// ListQueuedOrders godoc
// @Summary List queued orders
// @Tags queue
// @Produce  json
// @Param   status  query   string false   "Queue status filter"  Enums(queued, batched, executing, executed, failed, cancelled)
// @Param   limit  query   int false   "Maximum number of orders"
// @Success 200 {array} dto.QueuedOrderResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /queue [get]
func (h *QueueHandler) ListQueuedOrders(c echo.Context) error {
	orders, err := h.queueService.ListQueuedOrders(c.Request().Context(), c.QueryParam("status"), queryInt(c, "limit", 0))
	if err != nil {
		h.logger.Error("Failed to list queued orders", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list queued orders"})
	}
	return c.JSON(http.StatusOK, orders)
}

// CancelQueuedOrder godoc
// @Summary Cancel a queued order
// @Description Only orders still waiting for their batch can be cancelled
// @Tags queue
// @Param   id  path    int true    "Queued order ID"
// @Success 204 {object} nil
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /queue/{id} [delete]
func (h *QueueHandler) CancelQueuedOrder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid queued order ID"})
	}

	if err := h.queueService.CancelQueuedOrder(c.Request().Context(), id); err != nil {
		return errorJSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
