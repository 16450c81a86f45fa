package http

import (
	"errors"
	"net/http"
	"strconv"

	executorrepo "golang-algo-trader/internal/executor/repository"
	executorsvc "golang-algo-trader/internal/executor/service"
	"golang-algo-trader/internal/scheduler/dto"
	"golang-algo-trader/internal/scheduler/repository"
	"golang-algo-trader/internal/scheduler/service"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const defaultListLimit = 50

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidAlgorithm):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrAlgorithmNotFound),
		errors.Is(err, executorrepo.ErrQueuedOrderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, executorsvc.ErrOrderNotCancellable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c echo.Context, err error) error {
	return c.JSON(statusFor(err), dto.ErrorResponse{Error: err.Error()})
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

// queryInt reads an optional positive integer query parameter.
func queryInt(c echo.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
