package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	executorrepo "golang-algo-trader/internal/executor/repository"
	executorsvc "golang-algo-trader/internal/executor/service"
	"golang-algo-trader/internal/scheduler/dto"
	"golang-algo-trader/internal/scheduler/repository"
	"golang-algo-trader/internal/scheduler/sandbox"
	"golang-algo-trader/internal/scheduler/service"
	"golang-algo-trader/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAlgorithms struct {
	service.AlgorithmService
	created *dto.CreateAlgorithmRequest
	dryRun  func(id uint) (*service.RunReport, error)
}

func (f *fakeAlgorithms) CreateAlgorithm(_ context.Context, req *dto.CreateAlgorithmRequest) (*dto.AlgorithmResponse, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", service.ErrInvalidAlgorithm)
	}
	f.created = req
	return &dto.AlgorithmResponse{ID: 1, Name: req.Name, Status: "inactive"}, nil
}

func (f *fakeAlgorithms) GetAlgorithmByID(_ context.Context, id uint) (*dto.AlgorithmResponse, error) {
	if id != 1 {
		return nil, repository.ErrAlgorithmNotFound
	}
	return &dto.AlgorithmResponse{ID: 1, Name: "dip buyer"}, nil
}

func (f *fakeAlgorithms) ActivateAlgorithm(_ context.Context, id uint) (*dto.AlgorithmResponse, error) {
	if id != 1 {
		return nil, repository.ErrAlgorithmNotFound
	}
	return &dto.AlgorithmResponse{ID: 1, Status: "active", AutoRun: true}, nil
}

func (f *fakeAlgorithms) DryRunAlgorithm(_ context.Context, id uint) (*service.RunReport, error) {
	return f.dryRun(id)
}

type fakeQueue struct {
	cancelErr error
}

func (f *fakeQueue) ListQueuedOrders(_ context.Context, status string, _ int) ([]*dto.QueuedOrderResponse, error) {
	return []*dto.QueuedOrderResponse{{ID: 3, Symbol: "INFY", Status: status}}, nil
}

func (f *fakeQueue) CancelQueuedOrder(_ context.Context, _ uint) error {
	return f.cancelErr
}

func newServer(algorithms service.AlgorithmService, queue service.QueueService) *echo.Echo {
	e := echo.New()
	api := e.Group("/api/v1")
	NewAlgorithmHandler(algorithms, logger.NewNop()).RegisterRoutes(api.Group("/algorithms"))
	NewQueueHandler(queue, logger.NewNop()).RegisterRoutes(api.Group("/queue"))
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateAlgorithm(t *testing.T) {
	algorithms := &fakeAlgorithms{}
	e := newServer(algorithms, &fakeQueue{})

	rec := do(e, http.MethodPost, "/api/v1/algorithms", `{"user_id":7,"name":"dip buyer","code":"package main","stock_universe":["infy"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, algorithms.created)
	assert.Equal(t, []string{"infy"}, algorithms.created.StockUniverse)

	rec = do(e, http.MethodPost, "/api/v1/algorithms", `{"user_id":7}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "name is required")

	rec = do(e, http.MethodPost, "/api/v1/algorithms", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAlgorithmNotFound(t *testing.T) {
	e := newServer(&fakeAlgorithms{}, &fakeQueue{})

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/v1/algorithms/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/v1/algorithms/9", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/v1/algorithms/abc", "").Code)
}

func TestActivateAlgorithm(t *testing.T) {
	e := newServer(&fakeAlgorithms{}, &fakeQueue{})

	rec := do(e, http.MethodPost, "/api/v1/algorithms/1/activate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.AlgorithmResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "active", resp.Status)
	assert.True(t, resp.AutoRun)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodPost, "/api/v1/algorithms/2/activate", "").Code)
}

func TestDryRunStatusCodes(t *testing.T) {
	algorithms := &fakeAlgorithms{}
	e := newServer(algorithms, &fakeQueue{})

	algorithms.dryRun = func(uint) (*service.RunReport, error) {
		return &service.RunReport{ExecutionID: 5, Status: "completed", Result: &service.ProcessResult{Processed: 1}}, nil
	}
	rec := do(e, http.MethodPost, "/api/v1/algorithms/1/dry-run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"processed":1`)

	algorithms.dryRun = func(uint) (*service.RunReport, error) {
		err := &sandbox.Error{Message: "undefined: foo"}
		return &service.RunReport{ExecutionID: 6, Status: "failed", Error: err.Error()}, err
	}
	rec = do(e, http.MethodPost, "/api/v1/algorithms/1/dry-run", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "undefined: foo")

	algorithms.dryRun = func(uint) (*service.RunReport, error) {
		return nil, repository.ErrAlgorithmNotFound
	}
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodPost, "/api/v1/algorithms/3/dry-run", "").Code)
}

func TestQueueRoutes(t *testing.T) {
	queue := &fakeQueue{}
	e := newServer(&fakeAlgorithms{}, queue)

	rec := do(e, http.MethodGet, "/api/v1/queue?status=queued", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"queued"`)

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/api/v1/queue/3", "").Code)

	queue.cancelErr = fmt.Errorf("%w: status executed", executorsvc.ErrOrderNotCancellable)
	assert.Equal(t, http.StatusConflict, do(e, http.MethodDelete, "/api/v1/queue/3", "").Code)

	queue.cancelErr = executorrepo.ErrQueuedOrderNotFound
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodDelete, "/api/v1/queue/4", "").Code)
}
