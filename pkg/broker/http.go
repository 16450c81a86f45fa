package broker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang-algo-trader/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// restClient is the rate-limited HTTP transport shared by the live adapters.
type restClient struct {
	name                string
	httpClient          *http.Client
	requestLimiter      *rate.Limiter
	maxRequestPerMinute int
	log                 *logger.Logger
}

func newRestClient(name string, maxRequestPerMinute int, log *logger.Logger) *restClient {
	if maxRequestPerMinute <= 0 {
		maxRequestPerMinute = 60
	}
	secondsPerRequest := time.Minute / time.Duration(maxRequestPerMinute)
	return &restClient{
		name: name,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		requestLimiter:      rate.NewLimiter(rate.Every(secondsPerRequest), 1),
		maxRequestPerMinute: maxRequestPerMinute,
		log:                 log,
	}
}

// send waits for the limiter, performs req and returns the body and status code.
// Non-2xx responses are returned without error so adapters can decode the broker's error body.
func (c *restClient) send(ctx context.Context, req *http.Request) ([]byte, int, error) {
	fields := []zap.Field{
		zap.String("broker", c.name),
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("max_request_per_minute", c.maxRequestPerMinute),
	}

	if err := c.requestLimiter.Wait(ctx); err != nil {
		fields = append(fields, zap.Error(err))
		c.log.ErrorContext(ctx, "Failed to wait for request limit", fields...)
		return nil, 0, err
	}

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		fields = append(fields, zap.Error(err))
		c.log.ErrorContext(ctx, "Failed to send request to broker", fields...)
		return nil, 0, fmt.Errorf("%s request: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fields = append(fields, zap.Error(err))
		c.log.ErrorContext(ctx, "Failed to read response body from broker", fields...)
		return nil, resp.StatusCode, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fields = append(fields, zap.Int("status_code", resp.StatusCode))
		c.log.WarnContext(ctx, "Received non-OK response from broker", fields...)
		return body, resp.StatusCode, nil
	}
	c.log.DebugContext(ctx, "Broker request completed", append(fields, zap.Int("status_code", resp.StatusCode))...)
	return body, resp.StatusCode, nil
}
