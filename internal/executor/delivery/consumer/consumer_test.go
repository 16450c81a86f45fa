package consumer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"golang-algo-trader/internal/executor/config"
	"golang-algo-trader/pkg/logger"
	"golang-algo-trader/pkg/telegram"

	"github.com/stretchr/testify/assert"
)

func newTestRunner() *Runner {
	return NewRunner(&config.Config{}, nil, nil, telegram.NewNopNotifier(), logger.NewNop())
}

func TestTickerHandlerSurvivesPanic(t *testing.T) {
	r := newTestRunner()
	var calls atomic.Int32
	r.RegisterTickerHandler(context.Background(), func(ctx context.Context) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		if calls.Add(1) == 1 {
			panic("aggregator blew up")
		}
	}, 10*time.Millisecond, time.Second, "trade-queue")

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
	r.Stop()
}

func TestStreamHandlerSurvivesPanic(t *testing.T) {
	r := newTestRunner()
	var calls atomic.Int32
	r.RegisterStreamHandler(context.Background(), func(ctx context.Context) {
		if calls.Add(1) == 1 {
			panic("bad tick")
		}
		time.Sleep(5 * time.Millisecond)
	}, "market.prices", time.Second)

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 3*time.Second, 10*time.Millisecond)
	r.Stop()
}

func TestStopEndsLoops(t *testing.T) {
	r := newTestRunner()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	r.RegisterTickerHandler(ctx, func(context.Context) { calls.Add(1) }, 5*time.Millisecond, time.Second, "trade-queue")
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	r.Stop()
	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}
