package utils

import (
	"testing"
	"time"

	"golang-algo-trader/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGoSafeLogsPanicThroughLogger(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	log := &logger.Logger{Logger: zap.New(core)}

	done := make(chan struct{})
	GoSafe(log, func() {
		defer close(done)
		panic("loop exploded")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
	require.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 5*time.Millisecond)

	entry := logs.All()[0]
	assert.Equal(t, "Recovered panic", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "goroutine", fields["where"])
	assert.Equal(t, "loop exploded", fields["panic"])
	assert.Contains(t, fields["stack"], "utils.GoSafe")
}

func TestRecoverWithoutPanicLogsNothing(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{Logger: zap.New(core)}

	func() {
		defer Recover(log, "tick")
	}()
	assert.Zero(t, logs.Len())
}
