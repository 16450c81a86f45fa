package utils

import (
	"golang-algo-trader/pkg/logger"

	"go.uber.org/zap"
)

// ToPointer returns a pointer to v.
func ToPointer[T any](v T) *T {
	return &v
}

// GoSafe runs fn on a new goroutine and recovers any panic so one background loop
// cannot take the process down.
func GoSafe(log *logger.Logger, fn func()) {
	go func() {
		defer Recover(log, "goroutine")
		fn()
	}()
}

// Recover logs a panic in progress together with its stack. It must be deferred directly.
func Recover(log *logger.Logger, where string) {
	r := recover()
	if r == nil {
		return
	}
	log.Error("Recovered panic",
		logger.StringField("where", where),
		logger.Field("panic", r),
		zap.Stack("stack"))
}
