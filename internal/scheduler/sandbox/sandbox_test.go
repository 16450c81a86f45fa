package sandbox

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang-algo-trader/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSandbox(timeout time.Duration) *Sandbox {
	return New(timeout, logger.NewNop())
}

func TestExecuteEmitsSignals(t *testing.T) {
	code := `package main

import "algo"

func Run() {
	if algo.Price("INFY") < 1600 {
		algo.Buy("INFY", 5, 1500, "dip")
	}
	algo.Hold("TCS", "flat")
}
`
	helpers := Helpers{Price: func(symbol string) float64 {
		if symbol == "INFY" {
			return 1490
		}
		return 0
	}}
	local := NewContext()
	require.NoError(t, newTestSandbox(time.Second).Execute(context.Background(), code, helpers, local))

	signals := local.Signals()
	require.Len(t, signals, 2)
	assert.Equal(t, "INFY", signals[0].Symbol)
	assert.Equal(t, "buy", signals[0].Type)
	assert.Equal(t, 5.0, signals[0].Quantity)
	assert.Equal(t, 1500.0, signals[0].Price)
	assert.Equal(t, "dip", signals[0].Reason)
	assert.False(t, signals[0].GeneratedAt.IsZero())
	assert.Equal(t, "hold", signals[1].Type)
}

func TestExecuteAllowsListedPackages(t *testing.T) {
	code := `package main

import (
	"algo"
	"math"
	"sort"
	"strconv"
	"strings"
)

func Run() {
	symbols := algo.Symbols()
	sort.Strings(symbols)
	for _, s := range symbols {
		qty := math.Floor(algo.Cash() * algo.RiskPerTrade() / algo.Price(s))
		if qty > 0 {
			algo.Signal(strings.ToUpper(s), "buy", qty, 0, "size "+strconv.Itoa(int(qty)))
		}
	}
	algo.Set("last", strconv.Itoa(len(symbols)))
	algo.Log("done")
}
`
	helpers := Helpers{
		Symbols:      func() []string { return []string{"tcs", "infy"} },
		Cash:         func() float64 { return 10000 },
		Price:        func(string) float64 { return 400 },
		RiskPerTrade: 0.1,
	}
	local := NewContext()
	require.NoError(t, newTestSandbox(time.Second).Execute(context.Background(), code, helpers, local))

	signals := local.Signals()
	require.Len(t, signals, 2)
	assert.Equal(t, "INFY", signals[0].Symbol)
	assert.Equal(t, 2.0, signals[0].Quantity)
	assert.Equal(t, "size 2", signals[0].Reason)
	assert.Equal(t, "TCS", signals[1].Symbol)
	assert.Equal(t, "2", local.Values()["last"])
	assert.Equal(t, []string{"done"}, local.Logs())
}

func TestExecuteTimesOut(t *testing.T) {
	code := `package main

func Run() {
	n := 0
	for {
		n++
	}
}
`
	timeout := 200 * time.Millisecond
	local := NewContext()

	start := time.Now()
	err := newTestSandbox(timeout).Execute(context.Background(), code, Helpers{}, local)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	var sbErr *Error
	assert.True(t, errors.As(err, &sbErr))
	assert.Less(t, elapsed, timeout+time.Second)
	assert.Empty(t, local.Signals())
}

func TestExecuteRejectsGoStatements(t *testing.T) {
	code := `package main

import "algo"

func Run() {
	algo.Buy("INFY", 1, 1500, "before")
	go func() {
		for {
			algo.Price("INFY")
		}
	}()
}
`
	var calls atomic.Int64
	helpers := Helpers{Price: func(string) float64 {
		calls.Add(1)
		return 1490
	}}
	local := NewContext()
	err := newTestSandbox(time.Second).Execute(context.Background(), code, helpers, local)

	var sbErr *Error
	require.True(t, errors.As(err, &sbErr))
	assert.Contains(t, sbErr.Message, "go statements are not allowed")
	assert.Contains(t, sbErr.Message, "line 7")
	assert.Empty(t, local.Signals())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestCapabilitiesStopAfterRun(t *testing.T) {
	var calls int
	helpers := Helpers{
		Price:    func(string) float64 { calls++; return 1490 },
		Cash:     func() float64 { calls++; return 10000 },
		Position: func(string) float64 { calls++; return 3 },
		Symbols:  func() []string { calls++; return []string{"INFY"} },
	}
	local := NewContext()
	algo := exports(helpers, local)["algo/algo"]
	price := algo["Price"].Interface().(func(string) float64)
	cash := algo["Cash"].Interface().(func() float64)
	position := algo["Position"].Interface().(func(string) float64)
	symbols := algo["Symbols"].Interface().(func() []string)

	assert.Equal(t, 1490.0, price("INFY"))
	assert.Equal(t, 1, calls)

	local.close()
	assert.Zero(t, price("INFY"))
	assert.Zero(t, cash())
	assert.Zero(t, position("INFY"))
	assert.Nil(t, symbols())
	assert.Equal(t, 1, calls)
}

func TestExecuteRejectsDisallowedImport(t *testing.T) {
	code := `package main

import (
	"algo"
	"os"
)

func Run() {
	algo.Buy("INFY", 1, 1, "before")
	os.WriteFile("/tmp/pwned", []byte("x"), 0o644)
}
`
	local := NewContext()
	err := newTestSandbox(time.Second).Execute(context.Background(), code, Helpers{}, local)

	var sbErr *Error
	require.True(t, errors.As(err, &sbErr))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Empty(t, local.Signals())
}

func TestExecuteRejectsNetworkImport(t *testing.T) {
	code := `package main

import "net/http"

func Run() { http.Get("http://example.com") }
`
	err := newTestSandbox(time.Second).Execute(context.Background(), code, Helpers{}, NewContext())
	var sbErr *Error
	assert.True(t, errors.As(err, &sbErr))
}

func TestExecuteRuntimePanic(t *testing.T) {
	code := `package main

func Run() {
	var m map[string]int
	m["boom"] = 1
}
`
	err := newTestSandbox(time.Second).Execute(context.Background(), code, Helpers{}, NewContext())
	var sbErr *Error
	require.True(t, errors.As(err, &sbErr))
	assert.NotContains(t, sbErr.Message, "\n")
}

func TestExecuteSyntaxError(t *testing.T) {
	err := newTestSandbox(time.Second).Execute(context.Background(), "package main\nfunc Run( {", Helpers{}, NewContext())
	var sbErr *Error
	require.True(t, errors.As(err, &sbErr))
	assert.Contains(t, sbErr.Message, "compile")
}

func TestExecuteRequiresRun(t *testing.T) {
	err := newTestSandbox(time.Second).Execute(context.Background(), "package main\nfunc Main() {}\n", Helpers{}, NewContext())
	var sbErr *Error
	require.True(t, errors.As(err, &sbErr))
}

func TestClosedContextDropsWrites(t *testing.T) {
	local := NewContext()
	assert.True(t, local.emit(RawSignal{Symbol: "INFY", Type: "buy", Quantity: 1}))
	local.close()

	assert.False(t, local.emit(RawSignal{Symbol: "TCS", Type: "buy", Quantity: 1}))
	local.set("k", "v")
	local.log("late")

	assert.Len(t, local.Signals(), 1)
	assert.Empty(t, local.Values())
	assert.Empty(t, local.Logs())
}
