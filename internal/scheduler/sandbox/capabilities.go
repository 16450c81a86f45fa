package sandbox

import (
	"reflect"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// allowedPackages is the complete set of standard packages strategy code may import.
var allowedPackages = []string{
	"math/math",
	"strings/strings",
	"strconv/strconv",
	"sort/sort",
}

const (
	maxSignals = 1000
	maxLogs    = 200
)

// Helpers are the read-only accessors a caller injects for one run.
type Helpers struct {
	Price        func(symbol string) float64
	Symbols      func() []string
	Cash         func() float64
	Position     func(symbol string) float64
	MaxPositions int
	RiskPerTrade float64
	Now          func() time.Time
}

// RawSignal is a signal exactly as the strategy emitted it. It is validated by the caller.
type RawSignal struct {
	Symbol      string
	Type        string
	Quantity    float64
	Price       float64
	Reason      string
	GeneratedAt time.Time
}

// Context collects the output of one run. It rejects writes once closed.
type Context struct {
	mu      sync.Mutex
	closed  bool
	signals []RawSignal
	logs    []string
	values  map[string]string
	now     func() time.Time
}

func NewContext() *Context {
	return &Context{values: make(map[string]string), now: time.Now}
}

func (c *Context) emit(s RawSignal) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.signals) >= maxSignals {
		return false
	}
	s.GeneratedAt = c.now()
	c.signals = append(c.signals, s)
	return true
}

func (c *Context) log(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.logs) >= maxLogs {
		return
	}
	c.logs = append(c.logs, msg)
}

func (c *Context) set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.values[key] = value
}

func (c *Context) get(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key]
}

// open reports whether the run that owns c is still in progress.
func (c *Context) open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *Context) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Signals returns a copy of the emitted signals in emission order.
func (c *Context) Signals() []RawSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RawSignal, len(c.signals))
	copy(out, c.signals)
	return out
}

func (c *Context) Logs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.logs))
	copy(out, c.logs)
	return out
}

func (c *Context) Values() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// exports builds the symbol table for one interpreter: the allow-listed standard packages plus
// the "algo" package bound to this run's helpers and context. Accessors stop reaching the helpers
// once the context is closed.
func exports(h Helpers, local *Context) interp.Exports {
	ex := make(interp.Exports, len(allowedPackages)+1)
	for _, p := range allowedPackages {
		ex[p] = stdlib.Symbols[p]
	}

	now := h.Now
	if now == nil {
		now = time.Now
	}

	ex["algo/algo"] = map[string]reflect.Value{
		"Price": reflect.ValueOf(func(symbol string) float64 {
			if h.Price == nil || !local.open() {
				return 0
			}
			return h.Price(symbol)
		}),
		"Symbols": reflect.ValueOf(func() []string {
			if h.Symbols == nil || !local.open() {
				return nil
			}
			return h.Symbols()
		}),
		"Cash": reflect.ValueOf(func() float64 {
			if h.Cash == nil || !local.open() {
				return 0
			}
			return h.Cash()
		}),
		"Position": reflect.ValueOf(func(symbol string) float64 {
			if h.Position == nil || !local.open() {
				return 0
			}
			return h.Position(symbol)
		}),
		"MaxPositions": reflect.ValueOf(func() int { return h.MaxPositions }),
		"RiskPerTrade": reflect.ValueOf(func() float64 { return h.RiskPerTrade }),
		"Now":          reflect.ValueOf(func() int64 { return now().Unix() }),
		"Signal": reflect.ValueOf(func(symbol, kind string, quantity, price float64, reason string) bool {
			return local.emit(RawSignal{Symbol: symbol, Type: kind, Quantity: quantity, Price: price, Reason: reason})
		}),
		"Buy": reflect.ValueOf(func(symbol string, quantity, price float64, reason string) bool {
			return local.emit(RawSignal{Symbol: symbol, Type: "buy", Quantity: quantity, Price: price, Reason: reason})
		}),
		"Sell": reflect.ValueOf(func(symbol string, quantity, price float64, reason string) bool {
			return local.emit(RawSignal{Symbol: symbol, Type: "sell", Quantity: quantity, Price: price, Reason: reason})
		}),
		"Hold": reflect.ValueOf(func(symbol, reason string) bool {
			return local.emit(RawSignal{Symbol: symbol, Type: "hold", Reason: reason})
		}),
		"Log": reflect.ValueOf(local.log),
		"Set": reflect.ValueOf(local.set),
		"Get": reflect.ValueOf(local.get),
	}
	return ex
}
