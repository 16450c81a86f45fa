// Package events publishes trading events to a redis stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang-algo-trader/pkg/common"

	"github.com/redis/go-redis/v9"
)

type Type string

const (
	SignalProcessed  Type = "signal.processed"
	AlgorithmStopped Type = "algorithm.stopped"
	AlgorithmFailed  Type = "algorithm.failed"
	BatchExecuted    Type = "batch.executed"
	BatchFailed      Type = "batch.failed"
	OrderCancelled   Type = "order.cancelled"
)

// Event is the envelope written to the stream.
type Event struct {
	Type       Type                   `json:"type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

func New(t Type, data map[string]interface{}) Event {
	return Event{Type: t, OccurredAt: time.Now().UTC(), Data: data}
}

// Publisher emits events. Failures are reported to the caller, which logs and continues.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type redisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisPublisher writes events to the trading events stream, trimmed to maxLen entries.
func NewRedisPublisher(client *redis.Client, maxLen int64) Publisher {
	return &redisPublisher{client: client, stream: common.RedisStreamTradingEvents, maxLen: maxLen}
}

func (p *redisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{"type": string(event.Type), "payload": payload},
	}).Err()
}

// Decode reads an event back from a stream message.
func Decode(msg redis.XMessage) (Event, error) {
	raw, ok := msg.Values["payload"]
	if !ok {
		return Event{}, fmt.Errorf("message %s has no payload", msg.ID)
	}
	var b []byte
	switch v := raw.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return Event{}, fmt.Errorf("message %s payload has type %T", msg.ID, raw)
	}
	var event Event
	if err := json.Unmarshal(b, &event); err != nil {
		return Event{}, fmt.Errorf("decode message %s: %w", msg.ID, err)
	}
	return event, nil
}

// Recorder keeps published events in memory. Used where no stream is configured and in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
