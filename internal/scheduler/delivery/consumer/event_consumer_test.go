package consumer

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"golang-algo-trader/pkg/events"
	"golang-algo-trader/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Broadcast(event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

type recordingNotifier struct {
	messages []string
	err      error
}

func (n *recordingNotifier) SendMessage(text string) error {
	n.messages = append(n.messages, text)
	return n.err
}

// viaStream encodes the event the way the publisher does and decodes it back.
func viaStream(t *testing.T, event events.Event) events.Event {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	decoded, err := events.Decode(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"payload": string(payload)}})
	require.NoError(t, err)
	return decoded
}

func TestHandleNotifiesAlgorithmStopped(t *testing.T) {
	sink := &recordingSink{}
	notifier := &recordingNotifier{}
	c := NewEventConsumer(nil, sink, notifier, logger.NewNop())

	at := time.Date(2024, 1, 15, 4, 0, 0, 0, time.UTC)
	c.Handle(viaStream(t, events.New(events.AlgorithmStopped, map[string]interface{}{
		"algorithm_id": uint(42),
		"user_id":      uint(7),
		"name":         "dip_buyer",
		"reason":       "Cumulative loss -150.00 reached threshold 100.00",
		"at":           at,
	})))

	require.Len(t, sink.events, 1)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "`#42`")
	assert.Contains(t, notifier.messages[0], `dip\_buyer`)
	assert.Contains(t, notifier.messages[0], "reached threshold 100.00")
}

func TestHandleNotifiesBatchFailed(t *testing.T) {
	notifier := &recordingNotifier{}
	c := NewEventConsumer(nil, &recordingSink{}, notifier, logger.NewNop())

	c.Handle(viaStream(t, events.New(events.BatchFailed, map[string]interface{}{
		"batch_id": "b-1",
		"broker":   "zerodha",
		"orders":   3,
		"reason":   "broker unavailable",
	})))

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "`b-1`")
	assert.Contains(t, notifier.messages[0], "Broker: zerodha | Orders: 3")
}

func TestHandleOnlyBroadcastsRoutineEvents(t *testing.T) {
	sink := &recordingSink{}
	notifier := &recordingNotifier{}
	c := NewEventConsumer(nil, sink, notifier, logger.NewNop())

	for _, typ := range []events.Type{events.SignalProcessed, events.BatchExecuted, events.OrderCancelled, events.AlgorithmFailed} {
		c.Handle(viaStream(t, events.New(typ, map[string]interface{}{"symbol": "INFY"})))
	}

	assert.Len(t, sink.events, 4)
	assert.Empty(t, notifier.messages)
}

func TestHandleSurvivesNotifierFailure(t *testing.T) {
	sink := &recordingSink{}
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	c := NewEventConsumer(nil, sink, notifier, logger.NewNop())

	assert.NotPanics(t, func() {
		c.Handle(events.New(events.BatchFailed, map[string]interface{}{"batch_id": "b-2"}))
	})
	assert.Len(t, sink.events, 1)
	assert.Len(t, notifier.messages, 1)
}
