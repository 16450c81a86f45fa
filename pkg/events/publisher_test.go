package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRoundTrip(t *testing.T) {
	event := New(AlgorithmStopped, map[string]interface{}{"algorithm_id": float64(7), "reason": "loss"})
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	got, err := Decode(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"payload": string(payload)}})
	require.NoError(t, err)
	assert.Equal(t, AlgorithmStopped, got.Type)
	assert.Equal(t, "loss", got.Data["reason"])
	assert.Equal(t, float64(7), got.Data["algorithm_id"])
}

func TestDecodeRejectsMissingPayload(t *testing.T) {
	_, err := Decode(redis.XMessage{ID: "1-0", Values: map[string]interface{}{}})
	assert.Error(t, err)

	_, err = Decode(redis.XMessage{ID: "2-0", Values: map[string]interface{}{"payload": 42}})
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Publish(context.Background(), New(BatchFailed, nil)))
	require.NoError(t, r.Publish(context.Background(), New(BatchExecuted, nil)))

	assert.Len(t, r.Events(), 2)
	assert.Len(t, r.OfType(BatchFailed), 1)
	assert.Empty(t, r.OfType(OrderCancelled))
}
