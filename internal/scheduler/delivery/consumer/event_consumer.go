package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang-algo-trader/pkg/common"
	"golang-algo-trader/pkg/events"
	"golang-algo-trader/pkg/logger"
	"golang-algo-trader/pkg/telegram"
	"golang-algo-trader/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Broadcaster receives every event read from the stream.
type Broadcaster interface {
	Broadcast(event events.Event)
}

// EventConsumer tails the trading events stream from the moment it starts. Events are pushed to
// the broadcaster, and the ones an operator must act on go to Telegram.
type EventConsumer struct {
	redisClient *redis.Client
	stream      string
	sink        Broadcaster
	notifier    telegram.Notifier
	logger      *logger.Logger

	lastID   string
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewEventConsumer(redisClient *redis.Client, sink Broadcaster, notifier telegram.Notifier, log *logger.Logger) *EventConsumer {
	return &EventConsumer{
		redisClient: redisClient,
		stream:      common.RedisStreamTradingEvents,
		sink:        sink,
		notifier:    notifier,
		logger:      log,
		lastID:      "$",
		stopChan:    make(chan struct{}),
	}
}

// Start launches the read loop. It returns immediately.
func (c *EventConsumer) Start(ctx context.Context) {
	c.logger.Info("Event consumer started", logger.StringField("stream", c.stream))
	c.wg.Add(1)
	utils.GoSafe(c.logger, func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopChan:
				return
			default:
				c.pollSafe(ctx)
			}
		}
	})
}

func (c *EventConsumer) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.wg.Wait()
	c.logger.Info("Event consumer stopped")
}

func (c *EventConsumer) pollSafe(ctx context.Context) {
	defer utils.Recover(c.logger, "event consumer")
	c.poll(ctx)
}

func (c *EventConsumer) poll(ctx context.Context) {
	streams, err := c.redisClient.XRead(ctx, &redis.XReadArgs{
		Streams: []string{c.stream, c.lastID},
		Count:   100,
		Block:   2 * time.Second,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.logger.Error("Failed to read event stream", logger.ErrorField(err))
		// back off so a redis outage does not spin the loop
		select {
		case <-ctx.Done():
		case <-c.stopChan:
		case <-time.After(time.Second):
		}
		return
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			c.lastID = msg.ID
			event, err := events.Decode(msg)
			if err != nil {
				c.logger.Warn("Dropping malformed event", logger.StringField("message_id", msg.ID), logger.ErrorField(err))
				continue
			}
			c.Handle(event)
		}
	}
}

// Handle delivers one event.
func (c *EventConsumer) Handle(event events.Event) {
	c.sink.Broadcast(event)

	var msg string
	switch event.Type {
	case events.AlgorithmStopped:
		msg = telegram.FormatAlgorithmStopped(
			uint(number(event.Data, "algorithm_id")),
			text(event.Data, "name"),
			text(event.Data, "reason"),
			timestamp(event.Data, "at", event.OccurredAt),
		)
	case events.BatchFailed:
		msg = telegram.FormatBatchFailed(
			text(event.Data, "batch_id"),
			text(event.Data, "broker"),
			int(number(event.Data, "orders")),
			text(event.Data, "reason"),
			event.OccurredAt,
		)
	default:
		return
	}

	if err := c.notifier.SendMessage(msg); err != nil {
		c.logger.Error("Failed to send telegram notification", logger.StringField("type", string(event.Type)), logger.ErrorField(err))
	}
}

func text(data map[string]interface{}, key string) string {
	switch v := data[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// number reads a JSON number, which decodes as float64.
func number(data map[string]interface{}, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case uint:
		return float64(v)
	default:
		return 0
	}
}

func timestamp(data map[string]interface{}, key string, fallback time.Time) time.Time {
	switch v := data[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return fallback
}
