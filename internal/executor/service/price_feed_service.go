package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang-algo-trader/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// PriceWriter stores a fresh last traded price.
type PriceWriter interface {
	SetLastPrice(ctx context.Context, symbol string, price decimal.Decimal, at time.Time) error
}

// PriceTick is one message of the price stream.
type PriceTick struct {
	Region string
	Symbol string
	Price  decimal.Decimal
	At     time.Time
}

// ParsePriceTick decodes the fields region, symbol, price and timestamp (unix seconds, optional).
func ParsePriceTick(values map[string]interface{}) (PriceTick, error) {
	var tick PriceTick
	region, _ := values["region"].(string)
	symbol, _ := values["symbol"].(string)
	rawPrice, _ := values["price"].(string)
	if symbol == "" || rawPrice == "" {
		return tick, errors.New("symbol and price are required")
	}
	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return tick, fmt.Errorf("invalid price %q: %w", rawPrice, err)
	}
	if !price.IsPositive() {
		return tick, fmt.Errorf("price must be positive, got %s", price)
	}

	tick = PriceTick{Region: region, Symbol: symbol, Price: price, At: time.Now().UTC()}
	if ts, ok := values["timestamp"].(string); ok && ts != "" {
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return tick, fmt.Errorf("invalid timestamp %q: %w", ts, err)
		}
		tick.At = time.Unix(sec, 0).UTC()
	}
	return tick, nil
}

// PriceFeedService consumes the market price stream into the price stores.
type PriceFeedService interface {
	ProcessPrices(ctx context.Context)
	Apply(ctx context.Context, tick PriceTick) error
}

type priceFeedService struct {
	redisClient   *redis.Client
	stream        string
	group         string
	consumer      string
	stores        map[string]PriceWriter
	defaultRegion string
	logger        *logger.Logger
}

func NewPriceFeedService(
	redisClient *redis.Client,
	stream, group, consumer string,
	stores map[string]PriceWriter,
	defaultRegion string,
	log *logger.Logger,
) PriceFeedService {
	return &priceFeedService{
		redisClient:   redisClient,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		stores:        stores,
		defaultRegion: defaultRegion,
		logger:        log,
	}
}

// ProcessPrices reads one batch of price ticks from the stream.
func (s *priceFeedService) ProcessPrices(ctx context.Context) {
	streams, err := s.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    100,
		Block:    2 * time.Second,
		NoAck:    true,
	}).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return
		}
		s.logger.Error("Failed to read price stream", logger.ErrorField(err))
		return
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			tick, err := ParsePriceTick(msg.Values)
			if err != nil {
				s.logger.Warn("Dropping malformed price tick", logger.StringField("message_id", msg.ID), logger.ErrorField(err))
				continue
			}
			if err := s.Apply(ctx, tick); err != nil {
				s.logger.Error("Failed to store price", logger.StringField("symbol", tick.Symbol), logger.ErrorField(err))
			}
		}
	}
}

func (s *priceFeedService) Apply(ctx context.Context, tick PriceTick) error {
	region := tick.Region
	if region == "" {
		region = s.defaultRegion
	}
	store, ok := s.stores[region]
	if !ok {
		return fmt.Errorf("no price store for region %q", region)
	}
	return store.SetLastPrice(ctx, tick.Symbol, tick.Price, tick.At)
}
