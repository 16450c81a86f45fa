package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-algo-trader/pkg/common"
	"golang-algo-trader/pkg/logger"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// PriceStore resolves the last traded price of a symbol. Lookups go through an in-process
// cache, then the redis last_price hash, then the asset row.
type PriceStore struct {
	inmemoryCache *cache.Cache
	redisClient   redis.Cmdable
	assets        AssetRepository
	region        string
	redisTTL      time.Duration
	logger        *logger.Logger
}

// NewPriceStore creates a price store for one region. redisClient may be nil.
func NewPriceStore(redisClient redis.Cmdable, assets AssetRepository, region string, localTTL, redisTTL time.Duration, log *logger.Logger) *PriceStore {
	if localTTL <= 0 {
		localTTL = 30 * time.Second
	}
	if redisTTL <= 0 {
		redisTTL = 15 * time.Minute
	}
	return &PriceStore{
		inmemoryCache: cache.New(localTTL, 2*localTTL),
		redisClient:   redisClient,
		assets:        assets,
		region:        region,
		redisTTL:      redisTTL,
		logger:        log,
	}
}

// LastPrice returns a null decimal when no source knows the symbol.
func (s *PriceStore) LastPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	if v, ok := s.inmemoryCache.Get(symbol); ok {
		return decimal.NewNullDecimal(v.(decimal.Decimal)), nil
	}

	if s.redisClient != nil {
		raw, err := s.redisClient.HGet(ctx, fmt.Sprintf(common.RedisKeyLastPrice, symbol), "price").Result()
		switch {
		case err == nil:
			price, perr := decimal.NewFromString(raw)
			if perr == nil {
				s.inmemoryCache.SetDefault(symbol, price)
				return decimal.NewNullDecimal(price), nil
			}
			s.logger.Warn("Invalid cached price", logger.StringField("symbol", symbol), logger.StringField("raw", raw))
		case errors.Is(err, redis.Nil):
		default:
			s.logger.Warn("Failed to read last price from redis", logger.StringField("symbol", symbol), logger.ErrorField(err))
		}
	}

	asset, err := s.assets.FindBySymbol(ctx, symbol, s.region)
	if err != nil {
		if errors.Is(err, ErrAssetNotFound) {
			return decimal.NullDecimal{}, nil
		}
		return decimal.NullDecimal{}, err
	}
	if asset.CurrentPrice.Valid {
		s.inmemoryCache.SetDefault(symbol, asset.CurrentPrice.Decimal)
	}
	return asset.CurrentPrice, nil
}

// SetLastPrice records a fresh price in every layer.
func (s *PriceStore) SetLastPrice(ctx context.Context, symbol string, price decimal.Decimal, at time.Time) error {
	s.inmemoryCache.SetDefault(symbol, price)

	if s.redisClient != nil {
		key := fmt.Sprintf(common.RedisKeyLastPrice, symbol)
		pipe := s.redisClient.Pipeline()
		pipe.HSet(ctx, key, map[string]interface{}{
			"price":     price.String(),
			"timestamp": at.Unix(),
		})
		pipe.Expire(ctx, key, s.redisTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			s.logger.Warn("Failed to cache last price", logger.StringField("symbol", symbol), logger.ErrorField(err))
		}
	}

	return s.assets.UpdatePrice(ctx, symbol, s.region, price, at)
}
