package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/regard-engine/internal/marketdata"
)

const (
	// Historical closes never change once the day is over.
	dailyCloseTTL = 7 * 24 * time.Hour

	quoteTTL       = 5 * time.Minute
	quoteStaleness = time.Minute
)

// PriceService answers benchmark and live-quote lookups through a memory
// cache, then redis, then the Stooq REST client. It implements the
// engine.PriceLookup capability.
type PriceService struct {
	redis  *redis.Client
	md     *marketdata.Client
	logger *zap.Logger

	quotes    map[string]cachedQuote
	quotesMux sync.RWMutex
}

type cachedQuote struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// NewPriceService creates a new PriceService
func NewPriceService(redisClient *redis.Client, md *marketdata.Client, logger *zap.Logger) *PriceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceService{
		redis:  redisClient,
		md:     md,
		logger: logger,
		quotes: make(map[string]cachedQuote),
	}
}

// PriceAt returns the daily close at or before the instant, cached by
// (symbol, date).
func (s *PriceService) PriceAt(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error) {
	key := fmt.Sprintf("close:%s:%s", symbol, at.Format("2006-01-02"))

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key).Result(); err == nil {
			if price, perr := decimal.NewFromString(cached); perr == nil {
				return price, nil
			}
		}
	}

	price, err := s.md.DailyClose(ctx, symbol, at)
	if err != nil {
		return decimal.Zero, err
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, price.String(), dailyCloseTTL).Err(); err != nil {
			s.logger.Warn("failed to cache daily close", zap.String("key", key), zap.Error(err))
		}
	}

	return price, nil
}

// CurrentPrice returns the latest quote for a ticker: memory cache within
// the staleness window, then redis, then Stooq.
func (s *PriceService) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s.quotesMux.RLock()
	cached, ok := s.quotes[symbol]
	s.quotesMux.RUnlock()
	if ok && time.Since(cached.fetchedAt) < quoteStaleness {
		return cached.price, nil
	}

	key := fmt.Sprintf("quote:%s", symbol)
	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, key).Result(); err == nil {
			if price, perr := decimal.NewFromString(raw); perr == nil {
				s.remember(symbol, price)
				return price, nil
			}
		}
	}

	price, err := s.md.Quote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}

	s.remember(symbol, price)
	if s.redis != nil {
		if err := s.redis.Set(ctx, key, price.String(), quoteTTL).Err(); err != nil {
			s.logger.Warn("failed to cache quote", zap.String("key", key), zap.Error(err))
		}
	}

	return price, nil
}

func (s *PriceService) remember(symbol string, price decimal.Decimal) {
	s.quotesMux.Lock()
	s.quotes[symbol] = cachedQuote{price: price, fetchedAt: time.Now()}
	s.quotesMux.Unlock()
}
