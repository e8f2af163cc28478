package repository

import (
	"context"
	"errors"
	"time"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
	domrepo "github.com/alexenache10/NeuralPortofolio/internal/domain/repository"
	"github.com/alexenache10/NeuralPortofolio/pkg/cache"
	applogger "github.com/alexenache10/NeuralPortofolio/pkg/logger"
	"github.com/alexenache10/NeuralPortofolio/pkg/util"
)

// CachedMarketStore memoizes history reads of another store. Ranges are
// widened to whole UTC days so repeated runs on the same day share a key.
type CachedMarketStore struct {
	next  domrepo.MarketDataStore
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCachedMarketStore(next domrepo.MarketDataStore, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedMarketStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedMarketStore{next: next, cache: c, ttl: ttl, l: l}
}

func (s *CachedMarketStore) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	from, to = util.AlignDays(from, to)
	key := cache.Key("bars", symbol, from.Format(time.DateOnly), to.Format(time.DateOnly))
	return s.cached(ctx, key, func() ([]models.Candle, error) {
		return s.next.GetDailyBars(ctx, symbol, from, to)
	})
}

func (s *CachedMarketStore) GetLatestNBars(ctx context.Context, symbol string, n int) ([]models.Candle, error) {
	day := time.Now().UTC().Format(time.DateOnly)
	key := cache.Key("latest", symbol, n, day)
	return s.cached(ctx, key, func() ([]models.Candle, error) {
		return s.next.GetLatestNBars(ctx, symbol, n)
	})
}

func (s *CachedMarketStore) cached(ctx context.Context, key string, load func() ([]models.Candle, error)) ([]models.Candle, error) {
	var bars []models.Candle
	err := s.cache.Get(ctx, key, &bars)
	switch {
	case err == nil:
		return bars, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		// a broken cache degrades to direct reads
		s.l.Warn("bars cache get error", applogger.String("key", key), applogger.Error(err))
	}

	bars, err = load()
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return bars, nil
	}
	if err := s.cache.Set(ctx, key, bars, s.ttl); err != nil {
		s.l.Warn("bars cache set error", applogger.String("key", key), applogger.Error(err))
	}
	return bars, nil
}
