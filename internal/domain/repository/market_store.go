package repository

import (
	"context"
	"time"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
)

// MarketDataStore provides read-only access to daily OHLCV history.
// Implementations return bars in ascending time order.
type MarketDataStore interface {
	GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
	GetLatestNBars(ctx context.Context, symbol string, n int) ([]models.Candle, error)
}
