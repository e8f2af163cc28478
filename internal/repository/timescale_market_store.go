package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
	applogger "github.com/alexenache10/NeuralPortofolio/pkg/logger"
	"github.com/alexenache10/NeuralPortofolio/pkg/postgres"
)

// TimescaleMarketStore reads the market_data hypertable joined to assets.
type TimescaleMarketStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewTimescaleMarketStore(pg *postgres.Client, l *applogger.Logger) *TimescaleMarketStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &TimescaleMarketStore{db: pg.DB(), l: l}
}

const barColumns = `m.time, a.symbol,
            COALESCE(m.open, 0), COALESCE(m.high, 0), COALESCE(m.low, 0),
            COALESCE(m.close, 0), COALESCE(m.volume, 0)`

func (s *TimescaleMarketStore) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	start := time.Now()
	q := `
        SELECT ` + barColumns + `
        FROM market_data m
        JOIN assets a ON m.asset_id = a.id
        WHERE a.symbol = $1 AND m.time BETWEEN $2 AND $3
        ORDER BY m.time ASC
    `
	rows, err := s.db.QueryContext(ctx, q, symbol, from.UTC(), to.UTC())
	if err != nil {
		s.l.Error("timescale daily_bars query error",
			applogger.String("symbol", symbol),
			applogger.Time("from", from),
			applogger.Time("to", to),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get daily bars: %w", err)
	}
	defer rows.Close()

	out, err := scanBars(rows, 1300)
	if err != nil {
		s.l.Error("timescale daily_bars scan error", applogger.String("symbol", symbol), applogger.Error(err))
		return nil, err
	}
	s.l.Debug("timescale daily_bars ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *TimescaleMarketStore) GetLatestNBars(ctx context.Context, symbol string, n int) ([]models.Candle, error) {
	if n <= 0 {
		return []models.Candle{}, nil
	}
	start := time.Now()
	q := `
        SELECT ` + barColumns + `
        FROM market_data m
        JOIN assets a ON m.asset_id = a.id
        WHERE a.symbol = $1
        ORDER BY m.time DESC
        LIMIT $2
    `
	rows, err := s.db.QueryContext(ctx, q, symbol, n)
	if err != nil {
		s.l.Error("timescale latest_bars query error",
			applogger.String("symbol", symbol),
			applogger.Int("limit", n),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	defer rows.Close()

	out, err := scanBars(rows, n)
	if err != nil {
		s.l.Error("timescale latest_bars scan error", applogger.String("symbol", symbol), applogger.Error(err))
		return nil, err
	}
	reverseBars(out)
	s.l.Debug("timescale latest_bars ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}
