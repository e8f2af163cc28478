package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
	pkgch "github.com/alexenache10/NeuralPortofolio/pkg/clickhouse"
	applogger "github.com/alexenache10/NeuralPortofolio/pkg/logger"
)

// CHMarketStore implements MarketDataStore over a ClickHouse table of
// (time, symbol, open, high, low, close, volume) daily rows.
type CHMarketStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHMarketStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHMarketStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHMarketStore{db: ch.DB(), table: table, l: l}
}

func (s *CHMarketStore) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	start := time.Now()
	const qtpl = `
        SELECT time, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND time >= ? AND time <= ?
        ORDER BY time ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), symbol, from.UTC(), to.UTC())
	if err != nil {
		s.l.Error("clickhouse daily_bars query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get daily bars: %w", err)
	}
	defer rows.Close()

	out, err := scanBars(rows, 1024)
	if err != nil {
		s.l.Error("clickhouse daily_bars scan error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, err
	}
	s.l.Debug("clickhouse daily_bars ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHMarketStore) GetLatestNBars(ctx context.Context, symbol string, n int) ([]models.Candle, error) {
	if n <= 0 {
		return []models.Candle{}, nil
	}
	start := time.Now()
	const qtpl = `
        SELECT time, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY time DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), symbol, n)
	if err != nil {
		s.l.Error("clickhouse latest_bars query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Int("limit", n),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	defer rows.Close()

	out, err := scanBars(rows, n)
	if err != nil {
		s.l.Error("clickhouse latest_bars scan error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Int("limit", n),
			applogger.Error(err),
		)
		return nil, err
	}
	reverseBars(out)
	s.l.Debug("clickhouse latest_bars ok",
		applogger.String("symbol", symbol),
		applogger.Int("limit", n),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}
