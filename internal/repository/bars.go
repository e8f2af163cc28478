package repository

import (
	"database/sql"
	"fmt"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
)

// scanBars reads (time, symbol, open, high, low, close, volume) rows.
func scanBars(rows *sql.Rows, capacity int) ([]models.Candle, error) {
	out := make([]models.Candle, 0, capacity)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		c.Time = c.Time.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// reverseBars flips a DESC result into ascending order in place.
func reverseBars(bars []models.Candle) {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
}
