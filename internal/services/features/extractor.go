package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
)

// Column names recognised in feature_columns and target_column.
const (
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
)

var (
	ErrUnknownColumn   = errors.New("unknown column")
	ErrUnorderedSeries = errors.New("series is not strictly ascending")
	ErrNonFiniteValue  = errors.New("non-finite bar value")
)

// Value returns the named field of a candle.
func Value(c models.Candle, column string) (float64, error) {
	switch column {
	case ColOpen:
		return c.Open, nil
	case ColHigh:
		return c.High, nil
	case ColLow:
		return c.Low, nil
	case ColClose:
		return c.Close, nil
	case ColVolume:
		return float64(c.Volume), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
}

// Matrix projects candles onto the ordered columns, shape (len(candles), len(columns)).
// Returns nil for an empty input.
func Matrix(candles []models.Candle, columns []string) (*mat.Dense, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrUnknownColumn)
	}
	for _, col := range columns {
		if _, err := Value(models.Candle{}, col); err != nil {
			return nil, err
		}
	}
	if len(candles) == 0 {
		return nil, nil
	}
	data := make([]float64, 0, len(candles)*len(columns))
	for _, c := range candles {
		for _, col := range columns {
			v, _ := Value(c, col)
			data = append(data, v)
		}
	}
	return mat.NewDense(len(candles), len(columns), data), nil
}

// Column extracts one field of every candle. Returns nil for an empty input.
func Column(candles []models.Candle, column string) (*mat.VecDense, error) {
	if _, err := Value(models.Candle{}, column); err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, nil
	}
	data := make([]float64, len(candles))
	for i, c := range candles {
		data[i], _ = Value(c, column)
	}
	return mat.NewVecDense(len(data), data), nil
}

// ValidateSeries checks that candles belong to one symbol, are strictly
// ascending in time and carry finite prices. Gaps between bars are allowed.
func ValidateSeries(candles []models.Candle) error {
	for i, cur := range candles {
		for _, col := range [...]string{ColOpen, ColHigh, ColLow, ColClose} {
			v, _ := Value(cur, col)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s=%v at row %d (%s)", ErrNonFiniteValue, col, v, i, cur.Time.Format("2006-01-02"))
			}
		}
		if i == 0 {
			continue
		}
		prev := candles[i-1]
		if cur.Symbol != prev.Symbol {
			return fmt.Errorf("%w: mixed symbols %q and %q at row %d", ErrUnorderedSeries, prev.Symbol, cur.Symbol, i)
		}
		if !cur.Time.After(prev.Time) {
			return fmt.Errorf("%w: row %d at %s not after %s", ErrUnorderedSeries, i, cur.Time.Format("2006-01-02"), prev.Time.Format("2006-01-02"))
		}
	}
	return nil
}

// TemporalSplit keeps chronological order: the first int(n*(1-testSize))
// rows train, the rest test.
func TemporalSplit(candles []models.Candle, testSize float64) (train, test []models.Candle) {
	n := len(candles)
	cut := int(float64(n) * (1 - testSize))
	if cut < 0 {
		cut = 0
	}
	if cut > n {
		cut = n
	}
	return candles[:cut], candles[cut:]
}
