package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
	"github.com/alexenache10/NeuralPortofolio/internal/domain/service"
	"github.com/alexenache10/NeuralPortofolio/internal/services/dataset"
	"github.com/alexenache10/NeuralPortofolio/internal/services/features"
	"github.com/alexenache10/NeuralPortofolio/internal/services/nn"
	"github.com/alexenache10/NeuralPortofolio/internal/services/preprocessing"
)

const ModelName = "lstm"

var ErrNonFiniteForecast = errors.New("model produced a non-finite forecast")

var _ service.PriceForecaster = (*Forecaster)(nil)

// Forecaster turns the latest sequence_length bars into a next-close price
// using a fitted processor and a trained model.
type Forecaster struct {
	processor *preprocessing.Processor
	model     *nn.Model
	seqLen    int
	now       func() time.Time
}

func NewForecaster(p *preprocessing.Processor, m *nn.Model) (*Forecaster, error) {
	if p == nil || !p.Fitted() {
		return nil, fmt.Errorf("forecaster: %w", preprocessing.ErrUnfitted)
	}
	if m == nil {
		return nil, fmt.Errorf("forecaster: nil model")
	}
	return &Forecaster{
		processor: p,
		model:     m,
		seqLen:    m.Config().SeqLen,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Forecast predicts the close following the last bar of history. Only the
// trailing sequence_length bars are used.
func (f *Forecaster) Forecast(ctx context.Context, symbol string, history []models.Candle) (models.PriceForecast, error) {
	if err := ctx.Err(); err != nil {
		return models.PriceForecast{}, err
	}
	if len(history) < f.seqLen {
		return models.PriceForecast{}, fmt.Errorf("forecast %s: %d bars for sequence length %d: %w",
			symbol, len(history), f.seqLen, dataset.ErrInsufficientHistory)
	}
	window := history[len(history)-f.seqLen:]
	if err := features.ValidateSeries(window); err != nil {
		return models.PriceForecast{}, fmt.Errorf("forecast %s: %w", symbol, err)
	}

	x, _, err := f.processor.Transform(window)
	if err != nil {
		return models.PriceForecast{}, fmt.Errorf("forecast %s: %w", symbol, err)
	}
	out, err := f.model.Predict([]mat.Matrix{x})
	if err != nil {
		return models.PriceForecast{}, fmt.Errorf("forecast %s: %w", symbol, err)
	}
	price, err := f.processor.InverseTransformTarget([]float64{out.At(0, 0)})
	if err != nil {
		return models.PriceForecast{}, fmt.Errorf("forecast %s: %w", symbol, err)
	}
	if math.IsNaN(price[0]) || math.IsInf(price[0], 0) {
		return models.PriceForecast{}, fmt.Errorf("forecast %s: %w", symbol, ErrNonFiniteForecast)
	}

	last := window[len(window)-1]
	return models.PriceForecast{
		Symbol:         symbol,
		AsOf:           last.Time,
		GeneratedAt:    f.now(),
		LastClose:      last.Close,
		PredictedClose: price[0],
		Model:          ModelName,
	}, nil
}
