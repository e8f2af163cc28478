package repository

import (
	"context"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
)

// ForecastPublisher emits forecasts to downstream consumers.
type ForecastPublisher interface {
	Publish(ctx context.Context, f *models.PriceForecast) error
	Close() error
}

// RunRecorder persists training run history. LastRun returns nil when the
// symbol has no recorded run.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *models.TrainingRun) error
	LastRun(ctx context.Context, symbol string) (*models.TrainingRun, error)
	Close() error
}

type Metrics interface {
	RecordEpoch(symbol string, epoch int, trainLoss, testLoss float64)
	RecordRun(symbol, status string)
	RecordError(kind string)
	RecordForecast(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
