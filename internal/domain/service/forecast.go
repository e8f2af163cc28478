package service

import (
	"context"

	"github.com/alexenache10/NeuralPortofolio/internal/domain/models"
)

// PriceForecaster predicts the next closing price from an asset's recent history.
type PriceForecaster interface {
	Forecast(ctx context.Context, symbol string, history []models.Candle) (models.PriceForecast, error)
}
