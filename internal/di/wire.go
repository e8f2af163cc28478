//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/alexenache10/NeuralPortofolio/pkg/config"
	"github.com/alexenache10/NeuralPortofolio/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,

		// Metrics
		ProvideMetrics,
		ProvideDomainMetrics,

		// Infrastructure
		ProvideCache,
		ProvideMarketStore,
		ProvideForecastPublisher,
		ProvideRunRecorder,

		// Use cases
		ProvideTrainForecastUseCase,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
