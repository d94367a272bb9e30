//go:build wireinject
// +build wireinject

package di

import (
	"GridSpend/pkg/config"
	"GridSpend/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,

		// Repositories
		ProvideObservationStore,
		ProvideResultStore,
		ProvideModelStore,

		// Use cases
		ProvidePipeline,
		ProvideForecastUseCase,
		ProvideBacktestUseCase,

		// HTTP surface
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
