//go:build wireinject
// +build wireinject

package di

import (
	"MarketSnap/pkg/config"
	"MarketSnap/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideStore,
		ProvideCache,
		ProvideKafkaProducer,

		// Repositories and sources
		ProvideFundamentalsRepository,
		ProvideTechnicalsRepository,
		ProvidePortfolioRepository,
		ProvideFundamentalsSource,
		ProvideTechnicalsSource,
		ProvideHistorySource,
		ProvideTimeframePolicy,

		// Use cases
		ProvideSnapshotUseCase,
		ProvideHistoryUseCase,
		ProvideAnalysisUseCase,
		ProvideRefresher,
		ProvideRefreshPipeline,
		ProvideRefreshUseCase,
		ProvideRefreshScheduler,

		// HTTP
		ProvideRefreshLimiter,
		ProvideMarketHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
