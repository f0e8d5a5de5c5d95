//go:build wireinject
// +build wireinject

package di

import (
	"ThemePulse/pkg/config"
	"ThemePulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Static data and in-process state
		ProvideDirectory,
		ProvideClock,
		ProvidePriceCache,
		ProvideSnapshotCache,
		ProvideBytesCache,

		// Upstream
		ProvideKISAuth,
		ProvideQuoteLookup,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideHistoryStore,
		ProvideSamplePublisher,

		// Use cases
		ProvidePipeline,
		ProvideAggregator,
		ProvideDispatcher,
		ProvideFeedCollector,
		ProvideHistoryRecorder,

		// Transport and application
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
