//go:build wireinject
// +build wireinject

package di

import (
	"FinFusion/pkg/config"
	"FinFusion/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideMetricsSink,
	ProvideRedis,
	ProvideCache,
	ProvidePostgres,
	ProvideAlertStore,
	ProvideClickHouse,
	ProvideSnapshotHistory,
	ProvideAlertEvents,
	ProvideKafkaConsumer,
)

var broadcastSet = wire.NewSet(
	ProvideHub,
	ProvideRelay,
	ProvideBroadcaster,
	ProvideWSHandler,
)

var engineSet = wire.NewSet(
	ProvideMarket,
	ProvideSentiment,
	ProvideAdapters,
	ProvideFusionScorer,
	ProvideAlertGenerator,
	ProvideAlertService,
	ProvidePipeline,
	ProvideSnapshotPipeline,
	ProvideSnapshotsHandler,
	ProvideScheduler,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		infraSet,
		broadcastSet,
		engineSet,
		ProvideHTTPServer,
		wire.Struct(new(server.Deps), "*"),
		server.New,
	)
	return &server.App{}, nil
}
