//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"mqd/internal"
	"mqd/internal/controllers"
	"mqd/internal/history"
	"mqd/internal/models"
	"mqd/internal/providers"
	"mqd/internal/services"
	"mqd/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		history.NewZstdCompressor,
		history.NewColdStorageProvider,
		wire.Bind(new(models.ColdStorageInterface), new(*history.ColdStorage)),
		services.NewAnalysisService,
		history.NewFileManager,
		history.NewScheduler,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
