//go:build wireinject

package app

import (
	"equitybot/internal/config"

	"github.com/google/wire"
)

func buildAppWithWire(cfg *config.Config, opts Options) (*App, func(), error) {
	wire.Build(
		provideStore,
		provideStrategies,
		provideNotifier,
		provideMetrics,
		provideRunnerConfig,
		provideRunner,
		newApp,
	)
	return nil, nil, nil
}
