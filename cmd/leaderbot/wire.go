//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
)

// BuildApp wires the bot components using Google Wire.
func BuildApp(ctx context.Context, src ConfigSource) (*App, func(), error) {
	wire.Build(
		provideConfig,
		provideLogger,
		provideHub,
		provideAnalytics,
		provideStorage,
		provideFetcher,
		provideReporter,
		provideBot,
		provideHandler,
		provideServer,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
