package cryptox

import (
	"context"

	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/services/logging"
	"go.uber.org/fx"
)

func ProvideRegistry(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) *Registry {
	registry := NewRegistry(cfg, logger)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			registry.DestroyAll()
			return nil
		},
	})

	return registry
}

var Options = fx.Options(
	fx.Provide(ProvideRegistry),
)
