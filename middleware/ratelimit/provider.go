package ratelimit

import (
	"go.uber.org/fx"

	"github.com/tech-arch1tect/treez/config"
)

func ProvideStore(cfg *config.Config) Store {
	return NewMemoryStore()
}

func ProvideConfig(cfg *config.Config, store Store) *Config {
	return &Config{
		Store:  store,
		Rate:   cfg.RateLimit.Rate,
		Period: cfg.RateLimit.Period,
	}
}

var Options = fx.Options(
	fx.Provide(ProvideStore),
	fx.Provide(ProvideConfig),
)
