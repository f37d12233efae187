package pgp

import (
	"context"
	"time"

	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// rotationCheckInterval bounds how stale an overdue keypair can get; the
// actual rotation interval comes from config.
const rotationCheckInterval = time.Hour

func ProvidePGPService(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) *Service {
	service := NewService(cfg, logger)
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if _, err := service.Initialize(); err != nil {
				return err
			}

			go func() {
				ticker := time.NewTicker(rotationCheckInterval)
				defer ticker.Stop()

				for {
					select {
					case <-ticker.C:
						if _, err := service.Initialize(); err != nil && logger != nil {
							logger.Error("scheduled PGP key rotation failed", zap.Error(err))
						}
					case <-done:
						return
					}
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})

	return service
}

var Options = fx.Options(
	fx.Provide(ProvidePGPService),
)
