package mail

import (
	"go.uber.org/fx"

	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/services/logging"
)

func ProvideSender(cfg *config.Config, logger *logging.Service) (Sender, error) {
	if cfg.Mail.Host == "" {
		return &NoopSender{logger: logger}, nil
	}
	return NewService(&cfg.Mail, &cfg.App, logger)
}

var Options = fx.Options(
	fx.Provide(ProvideSender),
)
