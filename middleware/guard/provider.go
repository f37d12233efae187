package guard

import (
	"go.uber.org/fx"

	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/services/jwt"
	"github.com/tech-arch1tect/treez/services/logging"
	"github.com/tech-arch1tect/treez/services/refreshtoken"
	"github.com/tech-arch1tect/treez/services/users"
)

func ProvideGuard(cfg *config.Config, jwtService *jwt.Service, tokens *refreshtoken.Service, userService *users.Service, logger *logging.Service) *Guard {
	return New(cfg, jwtService, tokens, userService, logger)
}

var Options = fx.Options(
	fx.Provide(ProvideGuard),
)
