// Package app assembles the full service graph and owns its lifecycle.
package app

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/tech-arch1tect/treez/config"
	"github.com/tech-arch1tect/treez/database"
	authhandler "github.com/tech-arch1tect/treez/handlers/auth"
	keyshandler "github.com/tech-arch1tect/treez/handlers/keys"
	usershandler "github.com/tech-arch1tect/treez/handlers/users"
	"github.com/tech-arch1tect/treez/middleware/guard"
	"github.com/tech-arch1tect/treez/middleware/ratelimit"
	"github.com/tech-arch1tect/treez/server"
	"github.com/tech-arch1tect/treez/services/cryptox"
	"github.com/tech-arch1tect/treez/services/jwt"
	"github.com/tech-arch1tect/treez/services/logging"
	"github.com/tech-arch1tect/treez/services/mail"
	"github.com/tech-arch1tect/treez/services/password"
	"github.com/tech-arch1tect/treez/services/pgp"
	"github.com/tech-arch1tect/treez/services/refreshtoken"
	"github.com/tech-arch1tect/treez/services/users"
)

// New builds the application. A nil cfg loads configuration from the
// environment.
func New(cfg *config.Config) *fx.App {
	return fx.New(
		config.NewProvider(cfg),
		logging.Module,
		fx.Supply(database.WithModels(
			&users.Role{},
			&users.User{},
			&users.PasswordResetToken{},
			&refreshtoken.RefreshToken{},
		)),
		database.Module,

		password.Options,
		cryptox.Options,
		pgp.Options,
		jwt.Options,
		refreshtoken.Options,
		users.Options,
		mail.Options,
		ratelimit.Options,
		guard.Options,

		server.NewProvider(),
		authhandler.Options,
		keyshandler.Options,
		usershandler.Options,
		fx.Invoke(registerRoutes),

		fx.WithLogger(func(logger *logging.Service) fxevent.Logger {
			zapLogger := logger.Logger()
			if zapLogger == nil {
				zapLogger = zap.NewNop()
			}
			return &fxevent.ZapLogger{Logger: zapLogger}
		}),
	)
}

func registerRoutes(srv *server.Server, authH *authhandler.Handler, keysH *keyshandler.Handler, usersH *usershandler.Handler) {
	api := srv.Group("/api")
	registerAPI(api, authH, keysH, usersH)
}

func registerAPI(api *echo.Group, authH *authhandler.Handler, keysH *keyshandler.Handler, usersH *usershandler.Handler) {
	authH.Register(api)
	keysH.Register(api)
	usersH.Register(api)
}
