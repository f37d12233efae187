package users

import (
	"go.uber.org/fx"
)

var Options = fx.Options(
	fx.Provide(NewHandler),
)
