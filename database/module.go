package database

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/tech-arch1tect/treez/config"
)

var Module = fx.Options(
	fx.Provide(ProvideDatabaseFx),
)

func ProvideDatabaseFx(cfg *config.Config, modelsOpt *ModelsOption) (*gorm.DB, error) {
	return ProvideDatabase(cfg, modelsOpt)
}
