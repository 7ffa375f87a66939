package storage

import (
	"github.com/smallbiznis/qatech/internal/config"
	productdomain "github.com/smallbiznis/qatech/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.storage",
	fx.Provide(func(cfg config.Config, log *zap.Logger) (*LocalStore, error) {
		return NewLocalStore(cfg.UploadDir, log.Named("storage"))
	}),
	fx.Provide(func(s *LocalStore) productdomain.FileStore { return s }),
)
