package migration

import (
	"context"
	"strings"

	"github.com/smallbiznis/qatech/internal/config"
	"github.com/smallbiznis/qatech/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Migrate(conn, cfg.DBType); err != nil {
			return err
		}
		return seed.EnsureAdmin(context.Background(), conn, cfg.Bootstrap, log)
	}),
)

// Migrate picks versioned SQL for postgres and AutoMigrate elsewhere.
func Migrate(conn *gorm.DB, dbType string) error {
	if strings.EqualFold(dbType, "postgres") {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	return AutoMigrate(conn)
}
