package migration

import (
	"strings"

	"github.com/smallbiznis/drivebridge/internal/config"
	"github.com/smallbiznis/drivebridge/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if !strings.EqualFold(strings.TrimSpace(cfg.DBType), db.TypePostgres) {
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
