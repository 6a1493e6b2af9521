package db

import (
	"time"

	"github.com/smallbiznis/drivebridge/internal/config"
)

// PoolConfig sizes the database/sql connection pool.
type PoolConfig struct {
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func PoolConfigFrom(cfg config.Config) PoolConfig {
	pool := PoolConfig{
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Second,
	}
	// SQLite allows a single writer.
	if cfg.DBType == TypeSQLite {
		pool.MaxOpenConn = 1
		pool.MaxIdleConn = 1
	}
	return pool
}
