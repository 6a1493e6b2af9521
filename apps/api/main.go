package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/drivebridge/internal/apikey"
	"github.com/smallbiznis/drivebridge/internal/audit"
	"github.com/smallbiznis/drivebridge/internal/authorization"
	"github.com/smallbiznis/drivebridge/internal/cache"
	"github.com/smallbiznis/drivebridge/internal/clock"
	"github.com/smallbiznis/drivebridge/internal/config"
	"github.com/smallbiznis/drivebridge/internal/drive"
	"github.com/smallbiznis/drivebridge/internal/googleauth"
	"github.com/smallbiznis/drivebridge/internal/kvstore"
	"github.com/smallbiznis/drivebridge/internal/migration"
	"github.com/smallbiznis/drivebridge/internal/nonce"
	"github.com/smallbiznis/drivebridge/internal/observability"
	"github.com/smallbiznis/drivebridge/internal/postscan"
	"github.com/smallbiznis/drivebridge/internal/ratelimit"
	"github.com/smallbiznis/drivebridge/internal/secrets"
	"github.com/smallbiznis/drivebridge/internal/server"
	"github.com/smallbiznis/drivebridge/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		cache.Module,
		secrets.Module,
		kvstore.Module,
		ratelimit.Module,

		// Core dependencies for the admin API
		authorization.Module,
		apikey.Module,
		audit.Module,
		nonce.Module,
		googleauth.Module,
		drive.Module,
		postscan.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
