package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/drivebridge/internal/cache"
	"github.com/smallbiznis/drivebridge/internal/clock"
	"github.com/smallbiznis/drivebridge/internal/config"
	"github.com/smallbiznis/drivebridge/internal/kvstore"
	"github.com/smallbiznis/drivebridge/internal/metricspush"
	"github.com/smallbiznis/drivebridge/internal/observability"
	"github.com/smallbiznis/drivebridge/internal/postscan"
	"github.com/smallbiznis/drivebridge/internal/ratelimit"
	"github.com/smallbiznis/drivebridge/internal/scheduler"
	"github.com/smallbiznis/drivebridge/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		kvstore.Module,
		ratelimit.Module,

		// Domain services required by scheduler
		postscan.Module,
		scheduler.Module,

		// No server module, so metrics are pushed instead of scraped.
		metricspush.Module,
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
