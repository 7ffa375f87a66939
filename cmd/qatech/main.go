package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/cache"
	"github.com/smallbiznis/qatech/internal/clock"
	"github.com/smallbiznis/qatech/internal/config"
	"github.com/smallbiznis/qatech/internal/migration"
	"github.com/smallbiznis/qatech/internal/observability"
	"github.com/smallbiznis/qatech/internal/server"
	"github.com/smallbiznis/qatech/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		cache.Module,
		clock.Module,
		migration.Module,

		// HTTP surface and the domains behind it
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
