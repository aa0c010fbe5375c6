package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dormitory/internal/audit"
	"github.com/smallbiznis/dormitory/internal/authorization"
	"github.com/smallbiznis/dormitory/internal/clock"
	"github.com/smallbiznis/dormitory/internal/config"
	"github.com/smallbiznis/dormitory/internal/fridge"
	"github.com/smallbiznis/dormitory/internal/lock"
	"github.com/smallbiznis/dormitory/internal/metricspush"
	"github.com/smallbiznis/dormitory/internal/migration"
	"github.com/smallbiznis/dormitory/internal/observability"
	"github.com/smallbiznis/dormitory/internal/redis"
	"github.com/smallbiznis/dormitory/internal/server"
	"github.com/smallbiznis/dormitory/pkg/db"
	"github.com/smallbiznis/dormitory/pkg/telemetry"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		lock.Module,
		telemetry.Module,

		// Functional Domains
		audit.Module,
		authorization.Module,
		fridge.Module,
		migration.Module,
		metricspush.Module,

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
