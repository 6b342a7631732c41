package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/afftrack/clickpipe/internal/cache"
	"github.com/afftrack/clickpipe/internal/click"
	"github.com/afftrack/clickpipe/internal/clock"
	"github.com/afftrack/clickpipe/internal/config"
	"github.com/afftrack/clickpipe/internal/fraud"
	"github.com/afftrack/clickpipe/internal/geo"
	"github.com/afftrack/clickpipe/internal/logger"
	"github.com/afftrack/clickpipe/internal/migration"
	"github.com/afftrack/clickpipe/internal/observability/metrics"
	"github.com/afftrack/clickpipe/internal/offer"
	"github.com/afftrack/clickpipe/internal/referrer"
	"github.com/afftrack/clickpipe/internal/server"
	"github.com/afftrack/clickpipe/internal/stats"
	"github.com/afftrack/clickpipe/internal/traffic"
	"github.com/afftrack/clickpipe/internal/utmsource"
	"github.com/afftrack/clickpipe/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		metrics.Module,
		migration.Module,

		// Domain modules
		geo.Module,
		fraud.Module,
		traffic.Module,
		offer.Module,
		referrer.Module,
		utmsource.Module,
		click.Module,
		stats.Module,

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
