package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/voiceassist/internal/catalog"
	"github.com/smallbiznis/voiceassist/internal/clock"
	"github.com/smallbiznis/voiceassist/internal/commerce"
	"github.com/smallbiznis/voiceassist/internal/config"
	"github.com/smallbiznis/voiceassist/internal/identity"
	"github.com/smallbiznis/voiceassist/internal/migration"
	"github.com/smallbiznis/voiceassist/internal/observability"
	"github.com/smallbiznis/voiceassist/internal/ratelimit"
	"github.com/smallbiznis/voiceassist/internal/server"
	"github.com/smallbiznis/voiceassist/internal/usage"
	"github.com/smallbiznis/voiceassist/internal/usage/report"
	"github.com/smallbiznis/voiceassist/internal/usage/retention"
	"github.com/smallbiznis/voiceassist/internal/widget"
	"github.com/smallbiznis/voiceassist/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		ratelimit.Module,

		// Domains
		identity.Module,
		usage.Module,
		retention.Module,
		report.Module,
		catalog.Module,
		commerce.Module,
		widget.Module,

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
