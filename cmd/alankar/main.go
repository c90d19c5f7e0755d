package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/alankar/internal/clock"
	"github.com/smallbiznis/alankar/internal/config"
	"github.com/smallbiznis/alankar/internal/migration"
	"github.com/smallbiznis/alankar/internal/observability"
	"github.com/smallbiznis/alankar/internal/server"
	"github.com/smallbiznis/alankar/pkg/db"
	"go.uber.org/fx"
)

func main() {
	// money fields go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP surface and the domain modules behind it
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
