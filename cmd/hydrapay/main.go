package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/hydrapay/internal/channel"
	"github.com/smallbiznis/hydrapay/internal/clock"
	"github.com/smallbiznis/hydrapay/internal/config"
	"github.com/smallbiznis/hydrapay/internal/hydra/events"
	"github.com/smallbiznis/hydrapay/internal/hydra/provider"
	"github.com/smallbiznis/hydrapay/internal/lock"
	"github.com/smallbiznis/hydrapay/internal/observability"
	"github.com/smallbiznis/hydrapay/internal/payment"
	"github.com/smallbiznis/hydrapay/internal/server"
	"github.com/smallbiznis/hydrapay/pkg/db"
	"go.uber.org/fx"
)

func main() {
	// amounts go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		db.Module,
		lock.Module,
		events.Module,
		provider.Module,

		// Functional Domains
		channel.Module,
		payment.Module,

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
