package provider

import (
	"context"
	"fmt"

	"github.com/smallbiznis/hydrapay/internal/clock"
	"github.com/smallbiznis/hydrapay/internal/config"
	"github.com/smallbiznis/hydrapay/internal/hydra"
	"github.com/smallbiznis/hydrapay/internal/hydra/events"
	"github.com/smallbiznis/hydrapay/internal/hydra/mock"
	"github.com/smallbiznis/hydrapay/internal/hydra/remote"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("hydra.transport",
	fx.Provide(NewTransport),
)

type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Config config.Config
	Clock  clock.Clock
	Bus    *events.Bus
	Log    *zap.Logger
}

// NewTransport builds the in-process mock node or the remote client
// according to HYDRA_TRANSPORT. Both publish head events on the bus.
func NewTransport(p Params) (hydra.Transport, error) {
	cfg := p.Config

	switch cfg.Hydra.Transport {
	case config.TransportRemote:
		client, err := remote.NewClient(remote.Options{
			APIURL:  cfg.Hydra.APIURL,
			WSURL:   cfg.Hydra.WSURL,
			Timeout: cfg.Hydra.Timeout,
		}, p.Bus, p.Log)
		if err != nil {
			return nil, err
		}
		p.Lc.Append(fx.Hook{
			OnStop: func(context.Context) error { return client.Close() },
		})
		p.Log.Info("using remote hydra node", zap.String("api_url", cfg.Hydra.APIURL))
		return client, nil

	case "", config.TransportMock:
		node := mock.NewNode(mock.OptionsFrom(cfg.MockNode), p.Clock, p.Bus, p.Log)
		p.Lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				node.Stop()
				return nil
			},
		})
		p.Log.Info("using in-process mock hydra node")
		return node, nil

	default:
		return nil, fmt.Errorf("unknown hydra transport %q", cfg.Hydra.Transport)
	}
}
