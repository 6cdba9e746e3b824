package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/smallbiznis/hydrapay/internal/clock"
	"github.com/smallbiznis/hydrapay/internal/config"
	"github.com/smallbiznis/hydrapay/internal/hydra/events"
	"github.com/smallbiznis/hydrapay/internal/hydra/mock"
	"github.com/smallbiznis/hydrapay/internal/observability"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// hydra-mock runs the simulated head node standalone so the API can be
// pointed at it with HYDRA_TRANSPORT=remote.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		clock.Module,
		events.Module,
		fx.Provide(newNode),
		fx.Invoke(serve),
	)
	app.Run()
}

func newNode(lc fx.Lifecycle, cfg config.Config, c clock.Clock, bus *events.Bus, log *zap.Logger) *mock.Node {
	node := mock.NewNode(mock.OptionsFrom(cfg.MockNode), c, bus, log)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			node.Stop()
			return nil
		},
	})
	return node
}

func serve(lc fx.Lifecycle, cfg config.Config, node *mock.Node, bus *events.Bus, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.MockNode.Addr,
		Handler: mock.NewServer(node, bus, log).Handler(),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("mock hydra node listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("mock hydra node stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
