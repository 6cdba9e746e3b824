package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	channeldomain "github.com/smallbiznis/hydrapay/internal/channel/domain"
	"github.com/smallbiznis/hydrapay/internal/config"
	"github.com/smallbiznis/hydrapay/internal/hydra/events"
	"github.com/smallbiznis/hydrapay/internal/observability"
	obsmiddleware "github.com/smallbiznis/hydrapay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/hydrapay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/hydrapay/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/hydrapay/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
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

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	payments paymentdomain.Service
	channels channeldomain.Repository
	bus      *events.Bus
	log      *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	Payments paymentdomain.Service
	Channels channeldomain.Repository
	Bus      *events.Bus
	Log      *zap.Logger
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		payments: p.Payments,
		channels: p.Channels,
		bus:      p.Bus,
		log:      p.Log.Named("http.server"),
	}

	svc.registerHydraRoutes()
	svc.registerPaymentRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerHydraRoutes() {
	hydra := s.engine.Group("/api/hydra")

	hydra.POST("/open-channel", s.OpenChannel)
	hydra.POST("/close-channel", s.CloseChannel)
	hydra.GET("/health", s.HydraHealth)

	channel := hydra.Group("/channel")
	{
		channel.GET("/status/:userId", s.GetChannelStatus)
		channel.GET("/await/:userId", s.AwaitChannel)
		channel.GET("/events/:userId", s.StreamChannelEvents)
	}
}

func (s *Server) registerPaymentRoutes() {
	payments := s.engine.Group("/api/payments")

	payments.POST("/execute-hydra", s.ExecuteHydraPayment)
	payments.POST("/execute-l1", s.ExecuteL1Payment)
	payments.GET("/history/:userId", s.GetPaymentHistory)
	payments.GET("/:paymentId", s.GetPayment)
}
