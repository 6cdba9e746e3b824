package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	channeldomain "github.com/smallbiznis/hydrapay/internal/channel/domain"
	"github.com/smallbiznis/hydrapay/internal/clock"
	"github.com/smallbiznis/hydrapay/internal/config"
	"github.com/smallbiznis/hydrapay/internal/hydra"
	obsmetrics "github.com/smallbiznis/hydrapay/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/hydrapay/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	msgHeadStarted   = "Hydra Head initialization started"
	msgChannelExists = "Channel already exists"
	msgChannelClosed = "Channel closed and settled on L1"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	Clock          clock.Clock
	GenID          *snowflake.Node
	Repo           paymentdomain.Repository
	Channels       channeldomain.Service
	ChannelRepo    channeldomain.Repository
	Transport      hydra.Transport
	Policy         *config.PolicyHolder
	Metrics        *obsmetrics.Metrics        `optional:"true"`
	ChannelMetrics *obsmetrics.ChannelMetrics `optional:"true"`
}

// Service is the façade handed to the HTTP layer. Every outcome, including
// failure, comes back as a Result.
type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	clock          clock.Clock
	genID          *snowflake.Node
	repo           paymentdomain.Repository
	channels       channeldomain.Service
	channelRepo    channeldomain.Repository
	transport      hydra.Transport
	policy         *config.PolicyHolder
	metrics        *obsmetrics.Metrics
	channelMetrics *obsmetrics.ChannelMetrics
}

func New(p Params) paymentdomain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("payment.service"),
		clock:          p.Clock,
		genID:          p.GenID,
		repo:           p.Repo,
		channels:       p.Channels,
		channelRepo:    p.ChannelRepo,
		transport:      p.Transport,
		policy:         p.Policy,
		metrics:        p.Metrics,
		channelMetrics: p.ChannelMetrics,
	}
}

func succeed[T any](data T) paymentdomain.Result[T] {
	return paymentdomain.Result[T]{Success: true, Data: data}
}

func (s *Service) OpenChannel(ctx context.Context, req paymentdomain.OpenChannelRequest) paymentdomain.Result[paymentdomain.OpenChannelResponse] {
	res, err := s.channels.OpenChannel(ctx, req.UserID, req.DepositAmount)
	if err != nil {
		return failure[paymentdomain.OpenChannelResponse](s.describe(err))
	}
	msg := msgHeadStarted
	if res.AlreadyExisted {
		msg = msgChannelExists
	}
	return succeed(paymentdomain.OpenChannelResponse{
		HeadID:               res.HeadID,
		Status:               res.Status,
		EstimatedTimeSeconds: res.EstimatedTimeSeconds,
		AlreadyExisted:       res.AlreadyExisted,
		Message:              msg,
	})
}

func (s *Service) GetChannelStatus(ctx context.Context, userID string) paymentdomain.Result[channeldomain.StatusSnapshot] {
	snap, err := s.channels.GetStatus(ctx, userID)
	if err != nil {
		return failure[channeldomain.StatusSnapshot](s.describe(err))
	}
	return succeed(snap)
}

func (s *Service) AwaitOpen(ctx context.Context, userID string) paymentdomain.Result[channeldomain.StatusSnapshot] {
	snap, err := s.channels.AwaitOpen(ctx, userID)
	if err != nil {
		res := failure[channeldomain.StatusSnapshot](s.describe(err))
		res.Data = snap
		return res
	}
	return succeed(snap)
}

func (s *Service) ExecutePayment(ctx context.Context, req channeldomain.PayRequest) paymentdomain.Result[channeldomain.PayResult] {
	res, err := s.channels.Pay(ctx, req)
	if err != nil {
		return failure[channeldomain.PayResult](s.describe(err))
	}
	return succeed(res)
}

func (s *Service) CloseChannel(ctx context.Context, userID string) paymentdomain.Result[paymentdomain.CloseChannelResponse] {
	res, err := s.channels.CloseChannel(ctx, userID)
	if err != nil {
		return failure[paymentdomain.CloseChannelResponse](s.describe(err))
	}
	return succeed(paymentdomain.CloseChannelResponse{
		HeadID:           res.HeadID,
		CloseTxHash:      res.CloseTxHash,
		FinalBalance:     res.FinalBalance,
		TransactionCount: res.TransactionCount,
		Message:          msgChannelClosed,
	})
}

func (s *Service) HealthCheck(ctx context.Context) paymentdomain.Result[paymentdomain.Health] {
	available := s.transport.HealthCheck(ctx)
	stats := s.channels.Stats()

	health := paymentdomain.Health{
		HydraAvailable: available,
		ActiveHeads:    stats.Total,
		OpenHeads:      stats.Open,
		Status:         paymentdomain.HealthOperational,
	}
	if !available {
		health.Status = paymentdomain.HealthDegraded
		s.log.Warn("hydra node unavailable")
	}
	return succeed(health)
}
