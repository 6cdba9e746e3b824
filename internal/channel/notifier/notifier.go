package notifier

import (
	"context"
	"sync"

	channeldomain "github.com/smallbiznis/hydrapay/internal/channel/domain"
	"github.com/smallbiznis/hydrapay/internal/hydra"
	"github.com/smallbiznis/hydrapay/internal/hydra/events"
	obsmetrics "github.com/smallbiznis/hydrapay/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	outcomeApplied = "applied"
	outcomeIgnored = "ignored"
)

type Params struct {
	fx.In

	Lc      fx.Lifecycle
	Log     *zap.Logger
	Bus     *events.Bus
	Service channeldomain.Service
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Notifier is the single consumer that turns head events into channel
// transitions.
type Notifier struct {
	bus     *events.Bus
	svc     channeldomain.Service
	metrics *obsmetrics.Metrics
	log     *zap.Logger

	mu     sync.Mutex
	sub    *events.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

func New(p Params) *Notifier {
	n := &Notifier{
		bus:     p.Bus,
		svc:     p.Service,
		metrics: p.Metrics,
		log:     p.Log.Named("channel.notifier"),
	}
	p.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return n.Start() },
		OnStop: func(context.Context) error {
			n.Stop()
			return nil
		},
	})
	return n
}

func (n *Notifier) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sub != nil {
		return nil
	}

	sub, _, err := n.bus.Subscribe(events.Wildcard, events.DefaultSubscriberBuffer)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	n.sub = sub
	n.cancel = cancel
	n.done = make(chan struct{})

	go n.run(ctx, sub, n.done)
	n.log.Info("head event consumer started")
	return nil
}

// Stop unsubscribes and waits for the consumer to drain out.
func (n *Notifier) Stop() {
	n.mu.Lock()
	sub, cancel, done := n.sub, n.cancel, n.done
	n.sub, n.cancel, n.done = nil, nil, nil
	n.mu.Unlock()

	if sub == nil {
		return
	}
	cancel()
	sub.Close()
	<-done
	n.log.Info("head event consumer stopped")
}

func (n *Notifier) run(ctx context.Context, sub *events.Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			n.dispatch(ctx, ev)
		}
	}
}

func (n *Notifier) dispatch(ctx context.Context, ev hydra.HeadEvent) {
	if !ev.Tag.Known() || ev.HeadID == "" {
		return
	}
	outcome := outcomeIgnored
	if n.svc.ApplyEvent(ctx, ev) {
		outcome = outcomeApplied
	}
	n.metrics.RecordHeadEvent(ctx, string(ev.Tag), outcome)
	n.log.Debug("head event",
		zap.String("tag", string(ev.Tag)),
		zap.String("head_id", ev.HeadID),
		zap.String("outcome", outcome),
	)
}
