package metrics

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	channeldomain "github.com/smallbiznis/hydrapay/internal/channel/domain"
)

const (
	OutcomeSuccess             = "success"
	OutcomeInsufficientBalance = "insufficient_balance"
	OutcomeNoOpenChannel       = "no_open_channel"
	OutcomeInvalid             = "invalid"
	OutcomeTransportFailure    = "transport_failure"
	OutcomeUnknown             = "unknown"
)

const (
	CloseReasonUser = "user"
	CloseReasonNode = "node"
)

const (
	FailureKindUnavailable = "unavailable"
	FailureKindNotOpen     = "not_open"
	FailureKindRejected    = "rejected"
)

// ChannelMetrics captures channel lifecycle and payment signals.
type ChannelMetrics struct {
	channelsOpened    prometheus.Counter
	channelsClosed    *prometheus.CounterVec
	payments          *prometheus.CounterVec
	paymentAmount     *prometheus.HistogramVec
	transportFailures *prometheus.CounterVec
	openHeads         prometheus.Gauge
}

var (
	channelMetricsOnce sync.Once
	channelMetrics     *ChannelMetrics
)

// Channels returns the process-wide channel metrics registered on the default registry.
func Channels(cfg Config) *ChannelMetrics {
	channelMetricsOnce.Do(func() {
		channelMetrics = NewChannelMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return channelMetrics
}

func NewChannelMetrics(registerer prometheus.Registerer, cfg Config) *ChannelMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	m := &ChannelMetrics{
		channelsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "hydrapay_channels_opened_total",
			Help:        "Heads successfully initialized.",
			ConstLabels: constLabels,
		}),
		channelsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "hydrapay_channels_closed_total",
			Help:        "Channels finalized, by who closed them.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "hydrapay_payments_total",
			Help:        "Payment attempts by method and outcome.",
			ConstLabels: constLabels,
		}, []string{"method", "outcome"}),
		paymentAmount: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "hydrapay_payment_amount_ada",
			Help:        "Settled payment amounts in ADA.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
			ConstLabels: constLabels,
		}, []string{"method"}),
		transportFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "hydrapay_transport_failures_total",
			Help:        "Head transport failures by operation and kind.",
			ConstLabels: constLabels,
		}, []string{"operation", "kind"}),
		openHeads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "hydrapay_open_heads",
			Help:        "Channels currently in the open state.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.channelsOpened,
		m.channelsClosed,
		m.payments,
		m.paymentAmount,
		m.transportFailures,
		m.openHeads,
	)
	return m
}

func constLabelsFor(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "hydrapay"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

func (m *ChannelMetrics) ChannelOpened() {
	if m == nil {
		return
	}
	m.channelsOpened.Inc()
}

func (m *ChannelMetrics) ChannelClosed(reason string) {
	if m == nil {
		return
	}
	m.channelsClosed.WithLabelValues(reason).Inc()
}

// RecordPayment counts the attempt and, on success, observes the amount.
func (m *ChannelMetrics) RecordPayment(method string, amount decimal.Decimal, err error) {
	if m == nil {
		return
	}
	outcome := ClassifyPaymentOutcome(err)
	m.payments.WithLabelValues(method, outcome).Inc()
	if outcome == OutcomeSuccess {
		m.paymentAmount.WithLabelValues(method).Observe(amount.InexactFloat64())
	}
}

func (m *ChannelMetrics) TransportFailure(operation, kind string) {
	if m == nil {
		return
	}
	m.transportFailures.WithLabelValues(operation, kind).Inc()
}

func (m *ChannelMetrics) SetOpenHeads(n int) {
	if m == nil {
		return
	}
	m.openHeads.Set(float64(n))
}

// ClassifyPaymentOutcome maps a payment error to a low-cardinality label.
func ClassifyPaymentOutcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	var insufficient *channeldomain.InsufficientBalanceError
	var failed *channeldomain.PaymentFailedError
	switch {
	case errors.As(err, &insufficient):
		return OutcomeInsufficientBalance
	case errors.As(err, &failed):
		return OutcomeTransportFailure
	case errors.Is(err, channeldomain.ErrNoOpenChannel):
		return OutcomeNoOpenChannel
	case errors.Is(err, channeldomain.ErrInvalidAmount), errors.Is(err, channeldomain.ErrInvalidUser):
		return OutcomeInvalid
	default:
		return OutcomeUnknown
	}
}
