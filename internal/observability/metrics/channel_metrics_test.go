package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	channeldomain "github.com/smallbiznis/hydrapay/internal/channel/domain"
)

func TestClassifyPaymentOutcome(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "success", err: nil, want: OutcomeSuccess},
		{name: "insufficient", err: &channeldomain.InsufficientBalanceError{}, want: OutcomeInsufficientBalance},
		{name: "failed", err: &channeldomain.PaymentFailedError{Reason: "boom", FallbackToL1: true}, want: OutcomeTransportFailure},
		{name: "no_channel", err: fmt.Errorf("pay: %w", channeldomain.ErrNoOpenChannel), want: OutcomeNoOpenChannel},
		{name: "invalid", err: channeldomain.ErrInvalidAmount, want: OutcomeInvalid},
		{name: "unknown", err: errors.New("boom"), want: OutcomeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyPaymentOutcome(tc.err); got != tc.want {
				t.Fatalf("expected outcome %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRecordPayment(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewChannelMetrics(registry, Config{ServiceName: "hydrapay", Environment: "test"})

	m.RecordPayment("hydra", decimal.RequireFromString("0.10"), nil)
	m.RecordPayment("hydra", decimal.RequireFromString("0.10"), nil)
	m.RecordPayment("hydra", decimal.RequireFromString("6"), &channeldomain.InsufficientBalanceError{})

	if got := testutil.ToFloat64(m.payments.WithLabelValues("hydra", OutcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.payments.WithLabelValues("hydra", OutcomeInsufficientBalance)); got != 1 {
		t.Fatalf("expected 1 insufficient balance, got %v", got)
	}
	if got := testutil.CollectAndCount(m.paymentAmount); got != 1 {
		t.Fatalf("expected 1 histogram series, got %d", got)
	}
}

func TestChannelGaugesAndCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewChannelMetrics(registry, Config{})

	m.ChannelOpened()
	m.ChannelClosed(CloseReasonUser)
	m.TransportFailure("submit", FailureKindUnavailable)
	m.SetOpenHeads(3)

	if got := testutil.ToFloat64(m.channelsOpened); got != 1 {
		t.Fatalf("expected 1 opened, got %v", got)
	}
	if got := testutil.ToFloat64(m.transportFailures.WithLabelValues("submit", FailureKindUnavailable)); got != 1 {
		t.Fatalf("expected 1 transport failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.openHeads); got != 3 {
		t.Fatalf("expected 3 open heads, got %v", got)
	}

	var nilMetrics *ChannelMetrics
	nilMetrics.ChannelOpened()
	nilMetrics.SetOpenHeads(1)
}

func TestHTTPMiddlewareCountsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{})

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/api/hydra/channel/status/:userId", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/hydra/channel/status/alice", "/api/hydra/channel/status/bob", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/hydra/channel/status/:userId", "200")); got != 2 {
		t.Fatalf("expected 2 requests on the status route, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "unmatched", "404")); got != 1 {
		t.Fatalf("expected 1 unmatched request, got %v", got)
	}
}
