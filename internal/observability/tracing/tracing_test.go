package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/hydrapay/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSafeAttributesDropsUnknownKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/hydra/health"),
		attribute.String("user.email", "alice@example.com"),
		attribute.String("hydra.head_id", "head_1"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "user.email" {
			t.Fatalf("unexpected attribute %s", attr.Key)
		}
	}
}

func TestSafeErrorBoundsMessage(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatalf("expected nil")
	}
	err := SafeError(errors.New("line one\nline   two"))
	if err.Error() != "line one line two" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	long := SafeError(errors.New(strings.Repeat("x", 1000)))
	if len(long.Error()) != maxErrorLength {
		t.Fatalf("expected %d chars, got %d", maxErrorLength, len(long.Error()))
	}
}

func TestNewProviderWithoutEndpoint(t *testing.T) {
	provider, err := NewProvider(nil, Config{Enabled: true, ServiceName: "hydrapay"}, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if provider == nil {
		t.Fatalf("expected provider")
	}
	if _, err := newExporter("carrier-pigeon", "localhost:4318"); err == nil {
		t.Fatalf("expected unsupported protocol error")
	}
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(t.Context())
	})
	return recorder
}

func spanAttributes(t *testing.T, recorder *tracetest.SpanRecorder) map[attribute.Key]string {
	t.Helper()
	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	out := make(map[attribute.Key]string)
	for _, attr := range spans[0].Attributes() {
		out[attr.Key] = attr.Value.Emit()
	}
	return out
}

func TestGinMiddlewareTagsUserFromPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), "req-7"))
		c.Next()
	})
	r.Use(GinMiddleware())
	r.GET("/api/hydra/channel/status/:userId", func(c *gin.Context) {
		c.Set("head_id", "head_1")
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/hydra/channel/status/alice", nil))

	attrs := spanAttributes(t, recorder)
	if attrs["hydra.user_id"] != "alice" || attrs["hydra.head_id"] != "head_1" || attrs["request_id"] != "req-7" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
	if attrs["http.route"] != "/api/hydra/channel/status/:userId" {
		t.Fatalf("unexpected route %q", attrs["http.route"])
	}
}

func TestGinMiddlewareTagsUserBoundFromBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/api/hydra/payment", func(c *gin.Context) {
		c.Set("user_id", "bob")
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/hydra/payment", strings.NewReader("{}")))

	attrs := spanAttributes(t, recorder)
	if attrs["hydra.user_id"] != "bob" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
	if _, ok := attrs["hydra.head_id"]; ok {
		t.Fatalf("head id should be absent: %v", attrs)
	}
}
