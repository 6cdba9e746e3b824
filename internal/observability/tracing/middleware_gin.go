package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/hydrapay/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware opens a server span per request and tags it with the same
// request, user and head identifiers the request log carries.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("hydrapay/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+strings.ToUpper(c.Request.Method), trace.WithSpanKind(trace.SpanKindServer))
		ctx = withCorrelationBaggage(ctx, obscontext.RequestIDFromContext(ctx), requestUserID(c))

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + strings.ToUpper(c.Request.Method) + " " + route)
		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		attrs = append(attrs, correlationAttributes(c)...)
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
		span.End()
	}
}

// requestUserID finds the user a request acts for: the path parameter, the
// request context, or a value a handler stored after binding the body.
func requestUserID(c *gin.Context) string {
	if userID := strings.TrimSpace(c.Param("userId")); userID != "" {
		return userID
	}
	if userID := obscontext.UserIDFromContext(c.Request.Context()); userID != "" {
		return userID
	}
	return strings.TrimSpace(c.GetString("user_id"))
}

func correlationAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if requestID := obscontext.RequestIDFromContext(c.Request.Context()); requestID != "" {
		attrs = append(attrs, attribute.String("request_id", requestID))
	}
	if userID := requestUserID(c); userID != "" {
		attrs = append(attrs, attribute.String("hydra.user_id", userID))
	}
	if headID := strings.TrimSpace(c.GetString("head_id")); headID != "" {
		attrs = append(attrs, attribute.String("hydra.head_id", headID))
	}
	return attrs
}

// withCorrelationBaggage skips members whose values baggage cannot encode.
func withCorrelationBaggage(ctx context.Context, requestID, userID string) context.Context {
	var members []baggage.Member
	for key, value := range map[string]string{"request_id": requestID, "user_id": userID} {
		if value == "" {
			continue
		}
		if member, err := baggage.NewMemberRaw(key, value); err == nil {
			members = append(members, member)
		}
	}
	if len(members) == 0 {
		return ctx
	}
	bag, err := baggage.New(members...)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
