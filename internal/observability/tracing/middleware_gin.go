package tracing

import (
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/voiceassist/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const toolRoutePrefix = "/api/elevenlabs/"

// GinMiddleware opens a server span per request. Tool calls are named after
// the tool so traces group by what the agent asked for.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("voiceassist/http")
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+c.Request.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName(spanName(c.Request.Method, route))
		span.SetAttributes(SafeAttributes(requestAttributes(c, route)...)...)

		if c.Writer.Status() >= http.StatusInternalServerError {
			if last := c.Errors.Last(); last != nil {
				span.RecordError(SafeError(last.Err))
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}

func spanName(method, route string) string {
	if tool, ok := strings.CutPrefix(route, toolRoutePrefix); ok {
		return "tool " + tool
	}
	return "HTTP " + method + " " + route
}

func requestAttributes(c *gin.Context, route string) []attribute.KeyValue {
	ctx := c.Request.Context()
	attrs := []attribute.KeyValue{
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", c.Writer.Status()),
	}
	if strings.HasPrefix(route, toolRoutePrefix) {
		attrs = append(attrs, ToolKey.String(path.Base(route)))
	}
	if sessionID := obscontext.SessionIDFromContext(ctx); sessionID != "" {
		attrs = append(attrs, SessionIDKey.String(sessionID))
	}
	if actorType, _ := obscontext.ActorFromContext(ctx); actorType != "" {
		attrs = append(attrs, ActorTypeKey.String(actorType))
	}
	if reason := c.GetString("limit_reason"); reason != "" {
		attrs = append(attrs, LimitReasonKey.String(reason))
	}
	if source := c.GetString("catalog_source"); source != "" {
		attrs = append(attrs, CatalogSourceKey.String(source))
	}
	return attrs
}
