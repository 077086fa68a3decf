package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type operationKey struct{}

// WithOperation names the outbound call made with ctx. The client span is
// "<peer> <operation>" and carries the operation as an attribute.
func WithOperation(ctx context.Context, operation string) context.Context {
	if operation == "" {
		return ctx
	}
	return context.WithValue(ctx, operationKey{}, operation)
}

func operationFrom(ctx context.Context) string {
	op, _ := ctx.Value(operationKey{}).(string)
	return op
}

// WrapHTTPClient returns a copy of client whose requests to peer open client
// spans and carry the trace context.
func WrapHTTPClient(client *http.Client, peer string) *http.Client {
	var wrapped http.Client
	if client != nil {
		wrapped = *client
	}
	base := wrapped.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped.Transport = &tracedTransport{
		base:   base,
		peer:   peer,
		tracer: otel.Tracer("voiceassist/outbound"),
	}
	return &wrapped
}

type tracedTransport struct {
	base   http.RoundTripper
	peer   string
	tracer trace.Tracer
}

func (t *tracedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	attrs := []attribute.KeyValue{
		PeerServiceKey.String(t.peer),
		attribute.String("http.method", req.Method),
		attribute.String("http.host", req.URL.Host),
	}
	name := req.Method + " " + req.URL.Path
	if op := operationFrom(req.Context()); op != "" {
		name = op
		attrs = append(attrs, OperationKey.String(op))
	}

	ctx, span := t.tracer.Start(req.Context(), t.peer+" "+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(SafeAttributes(attrs...)...),
	)
	defer span.End()

	// a RoundTripper must not modify the caller's request
	req = req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		span.RecordError(SafeError(err))
		span.SetStatus(codes.Error, "transport error")
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, resp.Status)
	}
	return resp, nil
}
