package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prevProvider, prevPropagator := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})
	return recorder
}

func TestWrapHTTPClientNamesOperationSpans(t *testing.T) {
	recorder := recordSpans(t)
	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := WrapHTTPClient(nil, "commerce-engine")
	ctx := WithOperation(context.Background(), "add_to_cart")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/cart/add", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, req.Header.Get("traceparent"), "caller request is left untouched")
	assert.NotEmpty(t, traceparent)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "commerce-engine add_to_cart", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), OperationKey.String("add_to_cart"))
	assert.Contains(t, spans[0].Attributes(), PeerServiceKey.String("commerce-engine"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("http.status_code", http.StatusOK))
}

func TestWrapHTTPClientMarksServerErrors(t *testing.T) {
	recorder := recordSpans(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	resp, err := WrapHTTPClient(&http.Client{}, "prometheus-remote-write").Get(srv.URL + "/api/v1/write")
	require.NoError(t, err)
	resp.Body.Close()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "prometheus-remote-write GET /api/v1/write", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestNewProviderKeepsTraceIDsWithoutExport(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	provider, err := NewProvider(nil, Config{ServiceName: "voiceassist-test"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	_, span := otel.Tracer("test").Start(context.Background(), "request")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
	assert.False(t, span.SpanContext().IsSampled())
}
