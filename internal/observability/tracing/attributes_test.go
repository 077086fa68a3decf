package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/elevenlabs/products/search"),
		attribute.String("http.request.cookie", "session_id=abc"),
		attribute.String("visitor.ip_address", "203.0.113.7"),
		attribute.String("commerce.api_key", "secret"),
	)

	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorHidesMessage(t *testing.T) {
	err := SafeError(errors.New("customer 203.0.113.7 rejected"))
	assert.NotContains(t, err.Error(), "203.0.113.7")
	assert.Nil(t, SafeError(nil))
}

func TestSafeAttributesKeepsAssistantKeys(t *testing.T) {
	attrs := SafeAttributes(
		SessionIDKey.String("conv-1"),
		CatalogSourceKey.String("fallback"),
		attribute.String("visitor.public_user_id", "public_0123456789abcdef"),
	)

	assert.Equal(t, []attribute.KeyValue{
		SessionIDKey.String("conv-1"),
		CatalogSourceKey.String("fallback"),
	}, attrs)
}
