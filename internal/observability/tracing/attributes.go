package tracing

import (
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys set on assistant spans.
const (
	ToolKey          = attribute.Key("assistant.tool")
	SessionIDKey     = attribute.Key("assistant.session_id")
	ActorTypeKey     = attribute.Key("assistant.actor_type")
	LimitReasonKey   = attribute.Key("assistant.limit_reason")
	CatalogSourceKey = attribute.Key("assistant.catalog_source")
	OperationKey     = attribute.Key("assistant.operation")
	PeerServiceKey   = attribute.Key("peer.service")
)

// Spans never carry visitor identity or credentials; any key containing one
// of these fragments is dropped.
var redactedFragments = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"authorization",
	"cookie",
	"ip_address",
	"public_user_id",
	"identity_key",
}

func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	return slices.DeleteFunc(slices.Clone(attrs), func(kv attribute.KeyValue) bool {
		return redacted(kv.Key)
	})
}

// SafeError keeps only the error's type; engine and driver messages can
// echo customer data.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%T", err)
}

func redacted(key attribute.Key) bool {
	k := strings.ToLower(string(key))
	return slices.ContainsFunc(redactedFragments, func(fragment string) bool {
		return strings.Contains(k, fragment)
	})
}
