// Package context carries the correlation fields of an assistant request
// into logs and spans.
package context

import "context"

type correlationKey struct{}

// Correlation says which request, conversation and visitor a log line or
// span belongs to.
type Correlation struct {
	RequestID string
	SessionID string
	// ActorType is "user" or "anonymous"; ActorID is the identity key.
	ActorType string
	ActorID   string
}

func FromContext(ctx context.Context) Correlation {
	if ctx == nil {
		return Correlation{}
	}
	c, _ := ctx.Value(correlationKey{}).(Correlation)
	return c
}

func update(ctx context.Context, apply func(*Correlation)) context.Context {
	if ctx == nil {
		return ctx
	}
	c := FromContext(ctx)
	apply(&c)
	return context.WithValue(ctx, correlationKey{}, c)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return update(ctx, func(c *Correlation) { c.RequestID = requestID })
}

// WithSessionID tags the context with the widget conversation.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return update(ctx, func(c *Correlation) { c.SessionID = sessionID })
}

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	if actorType == "" && actorID == "" {
		return ctx
	}
	return update(ctx, func(c *Correlation) {
		if actorType != "" {
			c.ActorType = actorType
		}
		if actorID != "" {
			c.ActorID = actorID
		}
	})
}

func RequestIDFromContext(ctx context.Context) string { return FromContext(ctx).RequestID }

func SessionIDFromContext(ctx context.Context) string { return FromContext(ctx).SessionID }

func ActorFromContext(ctx context.Context) (string, string) {
	c := FromContext(ctx)
	return c.ActorType, c.ActorID
}
