package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/voiceassist/internal/identity"
	"github.com/smallbiznis/voiceassist/internal/limit"
)

type StartRequest struct {
	SessionID string
	Identity  identity.Identity
	IPAddress string
	UserAgent string
	Referrer  string
	Metadata  map[string]any
}

type StartResult struct {
	Record  *UsageRecord
	Created bool
}

type CheckRequest struct {
	Identity  identity.Identity
	SessionID string
	Limits    limit.Limits
}

type Service interface {
	// RecordStart finds the (session, identity) record and counts one more
	// message on it, or creates it with a count of one.
	RecordStart(ctx context.Context, req StartRequest) (*StartResult, error)
	// RecordMessage adds one message to the newest active record of the session.
	RecordMessage(ctx context.Context, sessionID string) (int64, error)
	// EndSession reports false when the session has no records at all.
	EndSession(ctx context.Context, sessionID string) (bool, error)
	CountSince(ctx context.Context, since time.Time, filter *identity.Identity) (int64, error)
	CountForSession(ctx context.Context, sessionID string) (int64, error)
	Counts(ctx context.Context, id identity.Identity, sessionID string) (limit.Counts, error)
	// CheckLimits never returns an error; failures deny. It only reads.
	CheckLimits(ctx context.Context, req CheckRequest) limit.Decision
	// Admit is CheckLimits for a message about to be counted. A denial here is
	// a refused message and is recorded as one.
	Admit(ctx context.Context, req CheckRequest) limit.Decision
	IsReturning(ctx context.Context, id identity.Identity) (bool, error)
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
	StartOfDay() time.Time
}

var (
	ErrInvalidSessionID    = errors.New("invalid_session_id")
	ErrMissingIdentity     = errors.New("missing_identity")
	ErrConflictingIdentity = errors.New("conflicting_identity")
	ErrSessionNotFound     = errors.New("session_not_found")
	ErrInvalidRetention    = errors.New("invalid_retention")
)
