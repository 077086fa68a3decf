package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/voiceassist/internal/clock"
	"github.com/smallbiznis/voiceassist/internal/config"
	"github.com/smallbiznis/voiceassist/internal/identity"
	"github.com/smallbiznis/voiceassist/internal/limit"
	obsmetrics "github.com/smallbiznis/voiceassist/internal/observability/metrics"
	usagedomain "github.com/smallbiznis/voiceassist/internal/usage/domain"
	"github.com/smallbiznis/voiceassist/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxSessionIDLength = 128

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  config.Config
	Repo    usagedomain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    usagedomain.Repository
	metrics *obsmetrics.Metrics
	loc     *time.Location
}

func NewService(p ServiceParam) (usagedomain.Service, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(p.Config.TimeZone))
	if err != nil {
		return nil, fmt.Errorf("load APP_TIMEZONE %q: %w", p.Config.TimeZone, err)
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("usage.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
		loc:     loc,
	}, nil
}

func (s *Service) RecordStart(ctx context.Context, req usagedomain.StartRequest) (*usagedomain.StartResult, error) {
	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return nil, err
	}
	if req.Identity.IsZero() {
		return nil, usagedomain.ErrMissingIdentity
	}

	existing, err := s.repo.FindBySessionIdentity(ctx, s.db, sessionID, req.Identity.Key())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		record, err := s.increment(ctx, existing)
		if err != nil {
			return nil, err
		}
		s.metrics.RecordUsageMessage(ctx, string(req.Identity.Kind()))
		return &usagedomain.StartResult{Record: record}, nil
	}

	now := s.clock.Now().UTC()
	record := usagedomain.NewUsageRecord(req.Identity)
	record.ID = s.genID.Generate()
	record.SessionID = sessionID
	record.MessageCount = 1
	record.IsActive = true
	record.IPAddress = optionalString(req.IPAddress)
	record.UserAgent = optionalString(req.UserAgent)
	record.Referrer = optionalString(req.Referrer)
	if len(req.Metadata) > 0 {
		record.Metadata = datatypes.JSONMap(req.Metadata)
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		// Lost the race with a concurrent start for the same pair.
		existing, findErr := s.repo.FindBySessionIdentity(ctx, s.db, sessionID, req.Identity.Key())
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, err
		}
		record, err := s.increment(ctx, existing)
		if err != nil {
			return nil, err
		}
		s.metrics.RecordUsageMessage(ctx, string(req.Identity.Kind()))
		return &usagedomain.StartResult{Record: record}, nil
	}

	s.log.Debug("usage session started",
		zap.String("session_id", sessionID),
		zap.String("actor_type", string(req.Identity.Kind())),
	)
	s.metrics.RecordUsageMessage(ctx, string(req.Identity.Kind()))
	return &usagedomain.StartResult{Record: record, Created: true}, nil
}

func (s *Service) RecordMessage(ctx context.Context, sessionID string) (int64, error) {
	sessionID, err := normalizeSessionID(sessionID)
	if err != nil {
		return 0, err
	}

	record, err := s.repo.FindLatestActiveBySession(ctx, s.db, sessionID)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, usagedomain.ErrSessionNotFound
	}

	count, err := s.repo.Increment(ctx, s.db, record.ID, s.clock.Now().UTC())
	if err != nil {
		return 0, err
	}

	actorType := string(identity.KindAnonymous)
	if record.UserID != nil {
		actorType = string(identity.KindAuthenticated)
	}
	s.metrics.RecordUsageMessage(ctx, actorType)
	return count, nil
}

func (s *Service) EndSession(ctx context.Context, sessionID string) (bool, error) {
	sessionID, err := normalizeSessionID(sessionID)
	if err != nil {
		return false, err
	}
	return s.repo.EndSession(ctx, s.db, sessionID, s.clock.Now().UTC())
}

func (s *Service) CountSince(ctx context.Context, since time.Time, filter *identity.Identity) (int64, error) {
	since = since.UTC()
	f := usagedomain.SumFilter{Since: &since}
	if filter != nil && !filter.IsZero() {
		f.IdentityKey = filter.Key()
	}
	return s.repo.SumMessages(ctx, s.db, f)
}

func (s *Service) CountForSession(ctx context.Context, sessionID string) (int64, error) {
	sessionID, err := normalizeSessionID(sessionID)
	if err != nil {
		return 0, err
	}
	return s.repo.SumMessages(ctx, s.db, usagedomain.SumFilter{SessionID: sessionID})
}

// Counts reads the three limit scopes. An empty session id yields a zero
// session count.
func (s *Service) Counts(ctx context.Context, id identity.Identity, sessionID string) (limit.Counts, error) {
	if id.IsZero() {
		return limit.Counts{}, usagedomain.ErrMissingIdentity
	}

	since := s.StartOfDay()
	daily, err := s.CountSince(ctx, since, &id)
	if err != nil {
		return limit.Counts{}, err
	}
	global, err := s.CountSince(ctx, since, nil)
	if err != nil {
		return limit.Counts{}, err
	}

	var session int64
	if strings.TrimSpace(sessionID) != "" {
		session, err = s.CountForSession(ctx, sessionID)
		if err != nil {
			return limit.Counts{}, err
		}
	}

	return limit.Counts{Daily: daily, Global: global, Session: session}, nil
}

func (s *Service) CheckLimits(ctx context.Context, req usagedomain.CheckRequest) limit.Decision {
	counts, err := s.Counts(ctx, req.Identity, req.SessionID)
	if err != nil {
		s.log.Warn("usage counts unavailable, denying", zap.Error(err))
		return limit.FailClosed()
	}
	return limit.Evaluate(counts, req.Limits)
}

func (s *Service) Admit(ctx context.Context, req usagedomain.CheckRequest) limit.Decision {
	decision := s.CheckLimits(ctx, req)
	if !decision.Allowed {
		s.metrics.RecordLimitDenied(ctx, string(decision.Reason))
	}
	return decision
}

// IsReturning reports whether the identity has ledger history from before today.
func (s *Service) IsReturning(ctx context.Context, id identity.Identity) (bool, error) {
	if id.IsZero() {
		return false, usagedomain.ErrMissingIdentity
	}
	return s.repo.HasHistoryBefore(ctx, s.db, id.Key(), s.StartOfDay())
}

func (s *Service) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, usagedomain.ErrInvalidRetention
	}
	cutoff := s.clock.Now().UTC().Add(-olderThan)
	deleted, err := s.repo.DeleteBefore(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// StartOfDay is local midnight in APP_TIMEZONE, expressed in UTC.
func (s *Service) StartOfDay() time.Time {
	now := s.clock.Now().In(s.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	return midnight.UTC()
}

func (s *Service) increment(ctx context.Context, record *usagedomain.UsageRecord) (*usagedomain.UsageRecord, error) {
	now := s.clock.Now().UTC()
	count, err := s.repo.Increment(ctx, s.db, record.ID, now)
	if err != nil {
		if errors.Is(err, usagedomain.ErrSessionNotFound) {
			return nil, fmt.Errorf("usage record %s vanished: %w", record.ID, err)
		}
		return nil, err
	}
	record.MessageCount = count
	record.UpdatedAt = now
	return record, nil
}

func normalizeSessionID(raw string) (string, error) {
	sessionID := strings.TrimSpace(raw)
	if sessionID == "" || len(sessionID) > maxSessionIDLength {
		return "", usagedomain.ErrInvalidSessionID
	}
	return sessionID, nil
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
