package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// SumFilter narrows a message_count sum. Empty fields do not filter.
type SumFilter struct {
	Since       *time.Time
	IdentityKey string
	SessionID   string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *UsageRecord) error
	FindBySessionIdentity(ctx context.Context, db *gorm.DB, sessionID, identityKey string) (*UsageRecord, error)
	FindLatestActiveBySession(ctx context.Context, db *gorm.DB, sessionID string) (*UsageRecord, error)
	Increment(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (int64, error)
	EndSession(ctx context.Context, db *gorm.DB, sessionID string, endedAt time.Time) (bool, error)
	SumMessages(ctx context.Context, db *gorm.DB, filter SumFilter) (int64, error)
	HasHistoryBefore(ctx context.Context, db *gorm.DB, identityKey string, before time.Time) (bool, error)
	DeleteBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}
