package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/smallbiznis/voiceassist/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() usagedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *usagedomain.UsageRecord) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) FindBySessionIdentity(ctx context.Context, db *gorm.DB, sessionID, identityKey string) (*usagedomain.UsageRecord, error) {
	var record usagedomain.UsageRecord
	err := db.WithContext(ctx).
		Where("session_id = ? AND identity_key = ?", sessionID, identityKey).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repo) FindLatestActiveBySession(ctx context.Context, db *gorm.DB, sessionID string) (*usagedomain.UsageRecord, error) {
	var record usagedomain.UsageRecord
	err := db.WithContext(ctx).
		Where("session_id = ? AND is_active = ?", sessionID, true).
		Order("created_at DESC").
		Order("id DESC").
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Increment bumps message_count in place and returns the stored value.
func (r *repo) Increment(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE usage_records
		 SET message_count = message_count + 1,
		     updated_at = ?
		 WHERE id = ?`,
		at,
		id,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, usagedomain.ErrSessionNotFound
	}

	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT message_count FROM usage_records WHERE id = ?`,
		id,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) EndSession(ctx context.Context, db *gorm.DB, sessionID string, endedAt time.Time) (bool, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&usagedomain.UsageRecord{}).
		Where("session_id = ?", sessionID).
		Count(&total).Error
	if err != nil {
		return false, err
	}
	if total == 0 {
		return false, nil
	}

	err = db.WithContext(ctx).Exec(
		`UPDATE usage_records
		 SET is_active = ?,
		     ended_at = ?,
		     updated_at = ?
		 WHERE session_id = ? AND is_active = ?`,
		false,
		endedAt,
		endedAt,
		sessionID,
		true,
	).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *repo) SumMessages(ctx context.Context, db *gorm.DB, filter usagedomain.SumFilter) (int64, error) {
	query := db.WithContext(ctx).
		Model(&usagedomain.UsageRecord{}).
		Select("COALESCE(SUM(message_count), 0)")
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}
	if filter.IdentityKey != "" {
		query = query.Where("identity_key = ?", filter.IdentityKey)
	}
	if filter.SessionID != "" {
		query = query.Where("session_id = ?", filter.SessionID)
	}

	var total int64
	if err := query.Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) HasHistoryBefore(ctx context.Context, db *gorm.DB, identityKey string, before time.Time) (bool, error) {
	var ids []int64
	err := db.WithContext(ctx).
		Model(&usagedomain.UsageRecord{}).
		Where("identity_key = ? AND created_at < ?", identityKey, before).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (r *repo) DeleteBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM usage_records WHERE created_at < ?`,
		cutoff,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
