// Package domain contains the conversation usage ledger model.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/voiceassist/internal/identity"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UsageRecord counts messages exchanged by one identity within one widget session.
type UsageRecord struct {
	ID           snowflake.ID      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	SessionID    string            `json:"session_id" gorm:"type:varchar(128);not null;uniqueIndex:ux_usage_session_identity,priority:1"`
	UserID       *string           `json:"user_id,omitempty" gorm:"type:varchar(128)"`
	PublicUserID *string           `json:"public_user_id,omitempty" gorm:"type:varchar(64)"`
	IdentityKey  string            `json:"-" gorm:"type:varchar(200);not null;uniqueIndex:ux_usage_session_identity,priority:2;index:ix_usage_identity_created,priority:1"`
	MessageCount int64             `json:"message_count" gorm:"not null;default:1"`
	IsActive     bool              `json:"is_active" gorm:"not null;default:true"`
	IPAddress    *string           `json:"ip_address,omitempty" gorm:"type:varchar(64)"`
	UserAgent    *string           `json:"user_agent,omitempty" gorm:"type:text"`
	Referrer     *string           `json:"referrer,omitempty" gorm:"type:text"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at" gorm:"not null;index:ix_usage_identity_created,priority:2;index:ix_usage_created"`
	UpdatedAt    time.Time         `json:"updated_at" gorm:"not null"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }

// BeforeCreate enforces that exactly one of user_id and public_user_id is set
// and keeps identity_key in sync with it.
func (r *UsageRecord) BeforeCreate(tx *gorm.DB) error {
	id, err := r.Identity()
	if err != nil {
		return err
	}
	r.IdentityKey = id.Key()
	return nil
}

// Identity rebuilds the ledger identity stored on the record.
func (r *UsageRecord) Identity() (identity.Identity, error) {
	userID := trimmed(r.UserID)
	publicID := trimmed(r.PublicUserID)

	switch {
	case userID != "" && publicID != "":
		return identity.Identity{}, ErrConflictingIdentity
	case userID != "":
		return identity.Authenticated(userID), nil
	case publicID != "":
		return identity.Anonymous(publicID), nil
	default:
		return identity.Identity{}, ErrMissingIdentity
	}
}

// NewUsageRecord stamps the identity columns for id.
func NewUsageRecord(id identity.Identity) *UsageRecord {
	r := &UsageRecord{IdentityKey: id.Key()}
	if id.IsAuthenticated() {
		v := id.UserID()
		r.UserID = &v
	} else if !id.IsZero() {
		v := id.PublicUserID()
		r.PublicUserID = &v
	}
	return r
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
