package repository

import (
	"context"

	"github.com/smallbiznis/voiceassist/pkg/db/option"
	"gorm.io/gorm"
)

// Repository loads reference rows (categories, attribute values) that are
// read alongside a primary query.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindByIDs(ctx context.Context, ids []int64, opts ...option.QueryOption) ([]*T, error)
}
