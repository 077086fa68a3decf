package repository

import (
	"context"

	"github.com/smallbiznis/voiceassist/pkg/db/option"
	"gorm.io/gorm"
)

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	if tx == nil {
		return s
	}
	return &store[T]{db: tx}
}

// Find matches the non-zero fields of query.
func (s *store[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	return s.list(s.db.WithContext(ctx).Where(query), opts)
}

func (s *store[T]) FindByIDs(ctx context.Context, ids []int64, opts ...option.QueryOption) ([]*T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.list(s.db.WithContext(ctx).Where("id IN ?", ids), opts)
}

func (s *store[T]) list(stmt *gorm.DB, opts []option.QueryOption) ([]*T, error) {
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	var rows []*T
	if err := stmt.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
