package domain

import (
	"context"

	"gorm.io/gorm"
)

type RecommendedQuery struct {
	CategoryID  int64
	Allowed     []CategoryRef
	Exclude     []CategoryRef
	InStockOnly bool
	Priority    []int64
	Limit       int
}

type Repository interface {
	Search(ctx context.Context, db *gorm.DB, filter Filter) ([]Product, error)
	FindBySKU(ctx context.Context, db *gorm.DB, sku string) (*Product, error)
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Product, error)
	Recommended(ctx context.Context, db *gorm.DB, q RecommendedQuery) ([]Product, error)
	Categories(ctx context.Context, db *gorm.DB, ids []int64) (map[int64]Category, error)
	Attributes(ctx context.Context, db *gorm.DB, productIDs []int64) (map[int64][]AttributeValue, error)
}
