// Package option holds composable query modifiers for gorm statements.
package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// ApplyLimit caps the result size; non-positive values leave the query untouched.
func ApplyLimit(limit int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

// SortBy is a validated column/direction pair.
type SortBy struct {
	Column string
	Desc   bool
}

// WithQuerySortBy validates a user supplied sort column against an allow list.
// Unknown columns yield an empty SortBy, which WithSortBy ignores.
func WithQuerySortBy(column, order string, allowed map[string]bool) SortBy {
	column = strings.ToLower(strings.TrimSpace(column))
	if column == "" || !allowed[column] {
		return SortBy{}
	}
	return SortBy{
		Column: column,
		Desc:   strings.EqualFold(strings.TrimSpace(order), "desc"),
	}
}

func WithSortBy(sort SortBy) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if sort.Column == "" {
			return db
		}
		direction := "ASC"
		if sort.Desc {
			direction = "DESC"
		}
		return db.Order(fmt.Sprintf("%s %s", sort.Column, direction))
	})
}
