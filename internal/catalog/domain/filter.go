package domain

import (
	"errors"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 6
	MaxLimit     = 20
)

var (
	ErrSearchQueryRequired = errors.New("search_query_required")
	ErrNotFound            = errors.New("product_not_found")
	ErrInvalidID           = errors.New("invalid_product_id")
	ErrNotPurchasable      = errors.New("product_not_purchasable")
)

// CategoryRef is either a category id or a case-insensitive name fragment.
type CategoryRef struct {
	ID   int64
	Name string
}

// ParseCategoryRefs treats numeric entries as ids and everything else as
// name fragments. Blank entries are dropped.
func ParseCategoryRefs(values []string) []CategoryRef {
	refs := make([]CategoryRef, 0, len(values))
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			refs = append(refs, CategoryRef{ID: id})
			continue
		}
		refs = append(refs, CategoryRef{Name: strings.ToLower(v)})
	}
	return refs
}

func (r CategoryRef) Matches(categoryID int64, categoryName string) bool {
	if r.ID > 0 {
		return categoryID == r.ID
	}
	return r.Name != "" && strings.Contains(strings.ToLower(categoryName), r.Name)
}

func matchesAny(refs []CategoryRef, categoryID int64, categoryName string) bool {
	for _, ref := range refs {
		if ref.Matches(categoryID, categoryName) {
			return true
		}
	}
	return false
}

// ClampLimit applies the default for non-positive values and the hard cap.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

type SearchOptions struct {
	Category          string
	IncludeCategories []string
	ExcludeCategories []string
	MinPrice          *float64
	MaxPrice          *float64
	InStockOnly       bool
	Limit             int
}

// Filter is the predicate shared by the live query and the fallback catalog.
//
// Every token must match name, SKU, barcode or description. Category narrows
// by name fragment. Include and Allowed each pass a product matching any of
// their refs; Exclude rejects a product matching any of its refs.
type Filter struct {
	Tokens      []string
	Category    string
	Include     []CategoryRef
	Allowed     []CategoryRef
	Exclude     []CategoryRef
	MinPrice    *float64
	MaxPrice    *float64
	InStockOnly bool
	Limit       int
}

func NewFilter(query string, opts SearchOptions) (Filter, error) {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return Filter{}, ErrSearchQueryRequired
	}
	return Filter{
		Tokens:      tokens,
		Category:    strings.ToLower(strings.TrimSpace(opts.Category)),
		Include:     ParseCategoryRefs(opts.IncludeCategories),
		Exclude:     ParseCategoryRefs(opts.ExcludeCategories),
		MinPrice:    opts.MinPrice,
		MaxPrice:    opts.MaxPrice,
		InStockOnly: opts.InStockOnly,
		Limit:       ClampLimit(opts.Limit),
	}, nil
}

// Tokenize splits on whitespace and lower-cases each word.
func Tokenize(query string) []string {
	fields := strings.Fields(query)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, strings.ToLower(f))
	}
	return tokens
}

// Candidate is the flattened view of a product the in-memory matcher needs.
type Candidate struct {
	Name         string
	SKU          string
	Barcode      string
	Description  string
	Price        float64
	InStock      bool
	CategoryID   int64
	CategoryName string
}

func (f Filter) Matches(c Candidate) bool {
	fields := []string{
		strings.ToLower(c.Name),
		strings.ToLower(c.SKU),
		strings.ToLower(c.Barcode),
		strings.ToLower(c.Description),
	}
	for _, token := range f.Tokens {
		if !containsAny(fields, token) {
			return false
		}
	}

	if f.Category != "" && !strings.Contains(strings.ToLower(c.CategoryName), f.Category) {
		return false
	}
	if len(f.Include) > 0 && !matchesAny(f.Include, c.CategoryID, c.CategoryName) {
		return false
	}
	if len(f.Allowed) > 0 && !matchesAny(f.Allowed, c.CategoryID, c.CategoryName) {
		return false
	}
	if matchesAny(f.Exclude, c.CategoryID, c.CategoryName) {
		return false
	}

	if f.MinPrice != nil && c.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && c.Price > *f.MaxPrice {
		return false
	}
	if f.InStockOnly && !c.InStock {
		return false
	}
	return true
}

func containsAny(fields []string, token string) bool {
	for _, field := range fields {
		if field != "" && strings.Contains(field, token) {
			return true
		}
	}
	return false
}
