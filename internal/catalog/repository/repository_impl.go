package repository

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/smallbiznis/voiceassist/internal/catalog/domain"
	"github.com/smallbiznis/voiceassist/pkg/db/option"
	"github.com/smallbiznis/voiceassist/pkg/repository"
	"gorm.io/gorm"
)

const (
	likeEscape = "!"
	// page size when tokens are matched in Go instead of SQL
	scanBatchSize = 200
)

var searchColumns = []string{"name", "default_code", "barcode", "description_sale", "description"}

type repo struct {
	categories repository.Repository[domain.Category]
	attributes repository.Repository[domain.AttributeValue]
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{
		categories: repository.ProvideStore[domain.Category](db),
		attributes: repository.ProvideStore[domain.AttributeValue](db),
	}
}

func (r *repo) Search(ctx context.Context, db *gorm.DB, filter domain.Filter) ([]domain.Product, error) {
	stmt := published(db.WithContext(ctx).Model(&domain.Product{}))

	var unfolded []string
	for _, token := range filter.Tokens {
		if !foldsInSQL(db, token) {
			unfolded = append(unfolded, token)
			continue
		}
		pattern := likePattern(token)
		clauses := make([]string, 0, len(searchColumns))
		args := make([]any, 0, len(searchColumns))
		for _, column := range searchColumns {
			clauses = append(clauses, "LOWER("+column+") LIKE ? ESCAPE '"+likeEscape+"'")
			args = append(args, pattern)
		}
		stmt = stmt.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}

	if filter.Category != "" {
		stmt = stmt.Where(
			"category_id IN (SELECT id FROM product_categories WHERE LOWER(name) LIKE ? ESCAPE '"+likeEscape+"')",
			likePattern(filter.Category),
		)
	}
	stmt = includeCategories(stmt, filter.Include)
	stmt = includeCategories(stmt, filter.Allowed)
	stmt = excludeCategories(stmt, filter.Exclude)

	if filter.MinPrice != nil {
		stmt = stmt.Where("list_price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		stmt = stmt.Where("list_price <= ?", *filter.MaxPrice)
	}
	if filter.InStockOnly {
		stmt = stmt.Where("qty_available > 0")
	}

	stmt = option.WithSortBy(option.SortBy{Column: "name"}).Apply(stmt)
	limit := domain.ClampLimit(filter.Limit)
	if len(unfolded) > 0 {
		return scanMatching(stmt, domain.Filter{Tokens: unfolded}, limit)
	}

	var items []domain.Product
	if err := option.ApplyLimit(limit).Apply(stmt).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// foldsInSQL reports whether LOWER in the connected database folds s the way
// strings.ToLower does. The sqlite built-in only folds ASCII.
func foldsInSQL(db *gorm.DB, s string) bool {
	if db.Dialector == nil || db.Dialector.Name() != "sqlite" {
		return true
	}
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// scanMatching pages through stmt in order and keeps the rows that match
// every token of filter, until limit rows are found.
func scanMatching(stmt *gorm.DB, filter domain.Filter, limit int) ([]domain.Product, error) {
	// id breaks name ties so pages do not overlap
	stmt = stmt.Order("id").Session(&gorm.Session{})
	var out []domain.Product
	for offset := 0; len(out) < limit; offset += scanBatchSize {
		var batch []domain.Product
		if err := stmt.Offset(offset).Limit(scanBatchSize).Find(&batch).Error; err != nil {
			return nil, err
		}
		for _, p := range batch {
			if len(out) < limit && filter.Matches(p.SearchCandidate()) {
				out = append(out, p)
			}
		}
		if len(batch) < scanBatchSize {
			break
		}
	}
	return out, nil
}

func (r *repo) FindBySKU(ctx context.Context, db *gorm.DB, sku string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).
		Where("default_code = ? OR barcode = ?", sku, sku).
		Order("id ASC").
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Recommended returns prioritized products first, in priority order, then
// fills the remainder by name.
func (r *repo) Recommended(ctx context.Context, db *gorm.DB, q domain.RecommendedQuery) ([]domain.Product, error) {
	limit := domain.ClampLimit(q.Limit)
	base := func() *gorm.DB {
		stmt := published(db.WithContext(ctx).Model(&domain.Product{}))
		if q.CategoryID > 0 {
			stmt = stmt.Where("category_id = ?", q.CategoryID)
		}
		stmt = includeCategories(stmt, q.Allowed)
		stmt = excludeCategories(stmt, q.Exclude)
		if q.InStockOnly {
			stmt = stmt.Where("qty_available > 0")
		}
		return stmt
	}

	var out []domain.Product
	if len(q.Priority) > 0 {
		var featured []domain.Product
		if err := base().Where("id IN ?", q.Priority).Find(&featured).Error; err != nil {
			return nil, err
		}
		byID := make(map[int64]domain.Product, len(featured))
		for _, p := range featured {
			byID[p.ID] = p
		}
		for _, id := range q.Priority {
			if p, ok := byID[id]; ok && len(out) < limit {
				out = append(out, p)
				delete(byID, id)
			}
		}
	}
	if len(out) >= limit {
		return out, nil
	}

	stmt := base()
	if len(out) > 0 {
		seen := make([]int64, 0, len(out))
		for _, p := range out {
			seen = append(seen, p.ID)
		}
		stmt = stmt.Where("id NOT IN ?", seen)
	}
	stmt = option.WithSortBy(option.SortBy{Column: "name"}).Apply(stmt)
	stmt = option.ApplyLimit(limit - len(out)).Apply(stmt)

	var rest []domain.Product
	if err := stmt.Find(&rest).Error; err != nil {
		return nil, err
	}
	return append(out, rest...), nil
}

func (r *repo) Categories(ctx context.Context, db *gorm.DB, ids []int64) (map[int64]domain.Category, error) {
	out := make(map[int64]domain.Category, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	items, err := r.categories.WithTrx(db).FindByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	for _, c := range items {
		out[c.ID] = *c
	}
	return out, nil
}

func (r *repo) Attributes(ctx context.Context, db *gorm.DB, productIDs []int64) (map[int64][]domain.AttributeValue, error) {
	out := make(map[int64][]domain.AttributeValue, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	items, err := r.attributes.WithTrx(db).Find(ctx, &domain.AttributeValue{},
		option.QueryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
			return stmt.Where("product_id IN ?", uniqueIDs(productIDs))
		}),
		option.WithSortBy(option.SortBy{Column: "sequence"}),
		option.WithSortBy(option.SortBy{Column: "id"}),
	)
	if err != nil {
		return nil, err
	}
	for _, v := range items {
		out[v.ProductID] = append(out[v.ProductID], *v)
	}
	return out, nil
}

func published(stmt *gorm.DB) *gorm.DB {
	return stmt.Where("sale_ok = ? AND website_published = ?", true, true)
}

// categoryClause matches a product whose category is one of the refs.
func categoryClause(refs []domain.CategoryRef) (string, []any) {
	var ids []int64
	var clauses []string
	var args []any
	for _, ref := range refs {
		if ref.ID > 0 {
			ids = append(ids, ref.ID)
			continue
		}
		clauses = append(clauses, "LOWER(name) LIKE ? ESCAPE '"+likeEscape+"'")
		args = append(args, likePattern(ref.Name))
	}

	var parts []string
	var vars []any
	if len(ids) > 0 {
		parts = append(parts, "category_id IN ?")
		vars = append(vars, ids)
	}
	if len(clauses) > 0 {
		parts = append(parts, "category_id IN (SELECT id FROM product_categories WHERE "+strings.Join(clauses, " OR ")+")")
		vars = append(vars, args...)
	}
	return "(" + strings.Join(parts, " OR ") + ")", vars
}

func includeCategories(stmt *gorm.DB, refs []domain.CategoryRef) *gorm.DB {
	if len(refs) == 0 {
		return stmt
	}
	clause, args := categoryClause(refs)
	return stmt.Where(clause, args...)
}

func excludeCategories(stmt *gorm.DB, refs []domain.CategoryRef) *gorm.DB {
	if len(refs) == 0 {
		return stmt
	}
	clause, args := categoryClause(refs)
	return stmt.Where("(category_id IS NULL OR NOT "+clause+")", args...)
}

func likePattern(token string) string {
	r := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return "%" + r.Replace(strings.ToLower(token)) + "%"
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id <= 0 {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
