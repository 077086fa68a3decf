package domain

import (
	"context"

	"github.com/smallbiznis/voiceassist/internal/config"
)

type Source string

const (
	SourceCatalog  Source = "catalog"
	SourceFallback Source = "fallback"
)

// Policy carries the widget settings that shape every catalog answer.
type Policy struct {
	IncludeCategories []string
	ExcludeCategories []string
	OutOfStock        string
	FeaturedPriority  []int64
}

func PolicyFromSettings(s config.WidgetSettings) Policy {
	return Policy{
		IncludeCategories: s.ProductCategoriesInclude,
		ExcludeCategories: s.ProductCategoriesExclude,
		OutOfStock:        s.OutOfStockHandling,
		FeaturedPriority:  s.FeaturedProductsPriority,
	}
}

func (p Policy) HideOutOfStock() bool {
	return p.OutOfStock == config.OutOfStockHide
}

type SearchRequest struct {
	Query             string        `json:"query"`
	Category          string        `json:"category"`
	MinPrice          FlexibleFloat `json:"min_price"`
	MaxPrice          FlexibleFloat `json:"max_price"`
	InStockOnly       FlexibleBool  `json:"in_stock_only"`
	IncludeCategories StringList    `json:"include_categories"`
	ExcludeCategories StringList    `json:"exclude_categories"`
	Limit             FlexibleInt   `json:"limit"`
}

type RecommendedRequest struct {
	CategoryID FlexibleInt `json:"category_id"`
	Limit      FlexibleInt `json:"limit"`
}

type Variant struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

// ProductView is the tool-facing product shape. ID is the numeric product id
// for live products and the SKU for fallback entries.
type ProductView struct {
	ID               any       `json:"id"`
	SKU              string    `json:"sku"`
	Name             string    `json:"name"`
	Price            float64   `json:"price"`
	PriceFormatted   string    `json:"price_formatted"`
	Image            *string   `json:"image"`
	Images           []string  `json:"images,omitempty"`
	Description      string    `json:"description"`
	ShortDescription string    `json:"short_description"`
	Category         *string   `json:"category"`
	InStock          bool      `json:"in_stock"`
	StockQuantity    int64     `json:"stock_quantity"`
	Available        bool      `json:"available"`
	Notice           string    `json:"notice,omitempty"`
	URL              string    `json:"url"`
	Variants         []Variant `json:"variants"`
	Source           Source    `json:"source"`
}

type AppliedFilters struct {
	Category          *string  `json:"category"`
	MinPrice          *float64 `json:"min_price"`
	MaxPrice          *float64 `json:"max_price"`
	InStockOnly       bool     `json:"in_stock_only"`
	IncludeCategories []string `json:"include_categories,omitempty"`
	ExcludeCategories []string `json:"exclude_categories,omitempty"`
}

type SearchResult struct {
	Products       []ProductView  `json:"products"`
	TotalCount     int            `json:"total_count"`
	Query          string         `json:"query"`
	FiltersApplied AppliedFilters `json:"filters_applied"`
	Source         Source         `json:"source"`
}

type Service interface {
	Search(ctx context.Context, req SearchRequest, policy Policy) (*SearchResult, error)
	// GetBySKU looks up the live catalog by default code or barcode, then the
	// fallback catalog.
	GetBySKU(ctx context.Context, sku string, policy Policy) (*ProductView, error)
	GetByID(ctx context.Context, id int64, policy Policy) (*ProductView, error)
	Recommended(ctx context.Context, req RecommendedRequest, policy Policy) ([]ProductView, error)
	// Resolve returns the live product a cart line refers to.
	Resolve(ctx context.Context, productID int64, sku string) (*Product, error)
}
