package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/voiceassist/internal/cache"
	"github.com/smallbiznis/voiceassist/internal/catalog/domain"
	"github.com/smallbiznis/voiceassist/internal/catalog/fallback"
	"github.com/smallbiznis/voiceassist/internal/config"
	obsmetrics "github.com/smallbiznis/voiceassist/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	shortDescriptionRunes = 200
	outOfStockNotice      = "Currently out of stock"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Config  config.Config
	Repo    domain.Repository
	Cache   cache.ProductCache  `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	cache   cache.ProductCache
	metrics *obsmetrics.Metrics

	productPath    string
	currencySymbol string
}

func New(p Params) domain.Service {
	productCache := p.Cache
	if productCache == nil {
		productCache = cache.NewNoopProductCache()
	}
	productPath := strings.TrimRight(p.Config.Storefront.ProductPath, "/")
	if productPath == "" {
		productPath = "/shop/product"
	}
	symbol := p.Config.Storefront.CurrencySymbol
	if symbol == "" {
		symbol = "$"
	}
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("catalog.service"),
		repo:           p.Repo,
		cache:          productCache,
		metrics:        p.Metrics,
		productPath:    productPath,
		currencySymbol: symbol,
	}
}

func (s *Service) Search(ctx context.Context, req domain.SearchRequest, policy domain.Policy) (*domain.SearchResult, error) {
	filter, err := domain.NewFilter(req.Query, domain.SearchOptions{
		Category:          req.Category,
		IncludeCategories: req.IncludeCategories,
		ExcludeCategories: req.ExcludeCategories,
		MinPrice:          req.MinPrice.Ptr(),
		MaxPrice:          req.MaxPrice.Ptr(),
		InStockOnly:       bool(req.InStockOnly),
		Limit:             int(req.Limit.Int64()),
	})
	if err != nil {
		return nil, err
	}
	filter = applyPolicy(filter, policy)

	result := &domain.SearchResult{
		Query: strings.TrimSpace(req.Query),
		FiltersApplied: domain.AppliedFilters{
			Category:          optionalString(req.Category),
			MinPrice:          req.MinPrice.Ptr(),
			MaxPrice:          req.MaxPrice.Ptr(),
			InStockOnly:       bool(req.InStockOnly),
			IncludeCategories: req.IncludeCategories,
			ExcludeCategories: req.ExcludeCategories,
		},
	}

	products, err := s.repo.Search(ctx, s.db, filter)
	if err != nil {
		s.log.Warn("live catalog search failed, using fallback catalog", zap.Error(err))
		products = nil
	}

	if len(products) > 0 {
		views, err := s.decorate(ctx, products, policy)
		if err != nil {
			return nil, err
		}
		result.Products = views
		result.Source = domain.SourceCatalog
	} else {
		entries := fallback.Search(filter)
		result.Products = make([]domain.ProductView, 0, len(entries))
		for _, e := range entries {
			result.Products = append(result.Products, s.fallbackView(e))
		}
		result.Source = domain.SourceFallback
	}

	result.TotalCount = len(result.Products)
	s.metrics.RecordSearch(ctx, string(result.Source))
	return result, nil
}

func (s *Service) GetBySKU(ctx context.Context, sku string, policy domain.Policy) (*domain.ProductView, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, domain.ErrNotFound
	}

	product, err := s.lookupSKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if product != nil {
		views, err := s.decorate(ctx, []domain.Product{*product}, policy)
		if err != nil {
			return nil, err
		}
		return &views[0], nil
	}

	if entry, ok := fallback.BySKU(sku); ok {
		view := s.fallbackView(entry)
		return &view, nil
	}
	return nil, domain.ErrNotFound
}

func (s *Service) GetByID(ctx context.Context, id int64, policy domain.Policy) (*domain.ProductView, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidID
	}
	product, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}

	views, err := s.decorate(ctx, []domain.Product{*product}, policy)
	if err != nil {
		return nil, err
	}
	view := views[0]
	if view.Image != nil {
		view.Images = []string{*view.Image}
	} else {
		view.Images = []string{}
	}
	return &view, nil
}

func (s *Service) Recommended(ctx context.Context, req domain.RecommendedRequest, policy domain.Policy) ([]domain.ProductView, error) {
	products, err := s.repo.Recommended(ctx, s.db, domain.RecommendedQuery{
		CategoryID:  req.CategoryID.Int64(),
		Allowed:     domain.ParseCategoryRefs(policy.IncludeCategories),
		Exclude:     domain.ParseCategoryRefs(policy.ExcludeCategories),
		InStockOnly: policy.HideOutOfStock(),
		Priority:    policy.FeaturedPriority,
		Limit:       domain.ClampLimit(int(req.Limit.Int64())),
	})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return []domain.ProductView{}, nil
	}
	return s.decorate(ctx, products, policy)
}

func (s *Service) Resolve(ctx context.Context, productID int64, sku string) (*domain.Product, error) {
	var (
		product *domain.Product
		err     error
	)
	switch {
	case productID > 0:
		product, err = s.repo.FindByID(ctx, s.db, productID)
	case strings.TrimSpace(sku) != "":
		product, err = s.lookupSKU(ctx, strings.TrimSpace(sku))
	default:
		return nil, domain.ErrInvalidID
	}
	if err != nil {
		return nil, err
	}

	if product == nil {
		if _, ok := fallback.BySKU(sku); ok {
			return nil, domain.ErrNotPurchasable
		}
		return nil, domain.ErrNotFound
	}
	if !product.Purchasable() {
		return nil, domain.ErrNotPurchasable
	}
	return product, nil
}

func (s *Service) lookupSKU(ctx context.Context, sku string) (*domain.Product, error) {
	if product, found := s.cache.GetSKU(sku); found {
		return product, nil
	}
	product, err := s.repo.FindBySKU(ctx, s.db, sku)
	if err != nil {
		return nil, err
	}
	s.cache.SetSKU(sku, product)
	return product, nil
}

func (s *Service) decorate(ctx context.Context, products []domain.Product, policy domain.Policy) ([]domain.ProductView, error) {
	productIDs := make([]int64, 0, len(products))
	categoryIDs := make([]int64, 0, len(products))
	for _, p := range products {
		productIDs = append(productIDs, p.ID)
		if p.CategoryID != nil {
			categoryIDs = append(categoryIDs, *p.CategoryID)
		}
	}

	categories, err := s.repo.Categories(ctx, s.db, categoryIDs)
	if err != nil {
		return nil, err
	}
	attributes, err := s.repo.Attributes(ctx, s.db, productIDs)
	if err != nil {
		return nil, err
	}

	views := make([]domain.ProductView, 0, len(products))
	for _, p := range products {
		description := p.SalesDescription()
		view := domain.ProductView{
			ID:               p.ID,
			SKU:              p.SKU(),
			Name:             p.Name,
			Price:            p.ListPrice,
			PriceFormatted:   s.formatPrice(p.ListPrice),
			Image:            imageURL(p),
			Description:      description,
			ShortDescription: shortDescription(description),
			InStock:          p.InStock(),
			StockQuantity:    int64(p.QtyAvailable),
			Available:        true,
			URL:              s.productURL(p),
			Variants:         []domain.Variant{},
			Source:           domain.SourceCatalog,
		}
		if p.CategoryID != nil {
			if c, ok := categories[*p.CategoryID]; ok {
				name := c.Name
				view.Category = &name
			}
		}
		for _, attr := range attributes[p.ID] {
			view.Variants = append(view.Variants, domain.Variant{Attribute: attr.Attribute, Value: attr.Value})
		}
		if !view.InStock {
			switch policy.OutOfStock {
			case config.OutOfStockShowDisabled:
				view.Available = false
			case config.OutOfStockShowNotification:
				view.Available = false
				view.Notice = outOfStockNotice
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) fallbackView(e fallback.Entry) domain.ProductView {
	image := e.Image
	category := e.Category
	return domain.ProductView{
		ID:               e.SKU,
		SKU:              e.SKU,
		Name:             e.Name,
		Price:            e.Price,
		PriceFormatted:   s.formatPrice(e.Price),
		Image:            &image,
		Description:      e.Description,
		ShortDescription: shortDescription(e.Description),
		Category:         &category,
		InStock:          true,
		StockQuantity:    fallback.StockQuantity,
		Available:        true,
		URL:              "#",
		Variants:         []domain.Variant{},
		Source:           domain.SourceFallback,
	}
}

func (s *Service) formatPrice(price float64) string {
	return fmt.Sprintf("%s%.2f", s.currencySymbol, price)
}

func (s *Service) productURL(p domain.Product) string {
	name := slug.Make(p.Name)
	if name == "" {
		return fmt.Sprintf("%s/%d", s.productPath, p.ID)
	}
	return fmt.Sprintf("%s/%s-%d", s.productPath, name, p.ID)
}

func applyPolicy(filter domain.Filter, policy domain.Policy) domain.Filter {
	filter.Allowed = domain.ParseCategoryRefs(policy.IncludeCategories)
	filter.Exclude = append(filter.Exclude, domain.ParseCategoryRefs(policy.ExcludeCategories)...)
	if policy.HideOutOfStock() {
		filter.InStockOnly = true
	}
	return filter
}

// imageURL passes absolute URLs through; any other value marks an image
// hosted by the platform under the product id.
func imageURL(p domain.Product) *string {
	raw := strings.TrimSpace(derefString(p.ImageURL))
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return &raw
	}
	path := fmt.Sprintf("/web/image/product.product/%d/image_1920", p.ID)
	return &path
}

// shortDescription cuts at 200 runes and appends an ellipsis.
func shortDescription(description string) string {
	if utf8.RuneCountInString(description) <= shortDescriptionRunes {
		return description
	}
	runes := []rune(description)
	return string(runes[:shortDescriptionRunes]) + "..."
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
