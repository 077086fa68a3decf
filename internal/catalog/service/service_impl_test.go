package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/voiceassist/internal/cache"
	"github.com/smallbiznis/voiceassist/internal/catalog/domain"
	"github.com/smallbiznis/voiceassist/internal/catalog/repository"
	"github.com/smallbiznis/voiceassist/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestSearchMatchesEveryToken(t *testing.T) {
	svc := setupCatalogService(t)

	res, err := svc.Search(context.Background(), domain.SearchRequest{Query: "chair office"}, domain.Policy{})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCatalog, res.Source)
	require.Len(t, res.Products, 1)

	p := res.Products[0]
	assert.EqualValues(t, 10, p.ID)
	assert.Equal(t, "CH-1", p.SKU)
	assert.Equal(t, "$150.00", p.PriceFormatted)
	assert.Equal(t, "/shop/product/office-chair-deluxe-10", p.URL)
	require.NotNil(t, p.Category)
	assert.Equal(t, "Office Furniture", *p.Category)
	require.NotNil(t, p.Image)
	assert.Equal(t, "/web/image/product.product/10/image_1920", *p.Image)
	assert.True(t, p.InStock)
	assert.EqualValues(t, 5, p.StockQuantity)
}

func TestSearchOrdersByNameAndLimits(t *testing.T) {
	svc := setupCatalogService(t)

	res, err := svc.Search(context.Background(), domain.SearchRequest{
		Query: "chair",
		Limit: domain.NewFlexibleInt(1),
	}, domain.Policy{})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Garden Chair", res.Products[0].Name)
	assert.Equal(t, 1, res.TotalCount)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	svc := setupCatalogService(t)

	_, err := svc.Search(context.Background(), domain.SearchRequest{Query: "   "}, domain.Policy{})
	assert.ErrorIs(t, err, domain.ErrSearchQueryRequired)
}

func TestSearchBarcodeAndCategory(t *testing.T) {
	svc := setupCatalogService(t)
	ctx := context.Background()

	res, err := svc.Search(ctx, domain.SearchRequest{Query: "4006381333931"}, domain.Policy{})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Trail Runner", res.Products[0].Name)
	assert.Equal(t, []domain.Variant{{Attribute: "Size", Value: "42"}, {Attribute: "Color", Value: "Blue"}}, res.Products[0].Variants)

	res, err = svc.Search(ctx, domain.SearchRequest{Query: "office", Category: "furniture"}, domain.Policy{})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.EqualValues(t, 10, res.Products[0].ID)
	require.NotNil(t, res.FiltersApplied.Category)
	assert.Equal(t, "furniture", *res.FiltersApplied.Category)

	res, err = svc.Search(ctx, domain.SearchRequest{
		Query:             "office",
		IncludeCategories: domain.StringList{"3"},
	}, domain.Policy{})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Desk Lamp", res.Products[0].Name)

	res, err = svc.Search(ctx, domain.SearchRequest{
		Query:             "office",
		ExcludeCategories: domain.StringList{"electronics"},
	}, domain.Policy{})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Office Chair Deluxe", res.Products[0].Name)
}

func TestSearchFallsBackToStaticCatalog(t *testing.T) {
	svc := setupCatalogService(t)

	res, err := svc.Search(context.Background(), domain.SearchRequest{Query: "MacBook"}, domain.Policy{})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, res.Source)
	require.Len(t, res.Products, 1)

	p := res.Products[0]
	assert.Equal(t, "MACBOOK-AIR-M2", p.ID)
	assert.Equal(t, "Apple MacBook Air 13-inch M2 (2024)", p.Name)
	assert.InDelta(t, 1099.00, p.Price, 0.001)
	assert.Equal(t, "$1099.00", p.PriceFormatted)
	assert.Equal(t, "Electronics", *p.Category)
	assert.Equal(t, "#", p.URL)
	assert.EqualValues(t, 999, p.StockQuantity)
	assert.Equal(t, domain.SourceFallback, p.Source)
}

func TestSearchMaxPriceZero(t *testing.T) {
	svc := setupCatalogService(t)

	res, err := svc.Search(context.Background(), domain.SearchRequest{
		Query:    "chair",
		MaxPrice: domain.NewFlexibleFloat(0),
	}, domain.Policy{})
	require.NoError(t, err)
	assert.Empty(t, res.Products)
	assert.Equal(t, 0, res.TotalCount)
}

func TestSearchOutOfStockPolicy(t *testing.T) {
	svc := setupCatalogService(t)
	ctx := context.Background()

	res, err := svc.Search(ctx, domain.SearchRequest{Query: "chair"}, domain.Policy{OutOfStock: config.OutOfStockHide})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Office Chair Deluxe", res.Products[0].Name)

	res, err = svc.Search(ctx, domain.SearchRequest{Query: "chair"}, domain.Policy{OutOfStock: config.OutOfStockShowNotification})
	require.NoError(t, err)
	require.Len(t, res.Products, 2)
	garden := res.Products[0]
	assert.False(t, garden.Available)
	assert.NotEmpty(t, garden.Notice)
	assert.True(t, res.Products[1].Available)
}

func TestSearchSettingsCategoryScope(t *testing.T) {
	svc := setupCatalogService(t)

	res, err := svc.Search(context.Background(), domain.SearchRequest{Query: "office"}, domain.Policy{
		IncludeCategories: []string{"Office Furniture"},
	})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.EqualValues(t, 10, res.Products[0].ID)
}

func TestGetBySKU(t *testing.T) {
	svc := setupCatalogService(t)
	ctx := context.Background()

	view, err := svc.GetBySKU(ctx, "4006381333931", domain.Policy{})
	require.NoError(t, err)
	assert.EqualValues(t, 12, view.ID)

	view, err = svc.GetBySKU(ctx, "af1-white", domain.Policy{})
	require.NoError(t, err)
	assert.Equal(t, "Nike Air Force 1 '07", view.Name)
	assert.Equal(t, domain.SourceFallback, view.Source)

	_, err = svc.GetBySKU(ctx, "NOPE-1", domain.Policy{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetByID(t *testing.T) {
	svc := setupCatalogService(t)
	ctx := context.Background()

	view, err := svc.GetByID(ctx, 10, domain.Policy{})
	require.NoError(t, err)
	assert.Equal(t, []string{"/web/image/product.product/10/image_1920"}, view.Images)

	view, err = svc.GetByID(ctx, 12, domain.Policy{})
	require.NoError(t, err)
	assert.Empty(t, view.Images)
	assert.Len(t, view.Variants, 2)

	_, err = svc.GetByID(ctx, 999, domain.Policy{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetByID(ctx, 0, domain.Policy{})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestRecommendedHonoursPriority(t *testing.T) {
	svc := setupCatalogService(t)

	views, err := svc.Recommended(context.Background(), domain.RecommendedRequest{
		Limit: domain.NewFlexibleInt(3),
	}, domain.Policy{FeaturedPriority: []int64{13, 99}})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.EqualValues(t, 13, views[0].ID)
	assert.EqualValues(t, 11, views[1].ID)
	assert.EqualValues(t, 10, views[2].ID)

	views, err = svc.Recommended(context.Background(), domain.RecommendedRequest{
		CategoryID: domain.NewFlexibleInt(2),
	}, domain.Policy{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Trail Runner", views[0].Name)
}

func TestResolve(t *testing.T) {
	svc := setupCatalogService(t)
	ctx := context.Background()

	p, err := svc.Resolve(ctx, 0, "CH-1")
	require.NoError(t, err)
	assert.EqualValues(t, 10, p.ID)

	_, err = svc.Resolve(ctx, 0, "AF1-WHITE")
	assert.ErrorIs(t, err, domain.ErrNotPurchasable)

	_, err = svc.Resolve(ctx, 14, "")
	assert.ErrorIs(t, err, domain.ErrNotPurchasable)

	_, err = svc.Resolve(ctx, 0, "ZZZ")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Resolve(ctx, 0, "")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestShortDescription(t *testing.T) {
	long := strings.Repeat("é", 250)
	short := shortDescription(long)
	assert.Equal(t, strings.Repeat("é", 200)+"...", short)
	assert.Equal(t, "brief", shortDescription("brief"))
}

func setupCatalogService(t *testing.T) domain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&domain.Category{}, &domain.Product{}, &domain.AttributeValue{}))
	seedCatalog(t, db)

	return New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Config: config.Config{Storefront: config.StorefrontConfig{ProductPath: "/shop/product", CurrencySymbol: "$"}},
		Repo:   repository.Provide(db),
		Cache:  cache.NewProductCache(),
	})
}

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()

	str := func(v string) *string { return &v }
	id := func(v int64) *int64 { return &v }

	require.NoError(t, db.Create(&[]domain.Category{
		{ID: 1, Name: "Office Furniture"},
		{ID: 2, Name: "Footwear"},
		{ID: 3, Name: "Electronics"},
	}).Error)

	require.NoError(t, db.Create(&[]domain.Product{
		{ID: 10, Name: "Office Chair Deluxe", DefaultCode: str("CH-1"), ListPrice: 150, QtyAvailable: 5, CategoryID: id(1),
			DescriptionSale: str("Ergonomic chair for long days"), ImageURL: str("stored"), SaleOK: true, WebsitePublished: true},
		{ID: 11, Name: "Garden Chair", DefaultCode: str("CH-2"), ListPrice: 40, QtyAvailable: 0, CategoryID: id(1),
			Description: str("Outdoor seating"), SaleOK: true, WebsitePublished: true},
		{ID: 12, Name: "Trail Runner", DefaultCode: str("SH-1"), Barcode: str("4006381333931"), ListPrice: 120, QtyAvailable: 3,
			CategoryID: id(2), SaleOK: true, WebsitePublished: true},
		{ID: 13, Name: "Desk Lamp", DefaultCode: str("LA-1"), ListPrice: 25, QtyAvailable: 10, CategoryID: id(3),
			DescriptionSale: str("Warm light for the office desk"), SaleOK: true, WebsitePublished: true},
		{ID: 14, Name: "Hidden Chair", DefaultCode: str("CH-3"), ListPrice: 10, QtyAvailable: 1, CategoryID: id(1),
			SaleOK: true, WebsitePublished: true},
	}).Error)
	require.NoError(t, db.Model(&domain.Product{}).Where("id = ?", 14).Update("website_published", false).Error)

	require.NoError(t, db.Create(&[]domain.AttributeValue{
		{ID: 1, ProductID: 12, Attribute: "Size", Value: "42", Sequence: 1},
		{ID: 2, ProductID: 12, Attribute: "Color", Value: "Blue", Sequence: 2},
	}).Error)
}
