package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFilterRequiresQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := NewFilter(q, SearchOptions{})
		assert.ErrorIs(t, err, ErrSearchQueryRequired)
	}
}

func TestFilterTokensAreAndedAcrossFields(t *testing.T) {
	f, err := NewFilter("Chair  OFFICE", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"chair", "office"}, f.Tokens)

	assert.True(t, f.Matches(Candidate{Name: "Conference Chair", Description: "an office classic"}))
	assert.True(t, f.Matches(Candidate{Name: "Office chair"}))
	assert.False(t, f.Matches(Candidate{Name: "Conference Chair", Description: "for the garden"}))
	assert.True(t, f.Matches(Candidate{Name: "Chair", SKU: "OFFICE-01"}))
	assert.True(t, f.Matches(Candidate{Name: "Chair", Barcode: "office4006381333931"}))
}

func TestFilterCategories(t *testing.T) {
	f, err := NewFilter("x", SearchOptions{
		IncludeCategories: []string{"12", "foot"},
		ExcludeCategories: []string{"sale"},
	})
	require.NoError(t, err)

	assert.True(t, f.Matches(Candidate{Name: "x", CategoryID: 12, CategoryName: "Bags"}))
	assert.True(t, f.Matches(Candidate{Name: "x", CategoryID: 3, CategoryName: "Footwear"}))
	assert.False(t, f.Matches(Candidate{Name: "x", CategoryID: 4, CategoryName: "Electronics"}))
	assert.False(t, f.Matches(Candidate{Name: "x", CategoryID: 3, CategoryName: "Footwear Sale"}))
}

func TestFilterPriceAndStock(t *testing.T) {
	min, max := 10.0, 20.0
	f, err := NewFilter("x", SearchOptions{MinPrice: &min, MaxPrice: &max, InStockOnly: true})
	require.NoError(t, err)

	assert.True(t, f.Matches(Candidate{Name: "x", Price: 10, InStock: true}))
	assert.True(t, f.Matches(Candidate{Name: "x", Price: 20, InStock: true}))
	assert.False(t, f.Matches(Candidate{Name: "x", Price: 20.01, InStock: true}))
	assert.False(t, f.Matches(Candidate{Name: "x", Price: 15, InStock: false}))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 6, ClampLimit(0))
	assert.Equal(t, 6, ClampLimit(-3))
	assert.Equal(t, 9, ClampLimit(9))
	assert.Equal(t, 20, ClampLimit(500))
}

func TestSearchRequestIsLenient(t *testing.T) {
	var req SearchRequest
	body := `{"query":"shoes","min_price":"abc","max_price":"150","in_stock_only":"true",
		"include_categories":"Footwear, 7","exclude_categories":[3,"Sale"],"limit":"50"}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Nil(t, req.MinPrice.Ptr())
	require.NotNil(t, req.MaxPrice.Ptr())
	assert.InDelta(t, 150, *req.MaxPrice.Ptr(), 0.001)
	assert.True(t, bool(req.InStockOnly))
	assert.Equal(t, StringList{"Footwear", "7"}, req.IncludeCategories)
	assert.Equal(t, StringList{"3", "Sale"}, req.ExcludeCategories)
	assert.EqualValues(t, 50, req.Limit.Int64())
}

func TestParseCategoryRefs(t *testing.T) {
	refs := ParseCategoryRefs([]string{" 5 ", "", "Office Furniture", "0"})
	assert.Equal(t, []CategoryRef{{ID: 5}, {Name: "office furniture"}, {Name: "0"}}, refs)
}
