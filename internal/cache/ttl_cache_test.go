package cache

import (
	"testing"
	"time"

	catalogdomain "github.com/smallbiznis/voiceassist/internal/catalog/domain"
	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpires(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	c := NewTTLCache[string, int]()
	c.now = func() time.Time { return now }

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	v, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestProductCacheRemembersMisses(t *testing.T) {
	c := NewProductCache()

	_, found := c.GetSKU("mac-1")
	assert.False(t, found)

	c.SetSKU("mac-1", nil)
	p, found := c.GetSKU(" MAC-1 ")
	assert.True(t, found)
	assert.Nil(t, p)

	c.SetSKU("mac-2", &catalogdomain.Product{ID: 9})
	p, found = c.GetSKU("mac-2")
	assert.True(t, found)
	assert.EqualValues(t, 9, p.ID)
}

func TestNoopProductCache(t *testing.T) {
	c := NewNoopProductCache()
	c.SetSKU("x", &catalogdomain.Product{ID: 1})
	_, found := c.GetSKU("x")
	assert.False(t, found)
}
