package cache

import (
	"strings"
	"time"

	catalogdomain "github.com/smallbiznis/voiceassist/internal/catalog/domain"
)

const (
	defaultProductTTL = 2 * time.Minute
	defaultMissTTL    = 30 * time.Second
)

// ProductCache remembers live catalog SKU lookups, including misses, so the
// assistant repeating a SKU does not hit the database each time.
type ProductCache interface {
	GetSKU(sku string) (product *catalogdomain.Product, found bool)
	SetSKU(sku string, product *catalogdomain.Product)
}

type productCache struct {
	skus    Cache[string, *catalogdomain.Product]
	hitTTL  time.Duration
	missTTL time.Duration
}

func NewProductCache() ProductCache {
	return &productCache{
		skus:    NewTTLCache[string, *catalogdomain.Product](),
		hitTTL:  defaultProductTTL,
		missTTL: defaultMissTTL,
	}
}

// NewNoopProductCache disables SKU caching.
func NewNoopProductCache() ProductCache {
	return &productCache{skus: NoopCache[string, *catalogdomain.Product]{}}
}

// GetSKU reports found=true for cached misses too; product is then nil.
func (c *productCache) GetSKU(sku string) (*catalogdomain.Product, bool) {
	return c.skus.Get(skuKey(sku))
}

func (c *productCache) SetSKU(sku string, product *catalogdomain.Product) {
	ttl := c.hitTTL
	if product == nil {
		ttl = c.missTTL
	}
	c.skus.Set(skuKey(sku), product, ttl)
}

func skuKey(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}
