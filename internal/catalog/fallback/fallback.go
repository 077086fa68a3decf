// Package fallback holds the fixed catalog served when the live catalog has
// no match.
package fallback

import (
	"strings"

	"github.com/smallbiznis/voiceassist/internal/catalog/domain"
)

// StockQuantity is reported for every fallback entry.
const StockQuantity = 999

type Entry struct {
	SKU         string
	Name        string
	Price       float64
	Image       string
	Description string
	Category    string
}

func (e Entry) Candidate() domain.Candidate {
	return domain.Candidate{
		Name:         e.Name,
		SKU:          e.SKU,
		Description:  e.Description,
		Price:        e.Price,
		InStock:      true,
		CategoryName: e.Category,
	}
}

var entries = []Entry{
	{
		SKU:         "WH-1000XM5",
		Name:        "Conference Chair",
		Price:       33.00,
		Image:       "https://odoo.local/web/image/product.template/19/image_512",
		Description: "A comfortable ergonomic office chair with adjustable height and lumbar support. Perfect for long working sessions.",
		Category:    "Office Furniture",
	},
	{
		SKU:         "MACBOOK-AIR-M2",
		Name:        "Apple MacBook Air 13-inch M2 (2024)",
		Price:       1099.00,
		Image:       "https://www.cnet.com/a/img/resize/1dfe63fa1d9ce83dca78559b8bb6479b15cdbb4e/hub/2013/06/13/3bc35600-053a-11e3-bf02-d4ae52e62bcc/Apple_MacBook_Air_13-inch_35781451_06.jpg?auto=webp&width=768",
		Description: "Supercharged by M2 chip. Features a 13.6-inch Liquid Retina display, 8-core CPU, 10-core GPU, and up to 18-hour battery life.",
		Category:    "Electronics",
	},
	{
		SKU:         "S24-ULTRA",
		Name:        "Samsung Galaxy S24 Ultra",
		Price:       1299.99,
		Image:       "https://images.samsung.com/levant/smartphones/galaxy-s24-ultra/images/galaxy-s24-ultra-highlights-kv.jpg?imbypass=true",
		Description: "Epic, just like that. Features a 6.8-inch display, 200MP camera, S Pen included, and Galaxy AI for intelligent assistance.",
		Category:    "Electronics",
	},
	{
		SKU:         "IPHONE-15-PRO",
		Name:        "iPhone 15 Pro",
		Price:       999.00,
		Image:       "https://store.storeimages.cdn-apple.com/4982/as-images.apple.com/is/iphone-15-pro-hero",
		Description: "Titanium. So strong. So light. So Pro. Features A17 Pro chip, 48MP camera system, and Action button.",
		Category:    "Electronics",
	},
	{
		SKU:         "AF1-WHITE",
		Name:        "Nike Air Force 1 '07",
		Price:       110.00,
		Image:       "https://static.nike.com/a/images/t_PDP_1728_v1/f_auto,q_auto:eco/b7d9211c-26e7-431a-ac24-b0540fb3c00f/AIR+FORCE+1+%2707.png",
		Description: "The radiance lives on. Classic white leather basketball sneaker with Air cushioning for all-day comfort.",
		Category:    "Footwear",
	},
	{
		SKU:         "ADIDAS-ULTRA",
		Name:        "Adidas Ultraboost 22",
		Price:       190.00,
		Image:       "https://assets.adidas.com/images/h_840,f_auto,q_auto,fl_lossy,c_fill,g_auto/fbaf991a78bc4896a3e9ad7800abcec6_9366/Ultraboost_22_Shoes_Black_GZ0127_01_standard.jpg",
		Description: "Incredible energy return. Features Boost midsole, Primeknit upper, and Linear Energy Push system for responsive cushioning.",
		Category:    "Footwear",
	},
	{
		SKU:         "AIRPODS-PRO-2",
		Name:        "Apple AirPods Pro (2nd Gen)",
		Price:       249.00,
		Image:       "https://store.storeimages.cdn-apple.com/4982/as-images.apple.com/is/MQD83",
		Description: "Up to 2x more Active Noise Cancellation. Features H2 chip, USB-C charging case, and up to 30 hours of total listening time.",
		Category:    "Electronics",
	},
}

// Entries returns a copy of the catalog in its canonical order.
func Entries() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// BySKU matches case-insensitively.
func BySKU(sku string) (Entry, bool) {
	key := strings.ToUpper(strings.TrimSpace(sku))
	for _, e := range entries {
		if e.SKU == key {
			return e, true
		}
	}
	return Entry{}, false
}

// Search applies filter to the fallback entries in canonical order and stops
// at the filter limit.
func Search(filter domain.Filter) []Entry {
	limit := domain.ClampLimit(filter.Limit)
	var out []Entry
	for _, e := range entries {
		if !filter.Matches(e.Candidate()) {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out
}
