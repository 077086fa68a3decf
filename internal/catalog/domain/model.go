package domain

import (
	"strings"
	"time"
)

// Product is the storefront's sellable item. The table is owned by the
// commerce platform; this service only reads it.
type Product struct {
	ID               int64     `json:"id" gorm:"primaryKey"`
	Name             string    `json:"name" gorm:"type:varchar(255);not null;index"`
	DefaultCode      *string   `json:"default_code,omitempty" gorm:"type:varchar(128);index"`
	Barcode          *string   `json:"barcode,omitempty" gorm:"type:varchar(128);index"`
	ListPrice        float64   `json:"list_price" gorm:"not null;default:0"`
	DescriptionSale  *string   `json:"description_sale,omitempty" gorm:"type:text"`
	Description      *string   `json:"description,omitempty" gorm:"type:text"`
	QtyAvailable     float64   `json:"qty_available" gorm:"not null;default:0"`
	CategoryID       *int64    `json:"category_id,omitempty" gorm:"index"`
	ImageURL         *string   `json:"image_url,omitempty" gorm:"type:text"`
	SaleOK           bool      `json:"sale_ok" gorm:"not null;default:true"`
	WebsitePublished bool      `json:"website_published" gorm:"not null;default:true"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Product) TableName() string { return "products" }

func (p Product) SKU() string { return deref(p.DefaultCode) }

// SearchCandidate exposes the searched columns to Filter.Matches. Category
// fields are left empty.
func (p Product) SearchCandidate() Candidate {
	return Candidate{
		Name:        p.Name,
		SKU:         p.SKU(),
		Barcode:     deref(p.Barcode),
		Description: strings.TrimSpace(deref(p.DescriptionSale) + "\n" + deref(p.Description)),
		Price:       p.ListPrice,
		InStock:     p.QtyAvailable > 0,
	}
}

// SalesDescription prefers the sales text over the internal one.
func (p Product) SalesDescription() string {
	if v := deref(p.DescriptionSale); v != "" {
		return v
	}
	return deref(p.Description)
}

func (p Product) InStock() bool { return p.QtyAvailable > 0 }

func (p Product) Purchasable() bool { return p.SaleOK && p.WebsitePublished }

type Category struct {
	ID       int64  `json:"id" gorm:"primaryKey"`
	Name     string `json:"name" gorm:"type:varchar(255);not null"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

func (Category) TableName() string { return "product_categories" }

// AttributeValue is one variant attribute pair such as Color=White.
type AttributeValue struct {
	ID        int64  `json:"id" gorm:"primaryKey"`
	ProductID int64  `json:"product_id" gorm:"not null;index"`
	Attribute string `json:"attribute" gorm:"type:varchar(128);not null"`
	Value     string `json:"value" gorm:"type:varchar(255);not null"`
	Sequence  int    `json:"sequence" gorm:"not null;default:0"`
}

func (AttributeValue) TableName() string { return "product_attribute_values" }

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
