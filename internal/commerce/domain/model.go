package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	catalogdomain "github.com/smallbiznis/voiceassist/internal/catalog/domain"
)

const (
	DefaultQuantity = 1
	MaxQuantity     = 99
)

var validate = validator.New()

// Session is the visitor's storefront session, forwarded to the engine as-is.
type Session struct {
	Cookie string
	UserID string
}

type AddToCartRequest struct {
	ProductID catalogdomain.FlexibleInt `json:"product_id"`
	SKU       string                    `json:"sku"`
	Quantity  catalogdomain.FlexibleInt `json:"quantity"`
}

// NormalizedQuantity defaults to one and rejects values outside 1..99.
func (r AddToCartRequest) NormalizedQuantity() (int, error) {
	if !r.Quantity.IsSet() {
		return DefaultQuantity, nil
	}
	q := r.Quantity.Int64()
	if q < 1 || q > MaxQuantity {
		return 0, ErrInvalidQuantity
	}
	return int(q), nil
}

type Address struct {
	Name    string `json:"name" validate:"required,max=128"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Street  string `json:"street" validate:"required,max=255"`
	Street2 string `json:"street2,omitempty" validate:"omitempty,max=255"`
	City    string `json:"city" validate:"required,max=128"`
	Zip     string `json:"zip" validate:"required,max=32"`
	State   string `json:"state,omitempty" validate:"omitempty,max=128"`
	Country string `json:"country" validate:"required,max=64"`
}

func (a Address) Normalize() Address {
	return Address{
		Name:    strings.TrimSpace(a.Name),
		Email:   strings.ToLower(strings.TrimSpace(a.Email)),
		Phone:   strings.TrimSpace(a.Phone),
		Street:  strings.TrimSpace(a.Street),
		Street2: strings.TrimSpace(a.Street2),
		City:    strings.TrimSpace(a.City),
		Zip:     strings.TrimSpace(a.Zip),
		State:   strings.TrimSpace(a.State),
		Country: strings.TrimSpace(a.Country),
	}
}

// Validate reports the offending fields, wrapped in ErrInvalidAddress.
func (a Address) Validate() error {
	err := validate.Struct(a)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidAddress, strings.Join(fields, ", "))
}

type BillingRequest struct {
	SameAsShipping bool     `json:"same_as_shipping"`
	Address        *Address `json:"address,omitempty"`
}

type ShippingMethodRequest struct {
	Method string `json:"method"`
}

type ShippingMethod struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Delivery string  `json:"delivery"`
}

var shippingMethods = []ShippingMethod{
	{Code: "standard", Name: "Standard Shipping", Price: 0, Delivery: "5-7 business days"},
	{Code: "express", Name: "Express Shipping", Price: 15, Delivery: "2-3 business days"},
	{Code: "overnight", Name: "Overnight Shipping", Price: 35, Delivery: "Next business day"},
}

func ShippingMethods() []ShippingMethod {
	out := make([]ShippingMethod, len(shippingMethods))
	copy(out, shippingMethods)
	return out
}

func LookupShippingMethod(code string) (ShippingMethod, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, m := range shippingMethods {
		if m.Code == code {
			return m, true
		}
	}
	return ShippingMethod{}, false
}

type PlaceOrderRequest struct {
	Confirm catalogdomain.FlexibleBool `json:"confirm"`
	Note    string                     `json:"note,omitempty"`
}

type CartLine struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	PriceUnit float64 `json:"price_unit"`
	Subtotal  float64 `json:"subtotal"`
}

type CartResult struct {
	OrderID      int64      `json:"order_id,omitempty"`
	CartQuantity int        `json:"cart_quantity"`
	Lines        []CartLine `json:"lines,omitempty"`
	AmountTotal  float64    `json:"amount_total"`
	RedirectURL  string     `json:"redirect_url,omitempty"`
	Message      string     `json:"message,omitempty"`
}

type CheckoutState struct {
	OrderID          int64            `json:"order_id"`
	Step             string           `json:"step"`
	Lines            []CartLine       `json:"lines"`
	AmountUntaxed    float64          `json:"amount_untaxed"`
	AmountTax        float64          `json:"amount_tax"`
	AmountTotal      float64          `json:"amount_total"`
	Currency         string           `json:"currency,omitempty"`
	ShippingAddress  *Address         `json:"shipping_address,omitempty"`
	BillingAddress   *Address         `json:"billing_address,omitempty"`
	ShippingMethod   *ShippingMethod  `json:"shipping_method,omitempty"`
	AvailableMethods []ShippingMethod `json:"available_shipping_methods,omitempty"`
}

type OrderConfirmation struct {
	OrderID     int64   `json:"order_id"`
	Reference   string  `json:"reference"`
	State       string  `json:"state"`
	AmountTotal float64 `json:"amount_total"`
	Message     string  `json:"message,omitempty"`
}
