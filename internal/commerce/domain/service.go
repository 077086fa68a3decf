package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/voiceassist/internal/config"
)

// Engine is the platform's cart and checkout workflow.
type Engine interface {
	AddToCart(ctx context.Context, sess Session, productID int64, quantity int) (*CartResult, error)
	InitCheckout(ctx context.Context, sess Session) (*CheckoutState, error)
	SetShipping(ctx context.Context, sess Session, addr Address) (*CheckoutState, error)
	SetBilling(ctx context.Context, sess Session, req BillingRequest) (*CheckoutState, error)
	SetShippingMethod(ctx context.Context, sess Session, method ShippingMethod) (*CheckoutState, error)
	Review(ctx context.Context, sess Session) (*CheckoutState, error)
	PlaceOrder(ctx context.Context, sess Session, req PlaceOrderRequest, idempotencyKey string) (*OrderConfirmation, error)
}

type Service interface {
	AddToCart(ctx context.Context, sess Session, req AddToCartRequest, settings config.WidgetSettings) (*CartResult, error)
	InitCheckout(ctx context.Context, sess Session) (*CheckoutState, error)
	SetShipping(ctx context.Context, sess Session, addr Address) (*CheckoutState, error)
	SetBilling(ctx context.Context, sess Session, req BillingRequest) (*CheckoutState, error)
	SetShippingMethod(ctx context.Context, sess Session, req ShippingMethodRequest) (*CheckoutState, error)
	Review(ctx context.Context, sess Session) (*CheckoutState, error)
	PlaceOrder(ctx context.Context, sess Session, req PlaceOrderRequest) (*OrderConfirmation, error)
}

var (
	ErrInvalidProduct        = errors.New("invalid_product")
	ErrInvalidQuantity       = errors.New("invalid_quantity")
	ErrInvalidAddress        = errors.New("invalid_address")
	ErrInvalidShippingMethod = errors.New("invalid_shipping_method")
	ErrOrderNotConfirmed     = errors.New("order_not_confirmed")
	ErrEngineUnavailable     = errors.New("commerce_engine_unavailable")
	ErrProductNotPurchasable = errors.New("product_not_purchasable")
	ErrCartDisabled          = errors.New("add_to_cart_disabled")
)

// EngineError is a refusal reported by the commerce engine itself.
type EngineError struct {
	Status  int
	Code    string
	Message string
}

func (e *EngineError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("commerce engine: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("commerce engine: %s: %s", e.Code, e.Message)
}
