package service

import (
	"context"
	"testing"

	catalogdomain "github.com/smallbiznis/voiceassist/internal/catalog/domain"
	"github.com/smallbiznis/voiceassist/internal/commerce/domain"
	"github.com/smallbiznis/voiceassist/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type catalogStub struct {
	catalogdomain.Service
	products map[int64]*catalogdomain.Product
	skus     map[string]int64
}

func (c *catalogStub) Resolve(_ context.Context, productID int64, sku string) (*catalogdomain.Product, error) {
	if productID == 0 {
		productID = c.skus[sku]
	}
	p, ok := c.products[productID]
	if !ok {
		return nil, catalogdomain.ErrNotFound
	}
	if !p.Purchasable() {
		return nil, catalogdomain.ErrNotPurchasable
	}
	return p, nil
}

func (c *catalogStub) GetByID(_ context.Context, id int64, _ catalogdomain.Policy) (*catalogdomain.ProductView, error) {
	p, ok := c.products[id]
	if !ok {
		return nil, catalogdomain.ErrNotFound
	}
	return &catalogdomain.ProductView{ID: p.ID, Name: p.Name, URL: "/shop/product/desk-lamp-7"}, nil
}

type engineStub struct {
	added       []int64
	quantities  []int
	shipping    *domain.Address
	billing     *domain.BillingRequest
	method      *domain.ShippingMethod
	placedKey   string
	placedCalls int
}

func (e *engineStub) AddToCart(_ context.Context, _ domain.Session, productID int64, quantity int) (*domain.CartResult, error) {
	e.added = append(e.added, productID)
	e.quantities = append(e.quantities, quantity)
	return &domain.CartResult{OrderID: 100, CartQuantity: quantity}, nil
}

func (e *engineStub) InitCheckout(context.Context, domain.Session) (*domain.CheckoutState, error) {
	return &domain.CheckoutState{OrderID: 100, Step: "address"}, nil
}

func (e *engineStub) SetShipping(_ context.Context, _ domain.Session, addr domain.Address) (*domain.CheckoutState, error) {
	e.shipping = &addr
	return &domain.CheckoutState{OrderID: 100, Step: "billing", ShippingAddress: &addr}, nil
}

func (e *engineStub) SetBilling(_ context.Context, _ domain.Session, req domain.BillingRequest) (*domain.CheckoutState, error) {
	e.billing = &req
	return &domain.CheckoutState{OrderID: 100, Step: "delivery"}, nil
}

func (e *engineStub) SetShippingMethod(_ context.Context, _ domain.Session, method domain.ShippingMethod) (*domain.CheckoutState, error) {
	e.method = &method
	return &domain.CheckoutState{OrderID: 100, Step: "review", ShippingMethod: &method}, nil
}

func (e *engineStub) Review(context.Context, domain.Session) (*domain.CheckoutState, error) {
	return nil, &domain.EngineError{Status: 409, Code: "empty_cart", Message: "cart is empty"}
}

func (e *engineStub) PlaceOrder(_ context.Context, _ domain.Session, _ domain.PlaceOrderRequest, key string) (*domain.OrderConfirmation, error) {
	e.placedCalls++
	e.placedKey = key
	return &domain.OrderConfirmation{OrderID: 100, Reference: "S00100", State: "sale"}, nil
}

func newTestService() (domain.Service, *engineStub) {
	code := "LAMP-1"
	catalog := &catalogStub{
		products: map[int64]*catalogdomain.Product{
			7: {ID: 7, Name: "Desk Lamp", DefaultCode: &code, ListPrice: 30, SaleOK: true, WebsitePublished: true},
			8: {ID: 8, Name: "Archived Lamp", ListPrice: 10, SaleOK: false, WebsitePublished: true},
		},
		skus: map[string]int64{"LAMP-1": 7},
	}
	eng := &engineStub{}
	return New(Params{Log: zap.NewNop(), Engine: eng, Catalog: catalog}), eng
}

func validAddress() domain.Address {
	return domain.Address{
		Name:    " Ada Lovelace ",
		Email:   "ADA@example.com",
		Street:  "1 Analytical Way",
		City:    "London",
		Zip:     "N1 9GU",
		Country: "GB",
	}
}

func TestAddToCart(t *testing.T) {
	svc, eng := newTestService()
	settings := config.DefaultWidgetSettings()
	ctx := context.Background()

	res, err := svc.AddToCart(ctx, domain.Session{}, domain.AddToCartRequest{SKU: "LAMP-1"}, settings)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, eng.added)
	assert.Equal(t, []int{1}, eng.quantities)
	assert.Equal(t, "Added 1 x Desk Lamp to your cart.", res.Message)

	_, err = svc.AddToCart(ctx, domain.Session{}, domain.AddToCartRequest{
		ProductID: catalogdomain.NewFlexibleInt(7),
		Quantity:  catalogdomain.NewFlexibleInt(3),
	}, settings)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, eng.quantities)
}

func TestAddToCartRejections(t *testing.T) {
	svc, eng := newTestService()
	settings := config.DefaultWidgetSettings()
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.AddToCartRequest
		want error
	}{
		{"no product", domain.AddToCartRequest{}, domain.ErrInvalidProduct},
		{"unknown sku", domain.AddToCartRequest{SKU: "NOPE"}, domain.ErrInvalidProduct},
		{"not for sale", domain.AddToCartRequest{ProductID: catalogdomain.NewFlexibleInt(8)}, domain.ErrProductNotPurchasable},
		{"zero quantity", domain.AddToCartRequest{SKU: "LAMP-1", Quantity: catalogdomain.NewFlexibleInt(0)}, domain.ErrInvalidQuantity},
		{"too many", domain.AddToCartRequest{SKU: "LAMP-1", Quantity: catalogdomain.NewFlexibleInt(100)}, domain.ErrInvalidQuantity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddToCart(ctx, domain.Session{}, tc.req, settings)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, eng.added)

	settings.EnableAddToCart = false
	_, err := svc.AddToCart(ctx, domain.Session{}, domain.AddToCartRequest{SKU: "LAMP-1"}, settings)
	assert.ErrorIs(t, err, domain.ErrCartDisabled)
}

func TestAddToCartRedirectMode(t *testing.T) {
	svc, eng := newTestService()
	settings := config.DefaultWidgetSettings()
	settings.CartIntegrationMethod = config.CartRedirect

	res, err := svc.AddToCart(context.Background(), domain.Session{}, domain.AddToCartRequest{SKU: "LAMP-1"}, settings)
	require.NoError(t, err)
	assert.Equal(t, "/shop/product/desk-lamp-7", res.RedirectURL)
	assert.Empty(t, eng.added)
}

func TestCheckoutSteps(t *testing.T) {
	svc, eng := newTestService()
	ctx := context.Background()

	state, err := svc.InitCheckout(ctx, domain.Session{})
	require.NoError(t, err)
	assert.Len(t, state.AvailableMethods, 3)

	_, err = svc.SetShipping(ctx, domain.Session{}, domain.Address{Name: "Ada"})
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
	assert.Nil(t, eng.shipping)

	_, err = svc.SetShipping(ctx, domain.Session{}, validAddress())
	require.NoError(t, err)
	require.NotNil(t, eng.shipping)
	assert.Equal(t, "Ada Lovelace", eng.shipping.Name)
	assert.Equal(t, "ada@example.com", eng.shipping.Email)

	_, err = svc.SetBilling(ctx, domain.Session{}, domain.BillingRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	addr := validAddress()
	_, err = svc.SetBilling(ctx, domain.Session{}, domain.BillingRequest{SameAsShipping: true, Address: &addr})
	require.NoError(t, err)
	assert.Nil(t, eng.billing.Address)

	_, err = svc.SetShippingMethod(ctx, domain.Session{}, domain.ShippingMethodRequest{Method: "teleport"})
	assert.ErrorIs(t, err, domain.ErrInvalidShippingMethod)

	_, err = svc.SetShippingMethod(ctx, domain.Session{}, domain.ShippingMethodRequest{Method: " Express "})
	require.NoError(t, err)
	assert.Equal(t, 15.0, eng.method.Price)

	_, err = svc.Review(ctx, domain.Session{})
	var engineErr *domain.EngineError
	assert.ErrorAs(t, err, &engineErr)
}

func TestPlaceOrderRequiresConfirmation(t *testing.T) {
	svc, eng := newTestService()
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, domain.Session{}, domain.PlaceOrderRequest{})
	assert.ErrorIs(t, err, domain.ErrOrderNotConfirmed)
	assert.Zero(t, eng.placedCalls)

	conf, err := svc.PlaceOrder(ctx, domain.Session{}, domain.PlaceOrderRequest{Confirm: true})
	require.NoError(t, err)
	assert.Equal(t, "S00100", conf.Reference)
	first := eng.placedKey
	assert.Len(t, first, 26)

	_, err = svc.PlaceOrder(ctx, domain.Session{}, domain.PlaceOrderRequest{Confirm: true})
	require.NoError(t, err)
	assert.NotEqual(t, first, eng.placedKey)
}
