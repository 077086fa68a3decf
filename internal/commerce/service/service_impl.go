package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	catalogdomain "github.com/smallbiznis/voiceassist/internal/catalog/domain"
	"github.com/smallbiznis/voiceassist/internal/commerce/domain"
	"github.com/smallbiznis/voiceassist/internal/config"
	obsmetrics "github.com/smallbiznis/voiceassist/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	outcomeOK          = "ok"
	outcomeRejected    = "rejected"
	outcomeUnavailable = "unavailable"
	outcomeError       = "error"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Engine  domain.Engine
	Catalog catalogdomain.Service
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	engine  domain.Engine
	catalog catalogdomain.Service
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:     p.Log.Named("commerce.service"),
		engine:  p.Engine,
		catalog: p.Catalog,
		metrics: p.Metrics,
	}
}

func (s *Service) AddToCart(ctx context.Context, sess domain.Session, req domain.AddToCartRequest, settings config.WidgetSettings) (res *domain.CartResult, err error) {
	defer func() { s.observe(ctx, "add_to_cart", err) }()

	if !settings.EnableAddToCart {
		return nil, domain.ErrCartDisabled
	}
	quantity, err := req.NormalizedQuantity()
	if err != nil {
		return nil, err
	}

	sku := strings.TrimSpace(req.SKU)
	if req.ProductID.Int64() <= 0 && sku == "" {
		return nil, domain.ErrInvalidProduct
	}

	product, err := s.catalog.Resolve(ctx, req.ProductID.Int64(), sku)
	switch {
	case errors.Is(err, catalogdomain.ErrNotPurchasable):
		return nil, domain.ErrProductNotPurchasable
	case errors.Is(err, catalogdomain.ErrNotFound), errors.Is(err, catalogdomain.ErrInvalidID):
		return nil, domain.ErrInvalidProduct
	case err != nil:
		return nil, err
	}

	if settings.CartIntegrationMethod == config.CartRedirect {
		view, err := s.catalog.GetByID(ctx, product.ID, catalogdomain.PolicyFromSettings(settings))
		if err != nil {
			return nil, err
		}
		return &domain.CartResult{
			RedirectURL: view.URL,
			Message:     fmt.Sprintf("Open the %s page to add it to your cart.", product.Name),
		}, nil
	}

	res, err = s.engine.AddToCart(ctx, sess, product.ID, quantity)
	if err != nil {
		return nil, err
	}
	if res.Message == "" {
		res.Message = fmt.Sprintf("Added %d x %s to your cart.", quantity, product.Name)
	}
	return res, nil
}

func (s *Service) InitCheckout(ctx context.Context, sess domain.Session) (state *domain.CheckoutState, err error) {
	defer func() { s.observe(ctx, "checkout_init", err) }()

	state, err = s.engine.InitCheckout(ctx, sess)
	if err != nil {
		return nil, err
	}
	return withMethods(state), nil
}

func (s *Service) SetShipping(ctx context.Context, sess domain.Session, addr domain.Address) (state *domain.CheckoutState, err error) {
	defer func() { s.observe(ctx, "set_shipping", err) }()

	addr = addr.Normalize()
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	state, err = s.engine.SetShipping(ctx, sess, addr)
	if err != nil {
		return nil, err
	}
	return withMethods(state), nil
}

func (s *Service) SetBilling(ctx context.Context, sess domain.Session, req domain.BillingRequest) (state *domain.CheckoutState, err error) {
	defer func() { s.observe(ctx, "set_billing", err) }()

	if req.SameAsShipping {
		req.Address = nil
	} else {
		if req.Address == nil {
			return nil, fmt.Errorf("%w: address", domain.ErrInvalidAddress)
		}
		addr := req.Address.Normalize()
		if err := addr.Validate(); err != nil {
			return nil, err
		}
		req.Address = &addr
	}
	return s.engine.SetBilling(ctx, sess, req)
}

func (s *Service) SetShippingMethod(ctx context.Context, sess domain.Session, req domain.ShippingMethodRequest) (state *domain.CheckoutState, err error) {
	defer func() { s.observe(ctx, "set_shipping_method", err) }()

	method, ok := domain.LookupShippingMethod(req.Method)
	if !ok {
		return nil, domain.ErrInvalidShippingMethod
	}
	return s.engine.SetShippingMethod(ctx, sess, method)
}

func (s *Service) Review(ctx context.Context, sess domain.Session) (state *domain.CheckoutState, err error) {
	defer func() { s.observe(ctx, "review_order", err) }()
	return s.engine.Review(ctx, sess)
}

// PlaceOrder requires an explicit confirmation from the visitor. Each call
// carries a fresh idempotency key.
func (s *Service) PlaceOrder(ctx context.Context, sess domain.Session, req domain.PlaceOrderRequest) (conf *domain.OrderConfirmation, err error) {
	defer func() { s.observe(ctx, "place_order", err) }()

	if !bool(req.Confirm) {
		return nil, domain.ErrOrderNotConfirmed
	}
	key := ulid.Make().String()
	conf, err = s.engine.PlaceOrder(ctx, sess, req, key)
	if err != nil {
		return nil, err
	}
	s.log.Info("order placed",
		zap.Int64("order_id", conf.OrderID),
		zap.String("reference", conf.Reference),
		zap.String("idempotency_key", key),
	)
	return conf, nil
}

func (s *Service) observe(ctx context.Context, operation string, err error) {
	outcome := outcomeOK
	var engineErr *domain.EngineError
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrEngineUnavailable):
		outcome = outcomeUnavailable
	case errors.As(err, &engineErr), isValidation(err):
		outcome = outcomeRejected
	default:
		outcome = outcomeError
	}
	if outcome == outcomeError || outcome == outcomeUnavailable {
		s.log.Warn("commerce call failed", zap.String("operation", operation), zap.Error(err))
	}
	s.metrics.RecordCommerceCall(ctx, operation, outcome)
}

func isValidation(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidProduct,
		domain.ErrInvalidQuantity,
		domain.ErrInvalidAddress,
		domain.ErrInvalidShippingMethod,
		domain.ErrOrderNotConfirmed,
		domain.ErrProductNotPurchasable,
		domain.ErrCartDisabled,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func withMethods(state *domain.CheckoutState) *domain.CheckoutState {
	if state != nil && len(state.AvailableMethods) == 0 {
		state.AvailableMethods = domain.ShippingMethods()
	}
	return state
}
