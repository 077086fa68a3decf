// Package engine talks to the storefront's cart and checkout service over
// JSON/HTTP.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/voiceassist/internal/commerce/domain"
	"github.com/smallbiznis/voiceassist/internal/config"
	"github.com/smallbiznis/voiceassist/internal/observability/tracing"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
	userHeader     = "X-Storefront-User"
)

// envelope is the engine's reply shape: {"success":true,"data":{...}} or
// {"success":false,"code":"...","error":"..."}.
type envelope struct {
	Success *bool           `json:"success"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// route pairs an engine path with the operation name used in spans and
// metrics.
type route struct {
	operation string
	path      string
}

var (
	routeAddToCart         = route{"add_to_cart", "/cart/add"}
	routeCheckoutInit      = route{"checkout_init", "/checkout/init"}
	routeSetShipping       = route{"set_shipping", "/checkout/shipping"}
	routeSetBilling        = route{"set_billing", "/checkout/billing"}
	routeSetShippingMethod = route{"set_shipping_method", "/checkout/shipping-method"}
	routeReview            = route{"review_order", "/checkout/review"}
	routePlaceOrder        = route{"place_order", "/checkout/place-order"}
)

type Client struct {
	baseURL string
	token   string
	client  *http.Client
	log     *zap.Logger
}

func NewClient(cfg config.Config, log *zap.Logger) domain.Engine {
	timeout := time.Duration(cfg.Commerce.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.Commerce.BaseURL), "/"),
		token:   strings.TrimSpace(cfg.Commerce.Token),
		client:  tracing.WrapHTTPClient(&http.Client{Timeout: timeout}, "commerce-engine"),
		log:     log.Named("commerce.engine"),
	}
}

func (c *Client) AddToCart(ctx context.Context, sess domain.Session, productID int64, quantity int) (*domain.CartResult, error) {
	var out domain.CartResult
	body := map[string]any{"product_id": productID, "quantity": quantity}
	if err := c.do(ctx, sess, routeAddToCart, body, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) InitCheckout(ctx context.Context, sess domain.Session) (*domain.CheckoutState, error) {
	return c.checkout(ctx, sess, routeCheckoutInit, map[string]any{})
}

func (c *Client) SetShipping(ctx context.Context, sess domain.Session, addr domain.Address) (*domain.CheckoutState, error) {
	return c.checkout(ctx, sess, routeSetShipping, addr)
}

func (c *Client) SetBilling(ctx context.Context, sess domain.Session, req domain.BillingRequest) (*domain.CheckoutState, error) {
	return c.checkout(ctx, sess, routeSetBilling, req)
}

func (c *Client) SetShippingMethod(ctx context.Context, sess domain.Session, method domain.ShippingMethod) (*domain.CheckoutState, error) {
	return c.checkout(ctx, sess, routeSetShippingMethod, method)
}

func (c *Client) Review(ctx context.Context, sess domain.Session) (*domain.CheckoutState, error) {
	return c.checkout(ctx, sess, routeReview, map[string]any{})
}

func (c *Client) PlaceOrder(ctx context.Context, sess domain.Session, req domain.PlaceOrderRequest, idempotencyKey string) (*domain.OrderConfirmation, error) {
	var out domain.OrderConfirmation
	body := map[string]any{"confirm": bool(req.Confirm), "note": strings.TrimSpace(req.Note)}
	if err := c.do(ctx, sess, routePlaceOrder, body, idempotencyKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) checkout(ctx context.Context, sess domain.Session, r route, body any) (*domain.CheckoutState, error) {
	var out domain.CheckoutState
	if err := c.do(ctx, sess, r, body, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, sess domain.Session, r route, body any, idempotencyKey string, out any) error {
	if c.baseURL == "" {
		return domain.ErrEngineUnavailable
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	ctx = tracing.WithOperation(ctx, r.operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+r.path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if sess.Cookie != "" {
		req.Header.Set("Cookie", sess.Cookie)
	}
	if sess.UserID != "" {
		req.Header.Set(userHeader, sess.UserID)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("commerce engine unreachable", zap.String("operation", r.operation), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: status %d", domain.ErrEngineUnavailable, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &domain.EngineError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode commerce engine response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest || (env.Success != nil && !*env.Success) {
		message := strings.TrimSpace(env.Error)
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &domain.EngineError{Status: resp.StatusCode, Code: strings.TrimSpace(env.Code), Message: message}
	}

	if len(env.Data) == 0 || out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
