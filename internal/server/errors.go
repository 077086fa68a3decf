package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/voiceassist/internal/catalog/domain"
	commercedomain "github.com/smallbiznis/voiceassist/internal/commerce/domain"
	"github.com/smallbiznis/voiceassist/internal/limit"
	"github.com/smallbiznis/voiceassist/internal/observability/logger"
	usagedomain "github.com/smallbiznis/voiceassist/internal/usage/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	typeValidation  = "validation_error"
	typeNotFound    = "not_found"
	typeLimit       = "limit_exceeded"
	typeRateLimited = "rate_limited"
	typeUnavailable = "service_unavailable"
	typeInternal    = "internal_error"
)

const ctxErrorDetail = "error_detail"

var (
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
	ErrToolDisabled       = errors.New("tool_disabled")
)

// LimitExceededError carries the decision that denied the request.
type LimitExceededError struct {
	Decision limit.Decision
}

func (e *LimitExceededError) Error() string {
	return string(e.Decision.Reason)
}

type errorRule struct {
	target  error
	status  int
	typ     string
	message string
}

var errorRules = []errorRule{
	{ErrInvalidRequest, http.StatusBadRequest, typeValidation, "The request could not be read."},
	{ErrToolDisabled, http.StatusForbidden, typeValidation, "This assistant tool is turned off for the store."},
	{catalogdomain.ErrSearchQueryRequired, http.StatusBadRequest, typeValidation, "Please provide a search term to find products."},
	{catalogdomain.ErrInvalidID, http.StatusBadRequest, typeValidation, "Product id must be a positive number."},
	{catalogdomain.ErrNotFound, http.StatusNotFound, typeNotFound, "Product not found"},
	{usagedomain.ErrInvalidSessionID, http.StatusBadRequest, typeValidation, "A session id is required."},
	{usagedomain.ErrMissingIdentity, http.StatusBadRequest, typeValidation, "The visitor could not be identified."},
	{usagedomain.ErrConflictingIdentity, http.StatusBadRequest, typeValidation, "A usage record cannot belong to both a user and an anonymous visitor."},
	{usagedomain.ErrSessionNotFound, http.StatusNotFound, typeNotFound, "Session not found."},
	{commercedomain.ErrInvalidProduct, http.StatusBadRequest, typeValidation, "Please name a product by id or SKU."},
	{commercedomain.ErrProductNotPurchasable, http.StatusBadRequest, typeValidation, "This product cannot be purchased online."},
	{commercedomain.ErrInvalidQuantity, http.StatusBadRequest, typeValidation, "Quantity must be between 1 and 99."},
	{commercedomain.ErrInvalidAddress, http.StatusBadRequest, typeValidation, "The address is incomplete or invalid."},
	{commercedomain.ErrInvalidShippingMethod, http.StatusBadRequest, typeValidation, "Choose standard, express or overnight shipping."},
	{commercedomain.ErrOrderNotConfirmed, http.StatusBadRequest, typeValidation, "Please confirm the order before it is placed."},
	{commercedomain.ErrCartDisabled, http.StatusForbidden, typeValidation, "Adding to cart is turned off for the store."},
	{commercedomain.ErrEngineUnavailable, http.StatusServiceUnavailable, typeUnavailable, "The store is not reachable right now. Please try again shortly."},
	{ErrRateLimited, http.StatusTooManyRequests, typeRateLimited, "Too many requests. Please slow down."},
	{ErrServiceUnavailable, http.StatusServiceUnavailable, typeUnavailable, "Service unavailable."},
	{ErrNotFound, http.StatusNotFound, typeNotFound, "Not found."},
	{gorm.ErrRecordNotFound, http.StatusNotFound, typeNotFound, "Not found."},
}

type errorPayload struct {
	status  int
	code    string
	typ     string
	message string
}

func (p errorPayload) body() gin.H {
	return gin.H{
		"success":       false,
		"error":         p.code,
		"error_type":    p.typ,
		"error_message": p.message,
	}
}

// ErrorHandlingMiddleware turns the last handler error into the tool error payload.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		writeError(c, lastErr.Err)
	}
}

// RecoveryMiddleware answers panics with the internal error payload.
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.FromContext(c.Request.Context()).Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
		)
		if c.Writer.Written() {
			c.Abort()
			return
		}
		writeError(c, ErrInternal)
	})
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// abortWithDetail adds fields to the error payload, for tools whose failure
// replies carry data.
func abortWithDetail(c *gin.Context, err error, detail gin.H) {
	c.Set(ctxErrorDetail, detail)
	AbortWithError(c, err)
}

func writeError(c *gin.Context, err error) {
	payload := mapError(err)
	body := payload.body()

	var limitErr *LimitExceededError
	if errors.As(err, &limitErr) {
		body["reason"] = limitErr.Decision.Reason
		body["limits"] = limitErr.Decision
	}
	if raw, ok := c.Get(ctxErrorDetail); ok {
		if detail, ok := raw.(gin.H); ok {
			for k, v := range detail {
				body[k] = v
			}
		}
	}

	respond(c, payload.status, body)
	c.Abort()
}

func mapError(err error) errorPayload {
	if err == nil {
		return internalPayload()
	}

	var limitErr *LimitExceededError
	if errors.As(err, &limitErr) {
		p := errorPayload{
			status:  http.StatusTooManyRequests,
			code:    string(limitErr.Decision.Reason),
			typ:     typeLimit,
			message: limitMessage(limitErr.Decision.Reason),
		}
		if limitErr.Decision.Reason == limit.ReasonInternalError {
			p.status, p.typ = http.StatusServiceUnavailable, typeInternal
		}
		return p
	}

	var engineErr *commercedomain.EngineError
	if errors.As(err, &engineErr) {
		p := errorPayload{
			status:  http.StatusUnprocessableEntity,
			code:    engineErr.Code,
			typ:     typeValidation,
			message: engineErr.Message,
		}
		if engineErr.Status == http.StatusNotFound {
			p.status, p.typ = http.StatusNotFound, typeNotFound
		}
		if p.code == "" {
			p.code = "commerce_rejected"
		}
		if p.message == "" {
			p.message = "The store could not complete this step."
		}
		return p
	}

	for _, rule := range errorRules {
		if errors.Is(err, rule.target) {
			return errorPayload{
				status:  rule.status,
				code:    rule.target.Error(),
				typ:     rule.typ,
				message: rule.message,
			}
		}
	}
	return internalPayload()
}

func internalPayload() errorPayload {
	return errorPayload{
		status:  http.StatusInternalServerError,
		code:    typeInternal,
		typ:     typeInternal,
		message: "Something went wrong. Please try again.",
	}
}

func limitMessage(reason limit.Reason) string {
	switch reason {
	case limit.ReasonDailyLimitExceeded:
		return "Daily message limit reached. Please come back tomorrow."
	case limit.ReasonGlobalLimitExceeded:
		return "The assistant is at capacity today. Please try again tomorrow."
	case limit.ReasonSessionLimitExceeded:
		return "This conversation has reached its message limit."
	default:
		return "Usage could not be verified. Please try again later."
	}
}

// classifyErrorForLog feeds the request logger's error_type/error_code fields.
func classifyErrorForLog(err error) (string, string) {
	p := mapError(err)
	return p.typ, p.code
}
