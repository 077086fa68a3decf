package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	commercedomain "github.com/smallbiznis/voiceassist/internal/commerce/domain"
)

// storefrontSession forwards the visitor's platform cookie so cart calls act
// on their own cart.
func storefrontSession(c *gin.Context) commercedomain.Session {
	return commercedomain.Session{
		Cookie: c.GetHeader("Cookie"),
		UserID: visitorFrom(c).Identity.UserID(),
	}
}

func (s *Server) AddToCart(c *gin.Context) {
	var req commercedomain.AddToCartRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.commerceSvc.AddToCart(c.Request.Context(), storefrontSession(c), req, settingsFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"success": true,
		"message": res.Message,
		"cart":    res,
	})
}

func (s *Server) InitCheckout(c *gin.Context) {
	state, err := s.commerceSvc.InitCheckout(c.Request.Context(), storefrontSession(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"success": true, "checkout": state})
}

func (s *Server) SetShipping(c *gin.Context) {
	var req commercedomain.Address
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	state, err := s.commerceSvc.SetShipping(c.Request.Context(), storefrontSession(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"success": true, "checkout": state})
}

func (s *Server) SetBilling(c *gin.Context) {
	var req commercedomain.BillingRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	state, err := s.commerceSvc.SetBilling(c.Request.Context(), storefrontSession(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"success": true, "checkout": state})
}

func (s *Server) SetShippingMethod(c *gin.Context) {
	var req commercedomain.ShippingMethodRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	state, err := s.commerceSvc.SetShippingMethod(c.Request.Context(), storefrontSession(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"success": true, "checkout": state})
}

func (s *Server) ReviewOrder(c *gin.Context) {
	state, err := s.commerceSvc.Review(c.Request.Context(), storefrontSession(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"success": true, "order": state})
}

func (s *Server) PlaceOrder(c *gin.Context) {
	var req commercedomain.PlaceOrderRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	conf, err := s.commerceSvc.PlaceOrder(c.Request.Context(), storefrontSession(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"success": true,
		"message": conf.Message,
		"order":   conf,
	})
}
