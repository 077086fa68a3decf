package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/voiceassist/internal/catalog/domain"
)

func (s *Server) GetProductBySKU(c *gin.Context) {
	sku := strings.TrimSpace(c.Param("sku"))
	policy := catalogdomain.PolicyFromSettings(settingsFrom(c))

	product, err := s.catalogSvc.GetBySKU(c.Request.Context(), sku, policy)
	if errors.Is(err, catalogdomain.ErrNotFound) {
		abortWithDetail(c, err, gin.H{"product": gin.H{
			"name":        sku,
			"price":       "0.00",
			"image":       nil,
			"description": "Product not found",
		}})
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"success": true, "product": product})
}

func (s *Server) GetProductByID(c *gin.Context) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		AbortWithError(c, catalogdomain.ErrInvalidID)
		return
	}

	policy := catalogdomain.PolicyFromSettings(settingsFrom(c))
	product, err := s.catalogSvc.GetByID(c.Request.Context(), id, policy)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"success": true, "product": product})
}

func (s *Server) RecommendedProducts(c *gin.Context) {
	var req catalogdomain.RecommendedRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	policy := catalogdomain.PolicyFromSettings(settingsFrom(c))
	products, err := s.catalogSvc.Recommended(c.Request.Context(), req, policy)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"success":     true,
		"products":    products,
		"total_count": len(products),
	})
}

func (s *Server) SearchProducts(c *gin.Context) {
	settings := settingsFrom(c)
	if !settings.EnableSearchProducts {
		AbortWithError(c, ErrToolDisabled)
		return
	}

	var req catalogdomain.SearchRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.catalogSvc.Search(c.Request.Context(), req, catalogdomain.PolicyFromSettings(settings))
	if errors.Is(err, catalogdomain.ErrSearchQueryRequired) {
		abortWithDetail(c, err, gin.H{
			"products":    []catalogdomain.ProductView{},
			"total_count": 0,
		})
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("catalog_source", string(result.Source))

	respond(c, http.StatusOK, gin.H{
		"success":         true,
		"products":        result.Products,
		"total_count":     result.TotalCount,
		"query":           result.Query,
		"filters_applied": result.FiltersApplied,
		"source":          result.Source,
	})
}
