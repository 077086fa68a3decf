package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	catalogdomain "github.com/smallbiznis/voiceassist/internal/catalog/domain"
	commercedomain "github.com/smallbiznis/voiceassist/internal/commerce/domain"
	"github.com/smallbiznis/voiceassist/internal/config"
	"github.com/smallbiznis/voiceassist/internal/identity"
	"github.com/smallbiznis/voiceassist/internal/observability"
	obsmiddleware "github.com/smallbiznis/voiceassist/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/voiceassist/internal/observability/metrics"
	obstracing "github.com/smallbiznis/voiceassist/internal/observability/tracing"
	"github.com/smallbiznis/voiceassist/internal/ratelimit"
	usagedomain "github.com/smallbiznis/voiceassist/internal/usage/domain"
	"github.com/smallbiznis/voiceassist/internal/widget"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, cfg config.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(RecoveryMiddleware())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())
	if origins := cfg.Storefront.CORSAllowedOrigins; len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "X-Requested-With", "X-Request-Id"},
			ExposeHeaders:    []string{"Retry-After", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, cfg config.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, cfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	resolver    *identity.Resolver
	settings    *config.WidgetSettingsHolder
	usagesvc    usagedomain.Service
	catalogSvc  catalogdomain.Service
	commerceSvc commercedomain.Service
	page        *widget.PageRenderer
	toolLimiter *ratelimit.ToolCallLimiter
	obsMetrics  *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Resolver    *identity.Resolver
	Settings    *config.WidgetSettingsHolder
	Usagesvc    usagedomain.Service
	CatalogSvc  catalogdomain.Service
	CommerceSvc commercedomain.Service
	Page        *widget.PageRenderer
	ToolLimiter *ratelimit.ToolCallLimiter `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		resolver:    p.Resolver,
		settings:    p.Settings,
		usagesvc:    p.Usagesvc,
		catalogSvc:  p.CatalogSvc,
		commerceSvc: p.CommerceSvc,
		page:        p.Page,
		toolLimiter: p.ToolLimiter,
		obsMetrics:  p.ObsMetrics,
	}

	svc.registerToolRoutes()
	svc.registerPageRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerToolRoutes() {
	api := s.engine.Group("/api/elevenlabs")
	api.Use(s.VisitorContext())
	api.Use(JSONRPCEnvelope())
	api.Use(s.ToolCallRateLimit())

	// -------- Usage --------
	api.POST("/usage/check-limits", s.CheckLimits)
	api.POST("/usage/session-start", s.SessionStart)
	api.POST("/usage/record-message", s.RecordMessage)
	api.POST("/usage/session-end", s.SessionEnd)
	api.GET("/usage/client-ip", s.ClientIP)
	api.POST("/usage/client-ip", s.ClientIP)
	api.GET("/session/init", s.SessionInit)
	api.POST("/session/init", s.SessionInit)
	api.POST("/session/record", s.SessionRecord)
	api.GET("/session/check", s.SessionCheck)
	api.POST("/session/check", s.SessionCheck)

	// -------- Catalog --------
	api.POST("/product/sku/:sku", s.GetProductBySKU)
	api.POST("/product/:id", s.GetProductByID)
	api.POST("/products/recommended", s.RecommendedProducts)
	api.POST("/products/search", s.SearchProducts)

	// -------- Cart & checkout --------
	api.POST("/cart/add", s.AddToCart)
	api.POST("/checkout/init", s.InitCheckout)
	api.POST("/checkout/shipping", s.SetShipping)
	api.POST("/checkout/billing", s.SetBilling)
	api.POST("/checkout/shipping-method", s.SetShippingMethod)
	api.POST("/checkout/review", s.ReviewOrder)
	api.POST("/checkout/place-order", s.PlaceOrder)
}

func (s *Server) registerPageRoutes() {
	s.engine.GET("/ai-assistant", s.VisitorContext(), s.AssistantPage)
}
