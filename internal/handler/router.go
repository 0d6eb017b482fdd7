package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/whistleblower-api/internal/middleware"
	"github.com/noah-isme/whistleblower-api/internal/models"
	"github.com/noah-isme/whistleblower-api/internal/service"
	"github.com/noah-isme/whistleblower-api/pkg/config"
	"github.com/noah-isme/whistleblower-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/whistleblower-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/whistleblower-api/pkg/middleware/requestid"
)

const (
	rateScopeSubmit = "submit"
	rateScopeTrack  = "track"
	rateScopeUpload = "upload"
)

// RouterConfig carries the HTTP surface settings.
type RouterConfig struct {
	APIPrefix          string
	AllowedOrigins     []string
	EnableDocs         bool
	RateLimit          config.RateLimitConfig
	MaxMultipartMemory int64
}

// RouterDeps bundles handlers and the collaborators middleware needs.
type RouterDeps struct {
	Logger   *zap.Logger
	Metrics  *service.MetricsService
	Tokens   middleware.TokenValidator
	Limiter  middleware.RateCounter
	Webhook  middleware.SignatureVerifier
	Auth     *AuthHandler
	Reports  *ReportHandler
	Evidence *EvidenceHandler
	WhatsApp *WhatsAppHandler
	WS       *WSHandler
	Ops      *MetricsHandler
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg RouterConfig, deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api"
	}

	r := gin.New()
	if cfg.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = cfg.MaxMultipartMemory
	}
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", deps.Ops.Health)
	r.GET("/ready", deps.Ops.Ready)
	r.GET("/metrics", deps.Ops.Prometheus)
	r.GET("/ws", deps.WS.Serve)
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	limiter := func(scope string, limit int64) gin.HandlerFunc {
		if !cfg.RateLimit.Enabled {
			limit = 0
		}
		return middleware.RateLimit(deps.Limiter, middleware.RateLimitRule{
			Scope:  scope,
			Limit:  limit,
			Window: windowOrDefault(cfg.RateLimit.Window),
		}, deps.Metrics, deps.Logger)
	}
	jwt := middleware.JWT(deps.Tokens)
	admin := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group(prefix)

	api.POST("/register", middleware.OptionalJWT(deps.Tokens), deps.Auth.Register)
	api.POST("/login", limiter(rateScopeSubmit, cfg.RateLimit.SubmitLimit), deps.Auth.Login)
	api.GET("/user", jwt, admin, deps.Auth.Me)

	reports := api.Group("/reports")
	reports.POST("", limiter(rateScopeSubmit, cfg.RateLimit.SubmitLimit), deps.Reports.Submit)
	reports.GET("/track/:token", limiter(rateScopeTrack, cfg.RateLimit.TrackLimit), deps.Reports.Track)
	reports.GET("", jwt, admin, deps.Reports.List)
	reports.GET("/stats", jwt, admin, deps.Reports.Stats)
	reports.GET("/export", jwt, admin, deps.Reports.Export)
	reports.GET("/:id", jwt, admin, deps.Reports.Get)
	reports.GET("/:id/evidence", jwt, admin, deps.Evidence.ListForReport)
	reports.PATCH("/:id/status", jwt, admin, deps.Reports.UpdateStatus)

	evidence := api.Group("/evidence")
	evidence.POST("/upload", limiter(rateScopeUpload, cfg.RateLimit.UploadLimit), deps.Evidence.Upload)
	evidence.GET("/:id/download", deps.Evidence.Download)

	whatsapp := api.Group("/whatsapp")
	whatsapp.GET("/webhook", deps.WhatsApp.Verify)
	whatsapp.POST("/webhook", middleware.WebhookSignature(deps.Webhook), deps.WhatsApp.Webhook)

	return r
}

func windowOrDefault(window time.Duration) time.Duration {
	if window <= 0 {
		return time.Minute
	}
	return window
}
