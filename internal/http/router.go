package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/bloomquiz-backend/internal/http/handlers"
	httpMW "github.com/yungbote/bloomquiz-backend/internal/http/middleware"
	"github.com/yungbote/bloomquiz-backend/internal/observability"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	CORSOrigins    []string
	TracingEnabled bool
	ServiceName    string
	// AuthRateLimiter throttles the credential endpoints; nil disables it.
	AuthRateLimiter *httpMW.IPRateLimiter

	AuthHandler       *httpH.AuthHandler
	AuthMiddleware    *httpMW.AuthMiddleware
	UserHandler       *httpH.UserHandler
	AssessmentHandler *httpH.AssessmentHandler
	JobHandler        *httpH.JobHandler
	RealtimeHandler   *httpH.RealtimeHandler
	DocumentHandler   *httpH.DocumentHandler
	ChatHandler       *httpH.ChatHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingEnabled {
		name := cfg.ServiceName
		if name == "" {
			name = "bloomquiz-api"
		}
		r.Use(otelgin.Middleware(name))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	optional := func(c *gin.Context) { c.Next() }
	required := optional
	if cfg.AuthMiddleware != nil {
		optional = cfg.AuthMiddleware.OptionalAuth()
		required = cfg.AuthMiddleware.RequireAuth()
	}

	// Legacy frontend routes
	if cfg.DocumentHandler != nil {
		r.POST("/chunking", optional, cfg.DocumentHandler.Chunking)
	}
	if cfg.JobHandler != nil {
		r.GET("/chunking/status", cfg.JobHandler.ChunkingStatus)
		r.GET("/job_status", cfg.JobHandler.LegacyStatus)
	}
	if cfg.ChatHandler != nil {
		r.POST("/chat", optional, cfg.ChatHandler.Chat)
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			public := api.Group("/")
			if cfg.AuthRateLimiter != nil {
				public.Use(cfg.AuthRateLimiter.Middleware())
			}
			public.POST("/signup", cfg.AuthHandler.Signup)
			public.POST("/login", cfg.AuthHandler.Login)
			public.POST("/forgot-password", cfg.AuthHandler.ForgotPassword)
			public.POST("/reset-password", cfg.AuthHandler.ResetPassword)
		}

		// Job (job id acts as the capability)
		if cfg.JobHandler != nil {
			api.GET("/jobs/:id", optional, cfg.JobHandler.GetJob)
		}
		if cfg.RealtimeHandler != nil {
			api.GET("/jobs/:id/events", optional, cfg.RealtimeHandler.JobEvents)
		}
	}

	protected := api.Group("/")
	{
		protected.Use(required)

		// User (Me)
		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.GetMe)
		}

		// Assessments
		if cfg.AssessmentHandler != nil {
			protected.GET("/assessments", cfg.AssessmentHandler.List)
			protected.GET("/assessments/:id", cfg.AssessmentHandler.Get)
		}
	}

	return r
}
