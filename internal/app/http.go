package app

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/bloomquiz-backend/internal/http"
	httpH "github.com/yungbote/bloomquiz-backend/internal/http/handlers"
	httpMW "github.com/yungbote/bloomquiz-backend/internal/http/middleware"
	"github.com/yungbote/bloomquiz-backend/internal/observability"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/realtime"
)

const sseHeartbeat = 15 * time.Second

type Middleware struct {
	Auth      *httpMW.AuthMiddleware
	RateLimit *httpMW.IPRateLimiter
}

type Handlers struct {
	Health     *httpH.HealthHandler
	Auth       *httpH.AuthHandler
	User       *httpH.UserHandler
	Assessment *httpH.AssessmentHandler
	Job        *httpH.JobHandler
	Realtime   *httpH.RealtimeHandler
	Document   *httpH.DocumentHandler
	Chat       *httpH.ChatHandler
}

func wireHandlers(log *logger.Logger, cfg Config, db *gorm.DB, services Services, hub *realtime.Hub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(db),
		Auth:       httpH.NewAuthHandler(services.Auth),
		User:       httpH.NewUserHandler(services.User),
		Assessment: httpH.NewAssessmentHandler(services.Assessment),
		Job:        httpH.NewJobHandler(services.Jobs),
		Realtime:   httpH.NewRealtimeHandler(log, hub, services.Jobs, sseHeartbeat),
		Document:   httpH.NewDocumentHandler(services.Documents, cfg.MaxUploadBytes),
		Chat:       httpH.NewChatHandler(services.Generation),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth:      httpMW.NewAuthMiddleware(log, services.Auth),
		RateLimit: httpMW.NewIPRateLimiter(cfg.AuthRateLimitPerMinute, 0),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		TracingEnabled:  cfg.OtelEnabled,
		ServiceName:     cfg.OtelServiceName,
		AuthRateLimiter: middleware.RateLimit,

		AuthHandler:       handlers.Auth,
		AuthMiddleware:    middleware.Auth,
		UserHandler:       handlers.User,
		AssessmentHandler: handlers.Assessment,
		JobHandler:        handlers.Job,
		RealtimeHandler:   handlers.Realtime,
		DocumentHandler:   handlers.Document,
		ChatHandler:       handlers.Chat,

		HealthHandler: handlers.Health,
	})
}
