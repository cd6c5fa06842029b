package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/bloomquiz-backend/internal/data/db"
	"github.com/yungbote/bloomquiz-backend/internal/http"
	"github.com/yungbote/bloomquiz-backend/internal/observability"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/platform/pgvector"
	"github.com/yungbote/bloomquiz-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Metrics  *observability.Metrics
	Clients  Clients
	Repos    Repos
	Services Services
	Hub      *realtime.Hub
	Server   *http.Server

	shutdownTracing func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.LogFile != "" {
		fileLog, err := logger.New(cfg.LogMode, logger.WithFileSink(logger.FileSink{
			Path:       cfg.LogFile,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAgeDays: cfg.LogMaxAgeDays,
			Compress:   true,
		}))
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init file logger: %w", err)
		}
		log.Sync()
		log = fileLog
	}

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.Init(log)
	}
	shutdownTracing := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: cfg.OtelServiceName,
		Environment: cfg.OtelEnvironment,
		Endpoint:    cfg.OtelEndpoint,
		Headers:     cfg.OtelHeaders,
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
	})

	theDB, err := openDatabase(log, cfg)
	if err != nil {
		_ = shutdownTracing(ctx)
		log.Sync()
		return nil, err
	}

	hub := realtime.NewHub(log)
	reposet := wireRepos(theDB, log)

	clients, err := wireClients(ctx, log, cfg, theDB)
	if err != nil {
		_ = shutdownTracing(ctx)
		log.Sync()
		return nil, err
	}

	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, hub)
	if err != nil {
		clients.Close()
		_ = shutdownTracing(ctx)
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:             log,
		DB:              theDB,
		Cfg:             cfg,
		Metrics:         metrics,
		Clients:         clients,
		Repos:           reposet,
		Services:        serviceset,
		Hub:             hub,
		shutdownTracing: shutdownTracing,
	}
	if cfg.RunServer {
		handlerset := wireHandlers(log, cfg, theDB, serviceset, hub)
		middleware := wireMiddleware(log, cfg, serviceset)
		a.Server = wireServer(log, cfg, metrics, handlerset, middleware)
	}
	return a, nil
}

func openDatabase(log *logger.Logger, cfg Config) (*gorm.DB, error) {
	theDB, err := db.Open(db.Config{
		Driver:     cfg.DBDriver,
		DSN:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
		MaxOpen:    cfg.DBMaxOpen,
		MaxIdle:    cfg.DBMaxIdle,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	var extra []interface{}
	if VectorProvider(cfg.VectorProvider) == VectorProviderPgvector {
		if err := pgvector.EnsureExtension(theDB); err != nil {
			return nil, err
		}
		extra = append(extra, &pgvector.DocumentChunk{})
	}
	if err := db.AutoMigrateAll(theDB, extra...); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return theDB, nil
}

// Run blocks until ctx is cancelled or the server or worker fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return errors.New("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	if a.Cfg.RunServer && a.Clients.Bus != nil {
		if err := a.Clients.Bus.StartForwarder(gctx, a.Hub.Broadcast); err != nil {
			return fmt.Errorf("start event forwarder: %w", err)
		}
	}
	a.Metrics.StartJobQueueCollector(gctx, a.Log, a.DB, 15*time.Second)

	if a.Server != nil {
		g.Go(func() error {
			return a.Server.Run(gctx, a.Cfg.HTTPAddr)
		})
	}
	if a.Services.JobWorker != nil {
		g.Go(func() error {
			return a.Services.JobWorker.Run(gctx)
		})
	}
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdownTracing(ctx); err != nil && a.Log != nil {
			a.Log.Warn("tracer shutdown failed", "error", err)
		}
		cancel()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
