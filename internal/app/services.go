package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/bloomquiz-backend/internal/jobs/pipeline/generate_assessment"
	"github.com/yungbote/bloomquiz-backend/internal/jobs/pipeline/ingest_document"
	jobruntime "github.com/yungbote/bloomquiz-backend/internal/jobs/runtime"
	"github.com/yungbote/bloomquiz-backend/internal/jobs/worker"
	"github.com/yungbote/bloomquiz-backend/internal/modules/generation"
	"github.com/yungbote/bloomquiz-backend/internal/modules/ingestion"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/realtime"
	"github.com/yungbote/bloomquiz-backend/internal/services"
)

type Services struct {
	Auth       services.AuthService
	User       services.UserService
	Jobs       services.JobService
	Documents  services.DocumentService
	Generation services.GenerationService
	Assessment services.AssessmentService
	Notifier   services.JobNotifier

	JobRegistry *jobruntime.Registry
	JobWorker   *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, hub *realtime.Hub) (Services, error) {
	log.Info("Wiring services...")

	notifier := services.NewJobNotifier(log, hub, clients.Bus)
	jobs := services.NewJobService(db, log, repos.JobRun, cfg.JobTimeout)

	out := Services{
		Auth: services.NewAuthService(db, log, repos.User, services.NewLogResetSender(log), services.AuthConfig{
			SecretKey:  cfg.JWTSecretKey,
			AccessTTL:  cfg.AccessTokenTTL,
			ResetTTL:   cfg.ResetTokenTTL,
			BcryptCost: cfg.BcryptCost,
		}),
		User: services.NewUserService(db, log, repos.User),
		Jobs: jobs,
		Documents: services.NewDocumentService(log, clients.Store, jobs, services.DocumentConfig{
			AllowLocalPaths: cfg.IngestAllowLocalPaths,
			JobTimeout:      cfg.JobTimeout,
		}),
		Generation: services.NewGenerationService(log, jobs, cfg.JobTimeout),
		Assessment: services.NewAssessmentService(log, repos.Assessment),
		Notifier:   notifier,
	}

	registry, err := wireJobRegistry(log, cfg, repos, clients)
	if err != nil {
		return Services{}, err
	}
	out.JobRegistry = registry
	if cfg.RunWorker {
		out.JobWorker = worker.NewWorker(db, log, repos.JobRun, registry, notifier, worker.Config{
			Concurrency:       cfg.WorkerConcurrency,
			PollInterval:      cfg.WorkerPollInterval,
			SweepInterval:     cfg.WorkerSweepInterval,
			HeartbeatInterval: cfg.WorkerHeartbeatInterval,
			DefaultTimeout:    cfg.JobTimeout,
		})
	}
	return out, nil
}

func wireJobRegistry(log *logger.Logger, cfg Config, repos Repos, clients Clients) (*jobruntime.Registry, error) {
	ingest := ingestion.New(ingestion.UsecasesDeps{
		Log:      log,
		Embedder: clients.Embedder,
		Vectors:  clients.Vectors,
		Config: ingestion.Config{
			ChunkSize:    cfg.IngestChunkSize,
			ChunkOverlap: cfg.IngestChunkOverlap,
			EmbedBatch:   cfg.IngestEmbedBatch,
			Parallelism:  cfg.IngestParallelism,
		},
	})
	generate := generation.New(generation.UsecasesDeps{
		Log:         log,
		Embedder:    clients.Embedder,
		Vectors:     clients.Vectors,
		LLM:         clients.LLM,
		DefaultTopK: cfg.GenerateTopK,
	})

	reg := jobruntime.NewRegistry()
	for _, h := range []jobruntime.Handler{
		ingest_document.New(log, clients.Store, ingest),
		generate_assessment.New(log, repos.Assessment, generate),
	} {
		if err := reg.Register(h); err != nil {
			return nil, fmt.Errorf("register job handler %s: %w", h.Type(), err)
		}
	}
	return reg, nil
}
