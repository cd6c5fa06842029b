package services

import (
	"context"
	"strings"
	"time"

	types "github.com/yungbote/bloomquiz-backend/internal/domain"
	"github.com/yungbote/bloomquiz-backend/internal/modules/generation"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/platform/vectorstore"
)

type GenerationRequest struct {
	Query          string
	CollectionName string
	// Requirements is a quota string such as "3 remember, 1 apply"; empty
	// selects the default mix.
	Requirements string
	TopK         int
}

type GenerationService interface {
	Submit(ctx context.Context, ownerUserID *uint, req GenerationRequest) (*types.JobRun, error)
}

type generationService struct {
	log     *logger.Logger
	jobs    JobService
	timeout time.Duration
}

func NewGenerationService(baseLog *logger.Logger, jobs JobService, timeout time.Duration) GenerationService {
	if timeout <= 0 {
		timeout = LongJobTimeout
	}
	return &generationService{
		log:     baseLog.With("service", "GenerationService"),
		jobs:    jobs,
		timeout: timeout,
	}
}

// Submit validates the request up front so a bad quota is rejected before
// anything is queued.
func (s *generationService) Submit(ctx context.Context, ownerUserID *uint, req GenerationRequest) (*types.JobRun, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, invalidInput("query is required")
	}
	collection := strings.TrimSpace(req.CollectionName)
	if err := vectorstore.ValidateCollection(collection); err != nil {
		return nil, invalidInput("collection_name: %v", err)
	}
	quota := generation.DefaultQuota()
	if spec := strings.TrimSpace(req.Requirements); spec != "" {
		q, err := generation.ParseQuota(spec)
		if err != nil {
			return nil, err
		}
		quota = q
	}
	if req.TopK < 0 || req.TopK > 50 {
		return nil, invalidInput("top_k must be between 1 and 50, or 0 for the default")
	}

	payload := map[string]any{
		"query":               query,
		"collection_name":     collection,
		"blooms_requirements": quota.String(),
	}
	if req.TopK > 0 {
		payload["top_k"] = req.TopK
	}
	return s.jobs.Submit(dbctx.Context{Ctx: ctx}, ownerUserID, JobTypeGenerateAssessment, payload, s.timeout)
}
