package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/bloomquiz-backend/internal/data/repos"
	types "github.com/yungbote/bloomquiz-backend/internal/domain"
	"github.com/yungbote/bloomquiz-backend/internal/domain/jobs"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/ctxutil"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
)

const DefaultJobTimeout = 180 * time.Second

type JobService interface {
	// Submit records a queued job and returns immediately; a worker picks it up.
	Submit(dbc dbctx.Context, ownerUserID *uint, jobType string, payload map[string]any, timeout time.Duration) (*types.JobRun, error)
	// Poll reads the current outcome without waiting. Unknown or malformed ids
	// yield ErrUnknownJob.
	Poll(dbc dbctx.Context, jobID string) (types.JobOutcome, error)
	Get(dbc dbctx.Context, jobID string) (*types.JobRun, error)
}

type jobService struct {
	db             *gorm.DB
	log            *logger.Logger
	repo           repos.JobRunRepo
	defaultTimeout time.Duration
}

func NewJobService(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, defaultTimeout time.Duration) JobService {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultJobTimeout
	}
	return &jobService{
		db:             db,
		log:            baseLog.With("service", "JobService"),
		repo:           repo,
		defaultTimeout: defaultTimeout,
	}
}

func (s *jobService) Submit(dbc dbctx.Context, ownerUserID *uint, jobType string, payload map[string]any, timeout time.Duration) (*types.JobRun, error) {
	jobType = strings.TrimSpace(jobType)
	if jobType == "" {
		return nil, invalidInput("missing job_type")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if td.TraceID != "" {
			if _, ok := payload["trace_id"]; !ok {
				payload["trace_id"] = td.TraceID
			}
		}
		if td.RequestID != "" {
			if _, ok := payload["request_id"]; !ok {
				payload["request_id"] = td.RequestID
			}
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}

	now := time.Now()
	job := &types.JobRun{
		ID:             uuid.New(),
		OwnerUserID:    ownerUserID,
		JobType:        jobType,
		Status:         types.JobStatusQueued,
		Stage:          types.JobStatusQueued,
		Message:        "Queued",
		TimeoutSeconds: int(timeout / time.Second),
		Payload:        datatypes.JSON(b),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.repo.Create(dbc, []*types.JobRun{job}); err != nil {
		s.log.Error("enqueue failed", "job_type", jobType, "error", err)
		return nil, &EnqueueError{JobType: jobType, Err: err}
	}
	s.log.Info("job queued", "job_id", job.ID, "job_type", jobType, "timeout_seconds", job.TimeoutSeconds)
	return job, nil
}

func (s *jobService) Get(dbc dbctx.Context, jobID string) (*types.JobRun, error) {
	id, err := uuid.Parse(strings.TrimSpace(jobID))
	if err != nil || id == uuid.Nil {
		return nil, ErrUnknownJob
	}
	rows, err := s.repo.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if len(rows) == 0 || rows[0] == nil {
		return nil, ErrUnknownJob
	}
	return rows[0], nil
}

func (s *jobService) Poll(dbc dbctx.Context, jobID string) (types.JobOutcome, error) {
	job, err := s.Get(dbc, jobID)
	if err != nil {
		return nil, err
	}
	return jobs.OutcomeOf(job), nil
}
