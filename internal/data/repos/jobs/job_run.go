package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/bloomquiz-backend/internal/domain"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
)

type JobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error)
	ClaimNextQueued(dbc dbctx.Context) (*types.JobRun, error)
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowedStatuses []string, updates map[string]interface{}) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	FailExpired(dbc dbctx.Context, now time.Time) ([]uuid.UUID, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func (r *jobRunRepo) Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	if len(jobs) == 0 {
		return []*types.JobRun{}, nil
	}
	for _, j := range jobs {
		if j.ID == uuid.Nil {
			j.ID = uuid.New()
		}
		if j.Status == "" {
			j.Status = types.JobStatusQueued
		}
		if j.Stage == "" {
			j.Stage = types.JobStatusQueued
		}
	}
	if err := dbc.Resolve(r.db).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error) {
	var out []*types.JobRun
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.Resolve(r.db).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimNextQueued moves the oldest queued job to started. Concurrent claimers
// skip rows locked by each other, so a job is handed to exactly one worker.
// Returns nil when nothing is queued.
func (r *jobRunRepo) ClaimNextQueued(dbc dbctx.Context) (*types.JobRun, error) {
	now := time.Now()
	var claimed *types.JobRun
	err := dbc.Resolve(r.db).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", types.JobStatusQueued).
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		res := txx.Model(&types.JobRun{}).
			Where("id = ? AND status = ?", job.ID, types.JobStatusQueued).
			Updates(map[string]interface{}{
				"status":       types.JobStatusStarted,
				"stage":        types.JobStatusStarted,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"started_at":   now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		job.Status = types.JobStatusStarted
		job.Stage = types.JobStatusStarted
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		job.StartedAt = &now
		job.UpdatedAt = now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// UpdateFieldsIfStatus applies updates only while the row is in one of
// allowedStatuses. It reports false when the guard rejected the write.
func (r *jobRunRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	q := dbc.Resolve(r.db).
		Model(&types.JobRun{}).
		Where("id = ?", id)
	if len(allowedStatuses) == 1 {
		q = q.Where("status = ?", allowedStatuses[0])
	} else if len(allowedStatuses) > 1 {
		q = q.Where("status IN ?", allowedStatuses)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return dbc.Resolve(r.db).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, types.JobStatusStarted).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

// FailExpired marks started jobs whose wall-clock budget has elapsed as
// failed and returns their ids.
func (r *jobRunRepo) FailExpired(dbc dbctx.Context, now time.Time) ([]uuid.UUID, error) {
	var running []types.JobRun
	if err := dbc.Resolve(r.db).
		Select("id", "started_at", "timeout_seconds").
		Where("status = ? AND timeout_seconds > 0 AND started_at IS NOT NULL", types.JobStatusStarted).
		Find(&running).Error; err != nil {
		return nil, err
	}

	var expired []uuid.UUID
	for _, j := range running {
		deadline := j.StartedAt.Add(time.Duration(j.TimeoutSeconds) * time.Second)
		if now.Before(deadline) {
			continue
		}
		ok, err := r.UpdateFieldsIfStatus(dbc, j.ID, []string{types.JobStatusStarted}, map[string]interface{}{
			"status":      types.JobStatusFailed,
			"stage":       "timeout",
			"error":       "job exceeded its timeout",
			"finished_at": now,
			"locked_at":   nil,
		})
		if err != nil {
			return expired, err
		}
		if ok {
			expired = append(expired, j.ID)
		}
	}
	if len(expired) > 0 {
		r.log.Warn("expired jobs failed", "count", len(expired))
	}
	return expired, nil
}
