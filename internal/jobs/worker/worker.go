package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/bloomquiz-backend/internal/data/repos"
	types "github.com/yungbote/bloomquiz-backend/internal/domain"
	"github.com/yungbote/bloomquiz-backend/internal/jobs/runtime"
	"github.com/yungbote/bloomquiz-backend/internal/observability"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/services"
)

type Config struct {
	Concurrency       int
	PollInterval      time.Duration
	SweepInterval     time.Duration
	HeartbeatInterval time.Duration
	// DefaultTimeout applies to rows stored without a timeout.
	DefaultTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 10 * time.Second
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = services.DefaultJobTimeout
	}
	return c
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   services.JobNotifier
	cfg      Config
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, notify services.JobNotifier, cfg Config) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		cfg:      cfg.withDefaults(),
	}
}

// Run polls for queued jobs with cfg.Concurrency loops plus one janitor until
// ctx is cancelled. Jobs in flight are given their own deadline and are not
// interrupted by shutdown of the poll loops.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "job_types", w.registry.Types())
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		g.Go(func() error {
			w.runLoop(gctx, workerID)
			return nil
		})
	}
	g.Go(func() error {
		w.janitorLoop(gctx)
		return nil
	})
	return g.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// drain the queue before waiting for the next tick
			for ctx.Err() == nil {
				ran, err := w.RunOnce(ctx, workerID)
				if err != nil {
					w.log.Warn("ClaimNextQueued failed", "worker_id", workerID, "error", err)
					break
				}
				if !ran {
					break
				}
			}
		}
	}
}

// RunOnce claims and executes at most one job. It reports whether a job was
// claimed.
func (w *Worker) RunOnce(ctx context.Context, workerID int) (bool, error) {
	job, err := w.repo.ClaimNextQueued(dbctx.Context{Ctx: ctx})
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.execute(ctx, workerID, job)
	return true, nil
}

func (w *Worker) execute(parent context.Context, workerID int, job *types.JobRun) {
	start := time.Now()
	timeout := job.Timeout()
	if timeout <= 0 {
		timeout = w.cfg.DefaultTimeout
	}
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	defer cancel()

	jc := runtime.NewContext(jobCtx, w.db, job, w.repo, w.notify)
	jobLog := w.log.With("worker_id", workerID, "job_id", job.ID, "job_type", job.JobType)
	defer func() {
		observability.Current().ObserveJob(job.JobType, job.Status, time.Since(start))
		jobLog.Info("Job ended", "status", job.Status, "stage", job.Stage, "duration_ms", time.Since(start).Milliseconds())
	}()

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		jobLog.Warn("No handler registered for job_type")
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
		return
	}

	stopHeartbeat := w.startHeartbeat(jobCtx, job.ID)
	defer stopHeartbeat()

	runErr := func() error {
		defer func() {
			if r := recover(); r != nil {
				jobLog.Error("Job handler panic", "panic", r)
				jc.Fail("panic", errFromRecover(r))
			}
		}()
		return h.Run(jc)
	}()

	timedOut := errors.Is(jobCtx.Err(), context.DeadlineExceeded)
	switch {
	case jc.Done():
	case timedOut:
		jc.Fail("timeout", fmt.Errorf("job exceeded its timeout of %s", timeout))
	case runErr != nil:
		jc.Fail("run", runErr)
	default:
		jc.Fail("run", errNoOutcome)
	}
}

func (w *Worker) startHeartbeat(ctx context.Context, id uuid.UUID) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(w.cfg.HeartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-t.C:
				if err := w.repo.Heartbeat(dbctx.Context{Ctx: hbCtx}, id); err != nil && hbCtx.Err() == nil {
					w.log.Debug("heartbeat failed", "job_id", id, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (w *Worker) janitorLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx, time.Now()); err != nil {
				w.log.Warn("expired job sweep failed", "error", err)
			}
		}
	}
}

// Sweep fails every started job whose deadline passed before now and tells
// subscribers. It returns how many jobs were failed.
func (w *Worker) Sweep(ctx context.Context, now time.Time) (int, error) {
	ids, err := w.repo.FailExpired(dbctx.Context{Ctx: ctx}, now)
	if len(ids) > 0 {
		rows, gerr := w.repo.GetByIDs(dbctx.Context{Ctx: ctx}, ids)
		if gerr != nil {
			w.log.Warn("load expired jobs failed", "error", gerr)
		}
		for _, job := range rows {
			observability.Current().ObserveJob(job.JobType, job.Status, 0)
			if w.notify != nil {
				w.notify.JobFailed(job, job.Stage, job.Error)
			}
		}
	}
	return len(ids), err
}

var errNoOutcome = errors.New("handler returned without recording an outcome")

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
