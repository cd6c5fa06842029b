package services

import (
	"context"
	"encoding/json"
	"time"

	types "github.com/yungbote/bloomquiz-backend/internal/domain"
	"github.com/yungbote/bloomquiz-backend/internal/domain/jobs"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/realtime"
	"github.com/yungbote/bloomquiz-backend/internal/realtime/bus"
)

type JobNotifier interface {
	JobProgress(job *types.JobRun, stage string, progress int, message string)
	JobFailed(job *types.JobRun, stage string, errorMessage string)
	JobDone(job *types.JobRun)
}

type jobNotifier struct {
	log *logger.Logger
	hub *realtime.Hub
	bus bus.Bus
}

// NewJobNotifier publishes job events on the bus when one is configured, and
// straight to the local hub otherwise. Either argument may be nil.
func NewJobNotifier(baseLog *logger.Logger, hub *realtime.Hub, b bus.Bus) JobNotifier {
	return &jobNotifier{
		log: baseLog.With("service", "JobNotifier"),
		hub: hub,
		bus: b,
	}
}

func (n *jobNotifier) JobProgress(job *types.JobRun, stage string, progress int, message string) {
	n.emit(job, jobs.Event{Kind: jobs.EventProgress, Stage: stage, Progress: progress, Message: message}, realtime.EventJobProgress)
}

func (n *jobNotifier) JobFailed(job *types.JobRun, stage string, errorMessage string) {
	if job == nil {
		return
	}
	n.emit(job, jobs.Event{Kind: jobs.EventFailed, Stage: stage, Progress: job.Progress, Error: errorMessage}, realtime.EventJobFailed)
}

func (n *jobNotifier) JobDone(job *types.JobRun) {
	if job == nil {
		return
	}
	ev := jobs.Event{Kind: jobs.EventDone, Stage: job.Stage, Progress: 100}
	if len(job.Result) > 0 {
		ev.Result = json.RawMessage(job.Result)
	}
	n.emit(job, ev, realtime.EventJobDone)
}

func (n *jobNotifier) emit(job *types.JobRun, ev jobs.Event, name realtime.EventName) {
	if n == nil || job == nil {
		return
	}
	ev.JobID = job.ID
	ev.JobType = job.JobType
	ev.Status = job.Status
	ev.At = time.Now().UTC()
	msg := realtime.Message{Channel: job.ID.String(), Event: name, Data: ev}

	if n.bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := n.bus.Publish(ctx, msg)
		if err == nil {
			return
		}
		n.log.Warn("publish job event failed; delivering locally", "job_id", job.ID, "error", err)
	}
	if n.hub != nil {
		n.hub.Broadcast(msg)
	}
}
