package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/bloomquiz-backend/internal/domain"
	"github.com/yungbote/bloomquiz-backend/internal/domain/jobs"
	"github.com/yungbote/bloomquiz-backend/internal/http/response"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/realtime"
	"github.com/yungbote/bloomquiz-backend/internal/services"
)

type RealtimeHandler struct {
	log       *logger.Logger
	hub       *realtime.Hub
	jobs      services.JobService
	heartbeat time.Duration
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.Hub, jobs services.JobService, heartbeat time.Duration) *RealtimeHandler {
	return &RealtimeHandler{
		log:       log.With("handler", "RealtimeHandler"),
		hub:       hub,
		jobs:      jobs,
		heartbeat: heartbeat,
	}
}

// GET /api/jobs/:id/events streams job events as SSE until the job reaches a
// terminal state or the client goes away.
func (h *RealtimeHandler) JobEvents(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	first, err := h.jobs.Get(dbc, c.Param("id"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}

	// subscribe before re-reading so a transition in between is not lost
	client := h.hub.Subscribe(first.ID.String())
	defer h.hub.Unsubscribe(client)
	job, err := h.jobs.Get(dbc, first.ID.String())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	snap := snapshotMessage(job)
	if err := realtime.WriteEvent(c.Writer, snap); err != nil {
		return
	}
	c.Writer.Flush()
	if snap.Terminal() {
		return
	}

	if err := h.hub.Stream(c.Request.Context(), c.Writer, c.Writer.Flush, client, h.heartbeat); err != nil {
		h.log.Debug("job event stream closed", "job_id", job.ID, "error", err)
	}
}

// snapshotMessage renders the stored job as the event a live subscriber
// would have seen last.
func snapshotMessage(job *types.JobRun) realtime.Message {
	ev := jobs.Event{
		JobID:    job.ID,
		JobType:  job.JobType,
		Kind:     jobs.EventProgress,
		Status:   job.Status,
		Stage:    job.Stage,
		Progress: job.Progress,
		Message:  job.Message,
		At:       job.UpdatedAt.UTC(),
	}
	name := realtime.EventJobProgress
	switch job.Status {
	case types.JobStatusFinished:
		ev.Kind, name = jobs.EventDone, realtime.EventJobDone
		if len(job.Result) > 0 {
			ev.Result = json.RawMessage(job.Result)
		}
	case types.JobStatusFailed:
		ev.Kind, name = jobs.EventFailed, realtime.EventJobFailed
		ev.Error = job.Error
	}
	return realtime.Message{Channel: job.ID.String(), Event: name, Data: ev}
}
