package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bloomquiz-backend/internal/domain/jobs"
	"github.com/yungbote/bloomquiz-backend/internal/http/response"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomquiz-backend/internal/services"
)

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(dbctx.Context{Ctx: c.Request.Context()}, c.Param("id"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	body := gin.H{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"status":   job.Status,
		"stage":    job.Stage,
		"progress": job.Progress,
	}
	switch o := jobs.OutcomeOf(job).(type) {
	case jobs.Finished:
		body["result"] = o.Result
	case jobs.Failed:
		body["error"] = o.Error
	}
	response.RespondOK(c, body)
}

// GET /job_status?job_id=
func (h *JobHandler) LegacyStatus(c *gin.Context) {
	outcome, ok := h.poll(c)
	if !ok {
		return
	}
	switch o := outcome.(type) {
	case nil:
		response.RespondOK(c, gin.H{"status": nil})
	case jobs.Finished:
		response.RespondOK(c, gin.H{"status": o.Status(), "result": o.Result})
	case jobs.Failed:
		response.RespondOK(c, gin.H{"status": o.Status(), "error": o.Error})
	default:
		response.RespondOK(c, gin.H{"status": o.Status()})
	}
}

// GET /chunking/status?job_id= reports "chunked" once ingestion has stored
// its chunks.
func (h *JobHandler) ChunkingStatus(c *gin.Context) {
	outcome, ok := h.poll(c)
	if !ok {
		return
	}
	switch o := outcome.(type) {
	case nil:
		response.RespondOK(c, gin.H{"status": nil})
	case jobs.Failed:
		response.RespondOK(c, gin.H{"status": o.Status(), "error": o.Error})
	case jobs.Finished:
		var res struct {
			Stored bool `json:"stored"`
		}
		if len(o.Result) > 0 && json.Unmarshal(o.Result, &res) == nil && res.Stored {
			response.RespondOK(c, gin.H{"status": "chunked", "result": o.Result})
			return
		}
		response.RespondOK(c, gin.H{"status": o.Status(), "result": o.Result})
	default:
		response.RespondOK(c, gin.H{"status": o.Status()})
	}
}

// poll returns a nil outcome for unknown ids; the legacy endpoints answer
// those with {"status": null} rather than 404.
func (h *JobHandler) poll(c *gin.Context) (jobs.Outcome, bool) {
	outcome, err := h.jobs.Poll(dbctx.Context{Ctx: c.Request.Context()}, c.Query("job_id"))
	if errors.Is(err, services.ErrUnknownJob) {
		return nil, true
	}
	if err != nil {
		response.RespondServiceError(c, err)
		return nil, false
	}
	return outcome, true
}
