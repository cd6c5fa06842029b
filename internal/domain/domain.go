package domain

import (
	"github.com/yungbote/bloomquiz-backend/internal/domain/assessment"
	"github.com/yungbote/bloomquiz-backend/internal/domain/jobs"
	"github.com/yungbote/bloomquiz-backend/internal/domain/user"
)

type User = user.User

type Assessment = assessment.Assessment

type JobRun = jobs.JobRun
type JobEvent = jobs.Event
type JobOutcome = jobs.Outcome

const (
	JobStatusQueued   = jobs.StatusQueued
	JobStatusStarted  = jobs.StatusStarted
	JobStatusFinished = jobs.StatusFinished
	JobStatusFailed   = jobs.StatusFailed
)
