package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventProgress EventKind = "progress"
	EventFailed   EventKind = "failed"
	EventDone     EventKind = "done"
)

// Event is a job lifecycle notification fanned out to live subscribers.
type Event struct {
	JobID    uuid.UUID       `json:"job_id"`
	JobType  string          `json:"job_type"`
	Kind     EventKind       `json:"kind"`
	Status   string          `json:"status"`
	Stage    string          `json:"stage"`
	Progress int             `json:"progress"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	At       time.Time       `json:"at"`
}

// Terminal reports whether the event closes the job's stream.
func (e Event) Terminal() bool {
	return e.Kind == EventFailed || e.Kind == EventDone
}
