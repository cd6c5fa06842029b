package jobs

import "encoding/json"

// Outcome is the externally visible state of a job. Exactly one of
// Queued, Started, Finished or Failed.
type Outcome interface {
	Status() string
	isOutcome()
}

type Queued struct{}

type Started struct {
	Stage    string
	Progress int
}

type Finished struct {
	Result json.RawMessage
}

type Failed struct {
	Stage string
	Error string
}

func (Queued) Status() string   { return StatusQueued }
func (Started) Status() string  { return StatusStarted }
func (Finished) Status() string { return StatusFinished }
func (Failed) Status() string   { return StatusFailed }

func (Queued) isOutcome()   {}
func (Started) isOutcome()  {}
func (Finished) isOutcome() {}
func (Failed) isOutcome()   {}

// OutcomeOf maps a stored job row onto its outcome. Unknown statuses are
// reported as queued.
func OutcomeOf(j *JobRun) Outcome {
	if j == nil {
		return nil
	}
	switch j.Status {
	case StatusStarted:
		return Started{Stage: j.Stage, Progress: j.Progress}
	case StatusFinished:
		var raw json.RawMessage
		if len(j.Result) > 0 {
			raw = json.RawMessage(j.Result)
		}
		return Finished{Result: raw}
	case StatusFailed:
		return Failed{Stage: j.Stage, Error: j.Error}
	default:
		return Queued{}
	}
}
