package realtime

type EventName string

const (
	EventJobProgress EventName = "progress"
	EventJobFailed   EventName = "failed"
	EventJobDone     EventName = "done"
)

// Message is routed to every client subscribed to Channel. Job events use
// the job id as channel.
type Message struct {
	Channel string    `json:"channel"`
	Event   EventName `json:"event"`
	Data    any       `json:"data,omitempty"`
}

// Terminal reports whether no further messages follow on the channel.
func (m Message) Terminal() bool {
	return m.Event == EventJobFailed || m.Event == EventJobDone
}
