package realtime

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
)

func recvMessage(t *testing.T, ch <-chan Message, timeout time.Duration) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for message")
	}
	return Message{}
}

func TestHubOrderingAndResubscribe(t *testing.T) {
	hub := NewHub(logger.NewNop())
	a := hub.Subscribe("job-1")

	hub.Broadcast(Message{Channel: "job-1", Event: EventJobProgress, Data: map[string]any{"seq": 1}})
	hub.Broadcast(Message{Channel: "job-2", Event: EventJobProgress})
	hub.Broadcast(Message{Channel: "job-1", Event: EventJobDone})

	if got := recvMessage(t, a.Outbound, time.Second); got.Event != EventJobProgress {
		t.Fatalf("first event=%s", got.Event)
	}
	if got := recvMessage(t, a.Outbound, time.Second); got.Event != EventJobDone {
		t.Fatalf("second event=%s", got.Event)
	}

	hub.Unsubscribe(a)
	hub.Unsubscribe(a)
	if _, ok := <-a.Outbound; ok {
		t.Fatalf("outbound should be closed")
	}
	if hub.Subscribers("job-1") != 0 {
		t.Fatalf("channel should be empty after unsubscribe")
	}
	hub.Broadcast(Message{Channel: "job-1", Event: EventJobProgress})

	b := hub.Subscribe("job-1")
	hub.Broadcast(Message{Channel: "job-1", Event: EventJobFailed})
	if got := recvMessage(t, b.Outbound, time.Second); got.Event != EventJobFailed {
		t.Fatalf("resubscribed event=%s", got.Event)
	}
}

func TestHubBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(logger.NewNop())
	c := hub.Subscribe("job-1")
	done := make(chan struct{})
	go func() {
		for i := 0; i < outboundBuffer*3; i++ {
			hub.Broadcast(Message{Channel: "job-1", Event: EventJobProgress})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("broadcast blocked on a full client")
	}
	if len(c.Outbound) != outboundBuffer {
		t.Fatalf("buffer len=%d", len(c.Outbound))
	}
}

func TestStreamStopsAfterTerminalEvent(t *testing.T) {
	hub := NewHub(logger.NewNop())
	c := hub.Subscribe("job-9")
	hub.Broadcast(Message{Channel: "job-9", Event: EventJobProgress, Data: map[string]any{"progress": 40}})
	hub.Broadcast(Message{Channel: "job-9", Event: EventJobDone, Data: map[string]any{"progress": 100}})
	hub.Broadcast(Message{Channel: "job-9", Event: EventJobProgress})

	var buf bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := hub.Stream(ctx, &buf, nil, c, time.Hour); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "event: progress\ndata: {\"progress\":40}\n\n") {
		t.Fatalf("missing progress frame:\n%s", out)
	}
	if !strings.HasSuffix(out, "event: done\ndata: {\"progress\":100}\n\n") {
		t.Fatalf("stream should end on done:\n%s", out)
	}
}
