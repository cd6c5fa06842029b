package bus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/realtime"
)

func TestRedisBusPublishReachesForwarder(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := NewRedisBus(ctx, logger.NewNop(), RedisConfig{Addr: srv.Addr(), Channel: "events_test"})
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	got := make(chan realtime.Message, 1)
	if err := b.StartForwarder(ctx, func(m realtime.Message) { got <- m }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}

	want := realtime.Message{Channel: "job-1", Event: realtime.EventJobDone, Data: map[string]any{"stage": "store"}}
	if err := b.Publish(ctx, want); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case m := <-got:
		if m.Channel != "job-1" || m.Event != realtime.EventJobDone {
			t.Fatalf("unexpected message %+v", m)
		}
		data, _ := m.Data.(map[string]any)
		if data["stage"] != "store" {
			t.Fatalf("data not carried: %#v", m.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for forwarded message")
	}
}

func TestNewRedisBusRejectsMissingAddr(t *testing.T) {
	if _, err := NewRedisBus(context.Background(), logger.NewNop(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestNewRedisBusFailsWhenUnreachable(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := srv.Addr()
	srv.Close()
	if _, err := NewRedisBus(context.Background(), logger.NewNop(), RedisConfig{Addr: addr}); err == nil {
		t.Fatalf("expected ping failure")
	}
}
