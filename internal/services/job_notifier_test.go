package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/bloomquiz-backend/internal/domain"
	"github.com/yungbote/bloomquiz-backend/internal/domain/jobs"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
	"github.com/yungbote/bloomquiz-backend/internal/realtime"
)

type brokenBus struct{ published int }

func (b *brokenBus) Publish(ctx context.Context, msg realtime.Message) error {
	b.published++
	return errors.New("broker unavailable")
}

func (b *brokenBus) StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error {
	return nil
}

func (b *brokenBus) Close() error { return nil }

func nextMessage(t *testing.T, c *realtime.Client) realtime.Message {
	t.Helper()
	select {
	case m := <-c.Outbound:
		return m
	case <-time.After(time.Second):
		t.Fatalf("no message delivered")
		return realtime.Message{}
	}
}

func TestJobNotifier_DeliversToJobChannel(t *testing.T) {
	hub := realtime.NewHub(logger.NewNop())
	n := NewJobNotifier(logger.NewNop(), hub, nil)
	job := &types.JobRun{ID: uuid.New(), JobType: JobTypeIngestDocument, Status: types.JobStatusStarted}

	sub := hub.Subscribe(job.ID.String())
	other := hub.Subscribe(uuid.NewString())
	defer hub.Unsubscribe(sub)
	defer hub.Unsubscribe(other)

	n.JobProgress(job, "extract", 40, "Extracting pages")
	m := nextMessage(t, sub)
	ev, ok := m.Data.(jobs.Event)
	if !ok || m.Event != realtime.EventJobProgress || ev.Stage != "extract" || ev.Progress != 40 || ev.JobID != job.ID {
		t.Fatalf("progress message=%+v", m)
	}

	job.Status = types.JobStatusFinished
	job.Result = datatypes.JSON(`{"stored":true}`)
	n.JobDone(job)
	m = nextMessage(t, sub)
	if !m.Terminal() || string(m.Data.(jobs.Event).Result) != `{"stored":true}` {
		t.Fatalf("done message=%+v", m)
	}

	select {
	case m := <-other.Outbound:
		t.Fatalf("unrelated subscriber received %+v", m)
	default:
	}
}

func TestJobNotifier_FallsBackToHubWhenBusFails(t *testing.T) {
	hub := realtime.NewHub(logger.NewNop())
	b := &brokenBus{}
	n := NewJobNotifier(logger.NewNop(), hub, b)
	job := &types.JobRun{ID: uuid.New(), JobType: JobTypeGenerateAssessment, Status: types.JobStatusFailed}

	sub := hub.Subscribe(job.ID.String())
	defer hub.Unsubscribe(sub)

	n.JobFailed(job, "generate", "model unavailable")
	m := nextMessage(t, sub)
	if b.published != 1 || m.Event != realtime.EventJobFailed || m.Data.(jobs.Event).Error != "model unavailable" {
		t.Fatalf("published=%d message=%+v", b.published, m)
	}
}

func TestJobNotifier_NilJobIsIgnored(t *testing.T) {
	n := NewJobNotifier(logger.NewNop(), nil, nil)
	n.JobProgress(nil, "x", 1, "")
	n.JobDone(nil)
}
