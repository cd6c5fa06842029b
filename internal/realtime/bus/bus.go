package bus

import (
	"context"

	"github.com/yungbote/bloomquiz-backend/internal/realtime"
)

// Bus carries realtime messages between processes so an event raised by a
// worker reaches clients connected to any API instance.
type Bus interface {
	Publish(ctx context.Context, msg realtime.Message) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error
	Close() error
}
