package queue

import (
	"context"

	"github.com/gbhide1993/mina-merchant-webhook/internal/domain"
)

// Producer publishes wake-up signals after an enqueue. Signals are purely
// advisory: the job store stays the source of truth for status, and a lost
// signal only delays pickup until the worker pool's next poll.
type Producer interface {
	Notify(ctx context.Context, signal domain.WakeSignal) error
}

// Consumer delivers wake-up signals to a handler until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.WakeSignal) error) error
}
