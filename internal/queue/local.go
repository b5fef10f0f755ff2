package queue

import (
	"context"
	"log"

	"github.com/gbhide1993/mina-merchant-webhook/internal/domain"
)

// LocalQueue is the in-process fallback used when Redis is not configured.
// Notify never blocks the webhook path: when the buffer is full the signal
// is dropped and the poll loop picks the job up instead.
type LocalQueue struct {
	ch     chan domain.WakeSignal
	logger *log.Logger
}

func NewLocalQueue(bufferSize int, logger *log.Logger) *LocalQueue {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	return &LocalQueue{
		ch:     make(chan domain.WakeSignal, bufferSize),
		logger: logger,
	}
}

func (q *LocalQueue) Notify(_ context.Context, signal domain.WakeSignal) error {
	select {
	case q.ch <- signal:
	default:
		if q.logger != nil {
			q.logger.Printf("local queue full, dropping wake signal job_id=%s", signal.JobID)
		}
	}
	return nil
}

func (q *LocalQueue) Consume(ctx context.Context, handler func(context.Context, domain.WakeSignal) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case signal := <-q.ch:
			if err := handler(ctx, signal); err != nil && q.logger != nil {
				q.logger.Printf("wake signal handler failed job_id=%s err=%v", signal.JobID, err)
			}
		}
	}
}
