package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gbhide1993/mina-merchant-webhook/internal/domain"
	"github.com/gbhide1993/mina-merchant-webhook/internal/media"
	"github.com/gbhide1993/mina-merchant-webhook/internal/queue"
	"github.com/gbhide1993/mina-merchant-webhook/internal/repository"
	"github.com/gbhide1993/mina-merchant-webhook/internal/transcribe"
)

type PoolConfig struct {
	Workers      int
	PollInterval time.Duration

	// Stale-job reclaim is opt-in: without it a job whose worker crashed
	// mid-processing stays PROCESSING forever.
	ReclaimEnabled  bool
	ReclaimInterval time.Duration
	StaleAfter      time.Duration
}

// Pool runs independent claim loops against the job store. Instances
// coordinate only through the store's claim protocol, so scaling out is
// starting more pools against the same database.
type Pool struct {
	store       repository.JobStore
	relay       media.Relay
	transcriber transcribe.Transcriber
	ledger      repository.MemoryLedger
	consumer    queue.Consumer
	logger      *log.Logger
	cfg         PoolConfig

	wake chan struct{}
}

func NewPool(
	store repository.JobStore,
	relay media.Relay,
	transcriber transcribe.Transcriber,
	ledger repository.MemoryLedger,
	consumer queue.Consumer,
	logger *log.Logger,
	cfg PoolConfig,
) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ReclaimInterval <= 0 {
		cfg.ReclaimInterval = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}

	return &Pool{
		store:       store,
		relay:       relay,
		transcriber: transcriber,
		ledger:      ledger,
		consumer:    consumer,
		logger:      logger,
		cfg:         cfg,
		wake:        make(chan struct{}, 1),
	}
}

// Start blocks until ctx is done.
func (p *Pool) Start(ctx context.Context) {
	if p.consumer != nil {
		go p.pumpWakeSignals(ctx)
	}
	if p.cfg.ReclaimEnabled {
		go p.runReclaimer(ctx)
	}

	done := make(chan struct{})
	for i := 0; i < p.cfg.Workers; i++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			p.run(ctx, id)
		}(i)
	}
	for i := 0; i < p.cfg.Workers; i++ {
		<-done
	}
}

func (p *Pool) run(ctx context.Context, id int) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := p.drain(ctx, id); err != nil && p.logger != nil && ctx.Err() == nil {
			p.logger.Printf("worker=%d claim loop error, backing off: %v", id, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		case <-ticker.C:
		}
	}
}

// drain claims until the PENDING set is empty. A processing failure is
// recorded on the job and never stops the loop.
func (p *Pool) drain(ctx context.Context, id int) error {
	for {
		job, err := p.store.ClaimNext(ctx)
		if err != nil {
			return err
		}
		if job == nil {
			return nil
		}

		if processErr := p.process(ctx, job); processErr != nil {
			if markErr := p.store.MarkFailed(ctx, job.ID, processErr.Error()); markErr != nil && p.logger != nil {
				p.logger.Printf("worker=%d mark failed errored job_id=%s err=%v", id, job.ID, markErr)
			}
			if p.logger != nil {
				p.logger.Printf("worker=%d job failed job_id=%s err=%v", id, job.ID, processErr)
			}
			continue
		}

		if err := p.store.MarkDone(ctx, job.ID); err != nil {
			if p.logger != nil {
				p.logger.Printf("worker=%d mark done errored job_id=%s err=%v", id, job.ID, err)
			}
			continue
		}
		if p.logger != nil {
			p.logger.Printf("worker=%d job done job_id=%s merchant_id=%d", id, job.ID, job.MerchantID)
		}
	}
}

func (p *Pool) process(ctx context.Context, job *domain.TranscriptionJob) error {
	audio, err := p.relay.Fetch(ctx, job.GCSPath)
	if err != nil {
		return fmt.Errorf("fetch media: %w", err)
	}

	text, err := p.transcriber.Transcribe(ctx, audio, job.GCSPath)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	entry := &domain.MemoryEntry{
		MerchantID: job.MerchantID,
		Source:     domain.MemorySourceVoice,
		Content:    text,
	}
	// The ledger write gates MarkDone: a failed append means a FAILED job,
	// never a DONE job without its memory row.
	if err := p.ledger.Append(ctx, entry); err != nil {
		return fmt.Errorf("append merchant memory: %w", err)
	}
	return nil
}

func (p *Pool) pumpWakeSignals(ctx context.Context) {
	for {
		err := p.consumer.Consume(ctx, func(context.Context, domain.WakeSignal) error {
			select {
			case p.wake <- struct{}{}:
			default:
			}
			return nil
		})
		if err == nil || ctx.Err() != nil {
			return
		}
		if p.logger != nil {
			p.logger.Printf("wake consume loop error: %v", err)
		}

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Pool) runReclaimer(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		reclaimed, err := p.store.ReclaimStale(ctx, p.cfg.StaleAfter)
		if err != nil {
			if p.logger != nil && ctx.Err() == nil {
				p.logger.Printf("stale reclaim error: %v", err)
			}
			continue
		}
		if reclaimed > 0 {
			if p.logger != nil {
				p.logger.Printf("reclaimed %d stale processing jobs", reclaimed)
			}
			select {
			case p.wake <- struct{}{}:
			default:
			}
		}
	}
}
