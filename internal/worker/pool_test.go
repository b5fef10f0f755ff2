package worker

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/gbhide1993/mina-merchant-webhook/internal/domain"
	"github.com/gbhide1993/mina-merchant-webhook/internal/media"
	"github.com/gbhide1993/mina-merchant-webhook/internal/queue"
	"github.com/gbhide1993/mina-merchant-webhook/internal/repository"
	"github.com/gbhide1993/mina-merchant-webhook/internal/transcribe"
)

type failingTranscriber struct{}

func (failingTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return "", errors.New("speech backend down")
}

type failingLedger struct{}

func (failingLedger) Append(context.Context, *domain.MemoryEntry) error {
	return errors.New("ledger insert failed")
}

func (failingLedger) ListByMerchant(context.Context, int64, int) ([]domain.MemoryEntry, error) {
	return nil, errors.New("ledger unavailable")
}

type poolFixture struct {
	pool   *Pool
	store  *repository.MemoryJobStore
	relay  *media.MemoryRelay
	ledger *repository.MemoryLedgerStore
}

func newPoolFixture(
	t *testing.T,
	transcriber transcribe.Transcriber,
	ledger repository.MemoryLedger,
) poolFixture {
	t.Helper()

	logger := log.New(io.Discard, "", 0)
	store := repository.NewMemoryJobStore()
	relay := media.NewMemoryRelay()

	memoryLedger, _ := ledger.(*repository.MemoryLedgerStore)

	pool := NewPool(store, relay, transcriber, ledger, nil, logger, PoolConfig{
		Workers:      1,
		PollInterval: 10 * time.Millisecond,
	})
	return poolFixture{pool: pool, store: store, relay: relay, ledger: memoryLedger}
}

func enqueueRelayedJob(t *testing.T, fixture poolFixture, merchantID int64) *domain.TranscriptionJob {
	t.Helper()

	ref, err := fixture.relay.Upload(context.Background(), "http://x/a.ogg", "audio/ogg", "+911234567890")
	if err != nil {
		t.Fatalf("relay upload failed: %v", err)
	}
	job, err := fixture.store.Enqueue(context.Background(), merchantID, ref)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	return job
}

func TestDrainProcessesJobToDone(t *testing.T) {
	fixture := newPoolFixture(t, transcribe.StaticTranscriber{Text: "do din mein payment aayega"}, repository.NewMemoryLedgerStore())
	job := enqueueRelayedJob(t, fixture, 7)

	if err := fixture.pool.drain(context.Background(), 0); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	stored, err := fixture.store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if stored.Status != domain.JobStatusDone {
		t.Fatalf("status = %s, want DONE", stored.Status)
	}

	entries, err := fixture.ledger.ListByMerchant(context.Background(), 7, 10)
	if err != nil {
		t.Fatalf("ListByMerchant failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ledger has %d entries, want 1", len(entries))
	}
	if entries[0].Content != "do din mein payment aayega" {
		t.Fatalf("ledger content = %q, want transcript", entries[0].Content)
	}
	if entries[0].Source != domain.MemorySourceVoice {
		t.Fatalf("ledger source = %q, want voice", entries[0].Source)
	}
}

func TestDrainMarksFailedOnTranscribeError(t *testing.T) {
	fixture := newPoolFixture(t, failingTranscriber{}, repository.NewMemoryLedgerStore())
	job := enqueueRelayedJob(t, fixture, 1)

	if err := fixture.pool.drain(context.Background(), 0); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	stored, err := fixture.store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if stored.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want FAILED", stored.Status)
	}
	if stored.Error == "" {
		t.Fatal("failed job recorded no error text")
	}

	entries, _ := fixture.ledger.ListByMerchant(context.Background(), 1, 10)
	if len(entries) != 0 {
		t.Fatalf("failed job wrote %d ledger entries", len(entries))
	}
}

func TestDrainMarksFailedOnLedgerAppendError(t *testing.T) {
	fixture := newPoolFixture(t, transcribe.StaticTranscriber{Text: "whatever"}, failingLedger{})
	job := enqueueRelayedJob(t, fixture, 1)

	if err := fixture.pool.drain(context.Background(), 0); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	stored, err := fixture.store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	// A job whose memory write failed must never read as DONE.
	if stored.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want FAILED", stored.Status)
	}
}

func TestDrainContinuesPastFailedJobs(t *testing.T) {
	fixture := newPoolFixture(t, transcribe.StaticTranscriber{Text: "ok"}, repository.NewMemoryLedgerStore())

	bad, err := fixture.store.Enqueue(context.Background(), 1, "voice-notes/missing.ogg")
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	good := enqueueRelayedJob(t, fixture, 1)

	if err := fixture.pool.drain(context.Background(), 0); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	badStored, _ := fixture.store.GetJob(context.Background(), bad.ID)
	goodStored, _ := fixture.store.GetJob(context.Background(), good.ID)
	if badStored.Status != domain.JobStatusFailed {
		t.Fatalf("bad job status = %s, want FAILED", badStored.Status)
	}
	if goodStored.Status != domain.JobStatusDone {
		t.Fatalf("good job status = %s, want DONE", goodStored.Status)
	}
}

func TestPoolWakesOnSignal(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	store := repository.NewMemoryJobStore()
	relay := media.NewMemoryRelay()
	ledger := repository.NewMemoryLedgerStore()
	localQueue := queue.NewLocalQueue(16, logger)

	pool := NewPool(store, relay, transcribe.StaticTranscriber{Text: "ok"}, ledger, localQueue, logger, PoolConfig{
		Workers: 2,
		// Long poll interval so a processed job proves the wake path works.
		PollInterval: time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Start(ctx)

	// Let the workers reach their idle wait before the job arrives.
	time.Sleep(50 * time.Millisecond)

	ref, err := relay.Upload(ctx, "http://x/a.ogg", "audio/ogg", "+911234567890")
	if err != nil {
		t.Fatalf("relay upload failed: %v", err)
	}
	job, err := store.Enqueue(ctx, 1, ref)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := localQueue.Notify(ctx, domain.WakeSignal{JobID: job.ID, RequestedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		stored, err := store.GetJob(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if stored.Status == domain.JobStatusDone {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("job still %s after wake signal", stored.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
