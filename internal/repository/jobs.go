package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gbhide1993/mina-merchant-webhook/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidTransition is returned by MarkDone/MarkFailed when the job
	// is not currently PROCESSING. The call never changes state in that
	// case, so a duplicate finalization is loud but harmless.
	ErrInvalidTransition = errors.New("job is not in a state that allows this transition")
)

// JobStore is the coordination point between the webhook receiver
// (producer) and the worker pool (consumers). All worker coordination
// happens through ClaimNext; workers share nothing else.
type JobStore interface {
	// Enqueue inserts a PENDING job and returns it. No other side effects.
	Enqueue(ctx context.Context, merchantID int64, gcsPath string) (*domain.TranscriptionJob, error)

	// ClaimNext atomically selects the oldest PENDING job, moves it to
	// PROCESSING and returns it bound to the caller, or returns (nil, nil)
	// when no PENDING job exists. Jobs locked by an in-flight claim of
	// another worker are skipped, not waited on, so a stalled worker never
	// blocks claims of younger jobs.
	ClaimNext(ctx context.Context) (*domain.TranscriptionJob, error)

	// MarkDone moves PROCESSING -> DONE. ErrInvalidTransition otherwise.
	MarkDone(ctx context.Context, jobID string) error

	// MarkFailed moves PROCESSING -> FAILED and records the error text.
	// FAILED is terminal; recovery is enqueueing a replacement job.
	MarkFailed(ctx context.Context, jobID string, errText string) error

	GetJob(ctx context.Context, jobID string) (*domain.TranscriptionJob, error)

	// ReclaimStale returns jobs stuck in PROCESSING longer than olderThan
	// back to PENDING and reports how many were reclaimed. Only the worker
	// pool's reclaimer calls this, and only when explicitly enabled.
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// MemoryJobStore keeps jobs in creation order in memory. The single
// critical section per claim gives it the same atomicity the Postgres
// store gets from its one-statement claim.
type MemoryJobStore struct {
	mu    sync.Mutex
	order []string
	jobs  map[string]*domain.TranscriptionJob
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]*domain.TranscriptionJob),
	}
}

func (s *MemoryJobStore) Enqueue(_ context.Context, merchantID int64, gcsPath string) (*domain.TranscriptionJob, error) {
	now := time.Now().UTC()
	job := &domain.TranscriptionJob{
		ID:         uuid.NewString(),
		MerchantID: merchantID,
		GCSPath:    gcsPath,
		Status:     domain.JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, job.ID)
	s.jobs[job.ID] = job

	clone := *job
	return &clone, nil
}

func (s *MemoryJobStore) ClaimNext(_ context.Context) (*domain.TranscriptionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		job := s.jobs[id]
		if job.Status != domain.JobStatusPending {
			continue
		}
		job.Status = domain.JobStatusProcessing
		job.UpdatedAt = time.Now().UTC()
		clone := *job
		return &clone, nil
	}
	return nil, nil
}

func (s *MemoryJobStore) MarkDone(_ context.Context, jobID string) error {
	return s.finalize(jobID, domain.JobStatusDone, "")
}

func (s *MemoryJobStore) MarkFailed(_ context.Context, jobID string, errText string) error {
	return s.finalize(jobID, domain.JobStatusFailed, errText)
}

func (s *MemoryJobStore) finalize(jobID string, status domain.JobStatus, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != domain.JobStatusProcessing {
		return ErrInvalidTransition
	}
	job.Status = status
	job.Error = errText
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryJobStore) GetJob(_ context.Context, jobID string) (*domain.TranscriptionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *job
	return &clone, nil
}

// List returns all jobs in creation order. Inspection helper for the
// in-memory store only; not part of JobStore.
func (s *MemoryJobStore) List(_ context.Context) ([]domain.TranscriptionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]domain.TranscriptionJob, 0, len(s.order))
	for _, id := range s.order {
		jobs = append(jobs, *s.jobs[id])
	}
	return jobs, nil
}

func (s *MemoryJobStore) ReclaimStale(_ context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	reclaimed := 0
	for _, id := range s.order {
		job := s.jobs[id]
		if job.Status != domain.JobStatusProcessing || job.UpdatedAt.After(cutoff) {
			continue
		}
		job.Status = domain.JobStatusPending
		job.UpdatedAt = time.Now().UTC()
		reclaimed++
	}
	return reclaimed, nil
}
