package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gbhide1993/mina-merchant-webhook/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresJobStore struct {
	pool *pgxpool.Pool
}

func NewPostgresJobStore(pool *pgxpool.Pool) *PostgresJobStore {
	return &PostgresJobStore{pool: pool}
}

func (s *PostgresJobStore) Enqueue(ctx context.Context, merchantID int64, gcsPath string) (*domain.TranscriptionJob, error) {
	job := &domain.TranscriptionJob{
		ID:         uuid.NewString(),
		MerchantID: merchantID,
		GCSPath:    gcsPath,
		Status:     domain.JobStatusPending,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO transcription_jobs (id, merchant_id, gcs_path, status)
		VALUES ($1, $2, $3, 'PENDING')
		RETURNING created_at, updated_at
	`, job.ID, job.MerchantID, job.GCSPath).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// ClaimNext hands the oldest PENDING job to exactly one caller. The claim
// is a single statement: the CTE locks the candidate row for the statement's
// transaction, SKIP LOCKED excludes rows held by concurrent claims instead
// of waiting on them, and the UPDATE flips the row to PROCESSING before the
// lock is released. A slow worker sitting on the oldest row therefore never
// stalls claims of the next-oldest.
func (s *PostgresJobStore) ClaimNext(ctx context.Context) (*domain.TranscriptionJob, error) {
	var job domain.TranscriptionJob
	var errText *string

	err := s.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id
			FROM transcription_jobs
			WHERE status = 'PENDING'
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE transcription_jobs j
		SET status = 'PROCESSING', updated_at = NOW()
		FROM next
		WHERE j.id = next.id
		RETURNING j.id, j.merchant_id, j.gcs_path, j.status, j.error, j.created_at, j.updated_at
	`).Scan(&job.ID, &job.MerchantID, &job.GCSPath, &job.Status, &errText, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if errText != nil {
		job.Error = *errText
	}
	return &job, nil
}

func (s *PostgresJobStore) MarkDone(ctx context.Context, jobID string) error {
	command, err := s.pool.Exec(ctx, `
		UPDATE transcription_jobs
		SET status = 'DONE', updated_at = NOW()
		WHERE id = $1 AND status = 'PROCESSING'
	`, jobID)
	if err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	if command.RowsAffected() == 0 {
		return s.transitionError(ctx, jobID)
	}
	return nil
}

func (s *PostgresJobStore) MarkFailed(ctx context.Context, jobID string, errText string) error {
	command, err := s.pool.Exec(ctx, `
		UPDATE transcription_jobs
		SET status = 'FAILED', error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'PROCESSING'
	`, jobID, errText)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	if command.RowsAffected() == 0 {
		return s.transitionError(ctx, jobID)
	}
	return nil
}

func (s *PostgresJobStore) GetJob(ctx context.Context, jobID string) (*domain.TranscriptionJob, error) {
	var job domain.TranscriptionJob
	var errText *string

	err := s.pool.QueryRow(ctx, `
		SELECT id, merchant_id, gcs_path, status, error, created_at, updated_at
		FROM transcription_jobs
		WHERE id = $1
	`, jobID).Scan(&job.ID, &job.MerchantID, &job.GCSPath, &job.Status, &errText, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query job: %w", err)
	}
	if errText != nil {
		job.Error = *errText
	}
	return &job, nil
}

func (s *PostgresJobStore) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	command, err := s.pool.Exec(ctx, `
		UPDATE transcription_jobs
		SET status = 'PENDING', updated_at = NOW()
		WHERE status = 'PROCESSING' AND updated_at < NOW() - make_interval(secs => $1)
	`, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return int(command.RowsAffected()), nil
}

// transitionError distinguishes a missing row from an illegal transition
// after a conditional update matched nothing.
func (s *PostgresJobStore) transitionError(ctx context.Context, jobID string) error {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return err
	}
	return ErrInvalidTransition
}
