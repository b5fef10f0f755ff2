package domain

import "time"

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusDone       JobStatus = "DONE"
	JobStatusFailed     JobStatus = "FAILED"
)

// TranscriptionJob is one unit of asynchronous voice-note processing.
//
// Lifecycle: created PENDING by the webhook receiver, moved to PROCESSING
// exclusively by a worker's claim, finalized DONE or FAILED exclusively by
// the worker holding the claim. Rows are never deleted; a job is a permanent
// audit record. FAILED is terminal: recovery means enqueueing a new job.
type TranscriptionJob struct {
	ID         string
	MerchantID int64
	GCSPath    string
	Status     JobStatus
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// WakeSignal is the advisory message published after an enqueue so idle
// workers pick the job up without waiting for the next poll tick. The job
// row in the store stays the source of truth; losing a signal is harmless.
type WakeSignal struct {
	JobID       string    `json:"job_id"`
	RequestedAt time.Time `json:"requested_at"`
}
