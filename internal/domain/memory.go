package domain

import "time"

// MemoryEntry is one append-only ledger row of processed content for a
// merchant. Entries are never updated or deleted.
type MemoryEntry struct {
	ID         int64
	MerchantID int64
	ContactID  *int64
	Source     string
	Content    string
	CreatedAt  time.Time
}

const MemorySourceVoice = "voice"
