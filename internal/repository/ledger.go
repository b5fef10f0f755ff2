package repository

import (
	"context"
	"sync"
	"time"

	"github.com/gbhide1993/mina-merchant-webhook/internal/domain"
)

// MemoryLedger is the append-only record of processed content per merchant.
// There is no update or delete path.
type MemoryLedger interface {
	Append(ctx context.Context, entry *domain.MemoryEntry) error
	ListByMerchant(ctx context.Context, merchantID int64, limit int) ([]domain.MemoryEntry, error)
}

type MemoryLedgerStore struct {
	mu      sync.Mutex
	nextID  int64
	entries []domain.MemoryEntry
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{nextID: 1}
}

func (l *MemoryLedgerStore) Append(_ context.Context, entry *domain.MemoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored := *entry
	stored.ID = l.nextID
	stored.CreatedAt = time.Now().UTC()
	l.nextID++
	l.entries = append(l.entries, stored)

	entry.ID = stored.ID
	entry.CreatedAt = stored.CreatedAt
	return nil
}

func (l *MemoryLedgerStore) ListByMerchant(_ context.Context, merchantID int64, limit int) ([]domain.MemoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	items := make([]domain.MemoryEntry, 0, limit)
	// Newest first.
	for i := len(l.entries) - 1; i >= 0 && len(items) < limit; i-- {
		if l.entries[i].MerchantID == merchantID {
			items = append(items, l.entries[i])
		}
	}
	return items, nil
}
