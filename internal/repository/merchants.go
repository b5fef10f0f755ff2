package repository

import (
	"context"
	"sync"
	"time"

	"github.com/gbhide1993/mina-merchant-webhook/internal/domain"
)

// MerchantDirectory resolves external phone identities to merchant rows,
// creating one on first contact.
type MerchantDirectory interface {
	// Resolve is an idempotent find-or-create. Concurrent calls with the
	// same phone all observe the same row; the unique constraint on phone
	// is the arbiter, never the lookup.
	Resolve(ctx context.Context, phone string) (*domain.Merchant, error)
	GetByID(ctx context.Context, merchantID int64) (*domain.Merchant, error)
}

// MemoryMerchantDirectory is the in-memory directory used for local
// development and tests.
type MemoryMerchantDirectory struct {
	mu      sync.Mutex
	nextID  int64
	byPhone map[string]*domain.Merchant
	byID    map[int64]*domain.Merchant
}

func NewMemoryMerchantDirectory() *MemoryMerchantDirectory {
	return &MemoryMerchantDirectory{
		nextID:  1,
		byPhone: make(map[string]*domain.Merchant),
		byID:    make(map[int64]*domain.Merchant),
	}
}

func (d *MemoryMerchantDirectory) Resolve(_ context.Context, phone string) (*domain.Merchant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if merchant, ok := d.byPhone[phone]; ok {
		clone := *merchant
		return &clone, nil
	}

	merchant := &domain.Merchant{
		ID:        d.nextID,
		Phone:     phone,
		CreatedAt: time.Now().UTC(),
	}
	d.nextID++
	d.byPhone[phone] = merchant
	d.byID[merchant.ID] = merchant

	clone := *merchant
	return &clone, nil
}

func (d *MemoryMerchantDirectory) GetByID(_ context.Context, merchantID int64) (*domain.Merchant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	merchant, ok := d.byID[merchantID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *merchant
	return &clone, nil
}
