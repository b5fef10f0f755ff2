package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestResolveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	directory := NewMemoryMerchantDirectory()

	first, err := directory.Resolve(ctx, "+911234567890")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	second, err := directory.Resolve(ctx, "+911234567890")
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("resolve returned different ids %d and %d for the same phone", first.ID, second.ID)
	}

	other, err := directory.Resolve(ctx, "+919999999999")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if other.ID == first.ID {
		t.Fatalf("distinct phones share merchant id %d", first.ID)
	}
}

func TestResolveConcurrentFirstContact(t *testing.T) {
	ctx := context.Background()
	directory := NewMemoryMerchantDirectory()

	const callers = 16
	ids := make(chan int64, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			merchant, err := directory.Resolve(ctx, "+911234567890")
			if err != nil {
				t.Errorf("resolve failed: %v", err)
				return
			}
			ids <- merchant.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		seen[id] = true
	}
	if len(seen) != 1 {
		t.Fatalf("concurrent resolve produced %d distinct merchants, want 1", len(seen))
	}
}

func TestGetByID(t *testing.T) {
	ctx := context.Background()
	directory := NewMemoryMerchantDirectory()

	created, err := directory.Resolve(ctx, "+911234567890")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	fetched, err := directory.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Phone != "+911234567890" {
		t.Fatalf("phone = %q, want original phone", fetched.Phone)
	}

	if _, err := directory.GetByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID unknown id: got %v, want ErrNotFound", err)
	}
}
