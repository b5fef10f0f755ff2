package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/gbhide1993/mina-merchant-webhook/internal/domain"
)

type entry struct {
	merchant  domain.Merchant
	createdAt time.Time
	expiresAt time.Time
}

type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// MerchantCache keeps recently resolved phone->merchant rows so repeat
// webhooks skip the directory round trip. Merchants are immutable once
// created, so a TTL only bounds memory, not staleness risk.
type MerchantCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
}

func NewMerchantCache(config Config) *MerchantCache {
	if config.TTL <= 0 {
		config.TTL = 15 * time.Minute
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 2000
	}
	return &MerchantCache{
		entries:    make(map[string]entry),
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
	}
}

func (c *MerchantCache) Get(phone string) (domain.Merchant, bool) {
	c.mu.RLock()
	cached, exists := c.entries[phone]
	c.mu.RUnlock()

	if !exists {
		return domain.Merchant{}, false
	}
	if time.Now().UTC().After(cached.expiresAt) {
		c.mu.Lock()
		delete(c.entries, phone)
		c.mu.Unlock()
		return domain.Merchant{}, false
	}
	return cached.merchant, true
}

func (c *MerchantCache) Set(merchant domain.Merchant) {
	now := time.Now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[merchant.Phone] = entry{
		merchant:  merchant,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	}
}

func (c *MerchantCache) evictOldest() {
	if len(c.entries) == 0 {
		return
	}

	type pair struct {
		key   string
		value entry
	}
	pairs := make([]pair, 0, len(c.entries))
	for key, value := range c.entries {
		pairs = append(pairs, pair{key: key, value: value})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value.createdAt.Before(pairs[j].value.createdAt)
	})
	delete(c.entries, pairs[0].key)
}
