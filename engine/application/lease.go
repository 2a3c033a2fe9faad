package application

import (
	"context"
	"sync"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/google/uuid"
)

// MemoryLease is the single-instance FeedLease. Leases expire after their
// TTL so a crashed cycle cannot block a feed forever.
type MemoryLease struct {
	mu     sync.Mutex
	leases map[string]memoryLeaseEntry
	now    func() time.Time
}

type memoryLeaseEntry struct {
	token   string
	expires time.Time
}

func NewMemoryLease() *MemoryLease {
	return &MemoryLease{leases: make(map[string]memoryLeaseEntry), now: time.Now}
}

func (l *MemoryLease) Acquire(_ context.Context, feedID string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.leases[feedID]; ok && now.Before(cur.expires) {
		return "", domain.ErrFeedBusy
	}
	token := uuid.NewString()
	l.leases[feedID] = memoryLeaseEntry{token: token, expires: now.Add(ttl)}
	return token, nil
}

func (l *MemoryLease) Release(_ context.Context, feedID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.leases[feedID]; ok && cur.token == token {
		delete(l.leases, feedID)
	}
	return nil
}
