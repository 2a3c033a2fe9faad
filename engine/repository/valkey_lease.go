package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/AzielCF/az-engage/infrastructure/valkey"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ValkeyFeedLease shares feed leases between engine instances. The stored
// value is "<owner>:<random>" so a release after expiry cannot delete a
// lease someone else acquired since.
type ValkeyFeedLease struct {
	client *valkey.Client
	owner  string
}

func NewValkeyFeedLease(client *valkey.Client, owner string) *ValkeyFeedLease {
	return &ValkeyFeedLease{client: client, owner: owner}
}

func (l *ValkeyFeedLease) key(feedID string) string {
	return l.client.Key("lease", "feed", feedID)
}

func (l *ValkeyFeedLease) Acquire(ctx context.Context, feedID string, ttl time.Duration) (string, error) {
	token := fmt.Sprintf("%s:%s", l.owner, uuid.NewString())
	ok, err := l.client.AcquireLock(ctx, l.key(feedID), token, ttl)
	if err != nil {
		return "", fmt.Errorf("acquire feed lease: %w", err)
	}
	if !ok {
		return "", domain.ErrFeedBusy
	}
	return token, nil
}

func (l *ValkeyFeedLease) Release(ctx context.Context, feedID, token string) error {
	released, err := l.client.ReleaseLock(ctx, l.key(feedID), token)
	if err != nil {
		return fmt.Errorf("release feed lease: %w", err)
	}
	if !released {
		logrus.WithField("feed_id", feedID).Warn("[LEASE] Lease expired before release")
	}
	return nil
}
