package application

import (
	"context"

	"github.com/AzielCF/az-engage/engine/domain"
)

// Ledger is the dedup gate between detection and dispatch. A post is
// claimed at most once per feed, across workers and instances.
type Ledger struct {
	repo domain.ILedgerRepository
}

func NewLedger(repo domain.ILedgerRepository) *Ledger {
	return &Ledger{repo: repo}
}

func (l *Ledger) TryClaim(ctx context.Context, feedID, postID string) (domain.ClaimResult, error) {
	inserted, err := l.repo.Claim(ctx, feedID, postID)
	if err != nil {
		return 0, err
	}
	if inserted {
		return domain.Claimed, nil
	}
	return domain.AlreadyClaimed, nil
}

func (l *Ledger) IsClaimed(ctx context.Context, feedID, postID string) (bool, error) {
	return l.repo.IsClaimed(ctx, feedID, postID)
}
