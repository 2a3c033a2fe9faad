package application

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/sirupsen/logrus"
)

// BaselineTracker records, once per feed, which posts existed when
// monitoring began. Only posts past the baseline trigger actions.
type BaselineTracker struct {
	feeds domain.IFeedRepository
	now   func() time.Time
}

func NewBaselineTracker(feeds domain.IFeedRepository) *BaselineTracker {
	return &BaselineTracker{feeds: feeds, now: time.Now}
}

// Establish stores the baseline for the observed posts. The cutoff is the
// newest publish time seen, or now when nothing dated was observed. A second
// call for the same feed fails with ErrBaselineAlreadyEstablished.
func (t *BaselineTracker) Establish(ctx context.Context, feedID string, observed []domain.Post) (domain.Baseline, error) {
	now := t.now().UTC()
	baseline := domain.Baseline{
		FeedID:        feedID,
		PostIDs:       make([]string, 0, len(observed)),
		EstablishedAt: now,
	}

	var newest *time.Time
	for _, p := range observed {
		baseline.PostIDs = append(baseline.PostIDs, p.ID)
		if p.PublishedAt != nil && (newest == nil || p.PublishedAt.After(*newest)) {
			newest = p.PublishedAt
		}
	}
	if newest != nil {
		baseline.Cutoff = newest.UTC()
	} else {
		baseline.Cutoff = now
	}

	if err := t.feeds.CreateBaseline(ctx, baseline); err != nil {
		return domain.Baseline{}, err
	}

	logrus.WithFields(logrus.Fields{
		"feed_id": feedID,
		"cutoff":  baseline.Cutoff.Format(time.RFC3339),
		"posts":   len(baseline.PostIDs),
	}).Info("[BASELINE] Established")
	return baseline, nil
}

// Get returns the stored baseline; ok is false when none exists yet.
func (t *BaselineTracker) Get(ctx context.Context, feedID string) (domain.Baseline, bool, error) {
	baseline, err := t.feeds.GetBaseline(ctx, feedID)
	if errors.Is(err, domain.ErrBaselineNotFound) {
		return domain.Baseline{}, false, nil
	}
	if err != nil {
		return domain.Baseline{}, false, err
	}
	return baseline, true, nil
}

// Reset drops the baseline and puts the feed back to pending, so the next
// cycle records a fresh one instead of dispatching.
func (t *BaselineTracker) Reset(ctx context.Context, feedID string) error {
	if err := t.feeds.DeleteBaseline(ctx, feedID); err != nil {
		return err
	}
	if err := t.feeds.SetStatus(ctx, feedID, domain.FeedStatusPending); err != nil {
		return err
	}
	logrus.WithField("feed_id", feedID).Info("[BASELINE] Reset")
	return nil
}

// IsPastBaseline reports whether post is new relative to baseline: its id
// was not observed at establishment and it is either newer than the cutoff
// or undated.
func IsPastBaseline(baseline domain.Baseline, post domain.Post) bool {
	if baseline.Contains(post.ID) {
		return false
	}
	if post.PublishedAt == nil {
		return true
	}
	return post.PublishedAt.After(baseline.Cutoff)
}
