package application

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/sirupsen/logrus"
)

const refreshBatch = 200

// RefreshSummary reports what a RefreshAll pass did.
type RefreshSummary struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`

	// Refreshed holds every record the pass wrote back, changed or not.
	Refreshed []domain.ExecutionRecord `json:"-"`
}

// Recorder persists one ExecutionRecord per dispatch and reconciles pending
// records with the order service.
type Recorder struct {
	executions domain.IExecutionRepository
	orders     domain.OrderClient
	now        func() time.Time
}

func NewRecorder(executions domain.IExecutionRepository, orders domain.OrderClient) *Recorder {
	return &Recorder{executions: executions, orders: orders, now: time.Now}
}

func (r *Recorder) Record(ctx context.Context, rec *domain.ExecutionRecord) error {
	return r.executions.Create(ctx, rec)
}

func (r *Recorder) Get(ctx context.Context, id string) (domain.ExecutionRecord, error) {
	return r.executions.Get(ctx, id)
}

// History returns records newest first together with the total match count.
func (r *Recorder) History(ctx context.Context, filter domain.HistoryFilter) (domain.HistoryPage, error) {
	filter = filter.Normalize()
	items, total, err := r.executions.List(ctx, filter)
	if err != nil {
		return domain.HistoryPage{}, err
	}
	if items == nil {
		items = []domain.ExecutionRecord{}
	}
	return domain.HistoryPage{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Refresh asks the order service for the current state of the record's
// order. Terminal records are returned unchanged, records that never got an
// order id fail with ErrNoOrderID.
func (r *Recorder) Refresh(ctx context.Context, id string) (domain.ExecutionRecord, error) {
	rec, err := r.executions.Get(ctx, id)
	if err != nil {
		return domain.ExecutionRecord{}, err
	}
	if rec.OrderID == "" {
		return rec, domain.ErrNoOrderID
	}
	if rec.Status.Terminal() {
		return rec, nil
	}

	st, err := r.orders.OrderStatus(ctx, rec.OrderID)
	if err != nil {
		return rec, err
	}

	now := r.now().UTC()
	update := domain.StatusUpdate{
		Status:         domain.MapProviderStatus(st.Status),
		ProviderStatus: st.Status,
		Cost:           st.Charge,
		Remains:        st.Remains,
		RefreshedAt:    now,
	}
	if err := r.executions.UpdateStatus(ctx, rec.ID, update); err != nil {
		return rec, err
	}

	rec.Status = update.Status
	rec.ProviderStatus = update.ProviderStatus
	if update.Cost != nil {
		rec.Cost = update.Cost
	}
	if update.Remains != nil {
		rec.Remains = update.Remains
	}
	rec.RefreshedAt = &now

	logrus.WithFields(logrus.Fields{
		"execution_id":    rec.ID,
		"order_id":        rec.OrderID,
		"provider_status": st.Status,
		"status":          rec.Status,
	}).Debug("[RECORDER] Execution refreshed")
	return rec, nil
}

// RefreshAll refreshes every pending record that has an order id. Errors on
// individual records are counted, not returned.
func (r *Recorder) RefreshAll(ctx context.Context) (RefreshSummary, error) {
	var summary RefreshSummary
	pending, err := r.executions.ListRefreshable(ctx, refreshBatch)
	if err != nil {
		return summary, err
	}
	for _, rec := range pending {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Checked++
		updated, err := r.Refresh(ctx, rec.ID)
		if err != nil {
			if !errors.Is(err, domain.ErrNoOrderID) {
				summary.Failed++
				logrus.WithError(err).WithField("execution_id", rec.ID).Warn("[RECORDER] Refresh failed")
			}
			continue
		}
		summary.Refreshed = append(summary.Refreshed, updated)
		if updated.Status != rec.Status {
			summary.Updated++
		}
	}
	if summary.Checked > 0 {
		logrus.WithFields(logrus.Fields{
			"checked": summary.Checked,
			"updated": summary.Updated,
			"failed":  summary.Failed,
		}).Info("[RECORDER] Refresh pass finished")
	}
	return summary, nil
}

func (r *Recorder) Stats(ctx context.Context) (domain.ExecutionStats, error) {
	return r.executions.Stats(ctx)
}
