package application

import (
	"context"
	"fmt"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/AzielCF/az-engage/pkg/workerpool"
	"github.com/dustin/go-humanize"
)

// EngineStatus is the polling overview shown on the dashboard.
type EngineStatus struct {
	Running     bool               `json:"running"`
	Interval    string             `json:"interval"`
	LastTick    *time.Time         `json:"last_tick,omitempty"`
	LastTickAgo string             `json:"last_tick_ago,omitempty"`
	NextTick    *time.Time         `json:"next_tick,omitempty"`
	Pool        workerpool.Stats   `json:"pool"`
	LastHour    domain.PollSummary `json:"last_hour"`
	Summary     string             `json:"summary"`
}

// Status reports the timer, the pool and what happened during the last hour.
func (o *Orchestrator) Status(ctx context.Context) (EngineStatus, error) {
	now := o.now()
	summary, err := o.feeds.PollSummary(ctx, now.Add(-time.Hour))
	if err != nil {
		return EngineStatus{}, err
	}

	text := fmt.Sprintf("%s cycles, %s errors, %s new posts, %s actions in the last hour",
		humanize.Comma(summary.Cycles),
		humanize.Comma(summary.Errors),
		humanize.Comma(summary.NewPosts),
		humanize.Comma(summary.ActionsTriggered),
	)
	st := EngineStatus{
		Running:  o.Running(),
		Interval: o.cfg.PollInterval.String(),
		Pool:     o.PoolStats(),
		LastHour: summary,
		Summary:  text,
	}
	if last := o.LastTick(); !last.IsZero() {
		next := last.Add(o.cfg.PollInterval)
		st.LastTick = &last
		st.LastTickAgo = humanize.RelTime(last, now, "ago", "from now")
		if st.Running {
			st.NextTick = &next
		}
	}
	return st, nil
}
