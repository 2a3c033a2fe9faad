package application

import (
	"context"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/AzielCF/az-engage/validations"
)

// InstantRunner fires configured actions on operator request, outside of
// feed polling. It is also the way to redo a post whose dispatch failed:
// the ledger never lets the poll cycle dispatch it twice.
type InstantRunner struct {
	accounts   domain.IAccountRepository
	registry   *Registry
	dispatcher *Dispatcher
	recorder   *Recorder
}

func NewInstantRunner(accounts domain.IAccountRepository, registry *Registry, dispatcher *Dispatcher, recorder *Recorder) *InstantRunner {
	return &InstantRunner{accounts: accounts, registry: registry, dispatcher: dispatcher, recorder: recorder}
}

// Execute dispatches the action to req.Link, or to the account profile when
// no link is given. Inactive actions can be executed this way too.
func (r *InstantRunner) Execute(ctx context.Context, req domain.InstantRequest) (domain.ExecutionRecord, error) {
	if err := validations.ValidateInstantRequest(ctx, req); err != nil {
		return domain.ExecutionRecord{}, err
	}
	action, err := r.registry.Get(ctx, req.ActionID)
	if err != nil {
		return domain.ExecutionRecord{}, err
	}
	account, err := r.accounts.GetAccount(ctx, action.AccountID)
	if err != nil {
		return domain.ExecutionRecord{}, err
	}
	return r.dispatcher.Dispatch(ctx, DispatchRequest{
		Account: account,
		Action:  action,
		Kind:    domain.KindInstant,
		Link:    req.Link,
	})
}

// Retry re-dispatches the action of a failed record to the same target.
// The new attempt is its own instant record; the failed one stays as is.
func (r *InstantRunner) Retry(ctx context.Context, recordID string) (domain.ExecutionRecord, error) {
	rec, err := r.recorder.Get(ctx, recordID)
	if err != nil {
		return domain.ExecutionRecord{}, err
	}
	if rec.Status != domain.StatusFailed || rec.ActionID == "" {
		return domain.ExecutionRecord{}, domain.ErrNotRetryable
	}
	return r.Execute(ctx, domain.InstantRequest{ActionID: rec.ActionID, Link: rec.TargetURL})
}
