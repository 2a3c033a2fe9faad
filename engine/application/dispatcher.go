package application

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/AzielCF/az-engage/pkg/retry"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DispatchRequest describes one action to fire. Feed and Post are nil for
// instant executions. Link overrides the target resolution when set.
type DispatchRequest struct {
	Account domain.Account
	Feed    *domain.Feed
	Post    *domain.Post
	Action  domain.ActionSpec
	Kind    domain.ExecutionKind
	Link    string
}

type DispatcherConfig struct {
	OrderTimeout time.Duration
	Retry        retry.Config
}

// Dispatcher turns an ActionSpec into an order with the growth-service
// provider, retrying transient failures, and always leaves exactly one
// ExecutionRecord behind.
type Dispatcher struct {
	orders   domain.OrderClient
	registry *Registry
	recorder *Recorder
	cfg      DispatcherConfig

	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
}

func NewDispatcher(orders domain.OrderClient, registry *Registry, recorder *Recorder, cfg DispatcherConfig) *Dispatcher {
	if cfg.OrderTimeout <= 0 {
		cfg.OrderTimeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return &Dispatcher{
		orders:   orders,
		registry: registry,
		recorder: recorder,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// ResolveLink picks the order target: explicit override, post URL, then the
// account profile.
func ResolveLink(req DispatchRequest) string {
	if req.Link != "" {
		return req.Link
	}
	if req.Post != nil && req.Post.URL != "" {
		return req.Post.URL
	}
	return req.Account.ProfileLink()
}

// Dispatch places the order and records the outcome. The returned error is
// the dispatch failure, if any; the record is persisted in both cases.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (domain.ExecutionRecord, error) {
	rec := domain.ExecutionRecord{
		ID:          uuid.New().String(),
		AccountID:   req.Account.ID,
		ActionID:    req.Action.ID,
		Kind:        req.Kind,
		Platform:    req.Account.Platform,
		ActionType:  req.Action.Type,
		ServiceID:   req.Action.ServiceID,
		ServiceName: req.Action.ServiceName,
		Status:      domain.StatusPending,
		CreatedAt:   d.now().UTC(),
	}
	if req.Feed != nil {
		rec.FeedID = req.Feed.ID
	}
	if req.Post != nil {
		rec.PostID = req.Post.ID
	}

	log := logrus.WithFields(logrus.Fields{
		"execution_id": rec.ID,
		"account_id":   rec.AccountID,
		"action_id":    rec.ActionID,
		"action_type":  rec.ActionType,
		"service_id":   rec.ServiceID,
		"post_id":      rec.PostID,
		"kind":         rec.Kind,
	})

	if err := req.Action.Validate(); err != nil {
		return d.fail(ctx, log, rec, err)
	}

	rec.TargetURL = ResolveLink(req)
	if rec.TargetURL == "" {
		return d.fail(ctx, log, rec, domain.ErrNoTargetLink)
	}

	d.rngMu.Lock()
	rec.Quantity = req.Action.Params.Quantities().Pick(d.rng)
	d.rngMu.Unlock()

	var comments []string
	if req.Action.Type == domain.ActionComment {
		subject := CommentSubject{Platform: req.Account.Platform, URL: rec.TargetURL}
		if req.Post != nil {
			subject.Title = req.Post.Title
			subject.Text = req.Post.Description
		}
		comments = d.registry.ResolveComments(ctx, req.Action, subject, rec.Quantity)
		if len(comments) > 0 {
			rec.Quantity = len(comments)
			rec.CommentsCount = len(comments)
		}
	}

	order := domain.OrderRequest{
		ServiceID: rec.ServiceID,
		Link:      rec.TargetURL,
		Quantity:  rec.Quantity,
		Comments:  comments,
	}

	retryCfg := d.cfg.Retry
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("[DISPATCH] Transient order failure, retrying")
	}

	var result domain.OrderResult
	attempts, err := retry.Do(ctx, retryCfg, domain.IsTransient, func(attempt int) error {
		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.OrderTimeout)
		defer cancel()

		res, err := d.orders.CreateOrder(attemptCtx, order)
		if err != nil {
			// The per-attempt deadline surfaces as a transient failure even
			// when the client reports it differently.
			if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil && !domain.IsTransient(err) {
				err = &domain.OrderError{Kind: domain.Transient, Message: "order request timed out", Err: err}
			}
			log.WithError(err).WithField("attempt", attempt).Debug("[DISPATCH] Order attempt failed")
			return err
		}
		result = res
		return nil
	})
	rec.Attempts = attempts
	if err != nil {
		return d.fail(ctx, log, rec, err)
	}

	rec.OrderID = result.OrderID
	rec.Cost = result.Cost
	if err := d.recorder.Record(context.WithoutCancel(ctx), &rec); err != nil {
		log.WithError(err).Error("[DISPATCH] Order placed but execution record could not be saved")
		return rec, err
	}

	log.WithFields(logrus.Fields{
		"order_id": rec.OrderID,
		"quantity": rec.Quantity,
		"attempts": attempts,
	}).Info("[DISPATCH] Order placed")
	return rec, nil
}

func (d *Dispatcher) fail(ctx context.Context, log *logrus.Entry, rec domain.ExecutionRecord, cause error) (domain.ExecutionRecord, error) {
	rec.Status = domain.StatusFailed
	rec.ErrorClass = domain.ClassifyError(cause)
	rec.ErrorMessage = cause.Error()

	log.WithError(cause).WithFields(logrus.Fields{
		"error_class": rec.ErrorClass,
		"attempts":    rec.Attempts,
	}).Warn("[DISPATCH] Action failed")

	if err := d.recorder.Record(context.WithoutCancel(ctx), &rec); err != nil {
		log.WithError(err).Error("[DISPATCH] Failed execution could not be recorded")
		return rec, errors.Join(cause, err)
	}
	return rec, cause
}
