package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrFeedNotFound      = errors.New("feed not found")
	ErrActionNotFound    = errors.New("action not found")
	ErrExecutionNotFound = errors.New("execution not found")
	ErrTagNotFound       = errors.New("tag not found")

	ErrDuplicateAccount = errors.New("account with this platform and handle already exists")
	ErrDuplicateTag     = errors.New("tag with this name already exists")

	ErrBaselineAlreadyEstablished = errors.New("baseline already established for feed")
	ErrBaselineNotFound           = errors.New("baseline not established for feed")

	// ErrFeedBusy is returned when another worker or instance holds the feed.
	ErrFeedBusy = errors.New("feed is already being polled")
	// ErrQueueFull is returned when a poll request cannot be queued.
	ErrQueueFull = errors.New("poll queue is full")

	ErrNoOrderID      = errors.New("execution has no provider order id")
	ErrNotRetryable   = errors.New("only failed executions can be retried")
	ErrNoTargetLink   = errors.New("no target link could be built")
	ErrEngineDisabled = errors.New("engine is not running")

	ErrProvisioningDisabled = errors.New("feed provisioning is not configured")
)

type ErrorKind string

const (
	Transient ErrorKind = "transient"
	Permanent ErrorKind = "permanent"
)

// FetchError is a feed retrieval failure.
type FetchError struct {
	Kind    ErrorKind
	FeedRef string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.FeedRef, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// OrderError is an order-service failure. Code is the HTTP status when the
// service answered, zero for network failures.
type OrderError struct {
	Kind    ErrorKind
	Code    int
	Message string
	Err     error
}

func (e *OrderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("order service (%s, http %d): %s", e.Kind, e.Code, msg)
	}
	return fmt.Sprintf("order service (%s): %s", e.Kind, msg)
}

func (e *OrderError) Unwrap() error { return e.Err }

// GenError is a comment generation failure. It is always degradable.
type GenError struct {
	Provider string
	Err      error
}

func (e *GenError) Error() string {
	return fmt.Sprintf("comment generation (%s): %v", e.Provider, e.Err)
}

func (e *GenError) Unwrap() error { return e.Err }

// ConfigError is an invalid ActionSpec or account setup. Never retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// IsTransient reports whether err is worth another attempt. Deadline
// expiries count as transient, cancellation does not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var orderErr *OrderError
	if errors.As(err, &orderErr) {
		return orderErr.Kind == Transient
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind == Transient
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// ClassifyError maps an error to the class stored on ExecutionRecord.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassNone
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) || errors.Is(err, ErrNoTargetLink) {
		return ErrorClassConfig
	}
	if errors.Is(err, context.Canceled) {
		return ErrorClassCancelled
	}
	if IsTransient(err) {
		return ErrorClassTransient
	}
	return ErrorClassPermanent
}
