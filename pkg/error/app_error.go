package error

import "net/http"

// GenericError is implemented by every error that the REST layer knows how
// to turn into a response body.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}

// NotFoundError marks lookups of accounts, feeds, actions or executions
// that do not exist (or were soft deleted).
type NotFoundError string

func (err NotFoundError) Error() string {
	return string(err)
}

func (err NotFoundError) ErrCode() string {
	return "NOT_FOUND_ERROR"
}

func (err NotFoundError) StatusCode() int {
	return http.StatusNotFound
}

type ValidationError string

func (err ValidationError) Error() string {
	return string(err)
}

func (err ValidationError) ErrCode() string {
	return "VALIDATION_ERROR"
}

func (err ValidationError) StatusCode() int {
	return http.StatusBadRequest
}

type ConflictError string

func (err ConflictError) Error() string {
	return string(err)
}

func (err ConflictError) ErrCode() string {
	return "CONFLICT_ERROR"
}

func (err ConflictError) StatusCode() int {
	return http.StatusConflict
}

type InternalServerError string

func (err InternalServerError) Error() string {
	return string(err)
}

func (err InternalServerError) ErrCode() string {
	return "INTERNAL_SERVER_ERROR"
}

func (err InternalServerError) StatusCode() int {
	return http.StatusInternalServerError
}

// ServiceUnavailableError is returned when the engine cannot accept more work.
type ServiceUnavailableError string

func (err ServiceUnavailableError) Error() string {
	return string(err)
}

func (err ServiceUnavailableError) ErrCode() string {
	return "SERVICE_UNAVAILABLE"
}

func (err ServiceUnavailableError) StatusCode() int {
	return http.StatusServiceUnavailable
}

// UpstreamError wraps failures reported by the feed host, the order
// provider or the comment generator.
type UpstreamError string

func (err UpstreamError) Error() string {
	return string(err)
}

func (err UpstreamError) ErrCode() string {
	return "UPSTREAM_ERROR"
}

func (err UpstreamError) StatusCode() int {
	return http.StatusBadGateway
}
