package models

import "errors"

// Business-rule violations surfaced to callers as rejected actions.
// Repositories and services wrap these with context via fmt.Errorf("%w: ...")
// so handlers can map kinds to HTTP statuses with errors.Is.
var (
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrRequestClosed    = errors.New("request is closed for claims")
	ErrInvalidCount     = errors.New("invalid slot count")
	ErrAlreadyReviewed  = errors.New("acceptance already reviewed")
	ErrForbidden        = errors.New("forbidden")
	ErrAmbiguousLink    = errors.New("registration matches multiple acceptances")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
)

// ErrorResponse describes an error with an HTTP status code and a reason.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Message    string `json:"reason"`
}

// NewErrorResponse creates a new error with a status code and message.
func NewErrorResponse(statusCode int, message string) *ErrorResponse {
	return &ErrorResponse{
		StatusCode: statusCode,
		Message:    message}
}

func (e *ErrorResponse) Error() string {
	return e.Message
}
