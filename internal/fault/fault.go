// Package fault defines the error taxonomy shared by the adapters, the
// correlation pipeline and the synchronization engine.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kinds. Adapters wrap one of these in an *Error so callers can use errors.Is.
var (
	ErrInvalidConfig          = errors.New("invalid config")
	ErrMissingCredential      = errors.New("missing credential")
	ErrUpstreamAuth           = errors.New("upstream auth error")
	ErrUpstreamNotFound       = errors.New("upstream not found")
	ErrUpstreamUnavailable    = errors.New("upstream unavailable")
	ErrNoTicketReference      = errors.New("no ticket reference")
	ErrModelResponseMalformed = errors.New("model response malformed")
	ErrPersistence            = errors.New("persistence error")

	// ErrTicketNotFound is the issue-tracker flavour of ErrUpstreamNotFound.
	ErrTicketNotFound = &ticketNotFound{}
)

type ticketNotFound struct{}

func (*ticketNotFound) Error() string { return "ticket not found" }

func (*ticketNotFound) Is(target error) bool { return target == ErrUpstreamNotFound }

// Error is a classified failure. Status is the upstream HTTP status, or 0 when
// the request never produced a response.
type Error struct {
	Kind    error
	Service string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Service != "" {
		msg = e.Service + ": " + msg
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New creates an error of the given kind.
func New(kind error, service, message string) *Error {
	return &Error{Kind: kind, Service: service, Message: message}
}

// Wrap classifies err under kind.
func Wrap(kind error, service string, err error) *Error {
	return &Error{Kind: kind, Service: service, Err: err}
}

// FromStatus classifies a non-2xx upstream response.
func FromStatus(service string, status int, message string) *Error {
	var kind error
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = ErrUpstreamAuth
	case http.StatusNotFound:
		kind = ErrUpstreamNotFound
	default:
		kind = ErrUpstreamUnavailable
	}
	return &Error{Kind: kind, Service: service, Status: status, Message: message}
}

// Unavailable classifies a transport failure.
func Unavailable(service string, err error) *Error {
	return &Error{Kind: ErrUpstreamUnavailable, Service: service, Err: err}
}

// Code returns a stable identifier for rendering err to API and CLI users.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrUpstreamAuth):
		return "upstream_auth_error"
	case errors.Is(err, ErrTicketNotFound):
		return "ticket_not_found"
	case errors.Is(err, ErrUpstreamNotFound):
		return "upstream_not_found"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrNoTicketReference):
		return "no_ticket_reference"
	case errors.Is(err, ErrModelResponseMalformed):
		return "model_response_malformed"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	default:
		return "internal_error"
	}
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}
