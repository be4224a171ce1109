package server

import (
	"errors"
	"net/http"

	"github.com/chainguard-dev/clog"
	"github.com/drewdunne/prwatch/internal/fault"
	"github.com/drewdunne/prwatch/internal/pipeline"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
	// Status is the upstream status, if the failure came from an upstream call.
	Status int `json:"upstream_status,omitempty"`
}

// ErrorResponse wraps ErrorBody.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fault.ErrInvalidConfig), errors.Is(err, fault.ErrMissingCredential):
		return http.StatusBadRequest
	case errors.Is(err, fault.ErrNoTicketReference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fault.ErrUpstreamNotFound):
		return http.StatusNotFound
	case errors.Is(err, fault.ErrUpstreamAuth),
		errors.Is(err, fault.ErrUpstreamUnavailable),
		errors.Is(err, fault.ErrModelResponseMalformed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		clog.FromContext(r.Context()).With("error", err).With("path", r.URL.Path).Error("Request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{
		Code:    fault.Code(err),
		Message: err.Error(),
		Stage:   string(pipeline.StageOf(err)),
		Status:  fault.StatusOf(err),
	}})
}

func writeProblem(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}
