package iiif

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the request-terminal failure modes. All of them
// abort the request; none is retried.
var (
	// ErrUnknownMode is returned for an unrecognized output mode.
	ErrUnknownMode = errors.New("unknown mode")

	// ErrMissingParent is returned when a non-collection resource has no
	// declared parent, so no chain anchor can be established.
	ErrMissingParent = errors.New("resource has no parent collection")

	// ErrUnorderedCollection is returned when a collection anchor emits
	// no next-item fact pointing at one of its own members.
	ErrUnorderedCollection = errors.New("collection has no ordered items")

	// ErrCyclicChain is returned when the next-item relation loops back
	// onto an already visited node.
	ErrCyclicChain = errors.New("cycle in next-item chain")

	// ErrUpstreamFetch is returned when fetching a declared custom
	// manifest fails. Best-effort dimension lookups never produce it.
	ErrUpstreamFetch = errors.New("custom manifest fetch failed")
)

// StatusError carries the HTTP status a failure maps to at the service
// boundary.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string { return e.Err.Error() }

func (e *StatusError) Unwrap() error { return e.Err }

func badRequest(err error, format string, args ...any) error {
	return &StatusError{
		Status: http.StatusBadRequest,
		Err:    fmt.Errorf(format+": %w", append(args, err)...),
	}
}

// StatusOf returns the HTTP status for an error: the embedded status for
// a StatusError, 500 otherwise.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return http.StatusInternalServerError
}
