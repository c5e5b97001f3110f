package usecase

import "github.com/cockroachdb/errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrTransport marks failed overview fetches: network errors, non-2xx
	// responses and undecodable bodies.
	ErrTransport = errors.New("ticker transport failure")
	// ErrConnect marks a stream that could not be opened.
	ErrConnect = errors.New("ticker stream connect failure")
	// ErrParse marks a malformed stream frame.
	ErrParse = errors.New("ticker frame parse failure")
	// ErrLookup marks an expected field missing from a well-formed document.
	ErrLookup = errors.New("ticker lookup failure")
)
