package gateway

import "errors"

var (
	// ErrExchangeTimeout indicates no matching report arrived before the deadline.
	ErrExchangeTimeout = errors.New("gateway: exchange timed out waiting for report")

	// ErrExchangeBusy indicates another exchange is already waiting for the
	// same report command on this endpoint.
	ErrExchangeBusy = errors.New("gateway: exchange already pending for this command")

	// ErrNoResponseCommand indicates the request command has no report pair,
	// so Exchange cannot correlate a reply for it.
	ErrNoResponseCommand = errors.New("gateway: request command solicits no report")

	// ErrMalformedEnvelope indicates a report message could not be decoded.
	ErrMalformedEnvelope = errors.New("gateway: malformed report envelope")
)
