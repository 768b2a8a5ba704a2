package models

import "errors"

// Error taxonomy. Transient channel errors (socket drops, timeouts,
// rate limits) are retried with backoff and never wrapped in these;
// they only show up as staleness once the availability threshold is
// exceeded. A stale write is not an error at all, the store no-ops.
var (
	// ErrInvalidCommand is returned synchronously when a command fails
	// capability validation. Never retried.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrAuthExpired signals the upstream rejected the current token.
	// Triggers a refresh and reconnect, never fatal.
	ErrAuthExpired = errors.New("auth token expired")

	// ErrUpstreamUnavailable means a collaborator needed for setup
	// (auth, catalog) is down; the core cannot safely operate without it.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrStreamClosed is returned by a realtime stream once closed.
	ErrStreamClosed = errors.New("stream closed")

	// ErrDeviceNotFound is returned for reads of unknown device IDs.
	ErrDeviceNotFound = errors.New("device not found")
)
