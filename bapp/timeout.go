package bapp

import (
	"time"
)

// Timeouts
//
// A bapp server bounds every request twice. The inner bound is the deadline guard installed as a
// global adapter: once BS_REQUEST_DEADLINE passes the client receives a 408 while the handler may
// still be running in the background. The outer bound is the set of http.Server timeouts derived
// here. They leave some headroom after the deadline so the 408 can still be written before the
// server gives up on the connection.

// DefaultDeadlineHeadroom is the time added on top of the request deadline for the server-level
// read and write timeouts.
const DefaultDeadlineHeadroom = 500 * time.Millisecond

// maxReadHeaderTimeout bounds how long a client may take to send the request headers.
const maxReadHeaderTimeout = 5 * time.Second

// minIdleTimeout keeps keep-alive connections open for at least this long.
const minIdleTimeout = 60 * time.Second

// TimeoutConfig holds timeout configuration for the HTTP server.
type TimeoutConfig struct {
	// RequestDeadline is the deadline of the guard that answers slow requests with a 408. Zero
	// disables the guard and the server timeouts.
	RequestDeadline time.Duration

	// Headroom is added to the request deadline for the server timeouts. Defaults to
	// DefaultDeadlineHeadroom.
	Headroom time.Duration
}

// ServerTimeouts returns the http.Server timeout values for the request deadline. A zero deadline
// returns only the header and idle timeouts, leaving reads and writes unbounded.
func (tc TimeoutConfig) ServerTimeouts() (readHeaderTimeout, readTimeout, writeTimeout, idleTimeout time.Duration) {
	if tc.RequestDeadline <= 0 {
		return maxReadHeaderTimeout, 0, 0, minIdleTimeout
	}

	headroom := tc.Headroom
	if headroom <= 0 {
		headroom = DefaultDeadlineHeadroom
	}

	timeout := tc.RequestDeadline + headroom

	readHeaderTimeout = min(tc.RequestDeadline, maxReadHeaderTimeout)
	readTimeout = timeout
	writeTimeout = timeout
	idleTimeout = max(timeout, minIdleTimeout)

	return
}
