package client

import "errors"

var (
	// ErrTimeout is returned when no bytes arrive from a server within the
	// connection's configured timeout.
	ErrTimeout = errors.New("timeout")
	// ErrNonNumeric mirrors cache.ErrNonNumeric on the wire: incr/decr was
	// attempted against a value that does not parse as an integer.
	ErrNonNumeric = errors.New("cannot increment or decrement non-numeric value")
	// ErrServerProtocol is returned when a server replies with the bare
	// "ERROR" token, meaning it didn't recognize the command at all.
	ErrServerProtocol = errors.New("server returned ERROR")
	// ErrNoServers is returned when a Client has no reachable endpoints to
	// dispatch a request to.
	ErrNoServers = errors.New("no server endpoints available")
)
