package skynet

import "fmt"

// Error taxonomy for the RPC fabric (spec.md §7). Each sentinel marks
// a distinct propagation policy; see the package doc comments on the
// components that raise them for the retry/surfacing rules.
var (
	// ErrReadTimeout means a framed read exceeded the connection's
	// read_timeout.
	ErrReadTimeout = fmt.Errorf("skynet: read timeout")

	// ErrProtocolError means a framing error, sequence mismatch,
	// malformed handshake, or non-".Forward" servicemethod was seen.
	// The connection that produced it is terminal.
	ErrProtocolError = fmt.Errorf("skynet: protocol error")

	// ErrInvalidService means a class registered at the server does
	// not implement the service contract.
	ErrInvalidService = fmt.Errorf("skynet: invalid service")

	// ErrWritePhaseFailure means a transport error occurred while
	// encoding the request header or body. Nothing has been processed
	// by the peer yet, so the caller may always retry on a fresh
	// connection regardless of idempotency (spec.md §4.E).
	ErrWritePhaseFailure = fmt.Errorf("skynet: write phase failed")
)

// ConnectionFailure means a TCP dial to Addr failed. The dial is made
// once; conn.NewConnection does not retry it. Triggers endpoint
// failover in the client (§4.F).
type ConnectionFailure struct {
	Addr string
	Err  error
}

func (e *ConnectionFailure) Error() string {
	return fmt.Sprintf("skynet: connection failure dialing %s: %v", e.Addr, e.Err)
}

func (e *ConnectionFailure) Unwrap() error { return e.Err }

// IsRefused reports whether the underlying dial failure was
// ECONNREFUSED. ServiceClient does not consult it: it re-selects an
// endpoint after any dial failure.
func (e *ConnectionFailure) IsRefused() bool {
	return isConnRefused(e.Err)
}

// SkynetException wraps a non-empty ResponseHeader.error from a peer.
type SkynetException struct {
	Message string
}

func (e *SkynetException) Error() string { return "skynet: " + e.Message }

// ServiceException wraps a non-empty Response.error from a peer.
type ServiceException struct {
	Message string
}

func (e *ServiceException) Error() string { return "skynet: service error: " + e.Message }

// ServiceUnavailable means the registry had no endpoints for the
// requested (name, version, region).
type ServiceUnavailable struct {
	Name, Version, Region string
}

func (e *ServiceUnavailable) Error() string {
	return fmt.Sprintf("skynet: service %q version %q unavailable in region %q",
		e.Name, e.Version, e.Region)
}
