package skynet

import (
	"net"
)

// RequestInfo travels with every RPC call, carrying enough context for
// a handler to know who really originated a request versus which
// connection it arrived on (spec.md §6).
type RequestInfo struct {
	// OriginAddress is the reported address of the originating client,
	// typically from outside the service cluster.
	OriginAddress net.Addr
	// ConnectionAddress is the address of the TCP connection making
	// the current RPC request.
	ConnectionAddress net.Addr
	// RequestID is a unique ID for the current RPC request.
	RequestID string
	// RetryCount is how many times this request has been retried.
	RetryCount int
}

// ToWire projects RequestInfo onto its wire representation.
func (r *RequestInfo) ToWire() RequestInfoWire {
	w := RequestInfoWire{RequestID: r.RequestID, RetryCount: r.RetryCount}
	if r.OriginAddress != nil {
		w.OriginAddress = r.OriginAddress.String()
	}
	return w
}

// RequestInfoFromWire reconstructs a RequestInfo from its wire form,
// filling ConnectionAddress from the accepting connection. Servers
// use this to rebuild the RequestInfo a client marshaled with ToWire.
func RequestInfoFromWire(w RequestInfoWire, connAddr net.Addr) *RequestInfo {
	ri := &RequestInfo{
		RequestID:         w.RequestID,
		RetryCount:        w.RetryCount,
		ConnectionAddress: connAddr,
	}
	if w.OriginAddress != "" {
		ri.OriginAddress = stringAddr(w.OriginAddress)
	} else {
		ri.OriginAddress = connAddr
	}
	return ri
}

// stringAddr adapts a plain string into the net.Addr interface for
// addresses that crossed the wire and are no longer live connections.
type stringAddr string

func (s stringAddr) Network() string { return "tcp" }
func (s stringAddr) String() string  { return string(s) }
