package skynet

import "gopkg.in/mgo.v2/bson"

// RequestHeader is the first framed document a client writes per RPC
// call (spec.md §4.E/§6). ServiceMethod always ends in ".Forward" —
// the "Forward suffix" reflects the (legacy) indirection layer every
// Skynet RPC passes through.
type RequestHeader struct {
	ServiceMethod string
	Seq           int64
}

// Request follows a RequestHeader on the wire.
type Request struct {
	ClientID    string
	In          bson.Binary
	Method      string
	RequestInfo RequestInfoWire
}

// RequestInfoWire is the wire shape of RequestInfo (spec.md §6); the
// net.Addr fields of the in-process RequestInfo are carried as plain
// strings on the wire.
type RequestInfoWire struct {
	RequestID     string
	RetryCount    int
	OriginAddress string
}

// ResponseHeader follows a Request's round trip. An empty Error means
// success; a non-empty Error is a SkynetException.
type ResponseHeader struct {
	ServiceMethod string
	Seq           int64
	Error         string
}

// Response carries the method's return value. A non-empty Error is a
// ServiceException.
type Response struct {
	Out   bson.Binary
	Error string
}

// RegisterRequest/RegisterResponse and UnregisterRequest/
// UnregisterResponse are the admin-surface RPCs (SUPPLEMENTED
// FEATURES §1 in SPEC_FULL.md), grounded on admin.go.
type RegisterRequest struct{}

type RegisterResponse struct{}

type UnregisterRequest struct{}

type UnregisterResponse struct{}

// StopRequest/StopResponse implement the admin "Stop" RPC.
type StopRequest struct {
	WaitForClients bool
}

type StopResponse struct{}
