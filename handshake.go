package skynet

// ServiceHandshake is the single framed BSON document a server writes
// immediately after accepting a connection (spec.md §4.E/§6).
type ServiceHandshake struct {
	// Name indicates the service name, for validation on the client side.
	Name string

	// Registered indicates the state of this service. If false, the
	// connection is closed immediately and the client should re-resolve
	// the endpoint from the registry.
	Registered bool

	// ClientID is a UUID the client echoes back in every Request on
	// this connection.
	ClientID string
}

// ClientHandshake is sent by the client after receipt of the
// ServiceHandshake, completing the connection setup.
type ClientHandshake struct {
	ClientID string
}
