// Package client implements the service-consumer half of the RPC
// fabric: resolving (name, version, region) lookups through a
// registry.Registry, pooling connections per endpoint, and retrying
// across endpoints on connection failure, grounded on the teacher's
// client package.
package client

import (
	"github.com/skynetfabric/skynet"
	"github.com/skynetfabric/skynet/client/loadbalancer"
	"github.com/skynetfabric/skynet/registry"
)

// Client is the shared handle a process uses to obtain ServiceClients
// for every service it talks to. A single Pool (and thus connection
// budget) is shared across every ServiceClient it hands out.
type Client struct {
	registry *registry.Registry
	pool     *Pool
	log      skynet.Logger
}

// NewClient wires a Client to reg, pooling at most maxConnections
// (with idleConnections kept warm) per endpoint.
func NewClient(reg *registry.Registry, serviceName string, idleConnections, maxConnections int, log skynet.Logger) *Client {
	return &Client{
		registry: reg,
		pool:     NewPool(serviceName, idleConnections, maxConnections, log),
		log:      log,
	}
}

// GetService returns a ServiceClient for (name, version, region).
// version may be "*" to resolve to the highest registered version.
// lb, if non-nil, overrides the registry's default locality-ranked
// random choice among same-score endpoints.
func (c *Client) GetService(name, version, region string, lb loadbalancer.LoadBalancer) *ServiceClient {
	return newServiceClient(c, name, version, region, lb)
}

// Close closes every pooled connection this Client owns.
func (c *Client) Close() {
	c.pool.Close()
}
