package client

import (
	"sync"
	"time"

	"github.com/skynetfabric/skynet"
	"github.com/skynetfabric/skynet/client/conn"
	"github.com/skynetfabric/skynet/pools"
)

// DialTimeout bounds how long Pool waits to establish a new
// connection before giving up (spec.md §4.E).
const DialTimeout = 5 * time.Second

// resource adapts conn.Connection to pools.Resource.
type resource struct {
	conn.Connection
}

func (r resource) Close()         { r.Connection.Close() }
func (r resource) IsClosed() bool { return r.Connection.IsClosed() }

/*
Pool manages one pools.ResourcePool of conn.Connection per endpoint,
grounded on the teacher's client/pool.go mutex-protected servicePool
map. Unlike the teacher, endpoints are plain "host:port" strings
resolved from registry.Registry rather than skynet.ServiceInfo, since
the registry owns instance metadata and the pool only owns wire
connections.
*/
type Pool struct {
	serviceName        string
	idleConnections    int
	maxConnections     int
	log                skynet.Logger

	mu    sync.Mutex
	pools map[string]*pools.ResourcePool
}

// NewPool returns a Pool dialing serviceName, keeping idleConnections
// idle and maxConnections total per endpoint.
func NewPool(serviceName string, idleConnections, maxConnections int, log skynet.Logger) *Pool {
	return &Pool{
		serviceName:     serviceName,
		idleConnections: idleConnections,
		maxConnections:  maxConnections,
		log:             log,
		pools:           make(map[string]*pools.ResourcePool),
	}
}

func (p *Pool) servicePool(endpoint string) *pools.ResourcePool {
	p.mu.Lock()
	defer p.mu.Unlock()

	sp, ok := p.pools[endpoint]
	if ok {
		return sp
	}

	factory := func() (pools.Resource, error) {
		c, err := conn.NewConnection(p.serviceName, "tcp", endpoint, DialTimeout, p.log)
		if err != nil {
			return nil, err
		}
		return resource{c}, nil
	}

	sp = pools.NewResourcePool(factory, p.idleConnections, p.maxConnections)
	p.pools[endpoint] = sp
	return sp
}

// Acquire returns an idle connection to endpoint or dials a new one.
func (p *Pool) Acquire(endpoint string) (conn.Connection, error) {
	r, err := p.servicePool(endpoint).Acquire()
	if err != nil {
		return nil, err
	}
	return r.(resource).Connection, nil
}

// AcquireTimeout is Acquire bounded by timeout.
func (p *Pool) AcquireTimeout(endpoint string, timeout time.Duration) (conn.Connection, error) {
	r, err := p.servicePool(endpoint).AcquireTimeout(timeout)
	if err != nil {
		return nil, err
	}
	return r.(resource).Connection, nil
}

// Release returns c to its endpoint's idle queue.
func (p *Pool) Release(endpoint string, c conn.Connection) {
	p.servicePool(endpoint).Release(resource{c})
}

// Evict closes and forgets every connection pooled for endpoint,
// called when registry.Registry reports the endpoint removed.
func (p *Pool) Evict(endpoint string) {
	p.mu.Lock()
	sp, ok := p.pools[endpoint]
	if ok {
		delete(p.pools, endpoint)
	}
	p.mu.Unlock()

	if ok {
		sp.Close()
	}
}

// Close closes every pooled connection across every endpoint.
func (p *Pool) Close() {
	p.mu.Lock()
	sps := p.pools
	p.pools = make(map[string]*pools.ResourcePool)
	p.mu.Unlock()

	for _, sp := range sps {
		sp.Close()
	}
}
