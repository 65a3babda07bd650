package client

import (
	"errors"

	"github.com/skynetfabric/skynet"
	"github.com/skynetfabric/skynet/client/loadbalancer"
)

// MaxEndpointRetries bounds how many endpoint selections a call will
// try before giving up (a selection may pick an endpoint already tried) (spec.md §4.F: "retry with a newly-selected
// endpoint up to 3 times").
const MaxEndpointRetries = 3

var errTooManyRetries = errors.New("skynet: exhausted endpoint retries")

// ServiceClient is a resolved handle to one (name, version, region)
// service, grounded on the teacher's client/serviceclient.go.
type ServiceClient struct {
	client  *Client
	name    string
	version string
	region  string
	lb      loadbalancer.LoadBalancer
}

func newServiceClient(c *Client, name, version, region string, lb loadbalancer.LoadBalancer) *ServiceClient {
	return &ServiceClient{client: c, name: name, version: version, region: region, lb: lb}
}

// chooseEndpoint resolves one candidate endpoint, using sc.lb if set,
// otherwise deferring to the registry's own locality-ranked choice.
func (sc *ServiceClient) chooseEndpoint() (string, error) {
	if sc.lb == nil {
		return sc.client.registry.ServerFor(sc.name, sc.version, sc.region)
	}

	endpoints, err := sc.client.registry.ServersFor(sc.name, sc.version, sc.region)
	if err != nil {
		return "", err
	}
	return sc.lb.Choose(endpoints)
}

// Send issues fn against the resolved service. Dial failures and
// write-phase transport errors are always retried against a freshly
// selected endpoint, since no bytes reached (or were processed by) the
// peer yet; a read-phase or application-level failure is retried only
// when idempotent is true, since the peer may already have carried out
// the call (spec.md §4.E, §4.F).
func (sc *ServiceClient) Send(ri *skynet.RequestInfo, fn string, in interface{}, out interface{}, idempotent bool) error {
	if ri == nil {
		ri = &skynet.RequestInfo{RequestID: skynet.NewOpaqueID()}
	}

	var lastErr error
	for attempt := 0; attempt < MaxEndpointRetries; attempt++ {
		endpoint, err := sc.chooseEndpoint()
		if err != nil {
			return err
		}
		sc.client.registry.OnServerRemoved(endpoint, sc.client.pool.Evict)

		c, err := sc.client.pool.Acquire(endpoint)
		if err != nil {
			// A bare dial failure never sends a byte to the peer, so
			// failing over to a freshly-selected endpoint is always
			// safe, regardless of idempotency (spec.md §4.F).
			lastErr = err
			sc.client.pool.Evict(endpoint)
			ri.RetryCount++
			continue
		}

		err = c.Send(ri, fn, in, out, idempotent)
		if err == nil {
			sc.client.pool.Release(endpoint, c)
			return nil
		}

		// The connection goes back to the pool either way: the pool
		// drops a closed connection from its count and keeps an open
		// one for reuse.
		lastErr = err
		sc.client.pool.Release(endpoint, c)

		if errors.Is(err, skynet.ErrWritePhaseFailure) {
			// The peer never received (or never finished receiving) the
			// request, so retrying on a fresh connection is always safe
			// (spec.md §4.E).
			ri.RetryCount++
			continue
		}

		if !idempotent {
			return err
		}

		var cf *skynet.ConnectionFailure
		if !errors.As(err, &cf) && !errors.Is(err, skynet.ErrProtocolError) && !errors.Is(err, skynet.ErrReadTimeout) {
			// Application-level error (SkynetException/ServiceException):
			// the connection is fine, retrying elsewhere won't help.
			return err
		}

		ri.RetryCount++
	}

	if lastErr != nil {
		return lastErr
	}
	return errTooManyRetries
}

// Close releases the ServiceClient's share of pooled connections. The
// underlying Pool is shared across ServiceClients from the same
// Client, so this is a no-op today but kept for API symmetry with the
// teacher's servicePool.Close.
func (sc *ServiceClient) Close() {}
