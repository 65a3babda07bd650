// Package roundrobin implements a loadbalancer.LoadBalancer that
// cycles through candidate endpoints in order instead of the
// registry's default random-within-group choice, grounded on the
// teacher's roundrobin load balancer.
package roundrobin

import (
	"sync"

	"github.com/skynetfabric/skynet/client/loadbalancer"
)

// LoadBalancer advances to the next endpoint on every Choose call,
// wrapping around when it reaches the end of the candidate list.
type LoadBalancer struct {
	mu    sync.Mutex
	index int
}

// New returns a LoadBalancer starting at the first candidate of the
// first Choose call.
func New() *LoadBalancer {
	return &LoadBalancer{index: -1}
}

func (lb *LoadBalancer) Choose(endpoints []string) (string, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if len(endpoints) == 0 {
		return "", loadbalancer.ErrNoInstances
	}

	lb.index = (lb.index + 1) % len(endpoints)
	return endpoints[lb.index], nil
}
