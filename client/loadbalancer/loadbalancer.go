// Package loadbalancer selects one endpoint out of the candidates
// registry.Registry.ServersFor returns for a service lookup. It is an
// optional override of the registry's own locality-ranked, random-
// within-group choice (registry.Registry.ServerFor) for callers that
// want a specific selection policy instead, grounded on the teacher's
// client/loadbalancer package.
package loadbalancer

import "errors"

// ErrNoInstances is returned by Choose when given an empty candidate
// list.
var ErrNoInstances = errors.New("loadbalancer: no instances")

// LoadBalancer picks one endpoint from endpoints, which ServiceClient
// supplies already ordered by registry.Registry.ServersFor (descending
// locality score, registration order within a score group).
type LoadBalancer interface {
	Choose(endpoints []string) (string, error)
}

// Factory builds a fresh LoadBalancer for one ServiceClient.
type Factory func() LoadBalancer
