package registry

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/skynetfabric/skynet"
	"github.com/skynetfabric/skynet/store/cache"
)

// scoreGroup is one {score, endpoints} bucket under a registry key,
// kept in descending-score order (spec.md §4.D "group insertion").
type scoreGroup struct {
	score     int
	endpoints []string
}

// partial accumulates an in-progress instance record as its attribute
// nodes arrive one at a time from the cache (spec.md §4.D "indexed
// state").
type partial struct {
	uuid       string
	addr       string
	name       string
	version    string
	region     string
	registered bool
	published  bool
}

func (p *partial) ready() bool {
	return p.registered && p.addr != "" && p.name != "" && p.version != "" && p.region != ""
}

func (p *partial) instance() Instance {
	host, portStr, _ := net.SplitHostPort(p.addr)
	port, _ := strconv.Atoi(portStr)
	return Instance{
		UUID:       p.uuid,
		Name:       p.name,
		Version:    p.version,
		Region:     p.region,
		IP:         host,
		Port:       port,
		Registered: p.registered,
	}
}

func registryKey(name, version, region string) string {
	return fmt.Sprintf("%s/%s/%s", name, version, region)
}

// Registry is the locality-ordered endpoint lookup. Indexed state and
// the removal-callback table are guarded by mu; this replaces the
// mux goroutine of client/instancemonitor.go's index with a mutex.
type Registry struct {
	c        *cache.Cache
	localIP  net.IP
	log      skynet.Logger
	root     string

	mu          sync.Mutex
	index       map[string][]scoreGroup
	versions    map[string][]int // "name/region" -> sorted integer versions seen
	partials    map[string]*partial
	removedSubs map[string][]func(endpoint string)
}

// Open takes c, a cache the caller has already opened, and starts
// indexing the instance records in it as they arrive.
func Open(ctx context.Context, c *cache.Cache, localIP net.IP, log skynet.Logger) *Registry {
	r := &Registry{
		c:           c,
		localIP:     localIP,
		log:         log,
		index:       make(map[string][]scoreGroup),
		versions:    make(map[string][]int),
		partials:    make(map[string]*partial),
		removedSubs: make(map[string][]func(endpoint string)),
	}

	c.OnCreate("*", r.onAttr)
	c.OnUpdate("*", r.onAttr)
	c.OnDelete("*", r.onDelete)

	return r
}

func splitUUIDAttr(relPath string) (uuid, attr string, ok bool) {
	idx := strings.LastIndex(relPath, "/")
	if idx < 0 {
		return "", "", false
	}
	return relPath[:idx], relPath[idx+1:], true
}

func (r *Registry) onAttr(relPath string, value []byte, version int64) {
	uuid, attr, ok := splitUUIDAttr(relPath)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.partials[uuid]
	if !ok {
		p = &partial{uuid: uuid}
		r.partials[uuid] = p
	}

	switch attr {
	case "addr":
		p.addr = string(value)
	case "name":
		p.name = string(value)
	case "version":
		p.version = string(value)
	case "region":
		p.region = string(value)
	case "registered":
		p.registered = string(value) == "true"
	}

	if p.ready() && !p.published {
		p.published = true
		inst := p.instance()
		r.addServerLocked(inst)
		r.log.Item(ServiceDiscovered{Instance: inst})
	}
}

func (r *Registry) onDelete(relPath string, value []byte, version int64) {
	uuid, attr, ok := splitUUIDAttr(relPath)
	if !ok || attr != "registered" {
		return
	}

	r.mu.Lock()
	p, ok := r.partials[uuid]
	if !ok {
		r.mu.Unlock()
		return
	}
	inst := p.instance()
	delete(r.partials, uuid)
	r.removeServerLocked(inst, true)
	r.mu.Unlock()

	r.log.Item(ServiceRemoved{Instance: inst})
}

// addServerLocked implements spec.md's add_server: locate the score
// group for this endpoint under the key; append if present, else
// insert preserving descending score order. Caller holds r.mu.
func (r *Registry) addServerLocked(inst Instance) {
	key := registryKey(inst.Name, inst.Version, inst.Region)
	endpoint := inst.Endpoint()
	score := Score(net.ParseIP(inst.IP), r.localIP)

	groups := r.index[key]
	for gi := range groups {
		if groups[gi].score == score {
			for _, e := range groups[gi].endpoints {
				if e == endpoint {
					return // idempotent
				}
			}
			groups[gi].endpoints = append(groups[gi].endpoints, endpoint)
			r.index[key] = groups
			r.recordVersion(inst)
			return
		}
	}

	groups = append(groups, scoreGroup{score: score, endpoints: []string{endpoint}})
	sort.Slice(groups, func(i, j int) bool { return groups[i].score > groups[j].score })
	r.index[key] = groups
	r.recordVersion(inst)
}

func (r *Registry) recordVersion(inst Instance) {
	v, err := strconv.Atoi(inst.Version)
	if err != nil {
		return
	}
	vkey := inst.Name + "/" + inst.Region
	vs := r.versions[vkey]
	for _, existing := range vs {
		if existing == v {
			return
		}
	}
	vs = append(vs, v)
	sort.Ints(vs)
	r.versions[vkey] = vs
}

// removeServerLocked implements spec.md's remove_server.
func (r *Registry) removeServerLocked(inst Instance, notify bool) {
	key := registryKey(inst.Name, inst.Version, inst.Region)
	endpoint := inst.Endpoint()

	groups := r.index[key]
	for gi := 0; gi < len(groups); gi++ {
		eps := groups[gi].endpoints
		for ei, e := range eps {
			if e != endpoint {
				continue
			}
			groups[gi].endpoints = append(eps[:ei], eps[ei+1:]...)
			if len(groups[gi].endpoints) == 0 {
				groups = append(groups[:gi], groups[gi+1:]...)
			}
			break
		}
	}
	if len(groups) == 0 {
		delete(r.index, key)
	} else {
		r.index[key] = groups
	}

	if notify {
		for _, cb := range r.removedSubs[endpoint] {
			cb(endpoint)
		}
		delete(r.removedSubs, endpoint)
	}
}

// resolveVersion returns version unchanged, unless it is "*", in
// which case it resolves to the highest integer version observed for
// (name, region).
func (r *Registry) resolveVersion(name, version, region string) (string, error) {
	if version != "*" {
		return version, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	vs := r.versions[name+"/"+region]
	if len(vs) == 0 {
		return "", &skynet.ServiceUnavailable{Name: name, Version: "*", Region: region}
	}
	return strconv.Itoa(vs[len(vs)-1]), nil
}

// ServersFor returns every endpoint for (name, version, region),
// ordered by descending score, within each group in registration
// order. version == "*" resolves to the highest integer version.
func (r *Registry) ServersFor(name, version, region string) ([]string, error) {
	resolved, err := r.resolveVersion(name, version, region)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	groups := r.index[registryKey(name, resolved, region)]
	if len(groups) == 0 {
		return nil, &skynet.ServiceUnavailable{Name: name, Version: resolved, Region: region}
	}
	var out []string
	for _, g := range groups {
		out = append(out, g.endpoints...)
	}
	return out, nil
}

// ServerFor picks uniformly at random among ServersFor's result,
// preferring the highest-scoring group.
func (r *Registry) ServerFor(name, version, region string) (string, error) {
	resolved, err := r.resolveVersion(name, version, region)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	groups := r.index[registryKey(name, resolved, region)]
	r.mu.Unlock()

	if len(groups) == 0 {
		return "", &skynet.ServiceUnavailable{Name: name, Version: resolved, Region: region}
	}
	top := groups[0]
	return top.endpoints[rand.Intn(len(top.endpoints))], nil
}

// OnServerRemoved registers a one-shot callback invoked when endpoint
// is removed from the index. Any deletion of the instance's record
// triggers it, a graceful Deregister included: the notification layer
// does not tell the two apart.
func (r *Registry) OnServerRemoved(endpoint string, cb func(endpoint string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removedSubs[endpoint] = append(r.removedSubs[endpoint], cb)
}

// Register writes the instance record into the store, publishing
// Registered=true last so on_create fires only once all other
// attributes are visible (spec.md §3's "published flag is the last
// attribute written").
func (r *Registry) Register(inst Instance) {
	base := inst.UUID
	r.c.PutEphemeral(path.Join(base, "addr"), []byte(inst.Endpoint()))
	r.c.PutEphemeral(path.Join(base, "name"), []byte(inst.Name))
	r.c.PutEphemeral(path.Join(base, "version"), []byte(inst.Version))
	r.c.PutEphemeral(path.Join(base, "region"), []byte(inst.Region))
	r.c.PutEphemeral(path.Join(base, "registered"), []byte("true"))
}

// Deregister removes every attribute and the UUID node.
func (r *Registry) Deregister(inst Instance) {
	base := inst.UUID
	r.c.Delete(path.Join(base, "registered"), false)
	r.c.Delete(path.Join(base, "addr"), false)
	r.c.Delete(path.Join(base, "name"), false)
	r.c.Delete(path.Join(base, "version"), false)
	r.c.Delete(path.Join(base, "region"), true)
}

// RegisterFromConfig is a convenience wrapper for service.Server,
// deriving the Instance record from a *skynet.ServiceConfig.
func (r *Registry) RegisterFromConfig(cfg *skynet.ServiceConfig) Instance {
	inst := configFromService(cfg)
	r.Register(inst)
	return inst
}
