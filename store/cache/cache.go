// Package cache mirrors a subtree of a store.Store in memory, keeping
// watches re-armed across events and delivering de-duplicated
// subscriber callbacks. Grounded on client/instancemonitor.go's
// mux-goroutine-owns-state pattern (InstanceMonitor.mux/
// monitorInstances) and client.Pool.mux()'s channel shape.
package cache

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/skynetfabric/skynet"
	"github.com/skynetfabric/skynet/store"
)

// KV is one entry of an EachPair stream.
type KV struct {
	Path  string
	Value []byte
}

// Kind identifies which subscriber table a callback belongs to.
type Kind int

const (
	OnCreate Kind = iota
	OnUpdate
	OnDelete
)

// Callback receives the relative path, the value (nil for OnDelete)
// and the stat version at the time of the event.
type Callback func(relPath string, value []byte, version int64)

type subscription struct {
	pattern string
	kind    Kind
	cb      Callback
}

type nodeState struct {
	value    []byte
	version  int64
	children []string
	watching bool
}

// Cache mirrors store.Store under root, keeping one goroutine
// (run) as the sole owner of node and subscriber state. Every public
// method sends a request over a channel and blocks for the reply,
// mirroring client.Pool's addInstanceChan/removeInstanceChan idiom.
type Cache struct {
	s    store.Store
	log  skynet.Logger
	root string

	reqChan   chan req
	closeChan chan chan struct{}

	wg sync.WaitGroup
}

type reqKind int

const (
	reqGet reqKind = iota
	reqPut
	reqPutEphemeral
	reqDelete
	reqEachPair
	reqSubscribe
)

type req struct {
	kind               reqKind
	path               string
	value              []byte
	removeEmptyParents bool
	sub                subscription
	reply              chan replyMsg
}

type replyMsg struct {
	value []byte
	ok    bool
	err   error
	kvs   []KV
}

// Open creates the root if absent, performs the initial depth-first
// snapshot, and starts the owning goroutine.
func Open(ctx context.Context, s store.Store, root string, log skynet.Logger) (*Cache, error) {
	if _, err := s.Get(ctx, root); err == store.ErrNoNode {
		if _, err := s.Create(ctx, root, nil, false); err != nil && err != store.ErrNodeExists {
			return nil, fmt.Errorf("cache: create root %s: %w", root, err)
		}
	}

	c := &Cache{
		s:         s,
		log:       log,
		root:      root,
		reqChan:   make(chan req),
		closeChan: make(chan chan struct{}),
	}

	nodes := make(map[string]*nodeState)
	subs := make(map[Kind][]subscription)

	// bootstrap runs on this goroutine before run() starts so nothing
	// else can observe nodes/subs concurrently (spec.md §5: per-path
	// state is touched by exactly one goroutine at a time).
	if err := c.bootstrap(context.Background(), root, nodes, subs); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.run(nodes, subs)

	return c, nil
}

func (c *Cache) relPath(full string) string {
	rel := strings.TrimPrefix(full, c.root)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		rel = "."
	}
	return rel
}

// bootstrap performs the initial depth-first traversal described in
// spec.md §4.B: read value+watch, fire the create callback for
// non-empty values, then recurse into children.
func (c *Cache) bootstrap(ctx context.Context, p string, nodes map[string]*nodeState, subs map[Kind][]subscription) error {
	node, err := c.s.Get(ctx, p)
	if err != nil && err != store.ErrNoNode {
		return fmt.Errorf("cache: bootstrap get %s: %w", p, err)
	}

	ns := &nodeState{}
	if err == nil {
		ns.value = node.Value
		ns.version = node.Stat.Version
	}

	children, err := c.s.Children(ctx, p)
	if err != nil && err != store.ErrNoNode {
		return fmt.Errorf("cache: bootstrap children %s: %w", p, err)
	}
	ns.children = children
	nodes[p] = ns

	if len(ns.value) > 0 {
		c.fireLocked(subs, OnCreate, c.relPath(p), ns.value, ns.version)
	}

	c.watchLocked(p)

	for _, child := range children {
		childPath := path.Join(p, child)
		if err := c.bootstrap(ctx, childPath, nodes, subs); err != nil {
			return err
		}
	}
	return nil
}

// fireLocked delivers an event to every matching subscription, firing
// exact-path subscriptions before wildcard ("*") ones for the same
// event (spec.md §4.B's de-duplication rule).
func (c *Cache) fireLocked(subs map[Kind][]subscription, kind Kind, relPath string, value []byte, version int64) {
	for _, sub := range subs[kind] {
		if sub.pattern == relPath {
			c.safeCall(sub.cb, relPath, value, version)
		}
	}
	for _, sub := range subs[kind] {
		if sub.pattern == "*" && relPath != sub.pattern {
			c.safeCall(sub.cb, relPath, value, version)
		}
	}
}

func (c *Cache) safeCall(cb Callback, relPath string, value []byte, version int64) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Item(fmt.Errorf("cache: subscriber panic on %s: %v", relPath, r))
		}
	}()
	cb(relPath, value, version)
}

// watchLocked arms a fresh watch on p; the resulting event is
// delivered back into run() via a dedicated goroutine per watch,
// since store.Store.Watch is one-shot.
func (c *Cache) watchLocked(p string) {
	events, err := c.s.Watch(context.Background(), p, false)
	if err != nil {
		c.log.Item(fmt.Errorf("cache: watch %s: %w", p, err))
		return
	}
	go func() {
		ev, ok := <-events
		if !ok {
			return
		}
		c.reqChan <- req{kind: reqSubscribe, path: p, reply: nil, value: eventMarker(ev)}
	}()
}

// eventMarker packs a store.Event into the req.value channel as a
// tiny encoded form so run() can dispatch on it without a second
// channel type; kept local to this file.
func eventMarker(ev store.Event) []byte {
	return []byte(fmt.Sprintf("%d:%s", ev.Kind, ev.Path))
}

func (c *Cache) run(nodes map[string]*nodeState, subs map[Kind][]subscription) {
	defer c.wg.Done()
	for {
		select {
		case r := <-c.reqChan:
			c.handle(r, nodes, subs)
		case done := <-c.closeChan:
			close(done)
			return
		}
	}
}

func (c *Cache) handle(r req, nodes map[string]*nodeState, subs map[Kind][]subscription) {
	switch r.kind {
	case reqGet:
		ns, ok := nodes[r.path]
		if !ok {
			r.reply <- replyMsg{ok: false}
			return
		}
		r.reply <- replyMsg{value: ns.value, ok: true}

	case reqPut:
		c.put(r.path, r.value, nodes, subs)
		r.reply <- replyMsg{ok: true}

	case reqPutEphemeral:
		c.putEphemeral(r.path, r.value, nodes, subs)
		r.reply <- replyMsg{ok: true}

	case reqDelete:
		c.delete(r.path, r.removeEmptyParents, nodes, subs)
		r.reply <- replyMsg{ok: true}

	case reqEachPair:
		var kvs []KV
		prefix := r.path
		for p, ns := range nodes {
			if !strings.HasPrefix(p, prefix) {
				continue
			}
			if len(ns.value) == 0 {
				continue
			}
			kvs = append(kvs, KV{Path: c.relPath(p), Value: ns.value})
		}
		r.reply <- replyMsg{kvs: kvs}

	case reqSubscribe:
		if r.reply == nil {
			// This is a re-armed watch event, encoded in r.value.
			c.handleEvent(string(r.value), r.path, nodes, subs)
			return
		}
		subs[r.sub.kind] = append(subs[r.sub.kind], r.sub)
		r.reply <- replyMsg{ok: true}
	}
}

func (c *Cache) handleEvent(marker string, path string, nodes map[string]*nodeState, subs map[Kind][]subscription) {
	parts := strings.SplitN(marker, ":", 2)
	if len(parts) != 2 {
		return
	}
	var kind int
	fmt.Sscanf(parts[0], "%d", &kind)
	evPath := parts[1]
	if evPath == "" {
		evPath = path
	}

	switch store.EventKind(kind) {
	case store.EventChangedValue:
		c.reReadValue(evPath, nodes, subs)
	case store.EventChangedChildren:
		c.reReadChildren(evPath, nodes, subs)
	case store.EventDeleted:
		delete(nodes, evPath)
		c.fireLocked(subs, OnDelete, c.relPath(evPath), nil, 0)
	case store.EventCreated:
		// Covered by the parent's ChangedChildren; nothing to do.
	case store.EventSessionExpired:
		c.log.Item(skynet.StoreSessionExpired{Backend: "cache"})
		for k := range nodes {
			delete(nodes, k)
		}
		if err := c.bootstrap(context.Background(), c.root, nodes, subs); err != nil {
			c.log.Item(err)
		}
		return
	default:
		c.log.Item(skynet.StoreDisconnected{Backend: "cache"})
	}

	if _, ok := nodes[evPath]; ok {
		c.watchLocked(evPath)
	}
}

func (c *Cache) reReadValue(p string, nodes map[string]*nodeState, subs map[Kind][]subscription) {
	node, err := c.s.Get(context.Background(), p)
	if err != nil {
		c.log.Item(fmt.Errorf("cache: reread value %s: %w", p, err))
		return
	}
	ns, ok := nodes[p]
	if !ok {
		ns = &nodeState{}
		nodes[p] = ns
	}
	ns.value = node.Value
	ns.version = node.Stat.Version
	c.fireLocked(subs, OnUpdate, c.relPath(p), ns.value, ns.version)
}

func (c *Cache) reReadChildren(p string, nodes map[string]*nodeState, subs map[Kind][]subscription) {
	children, err := c.s.Children(context.Background(), p)
	if err != nil {
		c.log.Item(fmt.Errorf("cache: reread children %s: %w", p, err))
		return
	}
	ns, ok := nodes[p]
	if !ok {
		ns = &nodeState{}
		nodes[p] = ns
	}
	old := make(map[string]bool, len(ns.children))
	for _, ch := range ns.children {
		old[ch] = true
	}
	ns.children = children
	for _, ch := range children {
		if old[ch] {
			continue
		}
		childPath := path.Join(p, ch)
		if _, cached := nodes[childPath]; cached {
			continue
		}
		if err := c.bootstrap(context.Background(), childPath, nodes, subs); err != nil {
			c.log.Item(err)
		}
	}
}

func (c *Cache) put(p string, value []byte, nodes map[string]*nodeState, subs map[Kind][]subscription) {
	parent := path.Dir(p)
	if parent != "." && parent != "/" && parent != c.root {
		if _, ok := nodes[parent]; !ok {
			if _, err := c.s.Get(context.Background(), parent); err == store.ErrNoNode {
				c.put(parent, nil, nodes, subs)
			}
		}
	}

	stat, err := c.s.Set(context.Background(), p, value)
	if err != nil {
		c.log.Item(fmt.Errorf("cache: put %s: %w", p, err))
		return
	}

	_, existed := nodes[p]
	nodes[p] = &nodeState{value: value, version: stat.Version}
	c.watchLocked(p)

	if !existed {
		if len(value) > 0 {
			c.fireLocked(subs, OnCreate, c.relPath(p), value, stat.Version)
		}
	} else {
		c.fireLocked(subs, OnUpdate, c.relPath(p), value, stat.Version)
	}
}

// putEphemeral creates p as an ephemeral node (spec.md §3/§4.A), tying
// its lifetime to this Cache's store.Store session. An existing node
// at p is overwritten with a plain Set, matching registry.Register's
// re-registration behavior.
func (c *Cache) putEphemeral(p string, value []byte, nodes map[string]*nodeState, subs map[Kind][]subscription) {
	parent := path.Dir(p)
	if parent != "." && parent != "/" && parent != c.root {
		if _, ok := nodes[parent]; !ok {
			if _, err := c.s.Get(context.Background(), parent); err == store.ErrNoNode {
				c.put(parent, nil, nodes, subs)
			}
		}
	}

	stat, err := c.s.Create(context.Background(), p, value, true)
	if err == store.ErrNodeExists {
		var setErr error
		stat, setErr = c.s.Set(context.Background(), p, value)
		if setErr != nil {
			c.log.Item(fmt.Errorf("cache: put ephemeral %s: %w", p, setErr))
			return
		}
	} else if err != nil {
		c.log.Item(fmt.Errorf("cache: put ephemeral %s: %w", p, err))
		return
	}

	_, existed := nodes[p]
	nodes[p] = &nodeState{value: value, version: stat.Version}
	c.watchLocked(p)

	if !existed {
		if len(value) > 0 {
			c.fireLocked(subs, OnCreate, c.relPath(p), value, stat.Version)
		}
	} else {
		c.fireLocked(subs, OnUpdate, c.relPath(p), value, stat.Version)
	}
}

func (c *Cache) delete(p string, removeEmptyParents bool, nodes map[string]*nodeState, subs map[Kind][]subscription) {
	if err := c.s.Delete(context.Background(), p); err != nil {
		c.log.Item(fmt.Errorf("cache: delete %s: %w", p, err))
		return
	}
	delete(nodes, p)
	c.fireLocked(subs, OnDelete, c.relPath(p), nil, 0)

	if !removeEmptyParents {
		return
	}
	for parent := path.Dir(p); parent != "." && parent != "/" && parent != c.root && strings.HasPrefix(parent, c.root); parent = path.Dir(parent) {
		ns, ok := nodes[parent]
		if !ok || len(ns.value) > 0 {
			return
		}
		// The cached child list can lag behind the store, so ask the
		// store whether the parent is really empty.
		if children, err := c.s.Children(context.Background(), parent); err != nil || len(children) > 0 {
			return
		}
		c.delete(parent, false, nodes, subs)
	}
}

func (c *Cache) call(r req) replyMsg {
	r.reply = make(chan replyMsg, 1)
	c.reqChan <- r
	return <-r.reply
}

// Get performs a single-node read.
func (c *Cache) Get(relPath string) (value []byte, ok bool) {
	reply := c.call(req{kind: reqGet, path: path.Join(c.root, relPath)})
	return reply.value, reply.ok
}

// Put writes value at relPath, creating ancestor directories as needed.
func (c *Cache) Put(relPath string, value []byte) {
	c.call(req{kind: reqPut, path: path.Join(c.root, relPath), value: value})
}

// PutEphemeral writes value at relPath as an ephemeral node: the
// backend removes it automatically when this Cache's store.Store
// session ends (spec.md §3/§4.A), which is how registry.Register
// publishes instance records so a crashed server's record is cleaned
// up without manual deregistration.
func (c *Cache) PutEphemeral(relPath string, value []byte) {
	c.call(req{kind: reqPutEphemeral, path: path.Join(c.root, relPath), value: value})
}

// Delete removes the leaf at relPath, optionally pruning empty
// ancestor directories.
func (c *Cache) Delete(relPath string, removeEmptyParents bool) {
	c.call(req{kind: reqDelete, path: path.Join(c.root, relPath), removeEmptyParents: removeEmptyParents})
}

// EachPair returns a stream of non-empty (relative path, value) pairs
// under subpath. The pairs are collected from an unordered map, so
// their order is not defined (in particular, it is not depth-first). It's the Go substitution for a
// generator: a buffered channel closed once every match has been sent.
func (c *Cache) EachPair(subpath string) <-chan KV {
	reply := c.call(req{kind: reqEachPair, path: path.Join(c.root, subpath)})
	out := make(chan KV, len(reply.kvs))
	for _, kv := range reply.kvs {
		out <- kv
	}
	close(out)
	return out
}

func (c *Cache) on(kind Kind, pattern string, cb Callback) {
	c.call(req{kind: reqSubscribe, sub: subscription{pattern: pattern, kind: kind, cb: cb}})
}

// OnCreate registers cb for nodes becoming non-empty under pattern
// ("*" for every path).
func (c *Cache) OnCreate(pattern string, cb Callback) { c.on(OnCreate, pattern, cb) }

// OnUpdate registers cb for value changes under pattern.
func (c *Cache) OnUpdate(pattern string, cb Callback) { c.on(OnUpdate, pattern, cb) }

// OnDelete registers cb for node removal under pattern.
func (c *Cache) OnDelete(pattern string, cb Callback) { c.on(OnDelete, pattern, cb) }

// Close stops the owning goroutine. It does not close the underlying
// store.Store.
func (c *Cache) Close() error {
	done := make(chan struct{})
	c.closeChan <- done
	<-done
	c.wg.Wait()
	return nil
}
