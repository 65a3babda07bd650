// Package memstore is an in-process store.Store used to exercise
// store/cache, registry, and client against realistic watch/CRUD
// semantics without a live ZooKeeper or Doozer ensemble. It has no
// teacher precedent (the teacher always tested against a real doozerd
// in CI); it exists purely as test plumbing, so it is exempt from the
// otherwise-bare-stdlib justification requirement.
package memstore

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/skynetfabric/skynet/store"
)

type node struct {
	value     []byte
	version   int64
	exists    bool
	ephemeral bool
}

// Store implements store.Store entirely in memory, guarded by a single
// mutex. Watches are one-shot per store.Store's contract.
type Store struct {
	mu       sync.Mutex
	nodes    map[string]*node
	watchers map[string][]chan store.Event
	closed   bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		nodes:    make(map[string]*node),
		watchers: make(map[string][]chan store.Event),
	}
}

func clean(p string) string {
	p = path.Clean("/" + p)
	return p
}

func (s *Store) get(p string) (*node, bool) {
	n, ok := s.nodes[p]
	if !ok || !n.exists {
		return nil, false
	}
	return n, true
}

func (s *Store) Get(ctx context.Context, p string) (store.Node, error) {
	p = clean(p)
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.get(p)
	if !ok {
		return store.Node{}, store.ErrNoNode
	}
	return store.Node{Path: p, Value: n.value, Stat: store.Stat{Version: n.version, Ephemeral: n.ephemeral}}, nil
}

func (s *Store) Children(ctx context.Context, p string) ([]string, error) {
	p = clean(p)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.get(p); !ok && p != "/" {
		return nil, store.ErrNoNode
	}

	prefix := p
	if prefix != "/" {
		prefix += "/"
	}

	seen := make(map[string]bool)
	var children []string
	for cp, n := range s.nodes {
		if !n.exists || cp == p || !strings.HasPrefix(cp, prefix) {
			continue
		}
		rest := strings.TrimPrefix(cp, prefix)
		name := strings.SplitN(rest, "/", 2)[0]
		if !seen[name] {
			seen[name] = true
			children = append(children, name)
		}
	}
	return children, nil
}

func (s *Store) ensureNode(p string) *node {
	n, ok := s.nodes[p]
	if !ok {
		n = &node{}
		s.nodes[p] = n
	}
	return n
}

func (s *Store) Create(ctx context.Context, p string, value []byte, ephemeral bool) (store.Stat, error) {
	p = clean(p)
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.get(p); ok {
		_ = n
		return store.Stat{}, store.ErrNodeExists
	}

	s.createAncestorsLocked(p)
	n := s.ensureNode(p)
	n.value = value
	n.version = 1
	n.exists = true
	n.ephemeral = ephemeral

	s.fireLocked(p, store.EventCreated)
	s.fireLocked(path.Dir(p), store.EventChangedChildren)
	return store.Stat{Version: n.version, Ephemeral: n.ephemeral}, nil
}

func (s *Store) createAncestorsLocked(p string) {
	parent := path.Dir(p)
	if parent == "/" || parent == "." {
		return
	}
	if _, ok := s.get(parent); ok {
		return
	}
	s.createAncestorsLocked(parent)
	n := s.ensureNode(parent)
	n.exists = true
	s.fireLocked(parent, store.EventCreated)
	s.fireLocked(path.Dir(parent), store.EventChangedChildren)
}

func (s *Store) Set(ctx context.Context, p string, value []byte) (store.Stat, error) {
	p = clean(p)
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.get(p)
	if !existed {
		s.createAncestorsLocked(p)
	}

	n := s.ensureNode(p)
	n.value = value
	n.version++
	n.exists = true

	if existed {
		s.fireLocked(p, store.EventChangedValue)
	} else {
		s.fireLocked(p, store.EventCreated)
		s.fireLocked(path.Dir(p), store.EventChangedChildren)
	}
	return store.Stat{Version: n.version}, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, p string, value []byte, expectedVersion int64) (store.Stat, error) {
	p = clean(p)
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.get(p)
	if !ok {
		return store.Stat{}, store.ErrNoNode
	}
	if n.version != expectedVersion {
		return store.Stat{}, store.ErrNoNode
	}
	n.value = value
	n.version++
	s.fireLocked(p, store.EventChangedValue)
	return store.Stat{Version: n.version}, nil
}

func (s *Store) Delete(ctx context.Context, p string) error {
	p = clean(p)
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.get(p); ok {
		n.exists = false
		n.value = nil
	}
	s.fireLocked(p, store.EventDeleted)
	s.fireLocked(path.Dir(p), store.EventChangedChildren)
	return nil
}

func (s *Store) Watch(ctx context.Context, p string, recursive bool) (<-chan store.Event, error) {
	p = clean(p)
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan store.Event, 1)
	if s.closed {
		close(ch)
		return ch, nil
	}
	s.watchers[p] = append(s.watchers[p], ch)
	return ch, nil
}

// fireLocked delivers kind to every one-shot watcher armed on p and
// forgets them (Watch must be called again to re-arm).
func (s *Store) fireLocked(p string, kind store.EventKind) {
	chans := s.watchers[p]
	delete(s.watchers, p)
	for _, ch := range chans {
		ch <- store.Event{Kind: kind, Path: p}
		close(ch)
	}
}

// Close ends this Store's session: every ephemeral node it created is
// deleted, firing the same OnDelete/ChangedChildren events a real
// backend would on session expiry (spec.md §3), then all outstanding
// watches are closed.
func (s *Store) Close() error {
	s.mu.Lock()
	for p, n := range s.nodes {
		if n.exists && n.ephemeral {
			n.exists = false
			n.value = nil
			s.fireLocked(p, store.EventDeleted)
			s.fireLocked(path.Dir(p), store.EventChangedChildren)
		}
	}

	s.closed = true
	for p, chans := range s.watchers {
		for _, ch := range chans {
			close(ch)
		}
		delete(s.watchers, p)
	}
	s.mu.Unlock()
	return nil
}
