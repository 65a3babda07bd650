// Package store abstracts the hierarchical coordination service a
// skynet cluster is built on (ZooKeeper or Doozer) behind one
// interface, the way doozer.go abstracted doozer.Conn behind
// doozerconn for testability.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNoNode is returned when a path does not exist.
	ErrNoNode = errors.New("store: no node at path")
	// ErrNodeExists is returned by Create when a path is already present.
	ErrNodeExists = errors.New("store: node already exists")
	// ErrSessionExpired names a lost backend session. None of the
	// adapters in this module return or deliver it; a lost session is
	// reported as an Event of kind EventSessionExpired instead.
	ErrSessionExpired = errors.New("store: session expired")
	// ErrClosed names a call made after Close. None of the adapters in
	// this module return it.
	ErrClosed = errors.New("store: closed")
)

// EventKind enumerates what happened to a watched path.
type EventKind int

const (
	EventChangedValue EventKind = iota
	EventChangedChildren
	EventCreated
	EventDeleted
	EventSessionExpired
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventChangedValue:
		return "changed-value"
	case EventChangedChildren:
		return "changed-children"
	case EventCreated:
		return "created"
	case EventDeleted:
		return "deleted"
	case EventSessionExpired:
		return "session-expired"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event reports a single change observed on a watched path.
type Event struct {
	Kind EventKind
	Path string
	// Err carries the underlying error for EventDisconnected and
	// EventSessionExpired; nil otherwise.
	Err error
}

// Stat is the metadata that accompanies a node's value.
type Stat struct {
	// Version increases on every successful write to this exact path;
	// CompareAndSwap uses it as the expected-version token.
	Version int64
	// Ephemeral reports whether this node was created with the
	// ephemeral flag (spec.md §3/§4.A): the backend deletes it
	// automatically when its creator's session ends.
	Ephemeral bool
}

// Node is a path/value/stat triple, the unit Get returns.
type Node struct {
	Path  string
	Value []byte
	Stat  Stat
}

// Store is the minimal coordination surface the registry and cache
// layers need: value CRUD, directory listing, and watches. Concrete
// adapters (doozerstore, zkstore) translate it onto a specific backend.
type Store interface {
	// Get fetches the value and stat at path. Returns ErrNoNode if
	// absent.
	Get(ctx context.Context, path string) (Node, error)

	// Children lists the immediate child names of path (not full
	// paths). Returns ErrNoNode if path itself does not exist.
	Children(ctx context.Context, path string) ([]string, error)

	// Create writes value at path, creating intermediate directories
	// as needed, and fails with ErrNodeExists if path is already
	// present. Used for "register if absent" semantics; callers that
	// want upsert should use Set. When ephemeral is true, the node is
	// tied to the creating session and is removed automatically when
	// that session ends (spec.md §3/§4.A) — parent directories created
	// along the way are never themselves ephemeral, since they may
	// still hold other children.
	Create(ctx context.Context, path string, value []byte, ephemeral bool) (Stat, error)

	// Set writes value at path unconditionally, creating it if
	// absent (upsert).
	Set(ctx context.Context, path string, value []byte) (Stat, error)

	// CompareAndSwap writes value at path only if the current stat's
	// Version matches expectedVersion.
	CompareAndSwap(ctx context.Context, path string, value []byte, expectedVersion int64) (Stat, error)

	// Delete removes path. It is not an error to delete a path that
	// does not exist.
	Delete(ctx context.Context, path string) error

	// Watch arms a one-shot watch on path (and, if recursive, on its
	// subtree) and returns a channel that receives exactly one Event
	// before closing. Callers that want continued notification must
	// call Watch again after receiving an event (spec.md's "re-arm on
	// every fire" model).
	Watch(ctx context.Context, path string, recursive bool) (<-chan Event, error)

	// Close releases the underlying connection.
	Close() error
}
