// Package zkstore adapts github.com/go-zookeeper/zk onto the
// store.Store interface. The path/data-format split is grounded on
// other_examples' ZKFmt/ZKRecord pair: zkstore plays the role of
// ZKFmt's Path/Create/Unmarshal trio, generalized from one fixed
// service layout to any path store.Store is asked to operate on.
package zkstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/skynetfabric/skynet"
	"github.com/skynetfabric/skynet/store"
)

// Store implements store.Store over a ZooKeeper ensemble connection.
type Store struct {
	log  skynet.Logger
	conn *zk.Conn
}

// Dial connects to the given ZooKeeper servers.
func Dial(servers []string, sessionTimeoutSec int, log skynet.Logger) (*Store, error) {
	c, events, err := zk.Connect(servers, time.Duration(sessionTimeoutSec)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("zkstore: connect: %w", err)
	}
	s := &Store{log: log, conn: c}
	go s.watchSession(events)
	return s, nil
}

func (s *Store) watchSession(events <-chan zk.Event) {
	for ev := range events {
		switch ev.State {
		case zk.StateConnected, zk.StateHasSession:
			s.log.Item(skynet.StoreConnected{Backend: "zookeeper", Addr: ev.Server})
		case zk.StateExpired:
			s.log.Item(skynet.StoreSessionExpired{Backend: "zookeeper"})
		case zk.StateDisconnected:
			s.log.Item(skynet.StoreDisconnected{Backend: "zookeeper", Addr: ev.Server})
		}
	}
}

func ensurePath(conn *zk.Conn, path string) error {
	if path == "" || path == "/" {
		return nil
	}
	parent := path[:strings.LastIndex(path, "/")]
	if parent != "" {
		if err := ensurePath(conn, parent); err != nil {
			return err
		}
	}
	exists, _, err := conn.Exists(path)
	if err != nil {
		return err
	}
	if !exists {
		_, err := conn.Create(path, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return err
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, path string) (store.Node, error) {
	data, stat, err := s.conn.Get(path)
	if err == zk.ErrNoNode {
		return store.Node{}, store.ErrNoNode
	}
	if err != nil {
		return store.Node{}, fmt.Errorf("zkstore: get %s: %w", path, err)
	}
	return store.Node{Path: path, Value: data, Stat: store.Stat{
		Version:   int64(stat.Version),
		Ephemeral: stat.EphemeralOwner != 0,
	}}, nil
}

func (s *Store) Children(ctx context.Context, path string) ([]string, error) {
	names, _, err := s.conn.Children(path)
	if err == zk.ErrNoNode {
		return nil, store.ErrNoNode
	}
	if err != nil {
		return nil, fmt.Errorf("zkstore: children %s: %w", path, err)
	}
	return names, nil
}

func (s *Store) Create(ctx context.Context, path string, value []byte, ephemeral bool) (store.Stat, error) {
	parent := path[:strings.LastIndex(path, "/")]
	if err := ensurePath(s.conn, parent); err != nil {
		return store.Stat{}, fmt.Errorf("zkstore: create parents of %s: %w", path, err)
	}

	var flags int32
	if ephemeral {
		flags = zk.FlagEphemeral
	}

	_, err := s.conn.Create(path, value, flags, zk.WorldACL(zk.PermAll))
	if err == zk.ErrNodeExists {
		return store.Stat{}, store.ErrNodeExists
	}
	if err != nil {
		return store.Stat{}, fmt.Errorf("zkstore: create %s: %w", path, err)
	}
	_, stat, err := s.conn.Get(path)
	if err != nil {
		return store.Stat{}, fmt.Errorf("zkstore: get after create %s: %w", path, err)
	}
	return store.Stat{Version: int64(stat.Version), Ephemeral: stat.EphemeralOwner != 0}, nil
}

func (s *Store) Set(ctx context.Context, path string, value []byte) (store.Stat, error) {
	stat, err := s.conn.Set(path, value, -1)
	if err == zk.ErrNoNode {
		return s.Create(ctx, path, value, false)
	}
	if err != nil {
		return store.Stat{}, fmt.Errorf("zkstore: set %s: %w", path, err)
	}
	return store.Stat{Version: int64(stat.Version)}, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, path string, value []byte, expectedVersion int64) (store.Stat, error) {
	stat, err := s.conn.Set(path, value, int32(expectedVersion))
	if err != nil {
		return store.Stat{}, fmt.Errorf("zkstore: cas %s: %w", path, err)
	}
	return store.Stat{Version: int64(stat.Version)}, nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	err := s.conn.Delete(path, -1)
	if err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("zkstore: delete %s: %w", path, err)
	}
	return nil
}

func (s *Store) Watch(ctx context.Context, path string, recursive bool) (<-chan store.Event, error) {
	out := make(chan store.Event, 1)

	var zkEvents <-chan zk.Event
	var err error
	if recursive {
		_, _, zkEvents, err = s.conn.ChildrenW(path)
	} else {
		_, _, zkEvents, err = s.conn.GetW(path)
	}
	if err == zk.ErrNoNode {
		_, _, zkEvents, err = s.conn.ExistsW(path)
	}
	if err != nil {
		return nil, fmt.Errorf("zkstore: watch %s: %w", path, err)
	}

	go func() {
		defer close(out)
		ev := <-zkEvents
		switch ev.Type {
		case zk.EventNodeCreated:
			out <- store.Event{Kind: store.EventCreated, Path: ev.Path}
		case zk.EventNodeDeleted:
			out <- store.Event{Kind: store.EventDeleted, Path: ev.Path}
		case zk.EventNodeDataChanged:
			out <- store.Event{Kind: store.EventChangedValue, Path: ev.Path}
		case zk.EventNodeChildrenChanged:
			out <- store.Event{Kind: store.EventChangedChildren, Path: ev.Path}
		case zk.EventSession:
			if ev.State == zk.StateExpired {
				out <- store.Event{Kind: store.EventSessionExpired, Path: ev.Path}
			} else {
				out <- store.Event{Kind: store.EventDisconnected, Path: ev.Path, Err: ev.Err}
			}
		default:
			out <- store.Event{Kind: store.EventDisconnected, Path: ev.Path, Err: ev.Err}
		}
	}()
	return out, nil
}

func (s *Store) Close() error {
	s.conn.Close()
	return nil
}
