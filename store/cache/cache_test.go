package cache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/skynetfabric/skynet"
	"github.com/skynetfabric/skynet/store/memstore"
)

func testLogger() skynet.Logger {
	return skynet.NewZapLogger("test", zap.NewNop())
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestPutAndGet(t *testing.T) {
	s := memstore.New()
	c, err := Open(context.Background(), s, "/instances", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	c.Put("abc/addr", []byte("127.0.0.1:9000"))

	v, ok := c.Get("abc/addr")
	if !ok || string(v) != "127.0.0.1:9000" {
		t.Fatalf("expected value, got %q ok=%v", v, ok)
	}
}

func TestOnCreateFiresForNewNode(t *testing.T) {
	s := memstore.New()
	c, err := Open(context.Background(), s, "/instances", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var created []string
	c.OnCreate("*", func(relPath string, value []byte, version int64) {
		created = append(created, relPath)
	})

	c.Put("abc/addr", []byte("127.0.0.1:9000"))

	waitFor(t, time.Second, func() bool { return len(created) == 1 })
	if created[0] != "abc/addr" {
		t.Fatalf("expected abc/addr, got %v", created)
	}
}

func TestOnUpdateFiresOnValueChange(t *testing.T) {
	s := memstore.New()
	c, err := Open(context.Background(), s, "/instances", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	c.Put("abc/addr", []byte("127.0.0.1:9000"))

	var updated []string
	c.OnUpdate("*", func(relPath string, value []byte, version int64) {
		updated = append(updated, relPath)
	})

	c.Put("abc/addr", []byte("127.0.0.1:9001"))

	waitFor(t, time.Second, func() bool { return len(updated) == 1 })
	v, _ := c.Get("abc/addr")
	if string(v) != "127.0.0.1:9001" {
		t.Fatalf("expected updated value, got %q", v)
	}
}

func TestOnDeleteFires(t *testing.T) {
	s := memstore.New()
	c, err := Open(context.Background(), s, "/instances", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	c.Put("abc/addr", []byte("127.0.0.1:9000"))

	var deleted []string
	c.OnDelete("*", func(relPath string, value []byte, version int64) {
		deleted = append(deleted, relPath)
	})

	c.Delete("abc/addr", false)

	waitFor(t, time.Second, func() bool { return len(deleted) == 1 })
	if deleted[0] != "abc/addr" {
		t.Fatalf("expected abc/addr, got %v", deleted)
	}

	if _, ok := c.Get("abc/addr"); ok {
		t.Fatal("expected node to be gone")
	}
}

func TestDeleteRemovesEmptyParents(t *testing.T) {
	s := memstore.New()
	c, err := Open(context.Background(), s, "/instances", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	c.Put("abc/addr", []byte("127.0.0.1:9000"))
	c.Delete("abc/addr", true)

	if _, err := s.Get(context.Background(), "/instances/abc"); err == nil {
		t.Fatal("expected empty parent to be pruned")
	}
}

func TestEachPair(t *testing.T) {
	s := memstore.New()
	c, err := Open(context.Background(), s, "/instances", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	c.Put("abc/addr", []byte("127.0.0.1:9000"))
	c.Put("abc/name", []byte("svc"))
	c.Put("def/addr", []byte("127.0.0.1:9001"))

	var got []KV
	for kv := range c.EachPair("") {
		got = append(got, kv)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 pairs, got %d: %v", len(got), got)
	}
}

func TestBootstrapDiscoversExistingData(t *testing.T) {
	s := memstore.New()
	s.Create(context.Background(), "/instances", nil, false)
	s.Set(context.Background(), "/instances/abc/addr", []byte("127.0.0.1:9000"))

	c, err := Open(context.Background(), s, "/instances", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	v, ok := c.Get("abc/addr")
	if !ok || string(v) != "127.0.0.1:9000" {
		t.Fatalf("expected bootstrapped value, got %q ok=%v", v, ok)
	}
}
