package registry

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/skynetfabric/skynet"
	"github.com/skynetfabric/skynet/store/cache"
	"github.com/skynetfabric/skynet/store/memstore"
)

func testLogger() skynet.Logger {
	return skynet.NewZapLogger("test", zap.NewNop())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func openRegistry(t *testing.T) (*Registry, *cache.Cache) {
	t.Helper()
	s := memstore.New()
	c, err := cache.Open(context.Background(), s, "/instances", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	r := Open(context.Background(), c, net.ParseIP("10.0.0.1"), testLogger())
	return r, c
}

func TestRegisterThenServersFor(t *testing.T) {
	r, c := openRegistry(t)
	defer c.Close()

	inst := Instance{UUID: "u1", Name: "foo", Version: "1", Region: "local", IP: "10.0.0.2", Port: 9000}
	r.Register(inst)

	var endpoints []string
	waitFor(t, func() bool {
		var err error
		endpoints, err = r.ServersFor("foo", "1", "local")
		return err == nil && len(endpoints) == 1
	})

	if endpoints[0] != "10.0.0.2:9000" {
		t.Fatalf("expected endpoint 10.0.0.2:9000, got %v", endpoints)
	}
}

func TestPartialRegistrationDoesNotPublish(t *testing.T) {
	r, c := openRegistry(t)
	defer c.Close()

	// Write everything except "registered" — on_create must never fire.
	c.Put("u1/addr", []byte("10.0.0.2:9000"))
	c.Put("u1/name", []byte("foo"))
	c.Put("u1/version", []byte("1"))
	c.Put("u1/region", []byte("local"))

	time.Sleep(50 * time.Millisecond)

	if _, err := r.ServersFor("foo", "1", "local"); err == nil {
		t.Fatal("expected ServiceUnavailable before registered=true is written")
	}
}

func TestDeregisterRemovesServer(t *testing.T) {
	r, c := openRegistry(t)
	defer c.Close()

	inst := Instance{UUID: "u1", Name: "foo", Version: "1", Region: "local", IP: "10.0.0.2", Port: 9000}
	r.Register(inst)

	waitFor(t, func() bool {
		_, err := r.ServersFor("foo", "1", "local")
		return err == nil
	})

	removed := make(chan string, 1)
	r.OnServerRemoved("10.0.0.2:9000", func(endpoint string) { removed <- endpoint })

	r.Deregister(inst)

	select {
	case ep := <-removed:
		if ep != "10.0.0.2:9000" {
			t.Fatalf("expected 10.0.0.2:9000, got %s", ep)
		}
	case <-time.After(time.Second):
		t.Fatal("OnServerRemoved callback never fired")
	}

	waitFor(t, func() bool {
		_, err := r.ServersFor("foo", "1", "local")
		return err != nil
	})
}

func TestWildcardVersionResolvesToHighest(t *testing.T) {
	r, c := openRegistry(t)
	defer c.Close()

	r.Register(Instance{UUID: "u1", Name: "foo", Version: "1", Region: "local", IP: "10.0.0.2", Port: 9000})
	r.Register(Instance{UUID: "u2", Name: "foo", Version: "3", Region: "local", IP: "10.0.0.3", Port: 9000})
	r.Register(Instance{UUID: "u3", Name: "foo", Version: "2", Region: "local", IP: "10.0.0.4", Port: 9000})

	var ep string
	waitFor(t, func() bool {
		var err error
		ep, err = r.ServerFor("foo", "*", "local")
		return err == nil
	})

	if ep != "10.0.0.3:9000" {
		t.Fatalf("expected highest version endpoint 10.0.0.3:9000, got %s", ep)
	}
}

func TestServersForOrdersByLocalityScore(t *testing.T) {
	r, c := openRegistry(t)
	defer c.Close()

	// localIP is 10.0.0.1; 10.0.0.5 shares 3 octets, 192.168.1.1 shares none.
	r.Register(Instance{UUID: "far", Name: "foo", Version: "1", Region: "local", IP: "192.168.1.1", Port: 9000})
	r.Register(Instance{UUID: "near", Name: "foo", Version: "1", Region: "local", IP: "10.0.0.5", Port: 9000})

	var endpoints []string
	waitFor(t, func() bool {
		var err error
		endpoints, err = r.ServersFor("foo", "1", "local")
		return err == nil && len(endpoints) == 2
	})

	if endpoints[0] != "10.0.0.5:9000" {
		t.Fatalf("expected nearer endpoint first, got %v", endpoints)
	}
}
