package client

import (
	"net"
	"testing"
)

func TestPoolAcquireReleaseReuses(t *testing.T) {
	ln := fakeService(t, "echo")
	defer ln.Close()

	p := NewPool("echo", 1, 2, testLogger())
	defer p.Close()

	endpoint := ln.Addr().String()

	c1, err := p.Acquire(endpoint)
	if err != nil {
		t.Fatal(err)
	}
	p.Release(endpoint, c1)

	c2, err := p.Acquire(endpoint)
	if err != nil {
		t.Fatal(err)
	}
	if c1 != c2 {
		t.Fatal("expected released connection to be reused")
	}
	p.Release(endpoint, c2)
}

func TestPoolEvictClosesConnections(t *testing.T) {
	ln := fakeService(t, "echo")
	defer ln.Close()

	p := NewPool("echo", 1, 2, testLogger())
	defer p.Close()

	endpoint := ln.Addr().String()
	c1, err := p.Acquire(endpoint)
	if err != nil {
		t.Fatal(err)
	}
	p.Release(endpoint, c1)

	p.Evict(endpoint)

	if !c1.IsClosed() {
		t.Fatal("expected idle connection to be closed on evict")
	}
}

func TestPoolAcquireFailsOnUnreachableEndpoint(t *testing.T) {
	// Find a free port, then don't listen on it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	endpoint := ln.Addr().String()
	ln.Close()

	p := NewPool("echo", 1, 2, testLogger())
	defer p.Close()

	if _, err := p.Acquire(endpoint); err == nil {
		t.Fatal("expected dial failure against closed port")
	}
}
