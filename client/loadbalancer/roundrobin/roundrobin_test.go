package roundrobin

import (
	"testing"

	"github.com/skynetfabric/skynet/client/loadbalancer"
)

func TestChooseReturnsErrorWhenEmpty(t *testing.T) {
	lb := New()

	_, err := lb.Choose(nil)
	if err != loadbalancer.ErrNoInstances {
		t.Fatal("LoadBalancer should fail if no instances exist")
	}
}

func TestChoose(t *testing.T) {
	endpoints := []string{"10.0.0.1:9000", "10.0.0.2:9000", "10.0.0.3:9000", "10.0.0.4:9000"}
	lb := New()

	for i := 0; i <= 3; i++ {
		s, err := lb.Choose(endpoints)
		if err != nil || s != endpoints[i] {
			t.Fatalf("expected %q, got %q (err=%v)", endpoints[i], s, err)
		}
	}

	// wraps around
	s, err := lb.Choose(endpoints)
	if err != nil || s != endpoints[0] {
		t.Fatalf("expected wraparound to %q, got %q (err=%v)", endpoints[0], s, err)
	}
}

func TestChooseTracksShrinkingList(t *testing.T) {
	lb := New()

	if _, err := lb.Choose([]string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	s, err := lb.Choose([]string{"a"})
	if err != nil || s != "a" {
		t.Fatalf("expected %q, got %q (err=%v)", "a", s, err)
	}
}
