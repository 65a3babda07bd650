// Package pools implements the generic bounded resource pool the RPC
// connection pool is built on, grounded nearly verbatim on the
// teacher's pools/resourcepool.go channel-mux Acquire/Release/Close
// idiom. NewResourcePool wraps the factory in a sony/gobreaker/v2
// circuit breaker per spec.md §4.E: three consecutive dial failures
// open the breaker for 30 seconds (NewResourcePoolWithBreaker takes
// other values), during which Acquire fails fast with gobreaker's own
// open-state error instead of queuing a new dial.
package pools

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

type Resource interface {
	Close()
	IsClosed() bool
}

type Factory func() (Resource, error)

// ErrPoolClosed is returned by Acquire/AcquireTimeout once Close has
// been called.
var ErrPoolClosed = errors.New("pools: resource pool closed")

// ErrBorrowTimeout is returned by AcquireTimeout when no resource
// became available before the deadline (spec.md §4.E borrow_timeout).
var ErrBorrowTimeout = errors.New("pools: borrow timeout exceeded")

type ResourcePool struct {
	factory       Factory
	breaker       *gobreaker.CircuitBreaker[Resource]
	idleResources ring
	idleCapacity  int
	maxResources  int
	numResources  int

	acqchan chan acquireMessage
	rchan   chan releaseMessage
	cchan   chan closeMessage

	activeWaits []acquireMessage
}

// NewResourcePool creates a pool bounded at maxResources concurrent
// resources (0 = unbounded) with idleCapacity kept warm, dialing
// through factory.
func NewResourcePool(factory Factory, idleCapacity, maxResources int) *ResourcePool {
	return NewResourcePoolWithBreaker(factory, idleCapacity, maxResources, 3, 30*time.Second)
}

// NewResourcePoolWithBreaker is NewResourcePool with explicit circuit
// breaker tuning: consecutiveFailures trips the breaker open for
// openTimeout.
func NewResourcePoolWithBreaker(factory Factory, idleCapacity, maxResources int, consecutiveFailures uint32, openTimeout time.Duration) *ResourcePool {
	breaker := gobreaker.NewCircuitBreaker[Resource](gobreaker.Settings{
		Name:    "pools.ResourcePool",
		Timeout: openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
	})

	rp := &ResourcePool{
		factory:      factory,
		breaker:      breaker,
		idleCapacity: idleCapacity,
		maxResources: maxResources,

		acqchan: make(chan acquireMessage),
		rchan:   make(chan releaseMessage, 1),
		cchan:   make(chan closeMessage, 1),
	}

	go rp.mux()

	return rp
}

func (rp *ResourcePool) dial() (Resource, error) {
	return rp.breaker.Execute(func() (Resource, error) {
		return rp.factory()
	})
}

type releaseMessage struct {
	r Resource
}

type acquireMessage struct {
	rch     chan Resource
	ech     chan error
	timeout <-chan time.Time
}

type closeMessage struct {
}

func (rp *ResourcePool) mux() {
loop:
	for {
		select {
		case acq := <-rp.acqchan:
			rp.acquire(acq)
		case rel := <-rp.rchan:
			rp.handleRelease(rel)
		case <-rp.cchan:
			break loop
		}
	}
	for !rp.idleResources.Empty() {
		rp.idleResources.Dequeue().Close()
	}
	for _, aw := range rp.activeWaits {
		aw.ech <- ErrPoolClosed
	}
}

func (rp *ResourcePool) handleRelease(rel releaseMessage) {
	for len(rp.activeWaits) != 0 {
		aw := rp.activeWaits[0]
		rp.activeWaits = rp.activeWaits[1:]

		if rel.r != nil && !rel.r.IsClosed() {
			aw.rch <- rel.r
			return
		}
		// The released resource is gone; try to mint a fresh one for
		// this waiter instead of dropping it silently.
		r, err := rp.dial()
		if err != nil {
			rp.numResources--
			aw.ech <- err
			continue
		}
		aw.rch <- r
		return
	}

	if rel.r != nil {
		rp.release(rel.r)
	}
}

func (rp *ResourcePool) acquire(acq acquireMessage) {
	for !rp.idleResources.Empty() {
		r := rp.idleResources.Dequeue()
		if !r.IsClosed() {
			acq.rch <- r
			return
		}
		rp.numResources--
	}
	if rp.maxResources > 0 && rp.numResources >= rp.maxResources {
		rp.activeWaits = append(rp.activeWaits, acq)
		return
	}

	r, err := rp.dial()
	if err != nil {
		acq.ech <- err
		return
	}
	rp.numResources++
	acq.rch <- r
}

func (rp *ResourcePool) release(resource Resource) {
	if resource.IsClosed() {
		rp.numResources--
		return
	}
	if rp.idleCapacity != 0 && rp.idleResources.Size() == rp.idleCapacity {
		resource.Close()
		rp.numResources--
		return
	}

	rp.idleResources.Enqueue(resource)
}

// Acquire gets one of the idle resources, or creates a new one,
// blocking indefinitely.
func (rp *ResourcePool) Acquire() (Resource, error) {
	return rp.AcquireTimeout(0)
}

// AcquireTimeout is Acquire bounded by timeout (spec.md §4.E
// borrow_timeout); timeout <= 0 blocks indefinitely.
func (rp *ResourcePool) AcquireTimeout(timeout time.Duration) (resource Resource, err error) {
	acq := acquireMessage{
		rch: make(chan Resource, 1),
		ech: make(chan error, 1),
	}
	if timeout > 0 {
		acq.timeout = time.After(timeout)
	}
	rp.acqchan <- acq

	if acq.timeout == nil {
		select {
		case resource = <-acq.rch:
		case err = <-acq.ech:
		}
		return
	}

	select {
	case resource = <-acq.rch:
	case err = <-acq.ech:
	case <-acq.timeout:
		err = ErrBorrowTimeout
	}
	return
}

// Release returns a resource for reuse by others. If the idle queue
// is full, the resource is closed instead.
func (rp *ResourcePool) Release(resource Resource) {
	rp.rchan <- releaseMessage{r: resource}
}

// Close closes every idle and waiting resource in the pool.
func (rp *ResourcePool) Close() {
	rp.cchan <- closeMessage{}
}
