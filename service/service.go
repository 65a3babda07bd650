// Package service implements the server half of the Skynet RPC fabric:
// a Server binds an RPC listener, handshakes incoming connections, and
// dispatches calls to a user-supplied ServiceDelegate through
// ServiceRPC.Forward (spec.md §4.E/§4.G).
package service

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/skynetfabric/skynet"
	"github.com/skynetfabric/skynet/registry"
	"github.com/skynetfabric/skynet/rpc/bsonrpc"
)

// ServiceDelegate is the user's hook into the four lifecycle events a
// Server produces. Methods named Started/Stopped/Registered/
// Unregistered are reserved and never dispatched as RPC calls
// (service/servicerpc.go's reservedMethodNames).
type ServiceDelegate interface {
	Started(s *Server)
	Stopped(s *Server)
	Registered(s *Server)
	Unregistered(s *Server)
}

// ClientInfo is what a Server remembers about one handshaken
// connection, keyed by the ClientID it issued at handshake time.
type ClientInfo struct {
	Address net.Addr
}

// Server wraps a ServiceDelegate in the Skynet wire protocol: bind,
// accept, handshake, dispatch, and registry bookkeeping, grounded on
// the teacher's service/service.go Service/mux design.
type Server struct {
	Config   *skynet.ServiceConfig
	Delegate ServiceDelegate
	Log      skynet.Logger

	registry *registry.Registry
	instance registry.Instance

	rpc *ServiceRPC

	stats *MethodStats

	listener *net.TCPListener

	clientMu   sync.Mutex
	clientInfo map[string]ClientInfo

	activeRequests sync.WaitGroup

	connChan       chan net.Conn
	registeredChan chan bool
	doneChan       chan struct{}

	registered   bool
	shuttingDown bool

	doneGroup *sync.WaitGroup
	admin     *ServiceAdmin
}

// CreateServer wraps sd in a Server bound to the given config and
// registry, ready to Start. log may be a MultiLogger fanning out to
// several sinks.
func CreateServer(sd ServiceDelegate, cfg *skynet.ServiceConfig, reg *registry.Registry, log skynet.Logger) *Server {
	if cfg.UUID == "" {
		cfg.UUID = skynet.InstanceUUID(cfg.ServiceAddr.IPAddress, cfg.ServiceAddr.Port, cfg.Name, cfg.Version)
	}

	s := &Server{
		Config:         cfg,
		Delegate:       sd,
		Log:            log,
		registry:       reg,
		stats:          NewMethodStats(),
		clientInfo:     make(map[string]ClientInfo),
		connChan:       make(chan net.Conn),
		registeredChan: make(chan bool),
		doneChan:       make(chan struct{}),
	}

	log.Item(skynet.ServiceCreated{Config: cfg})

	s.rpc = NewServiceRPC(s)
	log.Item(RegisteredMethods{Methods: s.rpc.MethodNames})

	if cfg.AdminAddr != nil {
		s.admin = NewServiceAdmin(s)
	}

	return s
}

func (s *Server) getClientInfo(clientID string) (ci ClientInfo, ok bool) {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	ci, ok = s.clientInfo[clientID]
	return
}

func (s *Server) recordMethodStat(method string, d time.Duration, err error) {
	s.stats.Record(method, d, err)
}

// Start binds the RPC (and, if configured, admin) listener, then
// returns a WaitGroup that releases once Shutdown has fully drained.
func (s *Server) Start() *sync.WaitGroup {
	bindWait := &sync.WaitGroup{}
	bindWait.Add(1)
	go s.listen(bindWait)
	bindWait.Wait()

	if s.admin != nil {
		adminBindWait := &sync.WaitGroup{}
		adminBindWait.Add(1)
		go s.admin.Listen(s.Config.AdminAddr, adminBindWait)
		adminBindWait.Wait()
	}

	c := make(chan os.Signal, 1)
	go watchSignals(c, s)

	s.doneGroup = &sync.WaitGroup{}
	s.doneGroup.Add(1)
	go func() {
		s.mux()
		s.doneGroup.Done()
	}()

	go s.Delegate.Started(s)

	return s.doneGroup
}

func (s *Server) listen(bindWait *sync.WaitGroup) {
	var err error
	s.listener, err = s.Config.ServiceAddr.Listen()
	if err != nil {
		s.Log.Panic(fmt.Errorf("service: bind %s: %w", s.Config.ServiceAddr, err))
	}

	s.Log.Item(ServiceListening{Addr: s.Config.ServiceAddr, Config: s.Config})
	bindWait.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.shuttingDown {
				return
			}
			s.Log.Item(fmt.Errorf("service: accept: %w", err))
			continue
		}
		s.connChan <- conn
	}
}

// mux is the single goroutine that owns registration state; every
// register/unregister request funnels through here (grounded on the
// teacher's mux-owns-state idiom, also used by pools.ResourcePool and
// store/cache.Cache). The client table is not mux-owned: handleConn
// updates it under clientMu.
func (s *Server) mux() {
	for {
		select {
		case conn := <-s.connChan:
			// Registered is mux-owned state; snapshot it here so
			// handleConn never reads it from another goroutine.
			go s.handleConn(conn, s.registered)
		case want := <-s.registeredChan:
			if want {
				s.doRegister()
			} else {
				s.doUnregister()
			}
		case <-s.doneChan:
			return
		}
	}
}

// handleConn performs the handshake, then loops decoding
// RequestHeader+Request and dispatching through ServiceRPC.Forward,
// mirroring exactly what client/conn.Conn.SendTimeout writes and
// expects back.
func (s *Server) handleConn(c net.Conn, registered bool) {
	clientID := skynet.NewOpaqueID()

	s.clientMu.Lock()
	s.clientInfo[clientID] = ClientInfo{Address: c.RemoteAddr()}
	s.clientMu.Unlock()

	defer func() {
		s.clientMu.Lock()
		delete(s.clientInfo, clientID)
		s.clientMu.Unlock()
		c.Close()
	}()

	enc := bsonrpc.NewEncoder(c)
	dec := bsonrpc.NewDecoder(c)

	sh := skynet.ServiceHandshake{
		Name:       s.Config.Name,
		Registered: registered,
		ClientID:   clientID,
	}
	if err := enc.Encode(sh); err != nil {
		s.Log.Item(fmt.Errorf("service: encode handshake: %w", err))
		return
	}
	if !registered {
		return
	}

	var ch skynet.ClientHandshake
	if err := dec.Decode(&ch); err != nil {
		s.Log.Item(fmt.Errorf("service: decode client handshake: %w", err))
		return
	}

	for {
		var header skynet.RequestHeader
		if err := dec.Decode(&header); err != nil {
			return // client closed the connection or malformed frame
		}

		var req skynet.Request
		if err := dec.Decode(&req); err != nil {
			s.Log.Item(fmt.Errorf("service: decode request: %w", err))
			return
		}

		var resp skynet.Response
		rh := skynet.ResponseHeader{ServiceMethod: header.ServiceMethod, Seq: header.Seq}
		if err := s.rpc.Forward(req, &resp); err != nil {
			rh.Error = err.Error()
		}

		if err := enc.Encode(rh); err != nil {
			return
		}
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

// Register notifies the registry this instance is ready to handle
// requests. The request is served by the mux goroutine that Start
// launches, so a call made before Start blocks until Start runs.
func (s *Server) Register() { s.registeredChan <- true }

// Unregister leaves the instance bound but marks it not accepting new
// requests; existing connections continue until they close.
func (s *Server) Unregister() { s.registeredChan <- false }

func (s *Server) doRegister() {
	if s.registered {
		return
	}
	s.instance = s.registry.RegisterFromConfig(s.Config)
	s.registered = true
	s.Log.Item(ServiceRegistered{Config: s.Config})
	s.Delegate.Registered(s)
}

func (s *Server) doUnregister() {
	if !s.registered {
		return
	}
	s.registry.Deregister(s.instance)
	s.registered = false
	s.Log.Item(ServiceUnregistered{Config: s.Config})
	s.Delegate.Unregistered(s)
}

// Shutdown deregisters, stops accepting new connections, waits for
// in-flight requests to complete, then calls Delegate.Stopped.
func (s *Server) Shutdown() {
	if s.shuttingDown {
		return
	}
	s.shuttingDown = true

	s.Unregister()
	if s.listener != nil {
		s.listener.Close()
	}

	s.activeRequests.Wait()

	close(s.doneChan)
	if s.doneGroup != nil {
		s.doneGroup.Wait()
	}

	s.Delegate.Stopped(s)
}

func watchSignals(c chan os.Signal, s *Server) {
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig, ok := <-c
	if !ok {
		return
	}
	s.Log.Item(KillSignal{Signal: sig.(syscall.Signal)})
	s.Shutdown()
}
