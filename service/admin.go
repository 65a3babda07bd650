package service

import (
	"net/rpc"
	"sync"

	"github.com/skynetfabric/skynet"
	"github.com/skynetfabric/skynet/rpc/bsonrpc"
)

// ServiceAdmin serves the small control-plane RPC surface
// (Register/Unregister/Stop) on its own listener, separate from the
// main RPC port, grounded on the teacher's service/admin.go.
type ServiceAdmin struct {
	server *Server
	rpc    *rpc.Server
}

func NewServiceAdmin(s *Server) *ServiceAdmin {
	sa := &ServiceAdmin{server: s, rpc: rpc.NewServer()}
	sa.rpc.RegisterName("Admin", &adminRPC{server: s})
	return sa
}

func (sa *ServiceAdmin) Listen(addr *skynet.BindAddr, bindWait *sync.WaitGroup) {
	listener, err := addr.Listen()
	if err != nil {
		sa.server.Log.Panic(err)
	}

	sa.server.Log.Item(skynet.AdminListening{Config: sa.server.Config})
	bindWait.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if sa.server.shuttingDown {
				return
			}
			sa.server.Log.Item(err)
			continue
		}
		go sa.rpc.ServeCodec(bsonrpc.NewServerCodec(conn))
	}
}

// adminRPC is the net/rpc-visible receiver; it stays unexported so the
// admin surface can never be confused with a delegate method picked up
// by ServiceRPC's reflection scan.
type adminRPC struct {
	server *Server
}

func (a *adminRPC) Register(in skynet.RegisterRequest, out *skynet.RegisterResponse) error {
	a.server.Log.Println("admin: Register")
	a.server.Register()
	return nil
}

func (a *adminRPC) Unregister(in skynet.UnregisterRequest, out *skynet.UnregisterResponse) error {
	a.server.Log.Println("admin: Unregister")
	a.server.Unregister()
	return nil
}

func (a *adminRPC) Stop(in skynet.StopRequest, out *skynet.StopResponse) error {
	a.server.Log.Println("admin: Stop")
	if in.WaitForClients {
		a.server.activeRequests.Wait()
	}
	a.server.Shutdown()
	return nil
}
