package client

import (
	"net"
	"time"

	"github.com/skynetfabric/skynet"
	"github.com/skynetfabric/skynet/rpc/bsonrpc"
)

// Admin is a client for one instance's admin RPC surface (spec.md
// SUPPLEMENTED FEATURES §1), dialed directly rather than through the
// registry: admin commands target one specific instance, not a
// resolved service group. Grounded on the teacher's client/admin.go.
type Admin struct {
	Addr string
}

func (a *Admin) Register(in skynet.RegisterRequest) (out skynet.RegisterResponse, err error) {
	conn, err := net.DialTimeout("tcp", a.Addr, 5*time.Second)
	if err != nil {
		return out, &skynet.ConnectionFailure{Addr: a.Addr, Err: err}
	}
	defer conn.Close()

	rpcClient := bsonrpc.NewClient(conn)
	defer rpcClient.Close()
	err = rpcClient.Call("Admin.Register", in, &out)
	return
}

func (a *Admin) Unregister(in skynet.UnregisterRequest) (out skynet.UnregisterResponse, err error) {
	conn, err := net.DialTimeout("tcp", a.Addr, 5*time.Second)
	if err != nil {
		return out, &skynet.ConnectionFailure{Addr: a.Addr, Err: err}
	}
	defer conn.Close()

	rpcClient := bsonrpc.NewClient(conn)
	defer rpcClient.Close()
	err = rpcClient.Call("Admin.Unregister", in, &out)
	return
}

func (a *Admin) Stop(in skynet.StopRequest) (out skynet.StopResponse, err error) {
	conn, err := net.DialTimeout("tcp", a.Addr, 5*time.Second)
	if err != nil {
		return out, &skynet.ConnectionFailure{Addr: a.Addr, Err: err}
	}
	defer conn.Close()

	rpcClient := bsonrpc.NewClient(conn)
	defer rpcClient.Close()
	err = rpcClient.Call("Admin.Stop", in, &out)
	return
}
