package client

import (
	"net"
	"net/rpc"
	"testing"

	"github.com/skynetfabric/skynet"
	"github.com/skynetfabric/skynet/rpc/bsonrpc"
)

type fakeAdmin struct {
	registered bool
}

func (a *fakeAdmin) Register(in skynet.RegisterRequest, out *skynet.RegisterResponse) error {
	a.registered = true
	return nil
}

func TestAdminRegister(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	srv := rpc.NewServer()
	fa := &fakeAdmin{}
	srv.RegisterName("Admin", fa)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		srv.ServeCodec(bsonrpc.NewServerCodec(conn))
	}()

	a := &Admin{Addr: ln.Addr().String()}
	if _, err := a.Register(skynet.RegisterRequest{}); err != nil {
		t.Fatal(err)
	}
	if !fa.registered {
		t.Fatal("expected Register to reach the server")
	}
}
