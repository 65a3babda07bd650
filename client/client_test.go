package client

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
	"gopkg.in/mgo.v2/bson"

	"github.com/skynetfabric/skynet"
	"github.com/skynetfabric/skynet/registry"
	"github.com/skynetfabric/skynet/rpc/bsonrpc"
	"github.com/skynetfabric/skynet/store/cache"
	"github.com/skynetfabric/skynet/store/memstore"
)

func testLogger() skynet.Logger {
	return skynet.NewZapLogger("test", zap.NewNop())
}

type echoParam struct {
	Val string
}

// fakeService accepts connections, performs the server side of the
// handshake, and echoes every Forward call's Val field back reversed.
func fakeService(t *testing.T, serviceName string) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				enc := bsonrpc.NewEncoder(conn)
				dec := bsonrpc.NewDecoder(conn)

				if err := enc.Encode(skynet.ServiceHandshake{Name: serviceName, Registered: true, ClientID: "cid"}); err != nil {
					return
				}
				var ch skynet.ClientHandshake
				if err := dec.Decode(&ch); err != nil {
					return
				}

				for {
					var header skynet.RequestHeader
					if err := dec.Decode(&header); err != nil {
						return
					}
					var req skynet.Request
					if err := dec.Decode(&req); err != nil {
						return
					}

					var p echoParam
					bson.Unmarshal(req.In.Data, &p)
					out := echoParam{Val: reverse(p.Val)}
					data, _ := bson.Marshal(out)

					enc.Encode(skynet.ResponseHeader{ServiceMethod: header.ServiceMethod, Seq: header.Seq})
					enc.Encode(skynet.Response{Out: bson.Binary{Data: data}})
				}
			}()
		}
	}()

	return ln
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

func TestServiceClientSend(t *testing.T) {
	ln := fakeService(t, "echo")
	defer ln.Close()

	s := memstore.New()
	c, err := cache.Open(context.Background(), s, "/instances", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	reg := registry.Open(context.Background(), c, net.ParseIP("127.0.0.1"), testLogger())

	addr := ln.Addr().(*net.TCPAddr)
	reg.Register(registry.Instance{
		UUID: "u1", Name: "echo", Version: "1", Region: "local",
		IP: "127.0.0.1", Port: addr.Port,
	})

	deadline := time.Now().Add(time.Second)
	for {
		if _, err := reg.ServerFor("echo", "1", "local"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("instance never became available")
		}
		time.Sleep(time.Millisecond)
	}

	cl := NewClient(reg, "echo", 1, 2, testLogger())
	defer cl.Close()

	sc := cl.GetService("echo", "1", "local", nil)

	var out echoParam
	if err := sc.Send(nil, "Foo", echoParam{Val: "hello"}, &out, true); err != nil {
		t.Fatal(err)
	}
	if out.Val != "olleh" {
		t.Fatalf("expected %q, got %q", "olleh", out.Val)
	}
}
