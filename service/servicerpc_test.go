package service

import (
	"errors"
	"net"
	"testing"

	"go.uber.org/zap"
	"gopkg.in/mgo.v2/bson"

	"github.com/skynetfabric/skynet"
)

func testLogger() skynet.Logger {
	return skynet.NewZapLogger("test", zap.NewNop())
}

type M map[string]interface{}

type echoDelegate struct{}

func (echoDelegate) Started(s *Server)      {}
func (echoDelegate) Stopped(s *Server)      {}
func (echoDelegate) Registered(s *Server)   {}
func (echoDelegate) Unregistered(s *Server) {}

func (echoDelegate) Foo(ri *skynet.RequestInfo, in M, out *M) error {
	(*out)["Hi"] = in["Hi"]
	return nil
}

func (echoDelegate) Bust(ri *skynet.RequestInfo, in M, out *M) error {
	return errors.New("busted")
}

func newTestServer(t *testing.T, d ServiceDelegate) *Server {
	t.Helper()
	cfg := &skynet.ServiceConfig{
		Name:        "Echo",
		Version:     "1",
		ServiceAddr: &skynet.BindAddr{IPAddress: "127.0.0.1", Port: 9000},
	}
	return CreateServer(d, cfg, nil, testLogger())
}

func withClient(s *Server, clientID string) {
	s.clientMu.Lock()
	s.clientInfo[clientID] = ClientInfo{Address: &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 123}}
	s.clientMu.Unlock()
}

func TestServiceRPCForward(t *testing.T) {
	s := newTestServer(t, echoDelegate{})
	withClient(s, "123")

	in, _ := bson.Marshal(M{"Hi": "there"})
	req := skynet.Request{
		ClientID: "123",
		Method:   "Foo",
		In:       bson.Binary{Data: in},
		RequestInfo: skynet.RequestInfoWire{
			RequestID: "id",
		},
	}

	var resp skynet.Response
	if err := s.rpc.Forward(req, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected response error: %s", resp.Error)
	}

	out := M{}
	if err := bson.Unmarshal(resp.Out.Data, &out); err != nil {
		t.Fatal(err)
	}
	if out["Hi"] != "there" {
		t.Fatalf("expected echoed value, got %v", out)
	}
}

func TestServiceRPCForwardUnknownMethod(t *testing.T) {
	s := newTestServer(t, echoDelegate{})
	withClient(s, "123")

	req := skynet.Request{ClientID: "123", Method: "NoSuchMethod"}
	var resp skynet.Response
	if err := s.rpc.Forward(req, &resp); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestServiceRPCForwardUnknownClient(t *testing.T) {
	s := newTestServer(t, echoDelegate{})

	req := skynet.Request{ClientID: "nope", Method: "Foo"}
	var resp skynet.Response
	if err := s.rpc.Forward(req, &resp); err == nil {
		t.Fatal("expected error for unknown ClientID")
	}
}

func TestServiceRPCForwardMethodError(t *testing.T) {
	s := newTestServer(t, echoDelegate{})
	withClient(s, "123")

	in, _ := bson.Marshal(M{})
	req := skynet.Request{ClientID: "123", Method: "Bust", In: bson.Binary{Data: in}}

	var resp skynet.Response
	if err := s.rpc.Forward(req, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "" {
		t.Fatalf("expected response.Error to stay empty for a raised exception, got %q", resp.Error)
	}

	var out struct {
		Exception struct {
			Class     string
			Message   string
			Backtrace []string
		}
	}
	if err := bson.Unmarshal(resp.Out.Data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Exception.Message != "busted" {
		t.Fatalf("expected exception.message %q, got %q", "busted", out.Exception.Message)
	}
}

func TestServiceRPCReservedMethodsNotDispatchable(t *testing.T) {
	s := newTestServer(t, echoDelegate{})
	for _, name := range []string{"Started", "Stopped", "Registered", "Unregistered"} {
		if _, ok := s.rpc.methods[name]; ok {
			t.Fatalf("lifecycle method %q must not be dispatchable over RPC", name)
		}
	}
}
