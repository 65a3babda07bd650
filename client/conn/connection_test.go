package conn

import (
	"net"
	"testing"
	"time"

	"gopkg.in/mgo.v2/bson"

	"github.com/skynetfabric/skynet"
	"github.com/skynetfabric/skynet/rpc/bsonrpc"
)

func TestHandshake(t *testing.T) {
	client, server := net.Pipe()

	go doServiceHandshake(server, "TestService", true, t)

	cn, err := NewConnectionFromNetConn("TestService", client, nil)
	if err != nil {
		t.Fatal("Failed to perform handshake", err)
	}

	c := cn.(*Conn)
	if c.clientID != "abc" {
		t.Fatalf("expected clientID %q, got %q", "abc", c.clientID)
	}

	c.Close()
	server.Close()
}

func TestErrorOnUnregistered(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go doServiceHandshake(server, "TestService", false, t)

	_, err := NewConnectionFromNetConn("TestService", client, nil)
	if err == nil {
		t.Fatal("Connection should return error when service is unregistered")
	}
}

func TestSetIdleTimeout(t *testing.T) {
	client, _ := net.Pipe()
	defer client.Close()

	c := Conn{netConn: client}
	c.SetIdleTimeout(1 * time.Minute)

	if c.idleTimeout != 1*time.Minute {
		t.Fatal("IdleTimeout not set as expected")
	}
}

func TestSend(t *testing.T) {
	client, server := net.Pipe()
	go doServiceHandshake(server, "TestRPCService", true, t)

	cn, err := NewConnectionFromNetConn("TestRPCService", client, nil)
	if err != nil {
		t.Fatal(err)
	}
	c := cn.(*Conn)

	go serveForwardOnce(server, t, func(req skynet.Request) skynet.Response {
		var tp TestParam
		if err := bson.Unmarshal(req.In.Data, &tp); err != nil {
			t.Error(err)
		}
		tp.Val1 += "world!"
		tp.Val2 += 5
		data, err := bson.Marshal(tp)
		if err != nil {
			t.Error(err)
		}
		return skynet.Response{Out: bson.Binary{Kind: 0x00, Data: data}}
	})

	var tp TestParam
	tp.Val1 = "Hello "
	tp.Val2 = 10

	ri := &skynet.RequestInfo{}
	var out TestParam
	err = c.Send(ri, "Foo", tp, &out, false)
	if err != nil {
		t.Fatal(err)
	}
	if out.Val1 != "Hello world!" || out.Val2 != 15 {
		t.Fatalf("unexpected result: %+v", out)
	}

	c.Close()
	server.Close()
}

func TestSendOnClosedConnection(t *testing.T) {
	client, server := net.Pipe()
	go doServiceHandshake(server, "TestService", true, t)

	c, err := NewConnectionFromNetConn("TestService", client, nil)
	if err != nil {
		t.Fatal(err)
	}
	c.Close()

	var out TestParam
	ri := &skynet.RequestInfo{}
	err = c.Send(ri, "foo", TestParam{}, &out, false)
	if err == nil {
		t.Fatal("Send() should not send when connection has been closed")
	}
}

/*
 * Test helpers
 */

type TestParam struct {
	Val1 string
	Val2 int
}

func doServiceHandshake(server net.Conn, serviceName string, registered bool, t *testing.T) {
	sh := skynet.ServiceHandshake{
		Name:       serviceName,
		Registered: registered,
		ClientID:   "abc",
	}

	enc := bsonrpc.NewEncoder(server)
	if err := enc.Encode(sh); err != nil {
		t.Fatal("Failed to encode server handshake", err)
	}

	if !registered {
		return
	}

	var ch skynet.ClientHandshake
	dec := bsonrpc.NewDecoder(server)
	if err := dec.Decode(&ch); err != nil {
		t.Fatal("Error reading ClientHandshake: ", err)
	}
}

func serveForwardOnce(server net.Conn, t *testing.T, handle func(skynet.Request) skynet.Response) {
	enc := bsonrpc.NewEncoder(server)
	dec := bsonrpc.NewDecoder(server)

	var header skynet.RequestHeader
	if err := dec.Decode(&header); err != nil {
		t.Error(err)
		return
	}
	var req skynet.Request
	if err := dec.Decode(&req); err != nil {
		t.Error(err)
		return
	}

	resp := handle(req)

	if err := enc.Encode(skynet.ResponseHeader{ServiceMethod: header.ServiceMethod, Seq: header.Seq}); err != nil {
		t.Error(err)
		return
	}
	if err := enc.Encode(resp); err != nil {
		t.Error(err)
	}
}
