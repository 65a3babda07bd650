package bsonrpc

import (
	"bytes"
	"net/rpc"
	"testing"

	"gopkg.in/mgo.v2/bson"
)

func TestEncode(t *testing.T) {
	req := rpc.Request{
		ServiceMethod: "Foo.Bar",
		Seq:           3,
	}

	buf := new(bytes.Buffer)
	enc := NewEncoder(buf)

	if err := enc.Encode(req); err != nil {
		t.Fatal(err)
	}

	b, err := bson.Marshal(req)

	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(buf.Bytes(), b) {
		t.Fatal("Encoded bytes don't match bson.Marshal output")
	}
}

func TestDecode(t *testing.T) {
	req := rpc.Request{
		ServiceMethod: "Foo.Bar",
		Seq:           3,
	}

	b, err := bson.Marshal(req)

	if err != nil {
		t.Fatal(err)
	}

	buf := bytes.NewBuffer(b)
	dec := NewDecoder(buf)

	r := new(rpc.Request)
	err = dec.Decode(r)

	if err != nil {
		t.Fatal(err)
	}

	if *r != req {
		t.Fatal("Values don't match")
	}
}

func TestDecodeReadsOnlyOne(t *testing.T) {
	req := rpc.Request{
		ServiceMethod: "Foo.Bar",
		Seq:           3,
	}

	type T struct {
		Value string
	}

	tv := T{"test"}

	b, err := bson.Marshal(req)

	if err != nil {
		t.Fatal(err)
	}

	buf := bytes.NewBuffer(b)

	b, err = bson.Marshal(tv)

	if err != nil {
		t.Fatal(err)
	}

	buf.Write(b)
	dec := NewDecoder(buf)

	r := new(rpc.Request)
	err = dec.Decode(r)

	if *r != req {
		t.Fatal("Values don't match")
	}

	if err != nil {
		t.Fatal(err)
	}

	// We should be able to read a second message off this io.Reader
	tmp := new(T)
	err = dec.Decode(tmp)

	if err != nil {
		t.Fatal(err)
	}

	if *tmp != tv {
		t.Fatal("Values don't match")
	}

}
