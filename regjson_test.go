package skynet

import (
	"testing"
)

func TestEncodeRegistryValueTagsSymbol(t *testing.T) {
	b, err := EncodeRegistryValue(Symbol("running"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `":running"` {
		t.Fatalf("expected tagged symbol, got %s", b)
	}
}

func TestDecodeRegistryValueRoundTripsSymbol(t *testing.T) {
	b, err := EncodeRegistryValue(Symbol("running"))
	if err != nil {
		t.Fatal(err)
	}

	v, err := DecodeRegistryValue(b)
	if err != nil {
		t.Fatal(err)
	}
	sym, ok := v.(Symbol)
	if !ok || sym != "running" {
		t.Fatalf("expected Symbol(running), got %#v", v)
	}
}

func TestEncodeRegistryValuePreservesMapAndScalars(t *testing.T) {
	in := map[string]interface{}{
		"count":      3,
		"enabled":    true,
		"name":       "echo",
		"state":      Symbol("registered"),
		"percentage": 0.5,
	}

	b, err := EncodeRegistryValue(in)
	if err != nil {
		t.Fatal(err)
	}

	out, err := DecodeRegistryValue(b)
	if err != nil {
		t.Fatal(err)
	}

	m, ok := out.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map, got %#v", out)
	}
	if m["name"] != "echo" {
		t.Fatalf("expected name to round-trip as a string, got %#v", m["name"])
	}
	if m["state"] != Symbol("registered") {
		t.Fatalf("expected state to round-trip as a Symbol, got %#v", m["state"])
	}
	if m["enabled"] != true {
		t.Fatalf("expected enabled to round-trip as bool, got %#v", m["enabled"])
	}
}

func TestDecodeRegistryValueLeavesOrdinaryStringsAlone(t *testing.T) {
	b, err := EncodeRegistryValue("hello")
	if err != nil {
		t.Fatal(err)
	}
	v, err := DecodeRegistryValue(b)
	if err != nil {
		t.Fatal(err)
	}
	if v != "hello" {
		t.Fatalf("expected plain string to pass through, got %#v", v)
	}
}
