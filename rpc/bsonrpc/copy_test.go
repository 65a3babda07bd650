package bsonrpc

import (
	"testing"

	"gopkg.in/mgo.v2/bson"
)

func TestCopyStruct(t *testing.T) {
	var src = bson.M{
		"Hi":   "there",
		"What": []interface{}{"is", "up"},
	}
	type Dtyp struct {
		Hi   string
		What []string
	}
	var dst Dtyp
	if err := CopyTo(src, &dst); err != nil {
		t.Fatal(err)
	}
	if dst.Hi != "there" {
		t.Errorf("Expected %q, got %q", "there", dst.Hi)
	}
	if len(dst.What) != 2 || dst.What[0] != "is" || dst.What[1] != "up" {
		t.Errorf("Expected [is up], got %v", dst.What)
	}
}
