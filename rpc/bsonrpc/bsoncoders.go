// Package bsonrpc implements the Skynet wire framing over net/rpc:
// each direction writes a sequence of BSON documents, each preceded
// by its own 4-byte little-endian length (the length includes the
// 4-byte prefix itself, per spec.md §4.C/§6). Grounded on the
// teacher's rpc/bsonrpc/bsoncoders.go, generalized onto
// gopkg.in/mgo.v2/bson and plain wrapped errors instead of the
// removed skynet2/log package.
package bsonrpc

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"gopkg.in/mgo.v2/bson"
)

// Encoder writes framed BSON documents to w.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode marshals v to BSON and writes it with its self-inclusive
// 4-byte length prefix, matching bson.Marshal's own leading length
// field so no extra framing byte is introduced.
func (e *Encoder) Encode(v interface{}) error {
	buf, err := bson.Marshal(v)
	if err != nil {
		return fmt.Errorf("bsonrpc: marshal: %w", err)
	}
	n, err := e.w.Write(buf)
	if err != nil {
		return fmt.Errorf("bsonrpc: write: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("bsonrpc: short write: wrote %d of %d bytes", n, len(buf))
	}
	return nil
}

// Decoder reads framed BSON documents from r.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode reads one framed document into pv. A read that returns fewer
// bytes than the declared length is a protocol error (spec.md §4.C).
func (d *Decoder) Decode(pv interface{}) error {
	var lbuf [4]byte
	if _, err := io.ReadFull(d.r, lbuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return io.EOF
		}
		return err
	}

	length := binary.LittleEndian.Uint32(lbuf[:])
	if length < 4 {
		return fmt.Errorf("bsonrpc: corrupt frame: declared length %d", length)
	}

	buf := make([]byte, length)
	copy(buf[0:4], lbuf[:])
	if _, err := io.ReadFull(d.r, buf[4:]); err != nil {
		return fmt.Errorf("bsonrpc: short read: %w", err)
	}

	if err := bson.Unmarshal(buf, pv); err != nil {
		return fmt.Errorf("bsonrpc: unmarshal: %w", err)
	}
	return nil
}
