package rfb

import (
	"bufio"
	"encoding/binary"
	"io"
)

// chunkSize is the recommended chunk for streaming large outgoing payloads
// (spec §4.1: payloads >1 MiB are streamed in fixed chunks instead of one
// giant write, so a slow client can't force an unbounded buffer).
const chunkSize = 256 * 1024

// coalesceThreshold is the point above which outgoing rectangle payloads are
// chunked rather than written in a single call (spec §4.1).
const coalesceThreshold = 1024 * 1024

// wireConn wraps the buffered reader/writer pair used by a session and
// supplies the big-endian framing primitives the protocol engine needs.
// Grounded on patdhlk-rfb/bradfitz-rfbgo's Conn.read/w helpers, generalized
// to return errors instead of panicking.
type wireConn struct {
	br *bufio.Reader
	bw *bufio.Writer
}

func newWireConn(r io.Reader, w io.Writer) *wireConn {
	return &wireConn{br: bufio.NewReader(r), bw: bufio.NewWriter(w)}
}

// readExact reads exactly n bytes or returns a TransportError-wrapping
// error on short read / EOF.
func (c *wireConn) readExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.br, buf); err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	return buf, nil
}

func (c *wireConn) readByte() (byte, error) {
	b, err := c.br.ReadByte()
	if err != nil {
		return 0, &TransportError{Op: "read", Err: err}
	}
	return b, nil
}

func (c *wireConn) readUint16() (uint16, error) {
	buf, err := c.readExact(2)
	if err != nil {
		return 0, err
	}
	return getUint16(buf), nil
}

func (c *wireConn) readUint32() (uint32, error) {
	buf, err := c.readExact(4)
	if err != nil {
		return 0, err
	}
	return getUint32(buf), nil
}

func (c *wireConn) readInt32() (int32, error) {
	v, err := c.readUint32()
	return int32(v), err
}

func (c *wireConn) skip(n int) error {
	_, err := c.readExact(n)
	return err
}

// writeAll writes the whole buffer, chunking large payloads per spec §4.1.
func (c *wireConn) writeAll(buf []byte) error {
	if len(buf) <= coalesceThreshold {
		_, err := c.bw.Write(buf)
		if err != nil {
			return &TransportError{Op: "write", Err: err}
		}
		return nil
	}
	for off := 0; off < len(buf); off += chunkSize {
		end := off + chunkSize
		if end > len(buf) {
			end = len(buf)
		}
		if _, err := c.bw.Write(buf[off:end]); err != nil {
			return &TransportError{Op: "write", Err: err}
		}
	}
	return nil
}

func (c *wireConn) writeByte(b byte) error {
	if err := c.bw.WriteByte(b); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

func (c *wireConn) writeUint16(v uint16) error {
	var buf [2]byte
	putUint16(buf[:], v)
	return c.writeAll(buf[:])
}

func (c *wireConn) writeUint32(v uint32) error {
	var buf [4]byte
	putUint32(buf[:], v)
	return c.writeAll(buf[:])
}

func (c *wireConn) writeInt32(v int32) error {
	return c.writeUint32(uint32(v))
}

// skipWrite writes n zero padding bytes.
func (c *wireConn) skipWrite(n int) error {
	if n <= 0 {
		return nil
	}
	return c.writeAll(make([]byte, n))
}

func (c *wireConn) flush() error {
	if err := c.bw.Flush(); err != nil {
		return &TransportError{Op: "flush", Err: err}
	}
	return nil
}

func getUint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func getUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func putUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func putUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
