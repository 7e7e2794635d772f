// Package encodings implements the RFB rectangle encoders: Raw, CopyRect,
// RRE, Hextile, ZRLE, Tight and the Tight-JPEG variant, plus the
// EncoderManager that picks among them for a given rectangle.
//
// Every encoder shares one contract: pixels in, encoded bytes out. None of
// them write a rectangle header (x, y, w, h, encoding-type) — the protocol
// engine does that (spec §4.5).
package encodings

import "encoding/binary"

// Encoder turns a region's pixels (row-major, top-down, tightly packed, in
// the client's negotiated pixel format) into the encoding's wire payload.
type Encoder interface {
	Encode(pixels []byte, width, height, bytesPerPixel int) ([]byte, error)
}

// EncoderFunc adapts a plain function to Encoder.
type EncoderFunc func(pixels []byte, width, height, bytesPerPixel int) ([]byte, error)

func (f EncoderFunc) Encode(pixels []byte, width, height, bytesPerPixel int) ([]byte, error) {
	return f(pixels, width, height, bytesPerPixel)
}

func putU16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func putU32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func getU16(b []byte) uint16    { return binary.BigEndian.Uint16(b) }
func getU32(b []byte) uint32    { return binary.BigEndian.Uint32(b) }
