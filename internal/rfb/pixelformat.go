// Package rfb implements the RFB (RFC 6143) protocol engine: version and
// security handshake, pixel-format/encoding negotiation, message framing and
// the per-connection session loop.
package rfb

import "fmt"

// PixelFormat describes the on-wire layout of a pixel, as negotiated via
// ServerInit or a client SetPixelFormat message. See RFC 6143 §7.4.
type PixelFormat struct {
	BitsPerPixel uint8 // 8, 16 or 32
	Depth        uint8
	BigEndian    bool
	TrueColour   bool
	RedMax       uint16
	GreenMax     uint16
	BlueMax      uint16
	RedShift     uint8
	GreenShift   uint8
	BlueShift    uint8
}

// pixelFormatWireSize is the fixed encoded length of a PixelFormat: 16 bytes, including
// 3 padding bytes at the tail (RFC 6143 §7.4).
const pixelFormatWireSize = 16

// ServerNativeFormat is the format the capture pipeline always produces:
// 32bpp BGRX, little-endian, top-down, row-major (spec §3 CaptureResult).
var ServerNativeFormat = PixelFormat{
	BitsPerPixel: 32,
	Depth:        24,
	BigEndian:    false,
	TrueColour:   true,
	RedMax:       255,
	GreenMax:     255,
	BlueMax:      255,
	RedShift:     16,
	GreenShift:   8,
	BlueShift:    0,
}

// BytesPerPixel returns bits-per-pixel/8.
func (pf PixelFormat) BytesPerPixel() int {
	return int(pf.BitsPerPixel) / 8
}

// IsBGR0Passthrough reports whether pf is the zero-copy BGR0 case: 32bpp,
// little-endian, shifts 16/8/0 (spec §3). The captured buffer can be emitted
// unmodified.
func (pf PixelFormat) IsBGR0Passthrough() bool {
	return pf.BitsPerPixel == 32 && !pf.BigEndian && pf.TrueColour &&
		pf.RedShift == 16 && pf.GreenShift == 8 && pf.BlueShift == 0
}

// IsRGB0Swap reports the RGB0 32bpp little-endian case with shifts 0/8/16.
func (pf PixelFormat) IsRGB0Swap() bool {
	return pf.BitsPerPixel == 32 && !pf.BigEndian && pf.TrueColour &&
		pf.RedShift == 0 && pf.GreenShift == 8 && pf.BlueShift == 16
}

// IsTightTruecolour24 reports the TPIXEL case used by the Tight encoding:
// true-colour, depth 24, 32bpp — on the wire, Tight trims the padding byte
// and sends 3-byte RGB pixels instead of 4 (spec §4.5 "TPIXEL rule").
func (pf PixelFormat) IsTightTruecolour24() bool {
	return pf.TrueColour && pf.Depth == 24 && pf.BitsPerPixel == 32
}

// Marshal encodes pf into the 16-byte wire representation.
func (pf PixelFormat) Marshal() []byte {
	buf := make([]byte, pixelFormatWireSize)
	buf[0] = pf.BitsPerPixel
	buf[1] = pf.Depth
	buf[2] = boolByte(pf.BigEndian)
	buf[3] = boolByte(pf.TrueColour)
	putUint16(buf[4:6], pf.RedMax)
	putUint16(buf[6:8], pf.GreenMax)
	putUint16(buf[8:10], pf.BlueMax)
	buf[10] = pf.RedShift
	buf[11] = pf.GreenShift
	buf[12] = pf.BlueShift
	// buf[13:16] padding, left zero.
	return buf
}

// UnmarshalPixelFormat decodes a 16-byte wire representation.
func UnmarshalPixelFormat(buf []byte) (PixelFormat, error) {
	if len(buf) != pixelFormatWireSize {
		return PixelFormat{}, fmt.Errorf("rfb: pixel format must be %d bytes, got %d", pixelFormatWireSize, len(buf))
	}
	pf := PixelFormat{
		BitsPerPixel: buf[0],
		Depth:        buf[1],
		BigEndian:    buf[2] != 0,
		TrueColour:   buf[3] != 0,
		RedMax:       getUint16(buf[4:6]),
		GreenMax:     getUint16(buf[6:8]),
		BlueMax:      getUint16(buf[8:10]),
		RedShift:     buf[10],
		GreenShift:   buf[11],
		BlueShift:    buf[12],
	}
	switch pf.BitsPerPixel {
	case 8, 16, 32:
	default:
		return PixelFormat{}, fmt.Errorf("%w: unsupported bits-per-pixel %d", ErrProtocol, pf.BitsPerPixel)
	}
	return pf, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
