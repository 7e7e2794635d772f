// Package pixconv converts the server-native 32bpp BGRX framebuffer into
// whatever PixelFormat a client negotiated, with cached per-channel lookup
// tables so the common 16bpp/8bpp/truecolor-swap cases don't cost a
// division per pixel.
//
// Format is a deliberately independent copy of rfb.PixelFormat's channel
// layout fields (no import of internal/rfb): internal/rfb depends on this
// package for its frame producer, so the reverse dependency would cycle.
package pixconv

import "encoding/binary"

// Format is the subset of PixelFormat that affects pixel conversion.
type Format struct {
	BitsPerPixel int
	BigEndian    bool

	RedMax, GreenMax, BlueMax       uint16
	RedShift, GreenShift, BlueShift uint8
}

func (f Format) BytesPerPixel() int { return f.BitsPerPixel / 8 }

// ServerNative is the format framebuffer captures and CopyRect/change
// detection always operate in: 32bpp, little-endian, 8 bits per channel,
// byte order B,G,R,pad (matches rfb.ServerNativeFormat).
var ServerNative = Format{
	BitsPerPixel: 32,
	BigEndian:    false,
	RedMax:       255, GreenMax: 255, BlueMax: 255,
	RedShift: 16, GreenShift: 8, BlueShift: 0,
}

// IsServerNativePassthrough reports whether f is byte-identical to the
// server-native layout, making conversion a plain copy (spec §4.3 "zero-copy
// BGR0 passthrough").
func (f Format) IsServerNativePassthrough() bool { return f == ServerNative }

// IsRGB0Swap reports whether f is the server-native layout with red and
// blue swapped — common enough (some viewers default to it) to deserve its
// own fast path instead of falling through to the generic LUT path.
func (f Format) IsRGB0Swap() bool {
	return f.BitsPerPixel == 32 && !f.BigEndian &&
		f.RedMax == 255 && f.GreenMax == 255 && f.BlueMax == 255 &&
		f.RedShift == 0 && f.GreenShift == 8 && f.BlueShift == 16
}

// Converter holds the lookup tables for the currently installed Format,
// rebuilt only when SetFormat sees an actual change. Not safe for
// concurrent use; one Converter belongs to exactly one connection.
type Converter struct {
	format           Format
	have             bool
	rLUT, gLUT, bLUT [256]uint32
}

func NewConverter() *Converter {
	return &Converter{}
}

// SetFormat installs the target format, rebuilding the channel LUTs if it
// differs from the one already installed.
func (c *Converter) SetFormat(f Format) {
	if c.have && c.format == f {
		return
	}
	c.format = f
	c.have = true
	for i := 0; i < 256; i++ {
		c.rLUT[i] = scaleChannel(uint8(i), f.RedMax) << f.RedShift
		c.gLUT[i] = scaleChannel(uint8(i), f.GreenMax) << f.GreenShift
		c.bLUT[i] = scaleChannel(uint8(i), f.BlueMax) << f.BlueShift
	}
}

func scaleChannel(v uint8, max uint16) uint32 {
	if max == 255 {
		return uint32(v)
	}
	return uint32(v) * uint32(max) / 255
}

// Convert fills dst (width*height*format.BytesPerPixel() bytes) from src,
// a width*height*4 byte server-native BGRX buffer.
func (c *Converter) Convert(dst, src []byte, width, height int) {
	switch {
	case c.format.IsServerNativePassthrough():
		copy(dst, src[:len(dst)])
		return
	case c.format.IsRGB0Swap():
		convertRGB0Swap(dst, src, width*height)
		return
	}

	n := width * height
	switch c.format.BitsPerPixel {
	case 32:
		c.convertGeneric32(dst, src, n)
	case 16:
		c.convertGeneric16(dst, src, n)
	case 8:
		c.convertGeneric8(dst, src, n)
	}
}

func (c *Converter) pixelValue(src []byte, i int) uint32 {
	b := src[i*4]
	g := src[i*4+1]
	r := src[i*4+2]
	return c.rLUT[r] | c.gLUT[g] | c.bLUT[b]
}

func (c *Converter) convertGeneric32(dst, src []byte, n int) {
	for i := 0; i < n; i++ {
		v := c.pixelValue(src, i)
		if c.format.BigEndian {
			binary.BigEndian.PutUint32(dst[i*4:], v)
		} else {
			binary.LittleEndian.PutUint32(dst[i*4:], v)
		}
	}
}

func (c *Converter) convertGeneric16(dst, src []byte, n int) {
	for i := 0; i < n; i++ {
		v := uint16(c.pixelValue(src, i))
		if c.format.BigEndian {
			binary.BigEndian.PutUint16(dst[i*2:], v)
		} else {
			binary.LittleEndian.PutUint16(dst[i*2:], v)
		}
	}
}

func (c *Converter) convertGeneric8(dst, src []byte, n int) {
	for i := 0; i < n; i++ {
		dst[i] = byte(c.pixelValue(src, i))
	}
}

func convertRGB0Swap(dst, src []byte, n int) {
	for i := 0; i < n; i++ {
		so := i * 4
		dst[so] = src[so+2]
		dst[so+1] = src[so+1]
		dst[so+2] = src[so]
		dst[so+3] = 0
	}
}
