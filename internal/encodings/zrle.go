package encodings

import (
	"bytes"
	"compress/zlib"
)

// zrleTileSize is the ZRLE tile dimension (distinct from Hextile's 16x16).
const zrleTileSize = 64

// zrleMaxPalette bounds the packed-palette path; tiles with more distinct
// colors fall through to plain RLE instead (spec §4.5).
const zrleMaxPalette = 16

// ZRLEEncoder implements the ZRLE encoding (type 16): 64x64 tiles, each
// solid/packed-palette/plain-RLE encoded, the whole rectangle's tile stream
// then compressed through one zlib stream kept alive for the client's whole
// session (a sync flush after each rectangle, never Close, per spec §4.5 and
// §4.9 "per-client persistent compressor state").
//
// A ZRLEEncoder is owned by exactly one client connection; it is not safe
// for concurrent use.
type ZRLEEncoder struct {
	// CPixelBytes is the compact-pixel size: 3 for the 32bpp/depth24
	// true-color case (padding byte dropped), or 0 to mean "same as the
	// wire bytesPerPixel" for any other negotiated format.
	CPixelBytes int

	zw  *zlib.Writer
	buf bytes.Buffer
}

func NewZRLEEncoder() *ZRLEEncoder {
	return &ZRLEEncoder{}
}

func (z *ZRLEEncoder) Encode(pixels []byte, width, height, bpp int) ([]byte, error) {
	cpb := z.CPixelBytes
	if cpb == 0 || cpb > bpp {
		cpb = bpp
	}
	if z.zw == nil {
		z.zw = zlib.NewWriter(&z.buf)
	}
	z.buf.Reset()

	var tiles bytes.Buffer
	for ty := 0; ty < height; ty += zrleTileSize {
		th := min(zrleTileSize, height-ty)
		for tx := 0; tx < width; tx += zrleTileSize {
			tw := min(zrleTileSize, width-tx)
			tile := extractTile(pixels, width, bpp, tx, ty, tw, th)
			encodeZRLETile(&tiles, tile, tw, th, bpp, cpb)
		}
	}

	if _, err := z.zw.Write(tiles.Bytes()); err != nil {
		return nil, err
	}
	if err := z.zw.Flush(); err != nil {
		return nil, err
	}

	compressed := z.buf.Bytes()
	out := make([]byte, 4+len(compressed))
	putU32(out[0:4], uint32(len(compressed)))
	copy(out[4:], compressed)
	return out, nil
}

func encodeZRLETile(buf *bytes.Buffer, tile []byte, tw, th, bpp, cpb int) {
	total := tw * th
	palette := make([]string, 0, zrleMaxPalette+1)
	index := make(map[string]int, zrleMaxPalette+1)
	overflowed := false

	for i := 0; i < total; i++ {
		off := i * bpp
		key := string(toCPixel(tile[off:off+bpp], cpb))
		if _, ok := index[key]; !ok {
			if len(palette) >= zrleMaxPalette {
				overflowed = true
				break
			}
			index[key] = len(palette)
			palette = append(palette, key)
		}
	}

	switch {
	case !overflowed && len(palette) == 1:
		buf.WriteByte(1)
		buf.WriteString(palette[0])
	case !overflowed && len(palette) >= 2:
		encodeZRLEPacked(buf, tile, tw, th, bpp, cpb, palette, index)
	default:
		encodeZRLEPlainRLE(buf, tile, tw, th, bpp, cpb)
	}
}

func encodeZRLEPacked(buf *bytes.Buffer, tile []byte, tw, th, bpp, cpb int, palette []string, index map[string]int) {
	n := len(palette)
	buf.WriteByte(byte(n))
	for _, p := range palette {
		buf.WriteString(p)
	}

	bitsPerPixel := 4
	switch {
	case n == 2:
		bitsPerPixel = 1
	case n <= 4:
		bitsPerPixel = 2
	}

	for y := 0; y < th; y++ {
		var cur byte
		nbits := 0
		for x := 0; x < tw; x++ {
			off := (y*tw + x) * bpp
			key := string(toCPixel(tile[off:off+bpp], cpb))
			idx := index[key]
			cur = cur<<uint(bitsPerPixel) | byte(idx)
			nbits += bitsPerPixel
			if nbits == 8 {
				buf.WriteByte(cur)
				cur = 0
				nbits = 0
			}
		}
		if nbits > 0 {
			cur <<= uint(8 - nbits)
			buf.WriteByte(cur)
		}
	}
}

// encodeZRLEPlainRLE run-length encodes the tile's raster-order pixel
// stream (subencoding 128): each run is one CPIXEL plus a continuation-byte
// run length (255 means "at least 255 more follow").
func encodeZRLEPlainRLE(buf *bytes.Buffer, tile []byte, tw, th, bpp, cpb int) {
	buf.WriteByte(128)
	total := tw * th
	i := 0
	for i < total {
		off := i * bpp
		run := 1
		for i+run < total {
			next := (i + run) * bpp
			if !bytesEqual(tile[next:next+bpp], tile[off:off+bpp]) {
				break
			}
			run++
		}
		buf.Write(toCPixel(tile[off:off+bpp], cpb))
		remaining := run - 1
		for remaining >= 255 {
			buf.WriteByte(255)
			remaining -= 255
		}
		buf.WriteByte(byte(remaining))
		i += run
	}
}

func toCPixel(px []byte, cpb int) []byte {
	if cpb >= len(px) {
		return px
	}
	return px[:cpb]
}
