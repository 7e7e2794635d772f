package encodings

import (
	"bytes"
	"compress/zlib"
	"image"
	"image/jpeg"
)

// Tight compression-control classes (spec.md:112, matching TightVNC's
// rfbTightFill/rfbTightJpeg/rfbTightNoZlib constants). Basic compression has
// no dedicated class byte of its own: its high nibble is the stream id
// (0..3), optionally with the explicit-filter bit set.
const (
	tightCtrlFill   = 0x80
	tightCtrlJPEG   = 0x90
	tightCtrlNoZlib = 0xA0
)

// tightExplicitFilter, set within the stream-id nibble, means a filter id
// byte follows the control byte (spec.md:111).
const tightExplicitFilter = 0x04

// Filter ids, written as the byte immediately after an explicit-filter
// control byte (spec.md:113).
const (
	tightFilterCopy     = 0x00
	tightFilterPalette  = 0x01
	tightFilterGradient = 0x02
)

// Persistent zlib stream indices (spec.md:118): stream 0 carries Basic/
// NoFilter data, stream 1 is reserved, streams 2 and 3 carry Palette and
// Gradient respectively.
const (
	tightStreamBasic    = 0
	tightStreamPalette  = 2
	tightStreamGradient = 3
)

// tightMinToCompress is the inline-vs-compressed threshold: payloads
// smaller than this are written raw, with no compact-length field at all
// (spec.md:115), since zlib framing overhead would lose.
const tightMinToCompress = 12

const tightMaxPaletteSize = 256

type tightStream struct {
	zw  *zlib.Writer
	buf bytes.Buffer
}

// TightEncoder implements the Tight encoding (type 7) and its JPEG variant.
// It tries, in order, Fill (solid rectangle), Palette (≤256 distinct
// colors), an optional Gradient predictor filter, and finally Basic
// (uncompressed-pixel) compression. Only Basic/NoFilter keeps a persistent
// zlib stream (stream 0) across rectangles; Palette and Gradient always
// compress with a fresh stream and assert their own reset bit, matching
// original_source/vnc_lib/tight_encoding.py's _encode_palette/_encode_gradient
// (spec's "compatibility mode resets the relevant stream per-rectangle" is
// therefore this encoder's only mode for those two paths).
//
// A TightEncoder is owned by exactly one client connection; it is not safe
// for concurrent use.
type TightEncoder struct {
	// TPixelBytes is the compact-pixel size: 3 for the 32bpp/depth24
	// true-color case (the padding byte is dropped per RFB TPIXEL rules),
	// or 0 to mean "same as the wire bytesPerPixel".
	TPixelBytes int

	// GradientFilter enables the gradient predictor path for basic
	// compression when no usable palette exists (spec_full §9: off by
	// default, the per-pixel cost only pays for itself on photographic
	// content that JPEG would usually handle instead).
	GradientFilter bool

	// ResetEachRect forces a fresh zlib stream (no carried dictionary) on
	// every rectangle for the Basic/stream-0 path instead of keeping it
	// alive for the connection's lifetime. Off by default; some older
	// viewers need it (spec_full §9 compatibility mode).
	ResetEachRect bool

	basicStream tightStream
}

func NewTightEncoder() *TightEncoder {
	return &TightEncoder{}
}

func (t *TightEncoder) Encode(pixels []byte, width, height, bpp int) ([]byte, error) {
	cpb := bpp
	if t.TPixelBytes > 0 && t.TPixelBytes < bpp {
		cpb = t.TPixelBytes
	}
	if cpb < 1 || cpb > 4 {
		return t.encodeNoZlib(pixels), nil
	}

	if solid, color := isSolidTight(pixels, bpp, cpb); solid {
		return t.encodeFill(color), nil
	}

	if palette, ok := buildTightPalette(pixels, bpp, cpb, tightMaxPaletteSize); ok {
		return t.encodePalette(pixels, width, height, bpp, cpb, palette), nil
	}

	if t.GradientFilter {
		residuals := gradientResiduals(pixels, width, height, bpp, cpb)
		return t.encodeGradient(residuals), nil
	}

	data := flattenCPixels(pixels, width, height, bpp, cpb)
	return t.encodeBasic(data), nil
}

// EncodeJPEG produces a Tight rectangle carrying a JPEG blob instead of a
// zlib-compressed basic/palette/gradient payload, at the caller's quality.
// It applies no minimum region size of its own, and neither EncoderManager
// nor the session loop calls it, so the server never emits Tight-JPEG
// rectangles.
func (t *TightEncoder) EncodeJPEG(pixels []byte, width, height, bpp, quality int) ([]byte, error) {
	img := tightPixelsToImage(pixels, width, height, bpp)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	out := []byte{tightCtrlJPEG}
	out = appendTightPayload(out, buf.Bytes())
	return out, nil
}

func (t *TightEncoder) encodeFill(color []byte) []byte {
	out := make([]byte, 0, 1+len(color))
	out = append(out, tightCtrlFill)
	out = append(out, color...)
	return out
}

// encodeNoZlib is the Basic-class fallback for pixel sizes Tight's TPIXEL
// rules don't cover (spec.md:112 NoZlib class), grounded on
// original_source/vnc_lib/tight_encoding.py's _encode_raw.
func (t *TightEncoder) encodeNoZlib(pixels []byte) []byte {
	out := make([]byte, 0, 1+len(pixels))
	out = append(out, tightCtrlNoZlib)
	out = append(out, pixels...)
	return out
}

// encodeBasic is the Basic/NoFilter path on persistent stream 0 (spec.md:118).
func (t *TightEncoder) encodeBasic(data []byte) []byte {
	ctrl := byte(tightStreamBasic << 4)
	if len(data) < tightMinToCompress {
		out := make([]byte, 0, 1+len(data))
		out = append(out, ctrl)
		out = append(out, data...)
		return out
	}
	if t.ResetEachRect {
		ctrl |= 1 << uint(tightStreamBasic)
	}
	compressed := t.compressPersistent(data)
	out := make([]byte, 0, len(compressed)+4)
	out = append(out, ctrl)
	out = appendCompactLength(out, len(compressed))
	out = append(out, compressed...)
	return out
}

// encodePalette writes the explicit-filter Palette rectangle: control byte,
// filter id, then the palette table in cleartext, then the (optionally
// compressed) index stream — three distinct pieces, never folded together
// (spec.md:111, original_source/vnc_lib/tight_encoding.py:204-263).
func (t *TightEncoder) encodePalette(pixels []byte, width, height, bpp, cpb int, palette []string) []byte {
	ctrl := tightControlByte(tightStreamPalette, true, true)
	indices := buildTightPaletteIndices(pixels, width, height, bpp, cpb, palette)

	out := make([]byte, 0, 3+len(palette)*cpb+len(indices))
	out = append(out, ctrl, tightFilterPalette, byte(len(palette)-1))
	for _, p := range palette {
		out = append(out, p...)
	}
	return appendTightPayloadCompressed(out, indices, t.compressFresh)
}

// encodeGradient writes the explicit-filter Gradient rectangle: control
// byte, filter id, then the (optionally compressed) residual stream
// (spec.md:111, original_source/vnc_lib/tight_encoding.py:352-381).
func (t *TightEncoder) encodeGradient(residuals []byte) []byte {
	ctrl := tightControlByte(tightStreamGradient, true, true)
	out := []byte{ctrl, tightFilterGradient}
	return appendTightPayloadCompressed(out, residuals, t.compressFresh)
}

// tightControlByte builds a Tight control byte: streamID (optionally with
// the explicit-filter bit) occupies the high nibble, and the per-stream
// reset flag occupies its own bit in the low nibble — the two halves are
// independent, per spec.md:111.
func tightControlByte(streamID int, explicitFilter, resetBit bool) byte {
	nibble := streamID
	if explicitFilter {
		nibble |= tightExplicitFilter
	}
	ctrl := byte(nibble << 4)
	if resetBit {
		ctrl |= 1 << uint(streamID)
	}
	return ctrl
}

// appendTightPayload applies the small-payload rule uncompressed: used only
// for classes (Jpeg) that never compress, where the compact-length field is
// still conditional on size (spec.md:115).
func appendTightPayload(out, payload []byte) []byte {
	if len(payload) < tightMinToCompress {
		return append(out, payload...)
	}
	out = appendCompactLength(out, len(payload))
	return append(out, payload...)
}

// appendTightPayloadCompressed applies the small-payload rule to a filtered
// payload: under the threshold it is emitted raw with no compact-length
// field at all and never compressed; at or above it, it is compressed with
// compress and always length-prefixed (spec.md:115).
func appendTightPayloadCompressed(out, data []byte, compress func([]byte) []byte) []byte {
	if len(data) < tightMinToCompress {
		return append(out, data...)
	}
	compressed := compress(data)
	out = appendCompactLength(out, len(compressed))
	return append(out, compressed...)
}

// compressPersistent compresses data on the Basic path's persistent stream
// 0, sync-flushing so the client's matching decompressor keeps state across
// rectangles (spec.md:118).
func (t *TightEncoder) compressPersistent(data []byte) []byte {
	s := &t.basicStream
	if s.zw == nil || t.ResetEachRect {
		s.buf.Reset()
		s.zw = zlib.NewWriter(&s.buf)
	} else {
		s.buf.Reset()
	}
	s.zw.Write(data)
	s.zw.Flush()
	out := make([]byte, s.buf.Len())
	copy(out, s.buf.Bytes())
	return out
}

// compressFresh compresses data with a brand-new zlib stream, sync-flushed
// and discarded — the Palette/Gradient paths never carry compression state
// between rectangles, so they always assert their stream's reset bit.
func (t *TightEncoder) compressFresh(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(data)
	zw.Flush()
	return buf.Bytes()
}

// appendCompactLength appends Tight's variable-length (1-3 byte) length
// encoding: 7 payload bits per byte, continuation bit 0x80, supporting
// lengths up to 2^21-1.
func appendCompactLength(out []byte, n int) []byte {
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			return out
		}
	}
}

func isSolidTight(pixels []byte, bpp, cpb int) (bool, []byte) {
	if len(pixels) < bpp {
		return false, nil
	}
	first := append([]byte(nil), toCPixel(pixels[:bpp], cpb)...)
	for i := bpp; i+bpp <= len(pixels); i += bpp {
		if !bytesEqual(toCPixel(pixels[i:i+bpp], cpb), first) {
			return false, nil
		}
	}
	return true, first
}

func buildTightPalette(pixels []byte, bpp, cpb, max int) ([]string, bool) {
	seen := make(map[string]bool, max+1)
	var order []string
	for i := 0; i+bpp <= len(pixels); i += bpp {
		k := string(toCPixel(pixels[i:i+bpp], cpb))
		if !seen[k] {
			if len(order) >= max {
				return nil, false
			}
			seen[k] = true
			order = append(order, k)
		}
	}
	if len(order) < 2 {
		return nil, false
	}
	return order, true
}

// buildTightPaletteIndices packs one index per pixel: 1 bit/pixel
// (row-aligned, padded to a byte at the end of each row) when the palette
// has exactly 2 entries, else 1 byte/pixel (spec.md:113,
// original_source/vnc_lib/tight_encoding.py:265-305).
func buildTightPaletteIndices(pixels []byte, width, height, bpp, cpb int, palette []string) []byte {
	index := make(map[string]int, len(palette))
	for i, p := range palette {
		index[p] = i
	}
	if len(palette) == 2 {
		return packPaletteIndices1Bit(pixels, width, height, bpp, cpb, index)
	}
	return packPaletteIndices8Bit(pixels, bpp, cpb, index)
}

func packPaletteIndices1Bit(pixels []byte, width, height, bpp, cpb int, index map[string]int) []byte {
	out := make([]byte, 0, (width+7)/8*height)
	for y := 0; y < height; y++ {
		var b byte
		bit := 7
		for x := 0; x < width; x++ {
			off := (y*width + x) * bpp
			if index[string(toCPixel(pixels[off:off+bpp], cpb))] == 1 {
				b |= 1 << uint(bit)
			}
			bit--
			if bit < 0 {
				out = append(out, b)
				b = 0
				bit = 7
			}
		}
		if bit < 7 {
			out = append(out, b)
		}
	}
	return out
}

func packPaletteIndices8Bit(pixels []byte, bpp, cpb int, index map[string]int) []byte {
	total := len(pixels) / bpp
	out := make([]byte, 0, total)
	for i := 0; i+bpp <= len(pixels); i += bpp {
		out = append(out, byte(index[string(toCPixel(pixels[i:i+bpp], cpb))]))
	}
	return out
}

func flattenCPixels(pixels []byte, width, height, bpp, cpb int) []byte {
	if cpb == bpp {
		return pixels
	}
	total := width * height
	out := make([]byte, total*cpb)
	for i := 0; i < total; i++ {
		so := i * bpp
		do := i * cpb
		copy(out[do:do+cpb], pixels[so:so+cpb])
	}
	return out
}

// gradientResiduals implements Tight's gradient predictor filter: each
// channel is predicted from its left, above and above-left neighbours
// (clipped to 0-255) and the residual (wraparound byte subtraction) is
// stored instead of the raw sample.
func gradientResiduals(pixels []byte, width, height, bpp, cpb int) []byte {
	out := make([]byte, width*height*cpb)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			srcOff := (y*width + x) * bpp
			px := toCPixel(pixels[srcOff:srcOff+bpp], cpb)
			dstOff := (y*width + x) * cpb
			for c := 0; c < cpb; c++ {
				var left, above, aboveLeft byte
				if x > 0 {
					lo := (y*width + x - 1) * bpp
					left = toCPixel(pixels[lo:lo+bpp], cpb)[c]
				}
				if y > 0 {
					uo := ((y-1)*width + x) * bpp
					above = toCPixel(pixels[uo:uo+bpp], cpb)[c]
				}
				if x > 0 && y > 0 {
					ulo := ((y-1)*width + x - 1) * bpp
					aboveLeft = toCPixel(pixels[ulo:ulo+bpp], cpb)[c]
				}
				pred := gradientPredict(left, above, aboveLeft)
				out[dstOff+c] = px[c] - pred
			}
		}
	}
	return out
}

func gradientPredict(left, above, aboveLeft byte) byte {
	p := int(left) + int(above) - int(aboveLeft)
	if p < 0 {
		p = 0
	}
	if p > 255 {
		p = 255
	}
	return byte(p)
}

// tightPixelsToImage assumes the server-native pixel layout (spec §3:
// 32bpp, shifts 16/8/0 little-endian => byte order B,G,R,pad), which is the
// only format JPEG is ever selected for (true-color depth 24).
func tightPixelsToImage(pixels []byte, width, height, bpp int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	n := width * height
	for i := 0; i < n; i++ {
		so := i * bpp
		do := i * 4
		b := pixels[so]
		g := pixels[so+1]
		r := pixels[so+2]
		img.Pix[do] = r
		img.Pix[do+1] = g
		img.Pix[do+2] = b
		img.Pix[do+3] = 255
	}
	return img
}
