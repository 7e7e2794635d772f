package encodings

import (
	"bytes"
	"compress/zlib"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTightFillRectangle(t *testing.T) {
	const w, h, bpp = 32, 32, 4
	pixels := make([]byte, w*h*bpp)
	fill := []byte{1, 2, 3, 4}
	for i := 0; i < w*h; i++ {
		copy(pixels[i*bpp:(i+1)*bpp], fill)
	}

	tight := NewTightEncoder()
	out, err := tight.Encode(pixels, w, h, bpp)
	require.NoError(t, err)
	require.Equal(t, byte(0x80), out[0])
	require.Equal(t, fill, out[1:1+bpp])
	require.Len(t, out, 1+bpp)
}

// TestTightFillLiteralByteSequence pins the exact wire bytes spec.md's
// scenario 4 names for a solid fill: control 0x80 followed by the 3-byte
// TPIXEL.
func TestTightFillLiteralByteSequence(t *testing.T) {
	const w, h, bpp = 4, 4, 4
	pixels := make([]byte, w*h*bpp)
	fill := []byte{1, 2, 3, 0}
	for i := 0; i < w*h; i++ {
		copy(pixels[i*bpp:(i+1)*bpp], fill)
	}

	tight := NewTightEncoder()
	tight.TPixelBytes = 3
	out, err := tight.Encode(pixels, w, h, bpp)
	require.NoError(t, err)
	require.Equal(t, []byte{0x80, 0x01, 0x02, 0x03}, out)
}

func TestTightFillWithTPixelDropsPaddingByte(t *testing.T) {
	const w, h, bpp = 4, 4, 4
	pixels := make([]byte, w*h*bpp)
	fill := []byte{9, 8, 7, 0xFF}
	for i := 0; i < w*h; i++ {
		copy(pixels[i*bpp:(i+1)*bpp], fill)
	}

	tight := NewTightEncoder()
	tight.TPixelBytes = 3
	out, err := tight.Encode(pixels, w, h, bpp)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 8, 7}, out[1:4])
	require.Len(t, out, 4)
}

// TestTightPaletteRectangleLayout verifies the explicit-filter control
// byte, the separate filter-id byte, the cleartext palette table, and the
// 1-bit-per-pixel row-aligned index packing for a 2-color palette
// (spec.md:111,113, original_source/vnc_lib/tight_encoding.py:227-263).
func TestTightPaletteRectangleLayout(t *testing.T) {
	const w, h, bpp = 8, 8, 4
	a := []byte{1, 1, 1, 0}
	b := []byte{2, 2, 2, 0}
	pixels := make([]byte, w*h*bpp)
	for i := 0; i < w*h; i++ {
		c := a
		if i%2 == 0 {
			c = b
		}
		copy(pixels[i*bpp:(i+1)*bpp], c)
	}

	tight := NewTightEncoder()
	out, err := tight.Encode(pixels, w, h, bpp)
	require.NoError(t, err)

	wantCtrl := tightControlByte(tightStreamPalette, true, true)
	require.Equal(t, wantCtrl, out[0])
	require.Equal(t, byte(tightFilterPalette), out[1])
	require.Equal(t, byte(1), out[2]) // paletteSize - 1 == 2 - 1

	// Palette table is cleartext, in first-seen order: b, then a.
	require.Equal(t, b, out[3:7])
	require.Equal(t, a, out[7:11])

	// 8 columns pack into exactly one byte per row; under the 12-byte
	// threshold, so no compact-length field precedes them.
	wantIndices := bytes.Repeat([]byte{0x55}, 8)
	require.Equal(t, wantIndices, out[11:])
	require.Len(t, out, 11+8)
}

// TestTightGradientControlByte checks the explicit-filter control byte and
// filter id for the Gradient path (spec.md:111,113).
func TestTightGradientControlByte(t *testing.T) {
	const w, h, bpp = 18, 18, 4
	pixels := make([]byte, w*h*bpp)
	// 324 distinct colours, more than a palette holds, so the encoder
	// moves past the Palette path to Gradient.
	for i := 0; i < w*h; i++ {
		pixels[i*bpp] = byte(i)
		pixels[i*bpp+1] = byte(i * 3)
		pixels[i*bpp+2] = byte(i >> 8)
	}

	tight := NewTightEncoder()
	tight.GradientFilter = true
	out, err := tight.Encode(pixels, w, h, bpp)
	require.NoError(t, err)

	wantCtrl := tightControlByte(tightStreamGradient, true, true)
	require.Equal(t, wantCtrl, out[0])
	require.Equal(t, byte(tightFilterGradient), out[1])
}

func TestTightCompactLengthRoundTrip(t *testing.T) {
	cases := []int{0, 1, 127, 128, 16383, 16384, 2097151}
	for _, n := range cases {
		buf := appendCompactLength(nil, n)
		got, consumed := readCompactLength(buf)
		require.Equal(t, n, got, "n=%d", n)
		require.Equal(t, len(buf), consumed)
	}
}

// readCompactLength mirrors the decode side, used only to verify the
// encoder's varint round-trips; a real client implements the same logic.
func readCompactLength(buf []byte) (int, int) {
	n := 0
	shift := uint(0)
	for i, b := range buf {
		n |= int(b&0x7f) << shift
		if b&0x80 == 0 {
			return n, i + 1
		}
		shift += 7
	}
	return n, len(buf)
}

// TestTightBasicPayloadLengthBoundary pins spec.md:115's small-payload
// boundary directly on the Basic/stream-0 path: 11 bytes stay inline with
// no compact-length field at all; 12 bytes are compressed and
// length-prefixed.
func TestTightBasicPayloadLengthBoundary(t *testing.T) {
	eleven := make([]byte, 11)
	for i := range eleven {
		eleven[i] = byte(i)
	}
	out11 := NewTightEncoder().encodeBasic(eleven)
	require.Equal(t, byte(0x00), out11[0])
	require.Equal(t, eleven, out11[1:])
	require.Len(t, out11, 1+len(eleven))

	twelve := make([]byte, 12)
	for i := range twelve {
		twelve[i] = byte(i)
	}
	out12 := NewTightEncoder().encodeBasic(twelve)
	require.Equal(t, byte(0x00), out12[0])
	require.NotEqual(t, twelve, out12[1:])

	n, consumed := readCompactLength(out12[1:])
	require.Equal(t, len(out12)-1-consumed, n)

	zr, err := zlib.NewReader(bytes.NewReader(out12[1+consumed:]))
	require.NoError(t, err)
	// The stream is sync-flushed, not closed, so it has no final block:
	// ReadAll returns every byte and then io.ErrUnexpectedEOF.
	got, err := io.ReadAll(zr)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, twelve, got)
}

func TestTightJPEGProducesDecodableImage(t *testing.T) {
	const w, h, bpp = 16, 16, 4
	pixels := make([]byte, w*h*bpp)
	for i := 0; i < w*h; i++ {
		pixels[i*bpp] = byte(i * 3)
		pixels[i*bpp+1] = byte(i * 5)
		pixels[i*bpp+2] = byte(i * 7)
	}

	tight := NewTightEncoder()
	out, err := tight.EncodeJPEG(pixels, w, h, bpp, 80)
	require.NoError(t, err)
	require.Equal(t, byte(tightCtrlJPEG), out[0])
	require.Equal(t, byte(0x90), out[0])
	require.Greater(t, len(out), 2)
}
