package encodings

import (
	"bytes"
	"compress/zlib"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func inflateZRLE(t *testing.T, payload []byte) []byte {
	t.Helper()
	length := getU32(payload[0:4])
	require.Equal(t, int(length), len(payload)-4)

	zr, err := zlib.NewReader(bytes.NewReader(payload[4:]))
	require.NoError(t, err)
	// The stream is sync-flushed, not closed, so it has no final block:
	// ReadAll returns every byte and then io.ErrUnexpectedEOF.
	data, err := io.ReadAll(zr)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	return data
}

func TestZRLESolidTileUsesSubencodingOne(t *testing.T) {
	const w, h, bpp = 32, 32, 4
	pixels := make([]byte, w*h*bpp)
	for i := range pixels {
		pixels[i] = 7
	}

	z := NewZRLEEncoder()
	out, err := z.Encode(pixels, w, h, bpp)
	require.NoError(t, err)

	decoded := inflateZRLE(t, out)
	require.Equal(t, byte(1), decoded[0])
	require.Equal(t, []byte{7, 7, 7, 7}, decoded[1:1+bpp])
}

func TestZRLEStreamPersistsAcrossCalls(t *testing.T) {
	const w, h, bpp = 16, 16, 4
	pixels := make([]byte, w*h*bpp)

	z := NewZRLEEncoder()
	first, err := z.Encode(pixels, w, h, bpp)
	require.NoError(t, err)
	second, err := z.Encode(pixels, w, h, bpp)
	require.NoError(t, err)

	// A persistent, already-primed zlib stream compresses the identical
	// second frame to fewer bytes than the first, cold, frame.
	require.Less(t, len(second), len(first))
}

func TestZRLEManyColorsFallsBackToPlainRLE(t *testing.T) {
	const w, h, bpp = 64, 64, 4
	pixels := make([]byte, w*h*bpp)
	for i := 0; i < w*h; i++ {
		pixels[i*bpp] = byte(i % 251)
		pixels[i*bpp+1] = byte(i % 241)
	}

	z := NewZRLEEncoder()
	out, err := z.Encode(pixels, w, h, bpp)
	require.NoError(t, err)
	decoded := inflateZRLE(t, out)
	require.Equal(t, byte(128), decoded[0])
}
