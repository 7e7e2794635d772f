package encodings

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func solidFrame(w, h, bpp int, fill func(x, y int) []byte) []byte {
	out := make([]byte, w*h*bpp)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copy(out[(y*w+x)*bpp:(y*w+x+1)*bpp], fill(x, y))
		}
	}
	return out
}

func TestCopyRectDetectMissesWithoutPriorFrame(t *testing.T) {
	c := NewCopyRectEncoder()
	frame := solidFrame(32, 32, 4, func(x, y int) []byte { return []byte{1, 2, 3, 4} })
	_, _, ok := c.Detect(frame, 32, 32, 4, 0, 0, 16, 16)
	require.False(t, ok)
}

func TestCopyRectDetectFindsShiftedRegion(t *testing.T) {
	c := NewCopyRectEncoder()
	bpp := 4
	w, h := 64, 64

	prev := solidFrame(w, h, bpp, func(x, y int) []byte {
		return []byte{byte(x), byte(y), 0, 0}
	})
	c.Update(prev, w, h, bpp)

	// Current frame: everything shifted down-right by (3, 2) relative to prev.
	cur := solidFrame(w, h, bpp, func(x, y int) []byte {
		sx, sy := x-3, y-2
		if sx < 0 {
			sx = 0
		}
		if sy < 0 {
			sy = 0
		}
		return []byte{byte(sx), byte(sy), 0, 0}
	})

	srcX, srcY, ok := c.Detect(cur, w, h, bpp, 20, 20, 16, 16)
	require.True(t, ok)
	require.Equal(t, uint16(17), srcX)
	require.Equal(t, uint16(18), srcY)
}

func TestCopyRectEncodePayload(t *testing.T) {
	payload := EncodePayload(300, 1)
	require.Equal(t, []byte{0x01, 0x2c, 0x00, 0x01}, payload)
}

func TestCopyRectResetForcesMiss(t *testing.T) {
	c := NewCopyRectEncoder()
	frame := solidFrame(16, 16, 4, func(x, y int) []byte { return []byte{1, 2, 3, 4} })
	c.Update(frame, 16, 16, 4)
	c.Reset()
	_, _, ok := c.Detect(frame, 16, 16, 4, 0, 0, 8, 8)
	require.False(t, ok)
}
