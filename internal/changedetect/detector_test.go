package changedetect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const bpp = 4

func solidFrame(w, h int, v byte) []byte {
	buf := make([]byte, w*h*bpp)
	for i := range buf {
		buf[i] = v
	}
	return buf
}

func TestDetectFirstFrameIsFullRefresh(t *testing.T) {
	d := NewDetector()
	d.Configure(128, 128, bpp)
	regions := d.Detect(solidFrame(128, 128, 0x10))
	require.Equal(t, FullRefresh, regions)
}

func TestDetectNoChangeReturnsEmpty(t *testing.T) {
	d := NewDetector()
	d.Configure(128, 128, bpp)
	frame := solidFrame(128, 128, 0x10)
	d.Detect(frame) // prime

	frame2 := solidFrame(128, 128, 0x10)
	regions := d.Detect(frame2)
	require.Empty(t, regions)
}

func TestDetectSingleTileMutationYieldsOneRegion(t *testing.T) {
	d := NewDetector()
	d.Configure(256, 256, bpp)
	frame := solidFrame(256, 256, 0x10)
	d.Detect(frame)

	frame2 := make([]byte, len(frame))
	copy(frame2, frame)
	// Mutate a single pixel inside tile (2,2), far from any tile boundary.
	stride := 256 * bpp
	off := (2*TileSize+5)*stride + (2*TileSize+5)*bpp
	frame2[off] = 0xFF

	regions := d.Detect(frame2)
	require.Len(t, regions, 1)
	require.Equal(t, 2*TileSize, regions[0].X)
	require.Equal(t, 2*TileSize, regions[0].Y)
}

func TestDetectLargeChangeTriggersFullRefresh(t *testing.T) {
	d := NewDetector()
	d.Configure(128, 128, bpp)
	d.Detect(solidFrame(128, 128, 0x01))

	// Change more than half the frame: fill everything, which changes all
	// tiles at once.
	regions := d.Detect(solidFrame(128, 128, 0x02))
	require.Equal(t, FullRefresh, regions)
}

func TestDetectMergesNearbyRegions(t *testing.T) {
	r1 := Region{X: 0, Y: 0, Width: 64, Height: 64}
	r2 := Region{X: 100, Y: 0, Width: 64, Height: 64} // gap of 36px, within maxMergeDistance
	merged := mergeRegions([]Region{r1, r2})
	require.Len(t, merged, 1)
	require.Equal(t, Region{X: 0, Y: 0, Width: 164, Height: 64}, merged[0])
}

func TestDetectDoesNotMergeFarRegions(t *testing.T) {
	r1 := Region{X: 0, Y: 0, Width: 64, Height: 64}
	r2 := Region{X: 1000, Y: 1000, Width: 64, Height: 64}
	merged := mergeRegions([]Region{r1, r2})
	require.Len(t, merged, 2)
}

func TestResetForcesFullDirtyNextFrame(t *testing.T) {
	d := NewDetector()
	d.Configure(128, 128, bpp)
	d.Detect(solidFrame(128, 128, 0x10))
	d.Detect(solidFrame(128, 128, 0x10)) // settle, no change

	d.Reset()
	regions := d.Detect(solidFrame(128, 128, 0x10))
	require.Equal(t, FullRefresh, regions)
}
