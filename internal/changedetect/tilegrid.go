// Package changedetect finds the rectangles that changed between two
// framebuffer captures. It generalizes patdhlk-rfb/rfb.go's compareImages
// (64x64-tile pixel diff) into a CRC32-hashed tile cascade: hashing a tile's
// raw bytes is far cheaper than per-pixel image.Image.At comparisons, and
// lets the whole frame be scanned once per capture instead of once per
// changed row.
package changedetect

import "hash/crc32"

// TileSize matches the teacher's sectionSize and the RFB encoders' own tile
// granularity (Hextile uses 16x16, ZRLE/Tight's tiling is independent — this
// is purely the change-detector's scan granularity).
const TileSize = 64

// TileGrid holds the per-tile CRC32 checksums from the last scanned frame,
// so Detector.scanTiles only needs to rehash and compare, not retain whole
// frames.
type TileGrid struct {
	width, height int
	bpp           int
	cols, rows    int
	checksums     []uint32
	primed        bool
}

func NewTileGrid() *TileGrid {
	return &TileGrid{}
}

func (g *TileGrid) reset(width, height, bpp int) {
	g.width, g.height, g.bpp = width, height, bpp
	g.cols = ceilDiv(width, TileSize)
	g.rows = ceilDiv(height, TileSize)
	g.checksums = make([]uint32, g.cols*g.rows)
	g.primed = false
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// TileRect returns the pixel-space rectangle for tile (col, row), clipped
// to the frame's bounds.
func (g *TileGrid) TileRect(col, row int) (x, y, w, h int) {
	x = col * TileSize
	y = row * TileSize
	w = TileSize
	if x+w > g.width {
		w = g.width - x
	}
	h = TileSize
	if y+h > g.height {
		h = g.height - y
	}
	return x, y, w, h
}

func (g *TileGrid) tileChecksum(pixels []byte, col, row int) uint32 {
	x, y, w, h := g.TileRect(col, row)
	crc := crc32.NewIEEE()
	stride := g.width * g.bpp
	rowBytes := w * g.bpp
	for dy := 0; dy < h; dy++ {
		off := (y+dy)*stride + x*g.bpp
		crc.Write(pixels[off : off+rowBytes])
	}
	return crc.Sum32()
}
