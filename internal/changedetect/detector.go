package changedetect

import "hash/crc32"

// Region is a changed rectangle, in the same x/y/width/height shape the rfb
// package's Rectangle uses (kept independent here for the same reason
// pixconv.Format is independent of rfb.PixelFormat: rfb will depend on this
// package, not the other way around).
type Region struct {
	X, Y, Width, Height int
}

func (r Region) area() int { return r.Width * r.Height }

func (r Region) intersects(o Region) bool {
	return !(r.X+r.Width <= o.X || o.X+o.Width <= r.X ||
		r.Y+r.Height <= o.Y || o.Y+o.Height <= r.Y)
}

func (r Region) merge(o Region) Region {
	x1, y1 := min(r.X, o.X), min(r.Y, o.Y)
	x2, y2 := max(r.X+r.Width, o.X+o.Width), max(r.Y+r.Height, o.Y+o.Height)
	return Region{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// chebyshevDistance returns 0 if the regions intersect, else the Chebyshev
// (max of the axis-aligned gaps) distance between their bounding boxes.
func chebyshevDistance(r, o Region) int {
	if r.intersects(o) {
		return 0
	}
	var dx, dy int
	switch {
	case r.X+r.Width < o.X:
		dx = o.X - (r.X + r.Width)
	case o.X+o.Width < r.X:
		dx = r.X - (o.X + o.Width)
	}
	switch {
	case r.Y+r.Height < o.Y:
		dy = o.Y - (r.Y + r.Height)
	case o.Y+o.Height < r.Y:
		dy = r.Y - (o.Y + o.Height)
	}
	return max(dx, dy)
}

// maxMergeDistance bounds how far apart two dirty tiles can be and still get
// coalesced into one bounding rectangle, trading a few wasted re-sent pixels
// in the gap for fewer, larger rectangles on the wire.
const maxMergeDistance = 128

// fullRefreshThreshold: once more than this fraction of the framebuffer's
// area changed, a long list of small dirty rectangles costs more (per-rect
// header overhead, more encoder invocations) than just re-sending everything.
const fullRefreshThreshold = 0.5

// Detector is the adaptive change detector: a whole-frame CRC32 fast path to
// catch the static-desktop case cheaply, a TileGrid for the tile-level
// dirty-rectangle case, and a full-refresh fallback once too much changed.
// Not safe for concurrent use; one Detector belongs to exactly one
// connection's frame producer.
type Detector struct {
	grid         *TileGrid
	haveChecksum bool
	fullChecksum uint32
}

func NewDetector() *Detector {
	return &Detector{grid: NewTileGrid()}
}

// Configure (re)sizes the detector for a width x height x bpp framebuffer,
// clearing all state — called on first frame, pixel-format change, desktop
// resize, or explicit client reset (spec §4.4).
func (d *Detector) Configure(width, height, bpp int) {
	d.grid.reset(width, height, bpp)
	d.haveChecksum = false
}

// Reset clears checksums without resizing, treating the next frame as fully
// dirty while keeping the current dimensions.
func (d *Detector) Reset() {
	d.haveChecksum = false
	for i := range d.grid.checksums {
		d.grid.checksums[i] = 0
	}
	d.grid.primed = false
}

// FullRefresh is the sentinel returned by Detect when too much of the frame
// changed to bother enumerating individual rectangles.
var FullRefresh = []Region{{}}

// Detect compares pixels (a width*height*bpp server-native buffer, matching
// the dimensions passed to Configure) against the last frame it saw and
// returns the changed regions, merged and deduplicated. Returns an empty,
// non-nil slice if nothing changed, or FullRefresh if the changed fraction
// exceeds fullRefreshThreshold.
func (d *Detector) Detect(pixels []byte) []Region {
	checksum := crc32.ChecksumIEEE(pixels)
	if d.haveChecksum && checksum == d.fullChecksum {
		return []Region{}
	}
	d.haveChecksum = true
	d.fullChecksum = checksum

	tiles := d.scanTiles(pixels)
	regions := d.grid.tilesToRegions(tiles)

	changedArea := 0
	for _, r := range regions {
		changedArea += r.area()
	}
	total := d.grid.width * d.grid.height
	if total > 0 && float64(changedArea)/float64(total) > fullRefreshThreshold {
		return FullRefresh
	}

	return mergeRegions(regions)
}

// scanTiles rehashes every tile, returning the (col, row) coordinates of
// tiles whose checksum changed since the last scan (or all of them, on the
// first scan after Configure/Reset).
func (d *Detector) scanTiles(pixels []byte) [][2]int {
	var changed [][2]int
	first := !d.grid.primed
	for row := 0; row < d.grid.rows; row++ {
		for col := 0; col < d.grid.cols; col++ {
			sum := d.grid.tileChecksum(pixels, col, row)
			idx := row*d.grid.cols + col
			if first || d.grid.checksums[idx] != sum {
				changed = append(changed, [2]int{col, row})
			}
			d.grid.checksums[idx] = sum
		}
	}
	d.grid.primed = true
	return changed
}

func (g *TileGrid) tilesToRegions(tiles [][2]int) []Region {
	regions := make([]Region, 0, len(tiles))
	for _, t := range tiles {
		x, y, w, h := g.TileRect(t[0], t[1])
		regions = append(regions, Region{X: x, Y: y, Width: w, Height: h})
	}
	return regions
}

// mergeRegions coalesces regions within maxMergeDistance of each other into
// their bounding box, same algorithm as the original's _merge_regions:
// linear scan against the accumulated merged set, merge on first match.
func mergeRegions(regions []Region) []Region {
	if len(regions) == 0 {
		return []Region{}
	}
	merged := make([]Region, 0, len(regions))
	for _, cur := range regions {
		mergedAny := false
		for i, existing := range merged {
			if chebyshevDistance(cur, existing) <= maxMergeDistance {
				merged[i] = cur.merge(existing)
				mergedAny = true
				break
			}
		}
		if !mergedAny {
			merged = append(merged, cur)
		}
	}
	return merged
}
