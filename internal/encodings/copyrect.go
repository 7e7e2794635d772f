package encodings

// CopyRectEncoder implements the CopyRect encoding (type 1): instead of
// pixel data, a rectangle's payload names a source location the viewer
// already has on screen, and the viewer copies locally.
//
// Unlike the other encoders, CopyRect needs the *whole* previous and
// current frame to look for a matching shifted region — not just one
// rectangle's pixels — so it doesn't implement the common Encoder
// interface. The session loop calls Detect per dirty rectangle before
// falling through to a content-based encoding (spec §4.5).
type CopyRectEncoder struct {
	prev          []byte
	width, height int
	bpp           int
}

// NewCopyRectEncoder returns a detector with no prior frame; the first
// Detect call after construction or after a resize always misses.
func NewCopyRectEncoder() *CopyRectEncoder {
	return &CopyRectEncoder{}
}

// shiftProbe is the coarse set of shift candidates the spec names:
// -10..+10 pixels in each axis.
const shiftProbe = 10

// matchThreshold is the spec's "≥80% of sampled rows/columns match" bar.
const matchThreshold = 0.8

// sampleGrid bounds how many rows/columns are sampled per shift candidate,
// keeping the O(shifts * samples) probe cheap even on large frames.
const sampleGrid = 8

// Detect looks for a shift (dx, dy) such that the destination rectangle
// (rx, ry, rw, rh) in the current frame matches the previous frame at
// (rx+dx, ry+dy, rw, rh). fullW/fullH/bpp describe the whole frame. Returns
// the CopyRect source coordinates and true on a match ≥80%, or false if no
// prior frame exists yet, dimensions changed, or no candidate matched.
func (c *CopyRectEncoder) Detect(current []byte, fullW, fullH, bpp int, rx, ry, rw, rh int) (srcX, srcY uint16, ok bool) {
	if c.prev == nil || fullW != c.width || fullH != c.height || bpp != c.bpp {
		return 0, 0, false
	}
	if rw <= 0 || rh <= 0 {
		return 0, 0, false
	}

	best := 0.0
	bestDX, bestDY := 0, 0
	found := false

	for dy := -shiftProbe; dy <= shiftProbe; dy++ {
		sy := ry + dy
		if sy < 0 || sy+rh > fullH {
			continue
		}
		for dx := -shiftProbe; dx <= shiftProbe; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			sx := rx + dx
			if sx < 0 || sx+rw > fullW {
				continue
			}
			ratio := c.sampleRatio(current, rx, ry, rw, rh, sx, sy, fullW, bpp)
			if ratio >= matchThreshold && ratio > best {
				best = ratio
				bestDX, bestDY = dx, dy
				found = true
			}
		}
	}
	if !found {
		return 0, 0, false
	}
	return uint16(rx + bestDX), uint16(ry + bestDY), true
}

func (c *CopyRectEncoder) sampleRatio(current []byte, rx, ry, rw, rh, sx, sy, fullW, bpp int) float64 {
	stride := fullW * bpp
	stepY := rh / sampleGrid
	if stepY < 1 {
		stepY = 1
	}
	stepX := rw / sampleGrid
	if stepX < 1 {
		stepX = 1
	}

	total, match := 0, 0
	for y := 0; y < rh; y += stepY {
		curRowOff := (ry+y)*stride + rx*bpp
		prevRowOff := (sy+y)*stride + sx*bpp
		for x := 0; x < rw; x += stepX {
			co := curRowOff + x*bpp
			po := prevRowOff + x*bpp
			if co+bpp > len(current) || po+bpp > len(c.prev) {
				continue
			}
			total++
			if bytesEqual(current[co:co+bpp], c.prev[po:po+bpp]) {
				match++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(match) / float64(total)
}

// Update stores the just-sent full frame as the reference for the next
// Detect call.
func (c *CopyRectEncoder) Update(full []byte, width, height, bpp int) {
	if cap(c.prev) < len(full) {
		c.prev = make([]byte, len(full))
	} else {
		c.prev = c.prev[:len(full)]
	}
	copy(c.prev, full)
	c.width, c.height, c.bpp = width, height, bpp
}

// Reset drops the stored frame, forcing the next Detect to miss (used on
// pixel-format change or desktop resize).
func (c *CopyRectEncoder) Reset() {
	c.prev = nil
	c.width, c.height, c.bpp = 0, 0, 0
}

// EncodePayload builds the 4-byte CopyRect wire payload for a source point.
func EncodePayload(srcX, srcY uint16) []byte {
	buf := make([]byte, 4)
	putU16(buf[0:2], srcX)
	putU16(buf[2:4], srcY)
	return buf
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
