package encodings

// RREEncoder implements the RRE encoding (type 2): a background pixel plus
// a list of solid-color subrectangles drawn on top of it.
//
// It pays off on regions with large flat areas and a modest number of
// foreground shapes (window chrome, text cursors, simple UI) — and badly on
// photographic content, where the subrect count explodes. The caller is
// expected to skip RRE for large regions and to fall back to Raw if the
// encoded size comes out larger than the region's raw size (spec §4.5).
type RREEncoder struct{}

type rect struct {
	x, y, w, h int
	color      []byte
}

func (RREEncoder) Encode(pixels []byte, width, height, bytesPerPixel int) ([]byte, error) {
	bg := backgroundPixel(pixels, width, height, bytesPerPixel)
	subrects := rreSubrects(pixels, width, height, bytesPerPixel, bg)

	out := make([]byte, 4+bytesPerPixel+len(subrects)*(bytesPerPixel+8))
	putU32(out[0:4], uint32(len(subrects)))
	copy(out[4:4+bytesPerPixel], bg)

	off := 4 + bytesPerPixel
	for _, r := range subrects {
		copy(out[off:off+bytesPerPixel], r.color)
		off += bytesPerPixel
		putU16(out[off:off+2], uint16(r.x))
		putU16(out[off+2:off+4], uint16(r.y))
		putU16(out[off+4:off+6], uint16(r.w))
		putU16(out[off+6:off+8], uint16(r.h))
		off += 8
	}
	return out, nil
}

// backgroundPixel picks the most frequent pixel value as the background
// against which subrects are drawn. A full histogram over every pixel is
// cheap relative to the subrect scan that follows.
func backgroundPixel(pixels []byte, width, height, bpp int) []byte {
	counts := make(map[string]int)
	best := ""
	bestN := -1
	for i := 0; i+bpp <= len(pixels); i += bpp {
		k := string(pixels[i : i+bpp])
		counts[k]++
		if counts[k] > bestN {
			bestN = counts[k]
			best = k
		}
	}
	if best == "" {
		return make([]byte, bpp)
	}
	return []byte(best)
}

type activeRect struct {
	x, w, y0 int
	color    []byte
}

// rreSubrects scans row by row for horizontal runs of a single non-background
// color, then merges runs that line up exactly (same x, width, color) across
// consecutive rows into taller rectangles, producing maximal same-color
// subrects rather than one-row-high slivers.
func rreSubrects(pixels []byte, width, height, bpp int, bg []byte) []rect {
	var out []rect
	active := make([]activeRect, 0, 8)

	finalize := func(a activeRect, yEnd int) {
		out = append(out, rect{x: a.x, y: a.y0, w: a.w, h: yEnd - a.y0, color: a.color})
	}

	for y := 0; y < height; y++ {
		row := pixels[y*width*bpp : (y+1)*width*bpp]
		spans := rowSpans(row, width, bpp, bg)

		matched := make([]bool, len(active))
		var nextActive []activeRect
		for _, sp := range spans {
			foundIdx := -1
			for i, a := range active {
				if !matched[i] && a.x == sp.x && a.w == sp.w && bytesEqual(a.color, sp.color) {
					foundIdx = i
					break
				}
			}
			if foundIdx >= 0 {
				matched[foundIdx] = true
				nextActive = append(nextActive, active[foundIdx])
			} else {
				nextActive = append(nextActive, activeRect{x: sp.x, w: sp.w, y0: y, color: sp.color})
			}
		}
		for i, a := range active {
			if !matched[i] {
				finalize(a, y)
			}
		}
		active = nextActive
	}
	for _, a := range active {
		finalize(a, height)
	}
	return out
}

type span struct {
	x, w  int
	color []byte
}

func rowSpans(row []byte, width, bpp int, bg []byte) []span {
	var spans []span
	x := 0
	for x < width {
		px := row[x*bpp : (x+1)*bpp]
		if bytesEqual(px, bg) {
			x++
			continue
		}
		start := x
		color := append([]byte(nil), px...)
		for x < width && bytesEqual(row[x*bpp:(x+1)*bpp], color) {
			x++
		}
		spans = append(spans, span{x: start, w: x - start, color: color})
	}
	return spans
}
