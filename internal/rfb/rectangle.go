package rfb

// Rectangle is a region of the framebuffer, coordinates relative to the
// framebuffer origin. All fields fit in [0, 65535] on the wire (spec §3).
type Rectangle struct {
	X, Y          uint16
	Width, Height uint16
}

// Area returns width*height as an int, safe for slice sizing.
func (r Rectangle) Area() int {
	return int(r.Width) * int(r.Height)
}

// Empty reports whether the rectangle covers zero pixels.
func (r Rectangle) Empty() bool {
	return r.Width == 0 || r.Height == 0
}

// Right and Bottom are exclusive bounds, matching image.Rectangle's Max
// convention.
func (r Rectangle) Right() int  { return int(r.X) + int(r.Width) }
func (r Rectangle) Bottom() int { return int(r.Y) + int(r.Height) }

// Intersect returns the overlapping region of r and o, and whether any
// overlap exists. Used to clip a dirty region against the client's
// outstanding request region (spec §4.7).
func (r Rectangle) Intersect(o Rectangle) (Rectangle, bool) {
	x0 := maxInt(int(r.X), int(o.X))
	y0 := maxInt(int(r.Y), int(o.Y))
	x1 := minInt(r.Right(), o.Right())
	y1 := minInt(r.Bottom(), o.Bottom())
	if x0 >= x1 || y0 >= y1 {
		return Rectangle{}, false
	}
	return Rectangle{
		X: uint16(x0), Y: uint16(y0),
		Width: uint16(x1 - x0), Height: uint16(y1 - y0),
	}, true
}

// ClampToBounds clips r so it never extends past a width x height
// framebuffer (spec §3 invariant: "no update rectangle extends past
// framebuffer bounds"). Returns false if the clamped rectangle is empty.
func (r Rectangle) ClampToBounds(width, height int) (Rectangle, bool) {
	return r.Intersect(Rectangle{X: 0, Y: 0, Width: uint16(clampUint16(width)), Height: uint16(clampUint16(height))})
}

func clampUint16(v int) int {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
