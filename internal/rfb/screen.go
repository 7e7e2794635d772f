package rfb

import "fmt"

// Screen is one monitor in an ExtendedDesktopSize layout (RFB pseudo-encoding
// -308). ID 0 is reserved for the primary screen (spec §3).
type Screen struct {
	ID     uint32
	X, Y   uint16
	Width  uint16
	Height uint16
	Flags  uint32
}

const screenWireSize = 16 // id(4) + x(2) + y(2) + w(2) + h(2) + flags(4)

// Marshal encodes one Screen entry as it appears in an ExtendedDesktopSize
// rectangle payload.
func (s Screen) Marshal() []byte {
	buf := make([]byte, screenWireSize)
	putUint32(buf[0:4], s.ID)
	putUint16(buf[4:6], s.X)
	putUint16(buf[6:8], s.Y)
	putUint16(buf[8:10], s.Width)
	putUint16(buf[10:12], s.Height)
	putUint32(buf[12:16], s.Flags)
	return buf
}

// UnmarshalScreen decodes one Screen entry.
func UnmarshalScreen(buf []byte) (Screen, error) {
	if len(buf) != screenWireSize {
		return Screen{}, fmt.Errorf("%w: screen entry must be %d bytes, got %d", ErrProtocol, screenWireSize, len(buf))
	}
	return Screen{
		ID:     getUint32(buf[0:4]),
		X:      getUint16(buf[4:6]),
		Y:      getUint16(buf[6:8]),
		Width:  getUint16(buf[8:10]),
		Height: getUint16(buf[10:12]),
		Flags:  getUint32(buf[12:16]),
	}, nil
}

// DesktopLayout is an ordered set of Screens describing a (possibly
// multi-monitor) desktop (spec §3).
type DesktopLayout struct {
	Screens []Screen
}

// Bounds returns the bounding-box width/height: the max of x+width and
// y+height across all screens (spec §3 invariant).
func (d DesktopLayout) Bounds() (width, height int) {
	for _, s := range d.Screens {
		if r := int(s.X) + int(s.Width); r > width {
			width = r
		}
		if b := int(s.Y) + int(s.Height); b > height {
			height = b
		}
	}
	return width, height
}

// Validate checks the "exactly one primary" invariant (screen id 0) and that
// every screen has positive dimensions. Used both to validate a layout this
// server advertises and a candidate layout a client proposes via a
// SetDesktopSize-equivalent request (spec_full §4.6 desktop resize
// supplement).
func (d DesktopLayout) Validate() error {
	if len(d.Screens) == 0 {
		return fmt.Errorf("%w: desktop layout has no screens", ErrProtocol)
	}
	primaries := 0
	seen := make(map[uint32]bool, len(d.Screens))
	for _, s := range d.Screens {
		if s.ID == 0 {
			primaries++
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate screen id %d", ErrProtocol, s.ID)
		}
		seen[s.ID] = true
		if s.Width == 0 || s.Height == 0 {
			return fmt.Errorf("%w: screen %d has zero dimension", ErrProtocol, s.ID)
		}
	}
	if primaries != 1 {
		return fmt.Errorf("%w: desktop layout must have exactly one primary screen (id 0), got %d", ErrProtocol, primaries)
	}
	return nil
}

// Resize reason codes for the ExtendedDesktopSize pseudo-encoding, carried
// in the rectangle header's x field (spec §4.6).
const (
	ResizeReasonServer = 0
	ResizeReasonClient = 1
	ResizeReasonOther  = 2
)

// Client-initiated resize status codes, meaningful only when the reason is
// ResizeReasonClient, carried in the rectangle header's y field.
const (
	ResizeStatusOK             = 0
	ResizeStatusOutOfResources = 1
	ResizeStatusInvalidLayout  = 2
)
