package rfb

// Server-to-client message type bytes (RFC 6143 §7.6).
const (
	smsgFramebufferUpdate   = 0
	smsgSetColourMapEntries = 1
	smsgBell                = 2
	smsgServerCutText       = 3
)

// WriteFramebufferUpdateHeader starts a FramebufferUpdate message; the
// caller follows with numRects calls to WriteRectangle.
func WriteFramebufferUpdateHeader(wc *wireConn, numRects int) error {
	if err := wc.writeByte(smsgFramebufferUpdate); err != nil {
		return err
	}
	if err := wc.writeByte(0); err != nil { // padding
		return err
	}
	return wc.writeUint16(uint16(numRects))
}

// WriteRectangle writes one rectangle's header (x, y, w, h, encoding type)
// followed by its already-encoded payload.
func WriteRectangle(wc *wireConn, rect Rectangle, encoding EncodingType, payload []byte) error {
	if err := wc.writeUint16(rect.X); err != nil {
		return err
	}
	if err := wc.writeUint16(rect.Y); err != nil {
		return err
	}
	if err := wc.writeUint16(rect.Width); err != nil {
		return err
	}
	if err := wc.writeUint16(rect.Height); err != nil {
		return err
	}
	if err := wc.writeInt32(int32(encoding)); err != nil {
		return err
	}
	return wc.writeAll(payload)
}

// WriteCursorPseudoEncoding sends a Cursor pseudo-encoding rectangle: the
// hotspot and dimensions go in the rectangle header, followed by the cursor
// pixel data (in the client's negotiated PixelFormat) and a 1-bit-per-pixel
// bitmask padded to a byte per row (spec §4.6 supplement).
func WriteCursorPseudoEncoding(wc *wireConn, hotX, hotY, width, height uint16, pixels, bitmask []byte) error {
	rect := Rectangle{X: hotX, Y: hotY, Width: width, Height: height}
	if err := WriteRectangle(wc, rect, EncodingCursorPseudo, nil); err != nil {
		return err
	}
	if err := wc.writeAll(pixels); err != nil {
		return err
	}
	return wc.writeAll(bitmask)
}

// WriteDesktopSizePseudoEncoding signals a plain (single-screen) desktop
// resize: an empty payload, the new size carried in the rectangle's
// width/height.
func WriteDesktopSizePseudoEncoding(wc *wireConn, width, height uint16) error {
	return WriteRectangle(wc, Rectangle{Width: width, Height: height}, EncodingDesktopSizePseudo, nil)
}

// WriteExtendedDesktopSizePseudoEncoding signals a multi-monitor desktop
// resize (spec §4.6 supplement): reason in the rectangle's x field, status
// (meaningful only when reason is ResizeReasonClient) in y, the bounding
// framebuffer size in width/height, followed by the screen count and the
// screen table.
func WriteExtendedDesktopSizePseudoEncoding(wc *wireConn, reason, status int, layout DesktopLayout) error {
	width, height := layout.Bounds()
	rect := Rectangle{X: uint16(reason), Y: uint16(status), Width: uint16(width), Height: uint16(height)}
	if err := WriteRectangle(wc, rect, EncodingExtendedDesktopSizePseudo, nil); err != nil {
		return err
	}
	if err := wc.writeByte(byte(len(layout.Screens))); err != nil {
		return err
	}
	if err := wc.skipWrite(3); err != nil {
		return err
	}
	for _, s := range layout.Screens {
		if err := wc.writeAll(s.Marshal()); err != nil {
			return err
		}
	}
	return nil
}

// WriteSetColourMapEntries writes a SetColourMapEntries message (used only
// in palette/8bpp color-map mode; spec §4.2).
func WriteSetColourMapEntries(wc *wireConn, firstColor uint16, colors [][3]uint16) error {
	if err := wc.writeByte(smsgSetColourMapEntries); err != nil {
		return err
	}
	if err := wc.writeByte(0); err != nil { // padding
		return err
	}
	if err := wc.writeUint16(firstColor); err != nil {
		return err
	}
	if err := wc.writeUint16(uint16(len(colors))); err != nil {
		return err
	}
	for _, c := range colors {
		for _, channel := range c {
			if err := wc.writeUint16(channel); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteBell sends a Bell message.
func WriteBell(wc *wireConn) error {
	return wc.writeByte(smsgBell)
}

// WriteServerCutText sends the current clipboard contents to the client.
func WriteServerCutText(wc *wireConn, text string) error {
	if err := wc.writeByte(smsgServerCutText); err != nil {
		return err
	}
	if err := wc.skipWrite(3); err != nil {
		return err
	}
	if err := wc.writeUint32(uint32(len(text))); err != nil {
		return err
	}
	return wc.writeAll([]byte(text))
}
