// Package input translates RFB pointer/keyboard events (RFC 6143 §7.5.4,
// §7.5.5) into calls against an injection backend, with edge detection,
// move deduplication, and coordinate scaling/clamping done once here so
// every backend gets the same semantics.
package input

// Sink is the injection backend a Translator drives. Implementations talk
// to the host OS (or, in tests, record calls for assertions); the
// translator itself never touches OS input APIs directly.
type Sink interface {
	MoveMouse(x, y int)
	MouseDown(button Button)
	MouseUp(button Button)
	Scroll(ticks int)
	KeyDown(name string)
	KeyUp(name string)
}

// Button identifies a mouse button the sink can press or release.
type Button int

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
)
