package rfb

import (
	"sync"

	"github.com/go-rfb/govncd/internal/encodings"
)

// ClientState holds everything owned by one connection for its whole
// lifetime: negotiated protocol parameters, the encoder instances that
// carry per-client compressor state (ZRLE/Tight zlib streams, the CopyRect
// shift detector), and the bookkeeping the session loop needs to decide
// what to send next (spec §4.9 "per-connection ownership model").
//
// A ClientState is only ever touched by the one goroutine driving that
// connection's session loop, except for the fields explicitly guarded by
// mu, which can be written from the connection pool (metrics) or a signal
// path (e.g. a forced disconnect) concurrently.
type ClientState struct {
	mu sync.Mutex

	ID string // correlation id (uuid), assigned at accept time

	Version       string
	SecurityType  byte
	Authenticated bool
	Shared        bool

	Format PixelFormat

	// EncodingPrefs is the client's SetEncodings list, in the order the
	// client sent it — EncoderManager.Select filters and reorders it per
	// content hint, it does not replace it.
	EncodingPrefs []encodings.Code
	ContentHint   ContentHint

	Encoders *encodings.Set

	// Pending is the most recent outstanding FramebufferUpdateRequest; nil
	// means the client currently owes no reply.
	Pending *FramebufferUpdateRequestMsg

	LastCursorHotX, LastCursorHotY     uint16
	LastCursorW, LastCursorH           uint16
	LastCursorPixelsChecksum           uint32
	HaveSentCursor                     bool
	LastDesktopWidth, LastDesktopHeight int

	Closed bool
}

func NewClientState(id string) *ClientState {
	return &ClientState{
		ID:       id,
		Format:   ServerNativeFormat,
		Encoders: encodings.NewSet(),
	}
}

// SetPixelFormat installs a newly negotiated PixelFormat and rebuilds the
// encoder set from scratch: ZRLE's and Tight's persistent zlib streams
// carry compressor state keyed to the old per-pixel byte layout, so a
// format change restarts them rather than reusing them (spec §4.6's
// SetPixelFormat row: "invalidate change-detector and reset zlib
// streams"). CopyRect's shift detector is dropped for the same reason —
// its notion of "the previous frame" no longer matches the new format.
func (cs *ClientState) SetPixelFormat(pf PixelFormat) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.Format = pf
	cs.Encoders = encodings.NewSet()
	cs.Encoders.ApplyPixelFormat(pf.BytesPerPixel(), pf.IsTightTruecolour24())
}

// SetEncodingPrefs installs the client's SetEncodings list.
func (cs *ClientState) SetEncodingPrefs(codes []encodings.Code) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.EncodingPrefs = codes
}

// SupportsEncoding reports whether the client's SetEncodings list named
// code.
func (cs *ClientState) SupportsEncoding(code encodings.Code) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, c := range cs.EncodingPrefs {
		if c == code {
			return true
		}
	}
	return false
}

// SetPending records the latest FramebufferUpdateRequest; the session loop
// consumes it (setting it back to nil) once it has sent a matching update.
func (cs *ClientState) SetPending(req *FramebufferUpdateRequestMsg) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.Pending = req
}

// TakePending returns and clears the outstanding request, or nil if there
// isn't one.
func (cs *ClientState) TakePending() *FramebufferUpdateRequestMsg {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	req := cs.Pending
	cs.Pending = nil
	return req
}

func (cs *ClientState) HasPending() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.Pending != nil
}

func (cs *ClientState) MarkClosed() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.Closed = true
}

func (cs *ClientState) IsClosed() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.Closed
}
