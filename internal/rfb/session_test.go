package rfb

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-rfb/govncd/internal/capture"
	"github.com/go-rfb/govncd/internal/clipboard"
	"github.com/go-rfb/govncd/internal/input"
	"github.com/go-rfb/govncd/internal/metrics"
	"github.com/go-rfb/govncd/internal/recorder"
)

// fakeCapturer hands back a fixed Frame, or an error when forced to.
type fakeCapturer struct {
	width, height int
	pixels        []byte
	failNext      int
	captures      int
}

func newFakeCapturer(width, height int) *fakeCapturer {
	return &fakeCapturer{width: width, height: height, pixels: make([]byte, width*height*4)}
}

func (f *fakeCapturer) Capture(ctx context.Context) (capture.Frame, error) {
	f.captures++
	if f.failNext > 0 {
		f.failNext--
		return capture.Frame{}, errTestCapture
	}
	return capture.Frame{Width: f.width, Height: f.height, Pixels: f.pixels}, nil
}

func (f *fakeCapturer) Dimensions() (int, int) { return f.width, f.height }

type testCaptureErr struct{}

func (testCaptureErr) Error() string { return "capture failed" }

var errTestCapture = testCaptureErr{}

// recordingSink captures every call a Translator makes against it.
type recordingSink struct {
	moves []struct{ x, y int }
}

func (s *recordingSink) MoveMouse(x, y int) {
	s.moves = append(s.moves, struct{ x, y int }{x, y})
}
func (s *recordingSink) MouseDown(input.Button) {}
func (s *recordingSink) MouseUp(input.Button)   {}
func (s *recordingSink) Scroll(int)             {}
func (s *recordingSink) KeyDown(string)         {}
func (s *recordingSink) KeyUp(string)           {}

func newTestSession(t *testing.T, serverConn net.Conn, capturer *fakeCapturer, sink *recordingSink) *Session {
	t.Helper()
	cs := NewClientState("test-client")
	cs.Format = ServerNativeFormat
	cfg := SessionConfig{
		MaxFPS:                30,
		MaxEncodingsPerClient: 64,
		MaxClientCutTextBytes: 1 << 16,
	}
	return NewSession(serverConn, cs, capturer, cfg, metrics.NewRegistry(), recorder.Disabled(), sink, clipboard.NewManager(), zerolog.Nop())
}

func pointerEventBytes(mask uint8, x, y uint16) []byte {
	return []byte{cmsgPointerEvent, mask, byte(x >> 8), byte(x), byte(y >> 8), byte(y)}
}

func TestCoalescePointerEventsKeepsOnlyLatest(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	capturer := newFakeCapturer(4, 4)
	sink := &recordingSink{}
	s := newTestSession(t, serverConn, capturer, sink)

	go func() {
		clientConn.Write(pointerEventBytes(1, 10, 10))
		clientConn.Write(pointerEventBytes(1, 20, 20))
		clientConn.Write(pointerEventBytes(0, 30, 30))
	}()

	// Give the writes a moment to land in the server's buffered reader so
	// Peek actually finds them already queued, matching what the coalescing
	// loop is meant to observe (spec §8 scenario 6).
	time.Sleep(50 * time.Millisecond)

	first, err := ReadClientMessage(s.wc, 0, 0)
	require.NoError(t, err)
	pe, ok := first.(PointerEventMsg)
	require.True(t, ok)

	// Once the three queued messages are drained there is nothing left on
	// the wire; bound the final Peek so it times out instead of blocking
	// forever, matching how the real session loop always reads under a
	// deadline (Session.Run's SetReadDeadline).
	require.NoError(t, serverConn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))

	latest := s.coalescePointerEvents(pe)
	require.Equal(t, uint16(30), latest.X)
	require.Equal(t, uint16(30), latest.Y)
	require.Equal(t, uint8(0), latest.ButtonMask)
}

func TestCoalescePointerEventsSingleMessageUnchanged(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	capturer := newFakeCapturer(4, 4)
	sink := &recordingSink{}
	s := newTestSession(t, serverConn, capturer, sink)

	go clientConn.Write(pointerEventBytes(1, 5, 5))
	time.Sleep(20 * time.Millisecond)

	first, err := ReadClientMessage(s.wc, 0, 0)
	require.NoError(t, err)
	pe := first.(PointerEventMsg)

	require.NoError(t, serverConn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	latest := s.coalescePointerEvents(pe)
	require.Equal(t, pe, latest)
}

func TestDispatchSetPixelFormatRebuildsEncoders(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	capturer := newFakeCapturer(4, 4)
	sink := &recordingSink{}
	s := newTestSession(t, serverConn, capturer, sink)

	before := s.cs.Encoders
	newFormat := ServerNativeFormat
	newFormat.BitsPerPixel = 16
	newFormat.Depth = 16

	require.NoError(t, s.dispatch(SetPixelFormatMsg{Format: newFormat}))
	require.NotSame(t, before, s.cs.Encoders)
	require.Equal(t, newFormat, s.cs.Format)
}

func TestDispatchFramebufferUpdateRequestSetsPending(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	capturer := newFakeCapturer(4, 4)
	sink := &recordingSink{}
	s := newTestSession(t, serverConn, capturer, sink)

	require.False(t, s.cs.HasPending())
	req := FramebufferUpdateRequestMsg{Incremental: false, Width: 4, Height: 4}
	require.NoError(t, s.dispatch(req))
	require.True(t, s.cs.HasPending())
}

func TestProduceFrameSendsFullFrameOnNonIncrementalRequest(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	capturer := newFakeCapturer(4, 4)
	sink := &recordingSink{}
	s := newTestSession(t, serverConn, capturer, sink)
	s.cs.SetEncodingPrefs(nil) // client supports nothing but Raw

	s.cs.SetPending(&FramebufferUpdateRequestMsg{Incremental: false, Width: 4, Height: 4})

	done := make(chan error, 1)
	go func() { done <- s.produceFrame(context.Background()) }()

	client := newWireConn(clientConn, clientConn)

	_, err := client.readByte() // message type
	require.NoError(t, err)
	_, err = client.readByte() // padding
	require.NoError(t, err)
	numRects, err := client.readUint16()
	require.NoError(t, err)
	require.Equal(t, uint16(1), numRects)

	x, _ := client.readUint16()
	y, _ := client.readUint16()
	w, _ := client.readUint16()
	h, _ := client.readUint16()
	enc, _ := client.readInt32()
	require.Equal(t, uint16(0), x)
	require.Equal(t, uint16(0), y)
	require.Equal(t, uint16(4), w)
	require.Equal(t, uint16(4), h)
	require.Equal(t, int32(EncodingRaw), enc)

	payload, err := client.readExact(4 * 4 * ServerNativeFormat.BytesPerPixel())
	require.NoError(t, err)
	require.Len(t, payload, 64)

	require.NoError(t, <-done)
	require.False(t, s.cs.HasPending())
}

func TestProduceFrameReturnsNilWithNoPendingRequest(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	capturer := newFakeCapturer(4, 4)
	sink := &recordingSink{}
	s := newTestSession(t, serverConn, capturer, sink)

	require.NoError(t, s.produceFrame(context.Background()))
	require.Equal(t, 0, capturer.captures)
}

func TestIsTimeoutRecognizesNetTimeout(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	require.NoError(t, serverConn.SetReadDeadline(time.Now().Add(-time.Second)))
	buf := make([]byte, 1)
	_, readErr := serverConn.Read(buf)
	require.Error(t, readErr)

	wrapped := &TransportError{Op: "read", Err: readErr}
	require.True(t, isTimeout(wrapped))

	require.False(t, isTimeout(&ProtocolError{Msg: "bad"}))
}

func TestRunReturnsNilOnContextCancellation(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	capturer := newFakeCapturer(4, 4)
	sink := &recordingSink{}
	s := newTestSession(t, serverConn, capturer, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Run(ctx))
	require.True(t, s.cs.IsClosed())
}
