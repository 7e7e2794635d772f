package rfb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-rfb/govncd/internal/encodings"
)

func TestSetPixelFormatRebuildsEncoderSet(t *testing.T) {
	cs := NewClientState("client-1")
	before := cs.Encoders

	newFormat := ServerNativeFormat
	newFormat.BitsPerPixel = 16
	newFormat.Depth = 16
	cs.SetPixelFormat(newFormat)

	require.NotSame(t, before, cs.Encoders, "SetPixelFormat must install a fresh encoder set")
	require.Equal(t, newFormat, cs.Format)
}

func TestSupportsEncodingChecksPreferenceList(t *testing.T) {
	cs := NewClientState("client-1")
	cs.SetEncodingPrefs([]encodings.Code{encodings.CodeRaw, encodings.CodeTight})

	require.True(t, cs.SupportsEncoding(encodings.CodeTight))
	require.False(t, cs.SupportsEncoding(encodings.CodeZRLE))
}

func TestPendingRequestLifecycle(t *testing.T) {
	cs := NewClientState("client-1")
	require.False(t, cs.HasPending())
	require.Nil(t, cs.TakePending())

	req := &FramebufferUpdateRequestMsg{Width: 100, Height: 100}
	cs.SetPending(req)
	require.True(t, cs.HasPending())

	taken := cs.TakePending()
	require.Same(t, req, taken)
	require.False(t, cs.HasPending())
}

func TestMarkClosedIsObservable(t *testing.T) {
	cs := NewClientState("client-1")
	require.False(t, cs.IsClosed())
	cs.MarkClosed()
	require.True(t, cs.IsClosed())
}
