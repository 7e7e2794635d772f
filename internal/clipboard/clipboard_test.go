package clipboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetServerTextChanges(t *testing.T) {
	m := NewManager()
	content, ok, err := m.SetServerText("hello")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", content)
	require.Equal(t, "hello", m.ServerText())
}

func TestSetServerTextNoopOnUnchanged(t *testing.T) {
	m := NewManager()
	m.SetServerText("hello")
	_, ok, err := m.SetServerText("hello")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHandleClientCutTextIgnoresEchoOfLastSent(t *testing.T) {
	m := NewManager()
	m.SetServerText("from-server")

	ok, err := m.HandleClientCutText("from-server")
	require.NoError(t, err)
	require.False(t, ok, "must not loop back content the server just sent")
}

func TestHandleClientCutTextAcceptsNewContent(t *testing.T) {
	m := NewManager()
	ok, err := m.HandleClientCutText("from-client")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "from-client", m.ClientText())
}

func TestOversizedContentRejected(t *testing.T) {
	m := NewManager()
	m.maxSize = 4
	_, ok, err := m.SetServerText("too long")
	require.Error(t, err)
	require.False(t, ok)
}

func TestSanitizeNormalizesLineEndingsAndStripsControlChars(t *testing.T) {
	require.Equal(t, "a\nb\nc", Sanitize("a\r\nb\rc"))
	require.Equal(t, "tab\there", Sanitize("tab\there"))
	require.Equal(t, "ab", Sanitize("a\x00\x01b"))
}

func TestClear(t *testing.T) {
	m := NewManager()
	m.SetServerText("x")
	m.HandleClientCutText("y")
	m.Clear()
	require.Empty(t, m.ServerText())
	require.Empty(t, m.ClientText())
}

func TestManagerConcurrentReadsDoNotRace(t *testing.T) {
	m := NewManager()
	m.SetServerText(strings.Repeat("a", 100))
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			_ = m.ServerText()
		}
		close(done)
	}()
	for i := 0; i < 1000; i++ {
		_ = m.ClientText()
	}
	<-done
}
