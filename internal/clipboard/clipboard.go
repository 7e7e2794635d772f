// Package clipboard synchronizes clipboard text between the VNC server and
// its connected clients over the ClientCutText/ServerCutText messages
// (RFC 6143 §7.5.6, §7.6.4).
package clipboard

import (
	"fmt"
	"strings"
	"sync"
)

// defaultMaxSize bounds clipboard content accepted from a client, a basic
// defense against a misbehaving or hostile client flooding memory.
const defaultMaxSize = 1 << 20 // 1 MiB

// Manager is a single-writer/many-reader clipboard store: exactly one
// session loop pushes updates (the client that last changed its clipboard,
// or the local host), every connection may read the current content to
// decide whether it needs to send a ServerCutText.
//
// Grounded on original_source/vnc_lib/clipboard.py's ClipboardManager
// (set_server_clipboard / handle_client_cut_text / change-detection-to-
// avoid-loops via a last-sent hash).
type Manager struct {
	mu      sync.RWMutex
	maxSize int

	serverText string
	clientText string
	lastSent   string
}

func NewManager() *Manager {
	return &Manager{maxSize: defaultMaxSize}
}

// SetServerText installs new server-side clipboard content (e.g. from the
// local host's clipboard) and returns the content to broadcast as
// ServerCutText, or ok=false if it's unchanged or rejected.
func (m *Manager) SetServerText(text string) (content string, ok bool, err error) {
	text = Sanitize(text)
	if len(text) > m.maxSize {
		return "", false, fmt.Errorf("clipboard: content too large: %d > %d", len(text), m.maxSize)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if text == m.serverText {
		return "", false, nil
	}
	m.serverText = text
	m.lastSent = text
	return text, true, nil
}

// HandleClientCutText processes a ClientCutText message's text. Returns
// ok=false if it was rejected (oversized) or ignored as an echo of the
// server's own last-sent content (loop prevention).
func (m *Manager) HandleClientCutText(text string) (ok bool, err error) {
	text = Sanitize(text)
	if len(text) > m.maxSize {
		return false, fmt.Errorf("clipboard: content too large: %d > %d", len(text), m.maxSize)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if text == m.lastSent {
		return false, nil
	}
	m.clientText = text
	return true, nil
}

// ServerText returns the current server-side clipboard content.
func (m *Manager) ServerText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.serverText
}

// ClientText returns the most recently received client clipboard content.
func (m *Manager) ClientText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clientText
}

// Clear resets all clipboard state.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serverText, m.clientText, m.lastSent = "", "", ""
}

// Sanitize strips control characters (other than \n, \r, \t) and
// normalizes line endings to \n, matching
// original_source/vnc_lib/clipboard.py's sanitize_clipboard_text.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r >= 32 && r < 127:
			b.WriteRune(r)
		case r >= 128:
			b.WriteRune(r)
		}
	}
	return b.String()
}
