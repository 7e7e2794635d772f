// Package recorder writes newline-delimited JSON session recordings
// (optionally gzip-framed) as spec.md §6's "Persisted state" describes: a
// header line, one line per recorded event, and a footer line with
// aggregate statistics.
package recorder

import (
	"compress/gzip"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// EventType names the kind of a recorded event.
//
// Grounded on original_source/vnc_lib/session_recorder.py's EventType enum.
type EventType string

const (
	EventHandshake           EventType = "HANDSHAKE"
	EventAuth                EventType = "AUTH"
	EventInit                EventType = "INIT"
	EventFramebufferUpdate   EventType = "FRAMEBUFFER_UPDATE"
	EventSetEncodings        EventType = "SET_ENCODINGS"
	EventKeyEvent            EventType = "KEY_EVENT"
	EventPointerEvent        EventType = "POINTER_EVENT"
	EventClientCutText       EventType = "CLIENT_CUT_TEXT"
	EventServerCutText       EventType = "SERVER_CUT_TEXT"
	EventSetColourMapEntries EventType = "SET_COLOUR_MAP_ENTRIES"
	EventBell                EventType = "BELL"
	EventDesktopResize       EventType = "DESKTOP_RESIZE"
	EventCursorUpdate        EventType = "CURSOR_UPDATE"
	EventError               EventType = "ERROR"
)

type header struct {
	Version    string `json:"version"`
	SessionID  string `json:"session_id"`
	StartTime  string `json:"start_time"`
	Compressed bool   `json:"compressed"`
}

type sessionEvent struct {
	Timestamp float64        `json:"timestamp"`
	EventType EventType      `json:"event_type"`
	Data      string         `json:"data"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type footer struct {
	EndTime         string `json:"end_time"`
	DurationSeconds float64 `json:"duration_seconds"`
	EventCount      int    `json:"event_count"`
}

// Recorder writes one session's events to a file. A nil *Recorder (or one
// created via Disabled()) is a safe no-op, so the session loop can hold one
// unconditionally and skip configuration checks at every call site.
type Recorder struct {
	w          io.WriteCloser
	gz         *gzip.Writer
	enabled    bool
	sessionID  string
	startedAt  time.Time
	eventCount int
}

// Disabled returns a Recorder that discards every call, used when session
// recording isn't configured.
func Disabled() *Recorder { return &Recorder{} }

// Open starts a new recording at path, gzip-compressing the stream when
// compress is true. Creates parent directories as needed.
func Open(path string, compress bool) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("recorder: create dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recorder: create file: %w", err)
	}

	r := &Recorder{
		w:         f,
		enabled:   true,
		sessionID: uuid.NewString(),
		startedAt: time.Now(),
	}

	var dst io.WriteCloser = f
	if compress {
		r.gz = gzip.NewWriter(f)
		dst = writeCloserPair{r.gz, f}
	}
	r.w = dst

	if err := r.writeLine(header{
		Version:    "1.0",
		SessionID:  r.sessionID,
		StartTime:  r.startedAt.UTC().Format(time.RFC3339Nano),
		Compressed: compress,
	}); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// writeCloserPair closes both w and then the underlying file, so the gzip
// trailer is flushed before the file descriptor closes.
type writeCloserPair struct {
	w  io.WriteCloser
	f  io.Closer
}

func (p writeCloserPair) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p writeCloserPair) Close() error {
	if err := p.w.Close(); err != nil {
		p.f.Close()
		return err
	}
	return p.f.Close()
}

func (r *Recorder) writeLine(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("recorder: marshal: %w", err)
	}
	line = append(line, '\n')
	_, err = r.w.Write(line)
	return err
}

// RecordEvent appends one event line. No-op on a disabled recorder.
func (r *Recorder) RecordEvent(eventType EventType, data []byte, metadata map[string]any) error {
	if r == nil || !r.enabled {
		return nil
	}
	err := r.writeLine(sessionEvent{
		Timestamp: time.Since(r.startedAt).Seconds(),
		EventType: eventType,
		Data:      hex.EncodeToString(data),
		Metadata:  metadata,
	})
	if err != nil {
		return err
	}
	r.eventCount++
	return nil
}

// Close writes the footer line and closes the underlying file. No-op on a
// disabled recorder.
func (r *Recorder) Close() error {
	if r == nil || !r.enabled {
		return nil
	}
	if err := r.writeLine(footer{
		EndTime:         time.Now().UTC().Format(time.RFC3339Nano),
		DurationSeconds: time.Since(r.startedAt).Seconds(),
		EventCount:      r.eventCount,
	}); err != nil {
		r.w.Close()
		return err
	}
	return r.w.Close()
}
