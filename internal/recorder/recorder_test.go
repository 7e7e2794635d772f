package recorder

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string, gzipped bool) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var r = io.Reader(f)
	if gzipped {
		gz, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer gz.Close()
		r = gz
	}

	var lines []map[string]any
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestRecorderWritesHeaderEventsFooterUncompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.ndjson")
	r, err := Open(path, false)
	require.NoError(t, err)

	require.NoError(t, r.RecordEvent(EventHandshake, []byte("RFB 003.008\n"), map[string]any{"version": "RFB 003.008\n"}))
	require.NoError(t, r.RecordEvent(EventKeyEvent, []byte{1, 0, 0, 0, 0x61}, nil))
	require.NoError(t, r.Close())

	lines := readLines(t, path, false)
	require.Len(t, lines, 3)
	require.Equal(t, "1.0", lines[0]["version"])
	require.Equal(t, "HANDSHAKE", lines[1]["event_type"])
	require.Equal(t, float64(2), lines[2]["event_count"])
}

func TestRecorderGzipRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.ndjson.gz")
	r, err := Open(path, true)
	require.NoError(t, err)
	require.NoError(t, r.RecordEvent(EventBell, nil, nil))
	require.NoError(t, r.Close())

	lines := readLines(t, path, true)
	require.Len(t, lines, 3)
	require.Equal(t, true, lines[0]["compressed"])
}

func TestDisabledRecorderIsNoop(t *testing.T) {
	r := Disabled()
	require.NoError(t, r.RecordEvent(EventBell, nil, nil))
	require.NoError(t, r.Close())
}
