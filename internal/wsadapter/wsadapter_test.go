package wsadapter

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clientFrame(op opcode, payload []byte, fin bool, maskKey [4]byte) []byte {
	first := byte(op)
	if fin {
		first |= 0x80
	}
	frame := []byte{first}

	n := len(payload)
	switch {
	case n <= 125:
		frame = append(frame, 0x80|byte(n))
	case n <= 65535:
		ext := make([]byte, 2)
		binary.BigEndian.PutUint16(ext, uint16(n))
		frame = append(frame, 0x80|126)
		frame = append(frame, ext...)
	default:
		ext := make([]byte, 8)
		binary.BigEndian.PutUint64(ext, uint64(n))
		frame = append(frame, 0x80|127)
		frame = append(frame, ext...)
	}

	frame = append(frame, maskKey[:]...)
	masked := make([]byte, n)
	for i, b := range payload {
		masked[i] = b ^ maskKey[i%4]
	}
	frame = append(frame, masked...)
	return frame
}

// acceptOverPipe performs the client side of the handshake against an
// Accept call running on the other end of a net.Pipe, and returns the
// established server Conn.
func acceptOverPipe(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	serverSide, clientSide := net.Pipe()

	req := "GET /websockify HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"\r\n"

	type result struct {
		conn *Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		br := bufio.NewReader(serverSide)
		c, err := Accept(serverSide, br, Options{})
		done <- result{c, err}
	}()

	go clientSide.Write([]byte(req)) //nolint:errcheck

	resp := make([]byte, 4096)
	clientSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := clientSide.Read(resp)
	require.NoError(t, err)
	respStr := string(resp[:n])
	require.Contains(t, respStr, "101 Switching Protocols")

	h := sha1.New()
	h.Write([]byte("dGhlIHNhbXBsZSBub25jZQ==" + magicString))
	expectedAccept := base64.StdEncoding.EncodeToString(h.Sum(nil))
	require.Contains(t, respStr, "Sec-WebSocket-Accept: "+expectedAccept)

	r := <-done
	require.NoError(t, r.err)
	return r.conn, clientSide
}

func TestAcceptCompletesHandshake(t *testing.T) {
	conn, client := acceptOverPipe(t)
	defer conn.Close()
	defer client.Close()
}

func TestReadReassemblesFragmentedFrames(t *testing.T) {
	conn, client := acceptOverPipe(t)
	defer conn.Close()
	defer client.Close()

	go func() {
		client.Write(clientFrame(opBinary, []byte("hel"), false, [4]byte{1, 2, 3, 4}))
		client.Write(clientFrame(opContinuation, []byte("lo"), true, [4]byte{1, 2, 3, 4}))
	}()

	buf := make([]byte, 5)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestReadRespondsToPingWithPong(t *testing.T) {
	conn, client := acceptOverPipe(t)
	defer conn.Close()
	defer client.Close()

	type readResult struct {
		n   int
		err error
	}
	connDone := make(chan readResult, 1)
	buf := make([]byte, 1)
	go func() {
		n, err := conn.Read(buf)
		connDone <- readResult{n, err}
	}()

	go func() {
		client.Write(clientFrame(opPing, []byte("abc"), true, [4]byte{1, 2, 3, 4}))
		client.Write(clientFrame(opBinary, []byte("x"), true, [4]byte{1, 2, 3, 4}))
	}()

	pong := make([]byte, 5)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(pong)
	require.NoError(t, err)
	require.Equal(t, byte(0x80|byte(opPong)), pong[0])
	require.Equal(t, byte(3), pong[1])
	require.Equal(t, "abc", string(pong[2:n]))

	res := <-connDone
	require.NoError(t, res.err)
	require.Equal(t, "x", string(buf[:res.n]))
}

func TestReadEnforcesPayloadLimit(t *testing.T) {
	conn, client := acceptOverPipe(t)
	defer conn.Close()
	defer client.Close()
	conn.maxPayloadBytes = 1024

	go func() {
		header := []byte{0x82, 0xfe}
		ext := make([]byte, 2)
		binary.BigEndian.PutUint16(ext, 2048)
		client.Write(append(header, ext...))
	}()

	buf := make([]byte, 16)
	_, err := conn.Read(buf)
	require.Error(t, err)
}

func TestWriteSendsUnmaskedBinaryFrame(t *testing.T) {
	conn, client := acceptOverPipe(t)
	defer conn.Close()
	defer client.Close()

	go func() {
		conn.Write([]byte("hi"))
	}()

	out := make([]byte, 4)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(out)
	require.NoError(t, err)
	require.Equal(t, []byte{0x80 | byte(opBinary), 2, 'h', 'i'}, out[:n])
}

func TestLooksLikeWebSocketDetectsGETPrefix(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader([]byte("GET /ws HTTP/1.1\r\n")))
	ok, err := LooksLikeWebSocket(br)
	require.NoError(t, err)
	require.True(t, ok)

	peeked, _ := br.Peek(4)
	require.Equal(t, "GET ", string(peeked))
}

func TestLooksLikeWebSocketRejectsRFBPrefix(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader([]byte("RFB 003.008\n")))
	ok, err := LooksLikeWebSocket(br)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAcceptNegotiatesSubprotocol(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	req := "GET / HTTP/1.1\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"Sec-WebSocket-Protocol: base64, binary\r\n" +
		"\r\n"

	done := make(chan error, 1)
	go func() {
		br := bufio.NewReader(serverSide)
		_, err := Accept(serverSide, br, Options{})
		done <- err
	}()

	go clientSide.Write([]byte(req)) //nolint:errcheck

	resp := make([]byte, 4096)
	clientSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := clientSide.Read(resp)
	require.NoError(t, err)
	require.Contains(t, string(resp[:n]), "Sec-WebSocket-Protocol: base64")
	require.NoError(t, <-done)
}
