package rfb

import "errors"

// Error taxonomy per spec §7. Each kind is a distinct type so callers can
// discriminate with errors.As; propagation policy lives with the caller
// (session loop, encoder manager, capture driver), not here.

// ProtocolError marks malformed or out-of-contract client input: a bad
// version string, an unknown message type, an oversize variable-length
// field, or a security type the server didn't offer. Always terminates the
// connection.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "rfb: protocol error: " + e.Msg }

// ErrProtocol is a sentinel usable with errors.Is/fmt.Errorf("%w", ...) for
// call sites that don't need the message wrapped in a *ProtocolError.
var ErrProtocol = errors.New("rfb: protocol error")

// AuthenticationError marks a challenge-response mismatch during the
// security handshake.
type AuthenticationError struct {
	Msg string
}

func (e *AuthenticationError) Error() string { return "rfb: authentication error: " + e.Msg }

// EncodingError marks an encoder producing malformed output, or output no
// smaller than Raw. Recovered in place: the caller discards the encoder's
// bytes and falls back to Raw for that one rectangle.
type EncodingError struct {
	Encoding string
	Msg      string
}

func (e *EncodingError) Error() string { return "rfb: encoding error (" + e.Encoding + "): " + e.Msg }

// CaptureError marks a capture cycle that produced no frame. The producer
// skips the update and retries on the next tick; repeated failures beyond a
// configured threshold terminate the connection.
type CaptureError struct {
	Msg string
}

func (e *CaptureError) Error() string { return "rfb: capture error: " + e.Msg }

// TransportError marks a socket read/write failure or unexpected EOF.
// Always terminates the connection; all per-connection state is released.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "rfb: transport error during " + e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// ConfigurationError marks invalid configuration discovered at startup.
// Refuses to start the server; never raised mid-session.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return "rfb: configuration error: " + e.Msg }
