package rfb

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"

	"github.com/go-rfb/govncd/internal/vncauth"
)

// Protocol version lines the server can negotiate, oldest first (it always
// advertises version8 and serves older clients at 3.7 or 3.3). Grounded on
// patdhlk-rfb/rfb.go's v3/v7/v8 constants, generalized into a real
// greatest-common-version negotiation instead of always assuming 3.8.
const (
	version33 = "RFB 003.003\n"
	version7  = "RFB 003.007\n"
	version8  = "RFB 003.008\n"
)

// Security type bytes (RFC 6143 §7.1.2).
const (
	securityNone    = 1
	securityVNCAuth = 2
)

// HandshakeConfig carries the server-side policy knobs the handshake needs.
type HandshakeConfig struct {
	// Password, if non-empty, offers and accepts VNC Authentication.
	Password string

	// OfferVNCAuthWithNoPassword offers VNC Authentication against an
	// empty password instead of silently falling back to None (spec_full
	// §9 Open Question resolution: default false, offer only None when no
	// password is configured).
	OfferVNCAuthWithNoPassword bool

	ServerName            string
	InitialWidth          int
	InitialHeight         int
	MaxEncodingsPerClient int
	MaxClientCutTextBytes int
}

// AcceptConn wraps conn in a wireConn, runs the handshake over it, assigns
// the resulting ClientState a fresh correlation ID, and returns both —
// the entry point cmd/govncd uses, since wireConn itself stays unexported
// (every other caller in this package already has one).
func AcceptConn(conn net.Conn, cfg HandshakeConfig) (*ClientState, error) {
	wc := newWireConn(conn, conn)
	cs, err := PerformHandshake(wc, cfg)
	if err != nil {
		return nil, err
	}
	cs.ID = uuid.NewString()
	return cs, nil
}

// PerformHandshake runs the version, security, ClientInit/ServerInit
// exchange and returns a ready ClientState. An *AuthenticationError is
// returned (connection must close) on any authentication failure; a
// *ProtocolError, or an error wrapping ErrProtocol for a bad version line,
// on a malformed exchange.
func PerformHandshake(wc *wireConn, cfg HandshakeConfig) (*ClientState, error) {
	if err := wc.writeAll([]byte(version8)); err != nil {
		return nil, err
	}
	if err := wc.flush(); err != nil {
		return nil, err
	}

	clientVersion, err := readVersionLine(wc)
	if err != nil {
		return nil, err
	}
	negotiated, err := negotiateVersion(clientVersion)
	if err != nil {
		return nil, err
	}

	offerVNCAuth := cfg.Password != "" || cfg.OfferVNCAuthWithNoPassword

	if err := runSecurityHandshake(wc, negotiated, cfg.Password, offerVNCAuth); err != nil {
		return nil, err
	}

	shared, err := readClientInit(wc)
	if err != nil {
		return nil, err
	}

	if err := writeServerInit(wc, cfg); err != nil {
		return nil, err
	}

	cs := NewClientState("")
	cs.Version = negotiated
	cs.Authenticated = true
	cs.Shared = shared
	return cs, nil
}

func readVersionLine(wc *wireConn) (string, error) {
	buf, err := wc.readExact(12)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// negotiateVersion picks the greatest version in {3.3, 3.7, 3.8} that is
// ≤ the client's (major, minor), per spec §4.1's testable property — not a
// literal match against the three offered lines, since any client claiming
// 3.8 or newer (3.9, 4.0, ...) is entitled to be served at 3.8.
func negotiateVersion(clientVersion string) (string, error) {
	major, minor, ok := parseVersionLine(clientVersion)
	if !ok {
		return "", fmt.Errorf("%w: malformed client protocol version %q", ErrProtocol, strings.TrimSpace(clientVersion))
	}

	switch {
	case major > 3 || (major == 3 && minor >= 8):
		return version8, nil
	case major == 3 && minor == 7:
		return version7, nil
	case major == 3 && minor >= 3:
		return version33, nil
	default:
		return "", fmt.Errorf("%w: unsupported client protocol version %d.%d", ErrProtocol, major, minor)
	}
}

// parseVersionLine reads the "RFB 003.008\n" line's major/minor numerals.
// Sscanf's %d treats the zero-padded fields as plain decimal, not octal.
func parseVersionLine(line string) (major, minor int, ok bool) {
	trimmed := strings.TrimRight(line, "\n")
	if _, err := fmt.Sscanf(trimmed, "RFB %d.%d", &major, &minor); err != nil {
		return 0, 0, false
	}
	return major, minor, true
}

func runSecurityHandshake(wc *wireConn, version, password string, offerVNCAuth bool) error {
	if version == version33 {
		return securityHandshake33(wc, password, offerVNCAuth)
	}
	return securityHandshakeModern(wc, version, password, offerVNCAuth)
}

// securityHandshake33 implements the pre-3.7 form: the server unilaterally
// picks the security type and sends it as a single uint32 (spec §4.1).
func securityHandshake33(wc *wireConn, password string, offerVNCAuth bool) error {
	secType := uint32(securityNone)
	if offerVNCAuth {
		secType = securityVNCAuth
	}
	if err := wc.writeUint32(secType); err != nil {
		return err
	}
	if err := wc.flush(); err != nil {
		return err
	}
	if secType == securityVNCAuth {
		return performVNCAuth(wc, password, true)
	}
	return nil
}

// securityHandshakeModern implements the 3.7/3.8 form: the server offers a
// list of security types, the client picks one. 3.8 additionally always
// sends a SecurityResult after None; 3.7 only sends one as part of VNC
// Auth's own sub-protocol (spec §4.1, grounded on patdhlk-rfb/rfb.go's
// `if ver >= v8 { c.w(uint32(statusOK)) }`, generalized to cover auth).
func securityHandshakeModern(wc *wireConn, version, password string, offerVNCAuth bool) error {
	types := []byte{securityNone}
	if offerVNCAuth {
		types = append(types, securityVNCAuth)
	}

	if err := wc.writeByte(byte(len(types))); err != nil {
		return err
	}
	if err := wc.writeAll(types); err != nil {
		return err
	}
	if err := wc.flush(); err != nil {
		return err
	}

	chosen, err := wc.readByte()
	if err != nil {
		return err
	}

	offered := false
	for _, t := range types {
		if t == chosen {
			offered = true
			break
		}
	}
	if !offered {
		return &ProtocolError{Msg: fmt.Sprintf("client chose unoffered security type %d", chosen)}
	}

	if chosen == securityVNCAuth {
		return performVNCAuth(wc, password, false)
	}

	if version == version8 {
		return writeSecurityResult(wc, true, "")
	}
	return nil
}

func performVNCAuth(wc *wireConn, password string, alwaysSendResult bool) error {
	challenge, err := vncauth.NewChallenge()
	if err != nil {
		return err
	}
	if err := wc.writeAll(challenge); err != nil {
		return err
	}
	if err := wc.flush(); err != nil {
		return err
	}

	response, err := wc.readExact(vncauth.ChallengeSize)
	if err != nil {
		return err
	}

	ok, err := vncauth.Verify(password, challenge, response)
	if err != nil {
		return err
	}
	if !ok {
		_ = writeSecurityResult(wc, false, "authentication failed")
		return &AuthenticationError{Msg: "VNC authentication failed"}
	}
	// VNC Authentication's own sub-protocol always reports its outcome,
	// independent of whether the negotiated version calls this message
	// "SecurityResult".
	return writeSecurityResult(wc, true, "")
}

func writeSecurityResult(wc *wireConn, ok bool, reason string) error {
	status := uint32(0)
	if !ok {
		status = 1
	}
	if err := wc.writeUint32(status); err != nil {
		return err
	}
	if !ok {
		if err := wc.writeUint32(uint32(len(reason))); err != nil {
			return err
		}
		if err := wc.writeAll([]byte(reason)); err != nil {
			return err
		}
	}
	return wc.flush()
}

func readClientInit(wc *wireConn) (shared bool, err error) {
	b, err := wc.readByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func writeServerInit(wc *wireConn, cfg HandshakeConfig) error {
	if err := wc.writeUint16(uint16(cfg.InitialWidth)); err != nil {
		return err
	}
	if err := wc.writeUint16(uint16(cfg.InitialHeight)); err != nil {
		return err
	}
	if err := wc.writeAll(ServerNativeFormat.Marshal()); err != nil {
		return err
	}
	name := cfg.ServerName
	if name == "" {
		name = "govncd"
	}
	if err := wc.writeUint32(uint32(len(name))); err != nil {
		return err
	}
	if err := wc.writeAll([]byte(name)); err != nil {
		return err
	}
	return wc.flush()
}
