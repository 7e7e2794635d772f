// Package netprofile classifies a client's IP address into a coarse
// network profile used to pick a default content hint (spec.md §4.7:
// LAN/localhost leans toward the speed-oriented LAN preference list, WAN
// toward the compression-oriented static list).
package netprofile

import "net"

// Profile is a coarse classification of where a client connected from.
type Profile int

const (
	// Localhost is a loopback address (127.0.0.0/8, ::1).
	Localhost Profile = iota
	// LAN is a private (RFC 1918) or link-local address.
	LAN
	// WAN is anything else, including addresses this package couldn't parse
	// (the safest default: never assume a fast/trusted path for an address
	// we don't understand).
	WAN
)

func (p Profile) String() string {
	switch p {
	case Localhost:
		return "localhost"
	case LAN:
		return "lan"
	default:
		return "wan"
	}
}

// Detect classifies clientIP (accepts a bare IP or an "ip:port" address,
// as net.Conn.RemoteAddr().String() returns).
//
// Grounded on original_source/vnc_lib/server_utils.py's
// detect_network_profile (ipaddress.is_loopback / is_private /
// is_link_local checks).
func Detect(clientIP string) Profile {
	ip := parseIP(clientIP)
	if ip == nil {
		return WAN
	}
	if ip.IsLoopback() {
		return Localhost
	}
	if ip.IsPrivate() || ip.IsLinkLocalUnicast() {
		return LAN
	}
	return WAN
}

func parseIP(s string) net.IP {
	if ip := net.ParseIP(s); ip != nil {
		return ip
	}
	host, _, err := net.SplitHostPort(s)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}
