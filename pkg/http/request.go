package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig lists the proxies whose forwarding headers may be believed,
// as CIDR ranges. Entries that fail to parse are ignored.
type IPConfig struct {
	TrustedProxies []string
}

// ExtractClientIP resolves the client address a request originated from.
// Forwarding headers are attacker-controlled, so X-Forwarded-For and
// X-Real-IP count only when the connecting peer is a trusted proxy;
// otherwise the peer address itself is the answer. The result feeds
// login attempt records and new-IP detection, so it must not be
// spoofable by a direct client.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	peer := remoteHost(r)

	if config == nil || !fromTrustedProxy(peer, config.TrustedProxies) {
		return peer
	}

	// Leftmost entry is the original client; later hops are proxies.
	for _, candidate := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		candidate = strings.TrimSpace(candidate)
		if _, err := netip.ParseAddr(candidate); err == nil {
			return candidate
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}

	return peer
}

// remoteHost strips the port from RemoteAddr, which net/http formats as
// host:port for real connections.
func remoteHost(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func fromTrustedProxy(peer string, trusted []string) bool {
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, cidr := range trusted {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			continue
		}
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
