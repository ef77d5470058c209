// Package request derives client identity from HTTP requests, including
// when the server sits behind a forwarding proxy or tunnel.
package request

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address of the client that sent r. When trustProxy
// is true, X-Forwarded-For and Forwarded (RFC 7239) are consulted first;
// otherwise only the TCP peer address is used.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		// X-Forwarded-For: client, proxy1, proxy2
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if first != "" {
				return first
			}
		}
		if forwarded := r.Header.Get("Forwarded"); forwarded != "" {
			first := strings.Split(forwarded, ",")[0]
			for _, part := range strings.Split(first, ";") {
				part = strings.TrimSpace(part)
				if len(part) > 4 && strings.EqualFold(part[:4], "for=") {
					return trimForwardedNode(part[4:])
				}
			}
		}
	}
	return peerIP(r.RemoteAddr)
}

// Scheme returns "https" or "http". Forwarding headers are honoured only
// when trustProxy is true.
func Scheme(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if proto := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))); proto == "https" || proto == "http" {
			return proto
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func peerIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// trimForwardedNode strips quotes, IPv6 brackets and a port from an RFC 7239
// node, e.g. "[2001:db8::1]:4711" -> 2001:db8::1.
func trimForwardedNode(node string) string {
	node = strings.Trim(node, `"`)
	if strings.HasPrefix(node, "[") {
		if end := strings.Index(node, "]"); end > 0 {
			return node[1:end]
		}
	}
	if host, _, err := net.SplitHostPort(node); err == nil {
		return host
	}
	return node
}
