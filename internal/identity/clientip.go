package identity

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Proxy headers consulted in priority order.
var forwardingHeaders = []string{
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Forwarded-For",
	"X-Real-IP",
	"X-Client-IP",
	"Forwarded",
}

// ClientIP picks the first public address from the forwarding headers and
// falls back to the connection's remote address, whatever its range.
func ClientIP(header http.Header, remoteAddr string) string {
	for _, name := range forwardingHeaders {
		for _, value := range header.Values(name) {
			for _, candidate := range headerCandidates(name, value) {
				if addr, ok := parsePublic(candidate); ok {
					return addr
				}
			}
		}
	}

	if host := remoteHost(remoteAddr); host != "" {
		return host
	}
	return UnknownIP
}

func headerCandidates(name, value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.EqualFold(name, "Forwarded") {
			part = forwardedFor(part)
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// forwardedFor extracts the for= node from an RFC 7239 element.
func forwardedFor(element string) string {
	for _, pair := range strings.Split(element, ";") {
		key, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "for") {
			continue
		}
		val = strings.Trim(strings.TrimSpace(val), `"`)
		if strings.HasPrefix(val, "[") {
			if end := strings.Index(val, "]"); end > 0 {
				return val[1:end]
			}
		}
		return val
	}
	return ""
}

func parsePublic(raw string) (string, bool) {
	addr, err := netip.ParseAddr(stripPort(raw))
	if err != nil {
		return "", false
	}
	addr = addr.Unmap()
	if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() || addr.IsMulticast() {
		return "", false
	}
	return addr.String(), true
}

func stripPort(raw string) string {
	raw = strings.TrimSpace(raw)
	if host, _, err := net.SplitHostPort(raw); err == nil {
		return host
	}
	return raw
}

func remoteHost(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if remoteAddr == "" {
		return ""
	}
	host := stripPort(remoteAddr)
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().String()
	}
	return ""
}
