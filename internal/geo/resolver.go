// Package geo resolves the originating client address of a tracking request
// and maps it to coarse geography.
package geo

import (
	"net"
	"net/http"
	"strings"
)

// Proxy headers in trust order. The first header present wins; the
// comma-separated ones contribute their first entry.
var clientIPHeaders = []struct {
	name  string
	multi bool
}{
	{name: "X-Client-IP"},
	{name: "CF-Connecting-IP"},
	{name: "True-Client-IP"},
	{name: "Fastly-Client-IP"},
	{name: "X-Forwarded-For", multi: true},
	{name: "X-Real-IP"},
	{name: "Fly-Client-IP"},
	{name: "X-Forwarded-For-Original"},
	{name: "X-Cluster-Client-IP"},
	{name: "X-Vercel-Forwarded-For", multi: true},
	{name: "X-Netlify-Original-IP"},
}

// ClientIP returns the best-guess originating address for req. In production
// a private, loopback, link-local or unparsable final candidate is replaced
// with fallbackIP.
func ClientIP(req *http.Request, production bool, fallbackIP string) string {
	for _, header := range clientIPHeaders {
		value := strings.TrimSpace(req.Header.Get(header.name))
		if value == "" {
			continue
		}
		// The frontend sets a literal "true" when it could not resolve one.
		if header.name == "X-Client-IP" && value == "true" {
			continue
		}
		if header.multi {
			value = strings.TrimSpace(strings.Split(value, ",")[0])
			if value == "" {
				continue
			}
		}
		return value
	}

	ip := peerAddress(req.RemoteAddr)
	if production && IsPrivateIP(ip) {
		return fallbackIP
	}
	return ip
}

func peerAddress(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// IsPrivateIP reports whether ip is private, loopback, link-local or not a
// valid address at all. Invalid addresses are treated as private.
func IsPrivateIP(ip string) bool {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return true
	}
	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() || parsed.IsLinkLocalMulticast() || parsed.IsUnspecified()
}
