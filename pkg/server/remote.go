package server

import (
	"net"
	"net/http"
	"strings"
	"time"
)

func remoteIPFromRequest(r *http.Request) net.IP {
	if r == nil {
		return nil
	}
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return nil
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if zone := strings.Index(host, "%"); zone != -1 {
		host = host[:zone]
	}
	return net.ParseIP(host)
}

// isLoopback reports whether the request came from a loopback address.
// Forwarding headers are ignored.
func isLoopback(r *http.Request) bool {
	ip := remoteIPFromRequest(r)
	return ip != nil && ip.IsLoopback()
}

func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
