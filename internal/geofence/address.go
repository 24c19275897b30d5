package geofence

import (
	"net/http"
	"strings"
)

// UnknownAddress is reported when no address header is present.
const UnknownAddress = "unknown"

// Address headers in precedence order.
const (
	HeaderForwardedFor   = "X-Forwarded-For"
	HeaderRealIP         = "X-Real-IP"
	HeaderCFConnectingIP = "CF-Connecting-IP"
)

// ObservedAddress extracts the client address: the first X-Forwarded-For
// entry, then X-Real-IP, then CF-Connecting-IP, else UnknownAddress.
func ObservedAddress(h http.Header) string {
	if fwd := h.Get(HeaderForwardedFor); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(h.Get(HeaderRealIP)); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(h.Get(HeaderCFConnectingIP)); ip != "" {
		return ip
	}
	return UnknownAddress
}
