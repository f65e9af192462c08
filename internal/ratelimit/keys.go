package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// KeyFunc derives the rate key for a request. An empty key admits the
// request without consuming budget.
type KeyFunc func(*http.Request) string

// ClientIP extracts the caller address, preferring proxy headers over the
// raw connection address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// First hop is the original client.
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// IPBasedKey keys the general and webhook classes by caller IP.
func IPBasedKey(r *http.Request) string {
	return fmt.Sprintf("ip:%s", ClientIP(r))
}

// TenantIPKey builds the message-send composite key from a tenant lookup.
// Requests without a resolvable tenant fall back to the bare IP key.
func TenantIPKey(tenantFromRequest func(*http.Request) string) KeyFunc {
	return func(r *http.Request) string {
		tenant := tenantFromRequest(r)
		if tenant == "" {
			return IPBasedKey(r)
		}
		return fmt.Sprintf("tenant:%s:%s", tenant, ClientIP(r))
	}
}
