package middleware

import (
	"slices"
	"strings"
)

var localhostOrigins = []string{"http://localhost", "http://127.0.0.1", "https://localhost", "https://127.0.0.1"}

// IsLocalhostOrigin reports whether origin is a localhost origin on any port.
func IsLocalhostOrigin(origin string) bool {
	for _, prefix := range localhostOrigins {
		if origin == prefix || strings.HasPrefix(origin, prefix+":") {
			return true
		}
	}
	return false
}

// OriginAllowed reports whether a browser origin may call the API. Requests
// without an Origin header and localhost are always allowed; "*" in allowed
// opens it to everyone.
func OriginAllowed(origin string, allowed []string) bool {
	if origin == "" || IsLocalhostOrigin(origin) {
		return true
	}
	return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}
