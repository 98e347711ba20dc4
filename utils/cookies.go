package utils

import (
	"net/url"
	"strings"
)

// ParseCookies splits a Cookie header into name/value pairs. Values are
// URL-decoded when possible and may themselves contain "=". The first
// occurrence of a name wins.
func ParseCookies(header string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, seen := cookies[name]; seen {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if decoded, err := url.PathUnescape(value); err == nil {
			value = decoded
		}
		cookies[name] = value
	}
	return cookies
}

// Cookie returns one cookie value from a Cookie header.
func Cookie(header, name string) (string, bool) {
	v, ok := ParseCookies(header)[name]
	return v, ok && v != ""
}
